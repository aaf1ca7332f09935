// Package render turns note annotations written in Markdown into HTML previews.
package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/JakeFAU/cornell-notes/internal/note"
)

// Renderer converts Markdown with GitHub-flavored extensions. Raw HTML in the source is omitted.
type Renderer struct {
	md goldmark.Markdown
}

// New constructs a Renderer.
func New() *Renderer {
	return &Renderer{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Markdown renders src to HTML.
func (r *Renderer) Markdown(src string) (string, error) {
	if src == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// Preview is the display form of a note.
type Preview struct {
	UID         string   `json:"uid"`
	Title       string   `json:"title"`
	Link        string   `json:"link"`
	Icon        string   `json:"icon"`
	Screenshot  string   `json:"screenshot,omitempty"`
	Tags        []string `json:"tags"`
	Description string   `json:"description,omitempty"`
	PointHTML   string   `json:"point_html"`
	SummaryHTML string   `json:"summary_html"`
}

// Preview renders the free-text fields of n and substitutes the placeholder icon.
func (r *Renderer) Preview(n note.Note) (Preview, error) {
	point, err := r.Markdown(n.Point)
	if err != nil {
		return Preview{}, fmt.Errorf("point: %w", err)
	}
	summary, err := r.Markdown(n.Summary)
	if err != nil {
		return Preview{}, fmt.Errorf("summary: %w", err)
	}
	return Preview{
		UID:         n.UID,
		Title:       n.Title,
		Link:        n.Link,
		Icon:        n.DisplayIcon(),
		Screenshot:  n.Screenshot,
		Tags:        append([]string{}, n.Tags...),
		Description: n.Description,
		PointHTML:   point,
		SummaryHTML: summary,
	}, nil
}
