// Package note defines the Note record and the collaborator contracts shared across subsystems.
package note

// DefaultIcon is substituted at display time when a note has no icon. It is never persisted.
const DefaultIcon = "/paperclip.png"

// Note is the durable record for one captured web page plus user annotations.
type Note struct {
	UID         string   `json:"uid"`
	Title       string   `json:"title"`
	Link        string   `json:"link"`
	IconURL     string   `json:"icon_url,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags"`
	Screenshot  string   `json:"screenshot,omitempty"`
	Point       string   `json:"point,omitempty"`
	Summary     string   `json:"summary,omitempty"`
}

// Clone returns a deep copy so callers can mutate tags without sharing backing arrays.
func (n Note) Clone() Note {
	cp := n
	if n.Tags != nil {
		cp.Tags = append([]string(nil), n.Tags...)
	}
	return cp
}

// HasTag reports whether the note carries tag.
func (n Note) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// DisplayIcon returns the icon to show, falling back to DefaultIcon.
func (n Note) DisplayIcon() string {
	if n.IconURL == "" {
		return DefaultIcon
	}
	return n.IconURL
}

// Validate checks the fields required before a note may be written.
func (n Note) Validate() error {
	if n.UID == "" {
		return &ValidationError{Field: "uid", Reason: "is required"}
	}
	if n.Title == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if n.Link == "" {
		return &ValidationError{Field: "link", Reason: "is required"}
	}
	return ValidateTags(n.Tags)
}

// Viewport is the browser screen size used for layout before a full-page screenshot.
type Viewport struct {
	Width  int64 `json:"width"`
	Height int64 `json:"height"`
}

// DefaultViewport is used when the caller does not report its screen size.
var DefaultViewport = Viewport{Width: 1440, Height: 900}

// OrDefault fills zero dimensions from DefaultViewport.
func (v Viewport) OrDefault() Viewport {
	if v.Width <= 0 {
		v.Width = DefaultViewport.Width
	}
	if v.Height <= 0 {
		v.Height = DefaultViewport.Height
	}
	return v
}

// PageCapture is what a browser session extracts from one page load.
type PageCapture struct {
	URL        string
	Title      string
	IconURL    string
	Screenshot []byte
}

// ListOptions selects between a full ordered scan and a bounded page.
type ListOptions struct {
	Page     int
	PageSize int
	Limited  bool
}

// Offset returns the row offset for a bounded listing.
func (o ListOptions) Offset() int {
	if o.Page < 0 {
		return 0
	}
	return o.Page * o.PageSize
}
