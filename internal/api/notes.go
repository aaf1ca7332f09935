package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/cornell-notes/internal/note"
	"github.com/JakeFAU/cornell-notes/internal/service"
)

type captureRequest struct {
	URL      string        `json:"url"`
	Viewport note.Viewport `json:"viewport"`
}

type updateRequest struct {
	Title       *string   `json:"title"`
	Link        *string   `json:"link"`
	IconURL     *string   `json:"icon_url"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
	Point       *string   `json:"point"`
	Summary     *string   `json:"summary"`
}

func (u updateRequest) apply(n note.Note) note.Note {
	out := n.Clone()
	setIf(&out.Title, u.Title)
	setIf(&out.Link, u.Link)
	setIf(&out.IconURL, u.IconURL)
	setIf(&out.Description, u.Description)
	setIf(&out.Point, u.Point)
	setIf(&out.Summary, u.Summary)
	if u.Tags != nil {
		out.Tags = append([]string{}, (*u.Tags)...)
	}
	return out
}

func setIf(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

type listResponse struct {
	Notes       []note.Note `json:"notes"`
	DefaultIcon string      `json:"default_icon"`
}

func (s *Server) listNotes(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r.URL.Query())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	notes, err := s.deps.Notes.List(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Notes: notes, DefaultIcon: note.DefaultIcon})
}

func listOptions(q url.Values) (note.ListOptions, error) {
	if q.Get("page_size") == "" && q.Get("page") == "" {
		return note.ListOptions{}, nil
	}
	size, err := strconv.Atoi(q.Get("page_size"))
	if err != nil || size <= 0 {
		return note.ListOptions{}, &note.ValidationError{Field: "page_size", Reason: "must be a positive integer"}
	}
	page := 0
	if raw := q.Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 0 {
			return note.ListOptions{}, &note.ValidationError{Field: "page", Reason: "must be a non-negative integer"}
		}
	}
	return note.ListOptions{Page: page, PageSize: size, Limited: true}, nil
}

func (s *Server) captureNote(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	n, err := s.deps.Notes.Capture(r.Context(), req.URL, req.Viewport)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("note captured", zap.String("uid", n.UID), zap.String("url", n.Link))
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) getNote(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Notes.Get(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) updateNote(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	current, err := s.deps.Notes.Get(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := s.deps.Notes.Update(r.Context(), req.apply(current))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type deleteResponse struct {
	UID           string `json:"uid"`
	Deleted       bool   `json:"deleted"`
	OrphanedAsset bool   `json:"orphaned_asset,omitempty"`
	Warning       string `json:"warning,omitempty"`
}

func (s *Server) deleteNote(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	err := s.deps.Notes.Delete(r.Context(), uid)
	var orphan *service.OrphanedAssetError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, deleteResponse{UID: uid, Deleted: true})
	case errors.As(err, &orphan):
		writeJSON(w, http.StatusOK, deleteResponse{
			UID:           uid,
			Deleted:       true,
			OrphanedAsset: true,
			Warning:       orphan.Error(),
		})
	default:
		s.fail(w, r, err)
	}
}

type renditionResponse struct {
	UID   string `json:"uid"`
	Width int    `json:"width"`
	URL   string `json:"url"`
}

func (s *Server) rendition(w http.ResponseWriter, r *http.Request) {
	width, err := strconv.Atoi(r.URL.Query().Get("width"))
	if err != nil || width <= 0 {
		s.fail(w, r, &note.ValidationError{Field: "width", Reason: "must be a positive integer"})
		return
	}
	n, err := s.deps.Notes.Get(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if n.Screenshot == "" {
		writeError(w, http.StatusNotFound, "note has no screenshot")
		return
	}
	rendition, err := s.deps.Renditions.Transform(r.Context(), n.Screenshot, width)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renditionResponse{UID: n.UID, Width: width, URL: rendition})
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Notes.Get(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.deps.Renderer.Preview(n)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.deps.Notes.Tags(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"tags": tags})
}

type failedNoteBody struct {
	UID   string `json:"uid"`
	Title string `json:"title"`
	Error string `json:"error"`
}

type removeTagResponse struct {
	Tag     string           `json:"tag"`
	Updated []string         `json:"updated"`
	Failed  []failedNoteBody `json:"failed,omitempty"`
}

func (s *Server) removeTag(w http.ResponseWriter, r *http.Request) {
	tag, err := url.PathUnescape(chi.URLParam(r, "tag"))
	if err != nil {
		s.fail(w, r, &note.ValidationError{Field: "tag", Reason: "is not a valid path segment"})
		return
	}
	notes, err := s.deps.Notes.List(r.Context(), note.ListOptions{})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := s.deps.Notes.RemoveTag(r.Context(), notes, tag)
	resp := removeTagResponse{Tag: tag, Updated: make([]string, 0, len(updated))}
	for _, n := range updated {
		resp.Updated = append(resp.Updated, n.UID)
	}
	var partial *service.TagRemovalError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.As(err, &partial):
		for _, f := range partial.Failed {
			resp.Failed = append(resp.Failed, failedNoteBody{UID: f.UID, Title: f.Title, Error: f.Err.Error()})
		}
		writeJSON(w, http.StatusMultiStatus, resp)
	default:
		s.fail(w, r, err)
	}
}
