package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cornell-notes/internal/note"
	"github.com/JakeFAU/cornell-notes/internal/render"
	"github.com/JakeFAU/cornell-notes/internal/service"
)

func seeded() *fakeNotes {
	return &fakeNotes{notes: []note.Note{
		{UID: "a", Title: "Alpha", Link: "https://a.example", Tags: []string{"go", "web"}, Screenshot: "https://cdn.example.com/demo/image/upload/v1/cornell/a.png", Point: "**key**"},
		{UID: "b", Title: "Beta", Link: "https://b.example", Tags: []string{"go"}},
		{UID: "c", Title: "Gamma", Link: "https://c.example", Tags: []string{}},
	}}
}

func TestListNotes(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seeded(), testConfig())
	rec := do(t, s, http.MethodGet, "/v1/notes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[listResponse](t, rec)
	require.Len(t, body.Notes, 3)
	require.Equal(t, note.DefaultIcon, body.DefaultIcon)

	rec = do(t, s, http.MethodGet, "/v1/notes?page=1&page_size=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[listResponse](t, rec)
	require.Len(t, body.Notes, 1)
	require.Equal(t, "c", body.Notes[0].UID)
}

func TestListNotesRejectsBadPaging(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seeded(), testConfig())
	for _, target := range []string{"/v1/notes?page_size=0", "/v1/notes?page=1", "/v1/notes?page_size=2&page=-1"} {
		rec := do(t, s, http.MethodGet, target, "")
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestCaptureNote(t *testing.T) {
	t.Parallel()

	notes := &fakeNotes{}
	s := newTestServer(t, notes, testConfig())
	rec := do(t, s, http.MethodPost, "/v1/notes", `{"url":"https://example.com","viewport":{"width":1280,"height":800}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	n := decode[note.Note](t, rec)
	require.Equal(t, "https://example.com", n.Link)
	require.Equal(t, []string{"https://example.com"}, notes.captured)
}

func TestCaptureNoteErrors(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeNotes{}, testConfig())
	rec := do(t, s, http.MethodPost, "/v1/notes", `{"url":"notaurl"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "link", decode[errorBody](t, rec).Field)

	rec = do(t, s, http.MethodPost, "/v1/notes", `{invalid`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/notes", `{"url":"https://example.com","extra":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	nav := &fakeNotes{err: &note.NavigationError{URL: "https://down.example", Err: errors.New("timeout")}}
	s = newTestServer(t, nav, testConfig())
	rec = do(t, s, http.MethodPost, "/v1/notes", `{"url":"https://down.example"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGetNote(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seeded(), testConfig())
	rec := do(t, s, http.MethodGet, "/v1/notes/b", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Beta", decode[note.Note](t, rec).Title)

	require.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/v1/notes/zzz", "").Code)
}

func TestUpdateNoteMergesFields(t *testing.T) {
	t.Parallel()

	notes := seeded()
	s := newTestServer(t, notes, testConfig())
	rec := do(t, s, http.MethodPut, "/v1/notes/b", `{"summary":"short","tags":["go","db"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[note.Note](t, rec)
	require.Equal(t, "Beta", updated.Title)
	require.Equal(t, "short", updated.Summary)
	require.Equal(t, []string{"go", "db"}, updated.Tags)
}

func TestUpdateNoteValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seeded(), testConfig())
	rec := do(t, s, http.MethodPut, "/v1/notes/b", `{"title":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "title", decode[errorBody](t, rec).Field)

	rec = do(t, s, http.MethodPut, "/v1/notes/b", `{"tags":["a,b"]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusNotFound, do(t, s, http.MethodPut, "/v1/notes/zzz", `{"title":"x"}`).Code)
}

func TestDeleteNote(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seeded(), testConfig())
	rec := do(t, s, http.MethodDelete, "/v1/notes/a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, deleteResponse{UID: "a", Deleted: true}, decode[deleteResponse](t, rec))

	require.Equal(t, http.StatusNotFound, do(t, s, http.MethodDelete, "/v1/notes/a", "").Code)
}

func TestDeleteNoteReportsOrphanedAsset(t *testing.T) {
	t.Parallel()

	notes := seeded()
	notes.deleteErr = &service.OrphanedAssetError{UID: "a", Folder: "cornell", Err: errors.New("gcs 503")}
	s := newTestServer(t, notes, testConfig())
	rec := do(t, s, http.MethodDelete, "/v1/notes/a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[deleteResponse](t, rec)
	require.True(t, body.Deleted)
	require.True(t, body.OrphanedAsset)
	require.Contains(t, body.Warning, "gcs 503")
}

func TestRendition(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seeded(), testConfig())
	rec := do(t, s, http.MethodGet, "/v1/notes/a/rendition?width=640", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[renditionResponse](t, rec)
	require.Equal(t, 640, body.Width)
	require.Equal(t, "https://cdn.example.com/demo/image/upload/v1/cornell/a.png?w=640", body.URL)

	require.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/v1/notes/a/rendition", "").Code)
	require.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/v1/notes/a/rendition?width=-3", "").Code)
	require.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/v1/notes/b/rendition?width=640", "").Code)
	require.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/v1/notes/zzz/rendition?width=640", "").Code)
}

func TestPreview(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seeded(), testConfig())
	rec := do(t, s, http.MethodGet, "/v1/notes/a/preview", "")
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[render.Preview](t, rec)
	require.Equal(t, "<p><strong>key</strong></p>\n", p.PointHTML)
	require.Equal(t, note.DefaultIcon, p.Icon)
}

func TestListTags(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seeded(), testConfig())
	rec := do(t, s, http.MethodGet, "/v1/tags", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.ElementsMatch(t, []string{"go", "web"}, decode[map[string][]string](t, rec)["tags"])
}

func TestRemoveTag(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seeded(), testConfig())
	rec := do(t, s, http.MethodDelete, "/v1/tags/go", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[removeTagResponse](t, rec)
	require.Equal(t, "go", body.Tag)
	require.Equal(t, []string{"a", "b"}, body.Updated)
	require.Empty(t, body.Failed)
}

func TestRemoveTagPartialFailure(t *testing.T) {
	t.Parallel()

	notes := seeded()
	notes.removeErr = &service.TagRemovalError{
		Tag:    "go",
		Failed: []service.FailedNote{{UID: "b", Title: "Beta", Err: errors.New("conn reset")}},
	}
	s := newTestServer(t, notes, testConfig())
	rec := do(t, s, http.MethodDelete, "/v1/tags/go", "")
	require.Equal(t, http.StatusMultiStatus, rec.Code)
	body := decode[removeTagResponse](t, rec)
	require.Len(t, body.Failed, 1)
	require.Equal(t, "Beta", body.Failed[0].Title)
	require.Equal(t, "conn reset", body.Failed[0].Error)
}
