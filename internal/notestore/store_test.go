package notestore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cornell-notes/internal/note"
	"github.com/JakeFAU/cornell-notes/internal/service"
)

type fakeBackend struct {
	mu         sync.Mutex
	notes      []note.Note
	failUpdate map[string]error
	deleteErr  error
	inflight   map[string]*atomic.Int32
	overlap    atomic.Bool
}

func newFakeBackend(notes ...note.Note) *fakeBackend {
	return &fakeBackend{notes: notes, failUpdate: map[string]error{}, inflight: map[string]*atomic.Int32{}}
}

func (f *fakeBackend) counter(uid string) *atomic.Int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.inflight[uid]
	if !ok {
		c = &atomic.Int32{}
		f.inflight[uid] = c
	}
	return c
}

func (f *fakeBackend) List(context.Context, note.ListOptions) ([]note.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]note.Note(nil), f.notes...), nil
}

func (f *fakeBackend) Capture(_ context.Context, rawURL string, _ note.Viewport) (note.Note, error) {
	if rawURL == "https://broken.example" {
		return note.Note{}, &note.NavigationError{URL: rawURL, Err: errors.New("dns")}
	}
	n := note.Note{UID: "new", Title: "New", Link: rawURL, Tags: []string{}}
	f.mu.Lock()
	f.notes = append(f.notes, n)
	f.mu.Unlock()
	return n, nil
}

func (f *fakeBackend) Update(_ context.Context, n note.Note) (note.Note, error) {
	c := f.counter(n.UID)
	if c.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer c.Add(-1)
	time.Sleep(2 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failUpdate[n.UID]; err != nil {
		return note.Note{}, err
	}
	for i := range f.notes {
		if f.notes[i].UID == n.UID {
			f.notes[i] = n.Clone()
		}
	}
	return n, nil
}

func (f *fakeBackend) Delete(context.Context, string) error {
	return f.deleteErr
}

func (f *fakeBackend) RemoveTag(ctx context.Context, notes []note.Note, tag string) ([]note.Note, error) {
	var updated []note.Note
	var failed []service.FailedNote
	for _, n := range notes {
		if !n.HasTag(tag) {
			continue
		}
		next := n.Clone()
		next.Tags = note.WithoutTag(n.Tags, tag)
		if _, err := f.Update(ctx, next); err != nil {
			failed = append(failed, service.FailedNote{UID: n.UID, Title: n.Title, Err: err})
			continue
		}
		updated = append(updated, next)
	}
	if len(failed) > 0 {
		return updated, &service.TagRemovalError{Tag: tag, Failed: failed}
	}
	return updated, nil
}

func seeded() []note.Note {
	return []note.Note{
		{UID: "a", Title: "A", Link: "https://a.example", Tags: []string{"go", "web"}},
		{UID: "b", Title: "B", Link: "https://b.example", Tags: []string{"go"}},
		{UID: "c", Title: "C", Link: "https://c.example", Tags: []string{"db"}},
	}
}

func loadedStore(t *testing.T, backend *fakeBackend) *Store {
	t.Helper()
	s := New(backend)
	require.NoError(t, s.Load(context.Background()))
	return s
}

func TestLoadAndVocabulary(t *testing.T) {
	t.Parallel()

	s := loadedStore(t, newFakeBackend(seeded()...))
	require.Len(t, s.Notes(), 3)
	require.Equal(t, []string{"go", "web", "db"}, s.Vocabulary())

	n, ok := s.Get("b")
	require.True(t, ok)
	require.Equal(t, "B", n.Title)
	_, ok = s.Get("zzz")
	require.False(t, ok)
}

func TestCaptureAppendsOnlyOnSuccess(t *testing.T) {
	t.Parallel()

	s := loadedStore(t, newFakeBackend(seeded()...))
	_, err := s.Capture(context.Background(), "https://broken.example", note.Viewport{})
	require.True(t, note.IsNavigation(err))
	require.Len(t, s.Notes(), 3)

	n, err := s.Capture(context.Background(), "https://new.example", note.Viewport{})
	require.NoError(t, err)
	notes := s.Notes()
	require.Len(t, notes, 4)
	require.Equal(t, n.UID, notes[3].UID)
}

func TestUpdateFailureKeepsLocalCopy(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(seeded()...)
	backend.failUpdate["a"] = errors.New("conflict")
	s := loadedStore(t, backend)

	_, err := s.Update(context.Background(), note.Note{UID: "a", Title: "A2", Link: "https://a.example"})
	require.Error(t, err)
	n, _ := s.Get("a")
	require.Equal(t, "A", n.Title)

	_, err = s.Update(context.Background(), note.Note{UID: "b", Title: "B2", Link: "https://b.example"})
	require.NoError(t, err)
	n, _ = s.Get("b")
	require.Equal(t, "B2", n.Title)
}

func TestToggleTagSerializedPerUID(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(seeded()...)
	s := loadedStore(t, backend)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ToggleTag(context.Background(), "c", "new")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.False(t, backend.overlap.Load(), "updates of one note never overlap")
	n, _ := s.Get("c")
	require.Equal(t, []string{"db"}, n.Tags, "an even number of toggles is a no-op")

	_, err := s.ToggleTag(context.Background(), "missing", "x")
	require.ErrorIs(t, err, note.ErrNotFound)
}

func TestDeleteRemovesLocallyEvenWhenAssetOrphaned(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(seeded()...)
	s := loadedStore(t, backend)
	s.Select("a")

	backend.deleteErr = &service.OrphanedAssetError{UID: "a", Err: errors.New("denied")}
	err := s.Delete(context.Background(), "a")
	require.Error(t, err)
	_, ok := s.Get("a")
	require.False(t, ok)
	_, ok = s.Selected()
	require.False(t, ok)

	backend.deleteErr = &note.PersistenceError{Op: "delete", UID: "b", Err: errors.New("down")}
	require.Error(t, s.Delete(context.Background(), "b"))
	_, ok = s.Get("b")
	require.True(t, ok, "a failed row delete keeps the note")
}

func TestRemoveTagAppliesPartialSuccess(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(seeded()...)
	backend.failUpdate["b"] = errors.New("timeout")
	s := loadedStore(t, backend)

	err := s.RemoveTag(context.Background(), "go")
	var trErr *service.TagRemovalError
	require.ErrorAs(t, err, &trErr)
	require.Equal(t, "b", trErr.Failed[0].UID)

	a, _ := s.Get("a")
	require.Equal(t, []string{"web"}, a.Tags)
	b, _ := s.Get("b")
	require.Equal(t, []string{"go"}, b.Tags)
	require.Equal(t, []string{"web", "go", "db"}, s.Vocabulary())
}

func TestSelection(t *testing.T) {
	t.Parallel()

	s := loadedStore(t, newFakeBackend(seeded()...))
	_, ok := s.Selected()
	require.False(t, ok)

	s.Select("b")
	n, ok := s.Selected()
	require.True(t, ok)
	require.Equal(t, "b", n.UID)

	s.Selection().SetExternal("c")
	n, _ = s.Selected()
	require.Equal(t, "c", n.UID)
}
