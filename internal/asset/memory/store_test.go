package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cornell-notes/internal/asset"
	"github.com/JakeFAU/cornell-notes/internal/note"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	urls, err := asset.NewURLBuilder("cdn.example.com", "demo", "cornell")
	require.NoError(t, err)
	return NewStore(urls)
}

func TestStoreUploadCopiesData(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	payload := []byte("content")
	uri, err := store.Upload(context.Background(), payload, "abc", "")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/demo/image/upload/v1/cornell/abc.png", uri)

	payload[0] = 'C'
	stored, ok := store.Get("abc", "")
	require.True(t, ok)
	require.Equal(t, "content", string(stored))
}

func TestStoreOverwriteBumpsVersion(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	_, err := store.Upload(context.Background(), []byte("a"), "abc", "")
	require.NoError(t, err)
	uri, err := store.Upload(context.Background(), []byte("b"), "abc", "")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/demo/image/upload/v2/cornell/abc.png", uri)
	require.Equal(t, 1, store.Len())
}

func TestStoreDelete(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	_, err := store.Upload(context.Background(), []byte("a"), "abc", "")
	require.NoError(t, err)
	require.NoError(t, store.Delete(context.Background(), "abc", ""))
	require.NoError(t, store.Delete(context.Background(), "abc", ""))
	require.Equal(t, 0, store.Len())
}

func TestStoreInjectedFailures(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	store.FailUpload = errors.New("quota")
	_, err := store.Upload(context.Background(), []byte("a"), "abc", "")
	require.True(t, note.IsAssetStore(err))

	store.FailDelete = errors.New("denied")
	require.True(t, note.IsAssetStore(store.Delete(context.Background(), "abc", "")))
}
