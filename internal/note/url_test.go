package note

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveIcon(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		page   string
		link   string
		meta   string
		expect string
	}{
		{"link wins", "https://example.com/foo", "https://example.com/icon.png", "https://example.com/og.png", "https://example.com/icon.png"},
		{"meta fallback", "https://www.google.com/search?q=x", "", "/images/branding/logo.png", "https://www.google.com/images/branding/logo.png"},
		{"neither", "https://example.com", "", "", ""},
		{"path absolute rewrite", "https://example.com/foo", "/favicon.ico", "", "https://example.com/favicon.ico"},
		{"protocol relative", "https://example.com/foo", "//cdn.example.net/i.ico", "", "https://cdn.example.net/i.ico"},
		{"relative to page", "https://example.com/docs/page", "favicon.ico", "", "https://example.com/docs/favicon.ico"},
		{"relative subdir", "https://example.com/docs/page", "img/icon.png", "", "https://example.com/docs/img/icon.png"},
		{"relative parent", "https://example.com/docs/page", "../icon.png", "", "https://example.com/icon.png"},
		{"relative meta", "https://example.com/a/b", "", "og.png", "https://example.com/a/og.png"},
		{"relative without page", "", "icon.png", "", "icon.png"},
		{"keeps port", "http://localhost:8080/a/b", "/icon.png", "", "http://localhost:8080/icon.png"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.expect, ResolveIcon(tt.page, tt.link, tt.meta))
		})
	}
}

func TestValidateLink(t *testing.T) {
	t.Parallel()

	u, err := ValidateLink(" https://example.com/a ")
	require.NoError(t, err)
	require.Equal(t, "example.com", u.Host)

	for _, raw := range []string{"", "example.com", "ftp://example.com", "https://", "http://%zz"} {
		_, err := ValidateLink(raw)
		require.Error(t, err, raw)
		require.True(t, IsValidation(err), raw)
	}
}

func TestNoteValidate(t *testing.T) {
	t.Parallel()

	n := Note{UID: "u1", Title: "Example", Link: "https://example.com", Tags: []string{"a"}}
	require.NoError(t, n.Validate())

	missing := n
	missing.Title = ""
	require.ErrorContains(t, missing.Validate(), "title")

	badTags := n
	badTags.Tags = []string{"a,b"}
	require.True(t, IsValidation(badTags.Validate()))
}

func TestNoteCloneAndDisplayIcon(t *testing.T) {
	t.Parallel()

	n := Note{Tags: []string{"a"}}
	cp := n.Clone()
	cp.Tags[0] = "changed"
	require.Equal(t, "a", n.Tags[0])
	require.Equal(t, DefaultIcon, n.DisplayIcon())
	n.IconURL = "https://x/icon.png"
	require.Equal(t, "https://x/icon.png", n.DisplayIcon())
}

func TestViewportOrDefault(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultViewport, Viewport{}.OrDefault())
	require.Equal(t, Viewport{Width: 375, Height: 900}, Viewport{Width: 375}.OrDefault())
	require.Equal(t, 40, ListOptions{Page: 2, PageSize: 20}.Offset())
}
