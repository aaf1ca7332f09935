package note

import (
	"net/url"
	"strings"
)

// ValidateLink checks that raw is an absolute http(s) URL.
func ValidateLink(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &ValidationError{Field: "link", Reason: "is required"}
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, &ValidationError{Field: "link", Reason: "is not a valid URL"}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, &ValidationError{Field: "link", Reason: "scheme must be http or https"}
	}
	if parsed.Host == "" {
		return nil, &ValidationError{Field: "link", Reason: "host is required"}
	}
	return parsed, nil
}

// Origin returns scheme://host for rawURL, or "" when it does not parse.
func Origin(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}

// ResolveIcon picks the icon by priority (link rel=icon, then meta itemprop=image) and
// resolves relative references against the page URL. It returns "" when neither is present.
func ResolveIcon(pageURL, linkHref, metaImage string) string {
	icon := strings.TrimSpace(linkHref)
	if icon == "" {
		icon = strings.TrimSpace(metaImage)
	}
	if icon == "" {
		return ""
	}
	ref, err := url.Parse(icon)
	if err != nil || ref.IsAbs() {
		return icon
	}
	base, err := url.Parse(pageURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return icon
	}
	return base.ResolveReference(ref).String()
}

// HostTitle is a readable fallback title for pages that report none.
func HostTitle(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}
