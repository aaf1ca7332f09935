package note

import (
	"fmt"
	"strings"
)

// TagDelimiter joins tags in the persisted representation.
const TagDelimiter = ","

// EncodeTags joins tags into the single string stored in the tags column.
func EncodeTags(tags []string) string {
	return strings.Join(tags, TagDelimiter)
}

// DecodeTags splits a stored tags value. An empty value decodes to an empty, non-nil list.
func DecodeTags(stored string) []string {
	if stored == "" {
		return []string{}
	}
	return strings.Split(stored, TagDelimiter)
}

// ValidateTags rejects empty tags, duplicates, and values containing the delimiter.
func ValidateTags(tags []string) error {
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if tag == "" {
			return &ValidationError{Field: "tags", Reason: "tag must not be empty"}
		}
		if strings.Contains(tag, TagDelimiter) {
			return &ValidationError{Field: "tags", Reason: fmt.Sprintf("tag %q contains %q", tag, TagDelimiter)}
		}
		if _, dup := seen[tag]; dup {
			return &ValidationError{Field: "tags", Reason: fmt.Sprintf("duplicate tag %q", tag)}
		}
		seen[tag] = struct{}{}
	}
	return nil
}

// NormalizeTags trims whitespace and drops empty and repeated tags, keeping first occurrence order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// WithoutTag returns a copy of tags with every occurrence of tag removed.
func WithoutTag(tags []string, tag string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != tag {
			out = append(out, t)
		}
	}
	return out
}

// ToggleTag adds tag when absent and removes it when present.
func ToggleTag(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return WithoutTag(tags, tag)
		}
	}
	return append(append([]string(nil), tags...), tag)
}

// Vocabulary derives every tag in use across notes, deduplicated, in first-seen order.
func Vocabulary(notes []Note) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, n := range notes {
		for _, tag := range n.Tags {
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}
