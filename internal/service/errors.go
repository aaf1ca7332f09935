package service

import (
	"fmt"
	"strings"
)

// OrphanedAssetError reports a note row that was deleted while its screenshot was not.
// The delete itself succeeded; the asset is a reconciliation candidate.
type OrphanedAssetError struct {
	UID    string
	Folder string
	Err    error
}

func (e *OrphanedAssetError) Error() string {
	return fmt.Sprintf("note %s deleted but asset %s/%s remains: %v", e.UID, e.Folder, e.UID, e.Err)
}

func (e *OrphanedAssetError) Unwrap() error { return e.Err }

// FailedNote names one note whose update failed during a bulk tag removal.
type FailedNote struct {
	UID   string `json:"uid"`
	Title string `json:"title"`
	Err   error  `json:"-"`
}

// TagRemovalError lists every note that kept the tag because its update failed.
type TagRemovalError struct {
	Tag    string
	Failed []FailedNote
}

func (e *TagRemovalError) Error() string {
	titles := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		titles = append(titles, fmt.Sprintf("%q (%s): %v", f.Title, f.UID, f.Err))
	}
	return fmt.Sprintf("remove tag %q: %d note(s) failed to update: %s", e.Tag, len(e.Failed), strings.Join(titles, "; "))
}

// Unwrap exposes the per-note causes to errors.Is and errors.As.
func (e *TagRemovalError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}
