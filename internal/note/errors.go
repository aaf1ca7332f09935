package note

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no note matches the requested uid.
var ErrNotFound = errors.New("note not found")

// ErrExtractionMiss marks a metadata selector that matched nothing. It is absorbed, never returned.
var ErrExtractionMiss = errors.New("extraction miss")

// ValidationError reports malformed input caught before any side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NavigationError means the page did not load; it aborts the capture.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// AssetStoreError wraps a storage backend failure.
type AssetStoreError struct {
	Op  string
	ID  string
	Err error
}

func (e *AssetStoreError) Error() string {
	return fmt.Sprintf("asset %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *AssetStoreError) Unwrap() error { return e.Err }

// PersistenceError wraps a relational store failure.
type PersistenceError struct {
	Op  string
	UID string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.UID == "" {
		return fmt.Sprintf("%s notes: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s note %s: %v", e.Op, e.UID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNavigation reports whether err is a NavigationError.
func IsNavigation(err error) bool {
	var n *NavigationError
	return errors.As(err, &n)
}

// IsAssetStore reports whether err is an AssetStoreError.
func IsAssetStore(err error) bool {
	var a *AssetStoreError
	return errors.As(err, &a)
}
