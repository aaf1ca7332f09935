// Package asset builds canonical and rendition URLs following the CDN upload convention:
//
//	https://<host>/<namespace>/image/upload/<transform>/<folder>/<id>.<ext>
//
// Transform URLs are resolved lazily by the CDN; nothing here processes images.
package asset

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

const uploadMarker = "image/upload"

// Crop, format, and quality parameters applied to every rendition.
const (
	CropLimit   = "c_limit"
	FormatAuto  = "f_auto"
	QualityBest = "q_100"
)

// URLBuilder constructs CDN URLs for a host and namespace.
type URLBuilder struct {
	Host      string
	Namespace string
	Folder    string
	Extension string
}

// NewURLBuilder validates and normalizes the CDN coordinates.
func NewURLBuilder(host, namespace, folder string) (URLBuilder, error) {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return URLBuilder{}, fmt.Errorf("cdn host is required")
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	namespace = strings.Trim(namespace, "/")
	if namespace == "" {
		return URLBuilder{}, fmt.Errorf("cdn namespace is required")
	}
	return URLBuilder{
		Host:      host,
		Namespace: namespace,
		Folder:    strings.Trim(folder, "/"),
		Extension: "png",
	}, nil
}

// UploadPath is the URL path prefix below which namespace's assets are addressed.
func UploadPath(namespace string) string {
	return "/" + strings.Trim(namespace, "/") + "/" + uploadMarker
}

// ObjectKey is the storage key for id inside folder.
func (b URLBuilder) ObjectKey(folder, id string) string {
	return path.Join(b.folderOr(folder), id+"."+b.ext())
}

// Canonical returns the stable URL of an uploaded asset. version distinguishes overwrites.
func (b URLBuilder) Canonical(folder, id string, version int64) string {
	segments := []string{b.Host, b.Namespace, uploadMarker}
	if version > 0 {
		segments = append(segments, "v"+strconv.FormatInt(version, 10))
	}
	segments = append(segments, b.ObjectKey(folder, id))
	return strings.Join(segments, "/")
}

// Transform returns the rendition URL for a canonical URL or bare id at the given width.
func (b URLBuilder) Transform(canonicalOrID string, width int) (string, error) {
	if width <= 0 {
		return "", fmt.Errorf("width must be > 0, got %d", width)
	}
	id := PublicID(canonicalOrID)
	if id == "" {
		return "", fmt.Errorf("canonical url or id is required")
	}
	transform := strings.Join([]string{"w_" + strconv.Itoa(width), CropLimit, FormatAuto, QualityBest}, ",")
	return strings.Join([]string{
		b.Host,
		b.Namespace,
		uploadMarker,
		transform,
		path.Join(b.folderOr(""), id),
	}, "/"), nil
}

// PublicID extracts the stored object's id: the last path segment without its extension.
// A bare id is returned unchanged.
func PublicID(canonicalOrID string) string {
	raw := strings.TrimSpace(canonicalOrID)
	if raw == "" {
		return ""
	}
	if parsed, err := url.Parse(raw); err == nil && parsed.Path != "" {
		raw = parsed.Path
	}
	last := raw[strings.LastIndex(raw, "/")+1:]
	if dot := strings.Index(last, "."); dot >= 0 {
		last = last[:dot]
	}
	return last
}

func (b URLBuilder) folderOr(folder string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return b.Folder
	}
	return folder
}

func (b URLBuilder) ext() string {
	if b.Extension == "" {
		return "png"
	}
	return b.Extension
}
