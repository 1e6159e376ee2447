package storage

import (
	"context"
	"io"
	"mime"
	"net/url"
	"path/filepath"
	"strings"
)

// StoredObject is what the image registry persists after a successful
// write: a browsable URL, the opaque key needed to delete the object later,
// and what the store learned about the bytes.
type StoredObject struct {
	URL    string
	Key    string
	Size   int64
	Format string
}

// ObjectStore is the blob-storage collaborator. The registry treats it as
// opaque: bytes in, locator out, removable by key.
type ObjectStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (StoredObject, error)
	Remove(ctx context.Context, key string) error
}

// DetectFormat derives a short format string ("jpeg", "png", ...) from the
// upload's content type, falling back to the filename extension.
func DetectFormat(contentType, filename string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil {
		if _, subtype, found := strings.Cut(mediaType, "/"); found && subtype != "" && subtype != "octet-stream" {
			return strings.ToLower(subtype)
		}
	}
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" {
		return "unknown"
	}
	return strings.ToLower(ext)
}

func objectURL(scheme, endpoint, bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return scheme + "://" + endpoint + "/" + bucket + "/" + strings.Join(segments, "/")
}
