// Package storage persists report photos and hands back stable references to them.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"p9e.in/pothole/pkg/errs"
)

// DefaultMaxImageBytes is the upload ceiling when none is configured (5 MiB).
const DefaultMaxImageBytes int64 = 5 << 20

var (
	AllowedContentTypes = map[string]bool{
		"image/jpeg": true,
		"image/jpg":  true,
		"image/png":  true,
	}

	AllowedExtensions = map[string]bool{
		".jpg":  true,
		".jpeg": true,
		".png":  true,
	}
)

// ImageStore is the blob side of a report: one stored photo per record.
type ImageStore interface {
	// Store validates and persists content, returning its reference.
	Store(ctx context.Context, content io.Reader, originalFilename, contentType string) (string, error)
	// Delete removes the image; a reference that no longer exists is not an error.
	Delete(ctx context.Context, ref string) error
	// Exists reports whether ref still resolves to a stored image.
	Exists(ctx context.Context, ref string) (bool, error)
}

type Options struct {
	Backend         string // "local" or "gcs"
	UploadDir       string
	PublicPrefix    string
	GCSBucket       string
	GCSCredentials  string
	GCSObjectPrefix string
	MaxImageBytes   int64
}

// New builds the store selected by opts.Backend.
func New(ctx context.Context, opts Options) (ImageStore, error) {
	switch opts.Backend {
	case "", "local":
		return NewLocalStore(opts.UploadDir, opts.PublicPrefix, opts.MaxImageBytes)
	case "gcs":
		return NewGCSStore(ctx, opts.GCSBucket, opts.GCSObjectPrefix, opts.GCSCredentials, opts.MaxImageBytes)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// ValidateUpload checks the declared type and the filename extension against the allow-list.
func ValidateUpload(originalFilename, contentType string) error {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	if !AllowedExtensions[ext] {
		return errs.UnsupportedMediaType("only .jpg, .jpeg and .png images are allowed")
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !AllowedContentTypes[strings.ToLower(mediaType)] {
		return errs.UnsupportedMediaType("only image/jpeg and image/png uploads are allowed")
	}
	return nil
}

func tooLarge(limit int64) error {
	return errs.PayloadTooLarge(fmt.Sprintf("image exceeds the %d MiB limit", limit>>20))
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// objectName derives a collision-free name: a timestamp, a random suffix, then
// the sanitised original base name.
func objectName(originalFilename string) string {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	base := strings.TrimSuffix(filepath.Base(originalFilename), filepath.Ext(originalFilename))
	base = strings.Trim(unsafeNameChars.ReplaceAllString(base, "_"), "._")
	if len(base) > 40 {
		base = base[:40]
	}
	if base == "" {
		base = "image"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s-%s-%s%s", time.Now().UTC().Format("20060102-150405"), suffix, base, ext)
}

func limitOrDefault(n int64) int64 {
	if n <= 0 {
		return DefaultMaxImageBytes
	}
	return n
}
