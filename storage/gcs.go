package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const gcsPublicBase = "https://storage.googleapis.com/"

// GCSStore keeps images in a Google Cloud Storage bucket. References are the
// public object URLs.
type GCSStore struct {
	client   *gcs.Client
	bucket   string
	prefix   string
	maxBytes int64
}

func NewGCSStore(ctx context.Context, bucket, objectPrefix, credentialsFile string, maxBytes int64) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs storage requires a bucket")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSStore{
		client:   client,
		bucket:   bucket,
		prefix:   strings.Trim(objectPrefix, "/"),
		maxBytes: limitOrDefault(maxBytes),
	}, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) Store(ctx context.Context, content io.Reader, originalFilename, contentType string) (string, error) {
	if err := ValidateUpload(originalFilename, contentType); err != nil {
		return "", err
	}

	name := objectName(originalFilename)
	if s.prefix != "" {
		name = s.prefix + "/" + name
	}

	// Cancelling the writer's context aborts the upload so no object is created.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(name).
		If(gcs.Conditions{DoesNotExist: true}).
		NewWriter(wctx)
	w.ContentType = contentType

	n, err := io.Copy(w, io.LimitReader(content, s.maxBytes+1))
	if err != nil {
		cancel()
		_ = w.Close()
		return "", fmt.Errorf("upload image: %w", err)
	}
	if n > s.maxBytes {
		cancel()
		_ = w.Close()
		return "", tooLarge(s.maxBytes)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize image upload: %w", err)
	}

	log.Printf("[STORAGE] uploaded gs://%s/%s (%d bytes)", s.bucket, name, n)
	return gcsPublicBase + s.bucket + "/" + name, nil
}

func (s *GCSStore) Delete(ctx context.Context, ref string) error {
	name, err := gcsObjectName(s.bucket, ref)
	if err != nil {
		return err
	}
	err = s.client.Bucket(s.bucket).Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("delete image object: %w", err)
	}
	return nil
}

func (s *GCSStore) Exists(ctx context.Context, ref string) (bool, error) {
	name, err := gcsObjectName(s.bucket, ref)
	if err != nil {
		return false, err
	}
	_, err = s.client.Bucket(s.bucket).Object(name).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func gcsObjectName(bucket, ref string) (string, error) {
	base := gcsPublicBase + bucket + "/"
	name, ok := strings.CutPrefix(ref, base)
	if !ok || name == "" {
		return "", fmt.Errorf("image reference %q is not in bucket %s", ref, bucket)
	}
	return name, nil
}
