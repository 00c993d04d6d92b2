package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore keeps images on the local filesystem under root and references them
// as <publicPrefix>/<name>, which is also where the router serves them from.
type LocalStore struct {
	root         string
	publicPrefix string
	maxBytes     int64
}

func NewLocalStore(root, publicPrefix string, maxBytes int64) (*LocalStore, error) {
	if root == "" {
		root = "./uploads"
	}
	if publicPrefix == "" {
		publicPrefix = "/uploads"
	}
	// Ensure upload directory exists
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalStore{
		root:         root,
		publicPrefix: "/" + strings.Trim(publicPrefix, "/"),
		maxBytes:     limitOrDefault(maxBytes),
	}, nil
}

func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) Store(ctx context.Context, content io.Reader, originalFilename, contentType string) (string, error) {
	if err := ValidateUpload(originalFilename, contentType); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := objectName(originalFilename)
	dst := filepath.Join(s.root, name)

	// O_EXCL so two uploads can never share a file even if names collide
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}

	n, err := io.Copy(out, io.LimitReader(content, s.maxBytes+1))
	closeErr := out.Close()
	switch {
	case err != nil:
		s.discard(dst)
		return "", fmt.Errorf("write image file: %w", err)
	case n > s.maxBytes:
		s.discard(dst)
		return "", tooLarge(s.maxBytes)
	case closeErr != nil:
		s.discard(dst)
		return "", fmt.Errorf("close image file: %w", closeErr)
	}

	log.Printf("[STORAGE] stored %s (%d bytes)", name, n)
	return path.Join(s.publicPrefix, name), nil
}

func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	p, err := s.pathFor(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image file: %w", err)
	}
	return nil
}

func (s *LocalStore) Exists(ctx context.Context, ref string) (bool, error) {
	p, err := s.pathFor(ref)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// pathFor resolves a reference to a file directly inside root; anything that
// would escape it is rejected.
func (s *LocalStore) pathFor(ref string) (string, error) {
	name := strings.TrimPrefix(ref, s.publicPrefix+"/")
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid image reference %q", ref)
	}
	return filepath.Join(s.root, name), nil
}

func (s *LocalStore) discard(p string) {
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[STORAGE] could not remove partial file %s: %v", p, err)
	}
}
