package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrUnsupportedImage = errors.New("unsupported image type (jpg, jpeg, png, gif, webp)")
	ErrImageTooLarge    = errors.New("image exceeds the upload size limit")
)

// ImageStore persists profile images and returns the URL they are served under.
type ImageStore interface {
	Save(ctx context.Context, owner, filename string, content io.Reader) (string, error)
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// DiskImageStore writes images below a local directory.
type DiskImageStore struct {
	dir      string
	baseURL  string
	maxBytes int64
	now      func() time.Time
}

// NewDiskImageStore creates dir if needed. baseURL prefixes returned URLs.
func NewDiskImageStore(dir, baseURL string, maxBytes int64) (*DiskImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	if baseURL == "" {
		baseURL = "/uploads"
	}
	return &DiskImageStore{
		dir:      dir,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
		now:      time.Now,
	}, nil
}

// Dir is the directory images are written to.
func (s *DiskImageStore) Dir() string { return s.dir }

// Save writes content as <owner>-<unix millis><ext>. Partial files are removed on failure.
func (s *DiskImageStore) Save(_ context.Context, owner, filename string, content io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExtensions[ext] {
		return "", ErrUnsupportedImage
	}

	name := fmt.Sprintf("%s-%d%s", owner, s.now().UnixMilli(), ext)
	full := filepath.Join(s.dir, name)

	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}

	reader := content
	if s.maxBytes > 0 {
		reader = io.LimitReader(content, s.maxBytes+1)
	}
	n, err := io.Copy(f, reader)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = ErrImageTooLarge
	}
	if err != nil {
		_ = os.Remove(full)
		return "", err
	}

	return s.baseURL + "/" + name, nil
}
