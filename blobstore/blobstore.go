// Package blobstore is a filesystem-backed implementation of
// model.BlobStore.
// It exists so the service is runnable end to end without a real object
// store configured: blobHandle is a path relative to a root directory,
// and ReadSpan slices out the requested character range. Production
// deployments wire a different BlobStore implementation against
// whatever object store actually holds uploaded documents; nothing in
// pkg/review or pkg/store depends on this package.
package blobstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"context"

	"github.com/c360studio/clausereview/model"
)

// FS reads document text from files under Root, keyed by blobHandle.
type FS struct {
	Root string
}

// New builds an FS rooted at root.
func New(root string) *FS {
	return &FS{Root: root}
}

// ReadSpan implements model.BlobStore by reading the whole file and
// slicing out [span.Start, span.End) in runes, matching the character
// offsets model.TextSpan carries.
func (f *FS) ReadSpan(ctx context.Context, blobHandle string, span model.TextSpan) (string, error) {
	clean := filepath.Clean(blobHandle)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("blobstore: invalid blob handle %q", blobHandle)
	}
	path := filepath.Join(f.Root, clean)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("blobstore: read %q: %w", blobHandle, err)
	}

	runes := []rune(string(data))
	start, end := span.Start, span.End
	if start < 0 {
		start = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	if start > end {
		return "", fmt.Errorf("blobstore: span [%d,%d) invalid for %q (len %d runes)", span.Start, span.End, blobHandle, len(runes))
	}
	return string(runes[start:end]), nil
}

// Write stores raw document bytes under blobHandle, used by the upload
// path before a TaskDocument is recorded in pkg/store.
func (f *FS) Write(blobHandle string, data []byte) error {
	clean := filepath.Clean(blobHandle)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return fmt.Errorf("blobstore: invalid blob handle %q", blobHandle)
	}
	path := filepath.Join(f.Root, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("blobstore: mkdir: %w", err)
	}
	if !utf8.Valid(data) {
		return fmt.Errorf("blobstore: document %q is not valid UTF-8", blobHandle)
	}
	return os.WriteFile(path, data, 0o644)
}
