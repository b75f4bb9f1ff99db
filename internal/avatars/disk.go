package avatars

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DiskPrefix is the URL path uploaded files are served from.
const DiskPrefix = "/upload/"

// DiskStore writes avatars into a directory served under DiskPrefix.
type DiskStore struct {
	dir string
}

// NewDiskStore creates dir when missing.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("avatars: create upload dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Save writes body to a new file with a random name.
func (s *DiskStore) Save(ctx context.Context, contentType string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := uuid.NewString() + extensions[contentType]
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("avatars: create file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("avatars: write file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("avatars: close file: %w", err)
	}
	return name, nil
}

// Delete removes a stored file. Unknown files are not an error.
func (s *DiskStore) Delete(ctx context.Context, ref string) error {
	if isPlaceholder(ref) || filepath.Base(ref) != ref {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, ref)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("avatars: remove file: %w", err)
	}
	return nil
}

// URL maps a stored file name to its public path.
func (s *DiskStore) URL(ref string) string {
	if isPlaceholder(ref) {
		return PlaceholderURL
	}
	return DiskPrefix + url.PathEscape(ref)
}

// Handler serves the upload directory. Mount it under DiskPrefix.
func (s *DiskStore) Handler() http.Handler {
	return http.StripPrefix(DiskPrefix, http.FileServer(http.Dir(s.dir)))
}

var _ Store = (*DiskStore)(nil)
