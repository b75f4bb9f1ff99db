// Package avatars stores uploaded profile pictures on local disk or in an
// S3 compatible bucket.
package avatars

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tuneder/tuneder/internal/users"
)

// PlaceholderURL is served for users without an uploaded avatar.
const PlaceholderURL = "/static/img/" + users.PlaceholderAvatar

// ErrUnsupportedType is returned for uploads that are not a raster image.
var ErrUnsupportedType = errors.New("avatars: unsupported content type")

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store persists avatar images and maps stored references to URLs.
type Store interface {
	Save(ctx context.Context, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
	URL(ref string) string
}

// Accept sniffs the upload and saves it when it is a supported image. SVG is
// refused since it can carry script.
func Accept(ctx context.Context, store Store, body io.Reader) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("avatars: read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return "", ErrUnsupportedType
	}

	contentType := http.DetectContentType(head)
	if _, ok := extensions[contentType]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	return store.Save(ctx, contentType, io.MultiReader(bytes.NewReader(head), body))
}

func isPlaceholder(ref string) bool {
	return ref == "" || strings.HasPrefix(ref, "profiel-placeholder")
}
