package avatars

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0x01}, 600)...)

func TestAcceptStoresImageOnDisk(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	require.NoError(t, err)

	ref, err := Accept(context.Background(), store, bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, ".png"))

	stored, err := os.ReadFile(filepath.Join(dir, ref))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, stored)
	assert.Equal(t, DiskPrefix+ref, store.URL(ref))
}

func TestAcceptRejectsNonImages(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	cases := map[string][]byte{
		"svg":   []byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`),
		"html":  []byte(`<html><body>hi</body></html>`),
		"empty": nil,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Accept(context.Background(), store, bytes.NewReader(body))
			assert.ErrorIs(t, err, ErrUnsupportedType)
		})
	}
}

func TestDiskStoreServesUploads(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	require.NoError(t, err)
	ref, err := store.Save(context.Background(), "image/png", bytes.NewReader(pngBytes))
	require.NoError(t, err)

	res := httptest.NewRecorder()
	store.Handler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, store.URL(ref), nil))

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, pngBytes, res.Body.Bytes())
}

func TestPlaceholderURL(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, PlaceholderURL, store.URL(""))
	assert.Equal(t, PlaceholderURL, store.URL("profiel-placeholder.svg"))
	assert.Equal(t, PlaceholderURL, store.URL("profiel-placeholder.png"))
}

type fakePutter struct {
	input   *s3.PutObjectInput
	body    []byte
	deleted []string
}

func (f *fakePutter) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3StoreUploadsObject(t *testing.T) {
	putter := &fakePutter{}
	store := newS3Store(putter, "tuneder-avatars", "https://cdn.example.com/")

	ref, err := Accept(context.Background(), store, bytes.NewReader(pngBytes))
	require.NoError(t, err)

	require.NotNil(t, putter.input)
	assert.Equal(t, "tuneder-avatars", aws.ToString(putter.input.Bucket))
	assert.Equal(t, ref, aws.ToString(putter.input.Key))
	assert.Equal(t, "image/png", aws.ToString(putter.input.ContentType))
	assert.Equal(t, int64(len(pngBytes)), aws.ToInt64(putter.input.ContentLength))
	assert.Equal(t, pngBytes, putter.body)
	assert.True(t, strings.HasPrefix(ref, "avatars/"))
	assert.Equal(t, "https://cdn.example.com/"+ref, store.URL(ref))
	assert.Equal(t, PlaceholderURL, store.URL(""))

	require.NoError(t, store.Delete(context.Background(), ref))
	require.NoError(t, store.Delete(context.Background(), "profiel-placeholder.svg"))
	assert.Equal(t, []string{ref}, putter.deleted)
}

func TestDiskStoreDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	require.NoError(t, err)
	ref, err := store.Save(context.Background(), "image/png", bytes.NewReader(pngBytes))
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), ref))
	_, err = os.Stat(filepath.Join(dir, ref))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Delete(context.Background(), ref))
	assert.NoError(t, store.Delete(context.Background(), "../outside.png"))
}
