package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/tendant/simple-blog/pkg/blog"
)

// DefaultURLPrefix is prepended to object keys to form public URLs.
const DefaultURLPrefix = "/uploads/"

// ErrObjectNotFound is returned for keys that were never stored or were deleted.
var ErrObjectNotFound = errors.New("object not found")

// Backend is an in-memory implementation of the blog.BlobStore interface
type Backend struct {
	mu        sync.RWMutex
	urlPrefix string
	objects   map[string]object
}

type object struct {
	data     []byte
	mimeType string
}

// New creates a new in-memory storage backend
func New() *Backend {
	return NewWithURLPrefix(DefaultURLPrefix)
}

// NewWithURLPrefix creates a backend whose public URLs start with prefix
func NewWithURLPrefix(prefix string) *Backend {
	return &Backend{
		urlPrefix: prefix,
		objects:   make(map[string]object),
	}
}

// UploadWithParams uploads content with parameters
func (b *Backend) UploadWithParams(ctx context.Context, reader io.Reader, params blog.UploadParams) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	mimeType := params.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[params.ObjectKey] = object{data: data, mimeType: mimeType}
	return nil
}

// PublicURL returns the URL an object is served under
func (b *Backend) PublicURL(objectKey string) string {
	return strings.TrimSuffix(b.urlPrefix, "/") + "/" + escapeKey(objectKey)
}

// escapeKey escapes each path segment so keys holding '#', '%' or '?'
// survive the round trip through a URL.
func escapeKey(objectKey string) string {
	parts := strings.Split(strings.TrimPrefix(objectKey, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// Download downloads content directly
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, "", ErrObjectNotFound
	}

	return io.NopCloser(bytes.NewReader(obj.data)), obj.mimeType, nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; !exists {
		return ErrObjectNotFound
	}

	delete(b.objects, objectKey)
	return nil
}

// Len reports how many objects are stored
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

var _ blog.BlobStore = (*Backend)(nil)
