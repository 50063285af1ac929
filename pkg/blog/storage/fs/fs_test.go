package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-blog/pkg/blog"
)

func TestFSBackend_BasicOps(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	require.NoError(t, err)

	ctx := context.Background()
	key := "upload/cat1700000000000.png"

	err = backend.UploadWithParams(ctx, strings.NewReader("png bytes"), blog.UploadParams{
		ObjectKey: key,
		MimeType:  "image/png",
	})
	require.NoError(t, err)

	rc, mimeType, err := backend.Download(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "png bytes", string(data))
	assert.Equal(t, "image/png", mimeType)

	require.NoError(t, backend.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(tmp, key))
	assert.True(t, os.IsNotExist(err))

	// the emptied upload directory is removed, the base directory is kept
	_, err = os.Stat(filepath.Join(tmp, "upload"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(tmp)
	assert.NoError(t, err)
}

func TestFSBackend_DetectsContentType(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, backend.UploadWithParams(ctx, strings.NewReader("<html><body>hi</body></html>"), blog.UploadParams{ObjectKey: "page"}))

	rc, mimeType, err := backend.Download(ctx, "page")
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "text/html; charset=utf-8", mimeType)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "<html><body>hi</body></html>", string(data))
}

func TestFSBackend_NotFound(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = backend.Download(ctx, "upload/missing.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.ErrorIs(t, backend.Delete(ctx, "upload/missing.png"), ErrObjectNotFound)
}

func TestFSBackend_RejectsEscapingKeys(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"../outside.png", "upload/../../outside.png", ""} {
		err := backend.UploadWithParams(ctx, strings.NewReader("x"), blog.UploadParams{ObjectKey: key})
		assert.ErrorIs(t, err, ErrInvalidKey, key)

		_, _, err = backend.Download(ctx, key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestFSBackend_PublicURL(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/upload/a.png", backend.PublicURL("upload/a.png"))

	cdn, err := New(Config{BaseDir: t.TempDir(), URLPrefix: "https://img.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/upload/a.png", cdn.PublicURL("/upload/a.png"))
	assert.Equal(t, "/uploads/upload/a%3Fb%23c.png", backend.PublicURL("upload/a?b#c.png"))
}

func TestFSBackend_RequiresBaseDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
