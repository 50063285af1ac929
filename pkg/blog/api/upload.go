package api

import (
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-blog/pkg/blog"
)

// UploadField is the multipart field carrying image files.
const UploadField = "upload"

// maxUploadRequestBytes leaves room for multipart framing around the largest
// accepted batch.
const maxUploadRequestBytes = blog.MaxUploadFiles*blog.MaxUploadFileSize + 1<<20

// UploadResponse is the body of POST /image.
type UploadResponse struct {
	Uploaded bool     `json:"uploaded"`
	URL      []string `json:"url"`
}

func renderUploadFailure(w http.ResponseWriter, r *http.Request, status int) {
	render.Status(r, status)
	render.JSON(w, r, UploadResponse{Uploaded: false, URL: nil})
}

// UploadImages stores the files of the "upload" field and returns their URLs
func (h *PostHandler) UploadImages(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadRequestBytes)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		slog.Error("Failed to parse upload", "error", err)
		renderUploadFailure(w, r, http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[UploadField]
	files := make([]blog.UploadFile, 0, len(headers))
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	if len(headers) <= blog.MaxUploadFiles {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				slog.Error("Failed to open uploaded file", "file_name", fh.Filename, "error", err)
				renderUploadFailure(w, r, http.StatusBadRequest)
				return
			}
			opened = append(opened, f)
			files = append(files, blog.UploadFile{
				FileName: fh.Filename,
				MimeType: fh.Header.Get("Content-Type"),
				Size:     fh.Size,
				Reader:   f,
			})
		}
	} else {
		// Let the service reject the batch without opening anything.
		for _, fh := range headers {
			files = append(files, blog.UploadFile{FileName: fh.Filename, Size: fh.Size})
		}
	}

	urls, err := h.service.UploadImages(r.Context(), files)
	if err != nil {
		slog.Error("Failed to upload images", "count", len(files), "error", err)
		renderUploadFailure(w, r, statusFor(err))
		return
	}

	slog.Info("Images uploaded", "count", len(urls))
	render.JSON(w, r, UploadResponse{Uploaded: true, URL: urls})
}

// ObjectReader is implemented by blob stores that can serve their own objects.
type ObjectReader interface {
	Download(ctx context.Context, objectKey string) (io.ReadCloser, string, error)
}

// ObjectHandler serves stored uploads for backends without a public endpoint.
type ObjectHandler struct {
	store ObjectReader
}

func NewObjectHandler(store ObjectReader) *ObjectHandler {
	return &ObjectHandler{store: store}
}

// Routes returns the router for stored objects
func (h *ObjectHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/*", h.Download)
	return r
}

// Download streams an object by key
func (h *ObjectHandler) Download(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	// chi matches on the raw path when the request carried one
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(key)
		if err != nil {
			renderMessage(w, r, http.StatusBadRequest, "Invalid object key")
			return
		}
		key = unescaped
	}

	rc, mimeType, err := h.store.Download(r.Context(), key)
	if err != nil {
		slog.Warn("Object not found", "key", key, "error", err)
		renderMessage(w, r, http.StatusNotFound, "Object not found")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", mimeType)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Error("Failed to stream object", "key", key, "error", err)
	}
}
