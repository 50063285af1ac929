package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-blog/pkg/blog"
)

// MessageResponse is the error body returned by every route.
type MessageResponse struct {
	Msg string `json:"msg"`
}

func renderMessage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, MessageResponse{Msg: msg})
}

func statusFor(err error) int {
	switch {
	case blog.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, blog.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, blog.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, blog.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// renderError maps service errors onto status codes. Internal failures are
// not echoed to the client.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	renderMessage(w, r, status, msg)
}
