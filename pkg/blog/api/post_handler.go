package api

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-blog/pkg/blog"
)

const DefaultBasePath = "/api/post"

// maxFormMemory bounds the in-memory part of multipart parsing.
const maxFormMemory = 32 << 20

// maxBodyBytes caps post and comment bodies.
const maxBodyBytes = 4 << 20

// PostHandler serves posts, comments, categories and image uploads.
type PostHandler struct {
	service  blog.Service
	auth     *Auth
	basePath string
}

// NewPostHandler builds a handler. basePath is where Routes is mounted and is
// used to build redirect locations.
func NewPostHandler(service blog.Service, auth *Auth, basePath string) *PostHandler {
	return &PostHandler{
		service:  service,
		auth:     auth,
		basePath: strings.TrimRight(basePath, "/"),
	}
}

// Routes returns the router for post endpoints
func (h *PostHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.auth.Verifier())

	r.Post("/image", h.UploadImages)
	r.Get("/skip/{skip}", h.ListPosts)
	r.Get("/category/{categoryName}", h.FindCategory)
	r.Get("/{id}", h.GetPost)
	r.Get("/{id}/comments", h.ListComments)
	r.With(RequestSizeLimit(maxBodyBytes)).Post("/{id}/comments", h.AddComment)

	r.Group(func(r chi.Router) {
		r.Use(h.auth.Authenticator)
		r.Use(RequestSizeLimit(maxBodyBytes))
		r.Post("/", h.CreatePost)
		r.Delete("/{id}", h.DeletePost)
		r.Get("/{id}/edit", h.GetPostForEdit)
		r.Post("/{id}/edit", h.EditPost)
		r.Delete("/{id}/comments/{commentID}", h.DeleteComment)
		r.Post("/{id}/comments/{commentID}", h.TouchComment)
	})
	return r
}

// URLList accepts either a single URL or an array of URLs.
type URLList []string

func (l *URLList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = nonEmpty([]string{one})
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = nonEmpty(many)
	return nil
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// PostRequest is the body of create and edit. Category is ignored on edit.
type PostRequest struct {
	ID       string  `json:"id,omitempty"`
	Title    string  `json:"title"`
	Contents string  `json:"contents"`
	FileURL  URLList `json:"fileUrl"`
	Category string  `json:"category"`
}

// CommentRequest is the body of POST /{id}/comments.
type CommentRequest struct {
	ID       string `json:"id,omitempty"`
	Contents string `json:"contents"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// SuccessResponse is returned by DELETE /{id}.
type SuccessResponse struct {
	Success bool `json:"success"`
}

func isForm(r *http.Request) (multipart bool, form bool) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false, false
	}
	switch mediaType {
	case "multipart/form-data":
		return true, true
	case "application/x-www-form-urlencoded":
		return false, true
	}
	return false, false
}

func decodePostRequest(r *http.Request) (PostRequest, error) {
	var req PostRequest
	multipart, form := isForm(r)
	if !form {
		err := render.DecodeJSON(r.Body, &req)
		return req, err
	}
	var err error
	if multipart {
		err = r.ParseMultipartForm(maxFormMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return req, err
	}
	req.ID = r.FormValue("id")
	req.Title = r.FormValue("title")
	req.Contents = r.FormValue("contents")
	req.FileURL = nonEmpty(r.Form["fileUrl"])
	req.Category = r.FormValue("category")
	return req, nil
}

// pathID validates a uuid path parameter.
func pathID(w http.ResponseWriter, r *http.Request, param, label string) (string, bool) {
	raw := chi.URLParam(r, param)
	if _, err := uuid.Parse(raw); err != nil {
		slog.Error("Invalid "+label, param, raw, "error", err)
		renderMessage(w, r, http.StatusBadRequest, "Invalid "+label)
		return "", false
	}
	return raw, true
}

func (h *PostHandler) postLocation(id string) string {
	return h.basePath + "/" + id
}

// ListPosts returns a page of posts with all categories and the post count
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	skipStr := chi.URLParam(r, "skip")
	skip, err := strconv.Atoi(skipStr)
	if err != nil || skip < 0 {
		slog.Error("Invalid skip", "skip", skipStr, "error", err)
		renderMessage(w, r, http.StatusBadRequest, "Invalid skip")
		return
	}

	page, err := h.service.ListPosts(r.Context(), skip)
	if err != nil {
		slog.Error("Failed to list posts", "skip", skip, "error", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, page)
}

// CreatePost creates a post owned by the caller and redirects to it
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	req, err := decodePostRequest(r)
	if err != nil {
		slog.Error("Failed to decode request", "error", err)
		renderMessage(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	post, err := h.service.CreatePost(r.Context(), blog.CreatePostRequest{
		Title:        req.Title,
		Contents:     req.Contents,
		FileURL:      req.FileURL,
		CreatorID:    identity.UserID,
		CreatorName:  identity.Name,
		CategoryName: req.Category,
	})
	if err != nil {
		slog.Error("Failed to create post", "user_id", identity.UserID, "error", err)
		renderError(w, r, err)
		return
	}

	slog.Info("Post created", "post_id", post.ID, "category_id", post.Category)
	http.Redirect(w, r, h.postLocation(post.ID), http.StatusFound)
}

// GetPost returns the post detail and counts the view
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "post ID")
	if !ok {
		return
	}

	detail, err := h.service.GetPost(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get post", "post_id", id, "error", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, detail)
}

// DeletePost removes a post with its comments and references
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "post ID")
	if !ok {
		return
	}
	identity, _ := IdentityFromContext(r.Context())

	if err := h.service.DeletePost(r.Context(), id, identity.UserID); err != nil {
		slog.Error("Failed to delete post", "post_id", id, "user_id", identity.UserID, "error", err)
		renderError(w, r, err)
		return
	}

	slog.Info("Post deleted", "post_id", id)
	render.JSON(w, r, SuccessResponse{Success: true})
}

// GetPostForEdit returns the post without counting a view
func (h *PostHandler) GetPostForEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "post ID")
	if !ok {
		return
	}
	identity, _ := IdentityFromContext(r.Context())

	detail, err := h.service.GetPostForEdit(r.Context(), id, identity.UserID)
	if err != nil {
		slog.Error("Failed to get post for edit", "post_id", id, "error", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, detail)
}

// EditPost applies an edit and redirects to the post
func (h *PostHandler) EditPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "post ID")
	if !ok {
		return
	}
	identity, _ := IdentityFromContext(r.Context())

	req, err := decodePostRequest(r)
	if err != nil {
		slog.Error("Failed to decode request", "error", err)
		renderMessage(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ID != "" && req.ID != id {
		renderMessage(w, r, http.StatusBadRequest, "Post ID mismatch")
		return
	}

	post, err := h.service.EditPost(r.Context(), blog.EditPostRequest{
		PostID:      id,
		RequesterID: identity.UserID,
		Title:       req.Title,
		Contents:    req.Contents,
		FileURL:     req.FileURL,
	})
	if err != nil {
		slog.Error("Failed to edit post", "post_id", id, "error", err)
		renderError(w, r, err)
		return
	}

	slog.Info("Post edited", "post_id", post.ID)
	http.Redirect(w, r, h.postLocation(post.ID), http.StatusFound)
}

// ListComments returns the comments of a post in order
func (h *PostHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "post ID")
	if !ok {
		return
	}

	comments, err := h.service.ListComments(r.Context(), id)
	if err != nil {
		slog.Error("Failed to list comments", "post_id", id, "error", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, comments)
}

// AddComment attaches a comment to a post. A verified token takes precedence
// over the author fields in the body.
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "post ID")
	if !ok {
		return
	}

	var req CommentRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		slog.Error("Failed to decode request", "error", err)
		renderMessage(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ID != "" && req.ID != id {
		renderMessage(w, r, http.StatusBadRequest, "Post ID mismatch")
		return
	}
	identity, verified := IdentityFromContext(r.Context())
	if verified {
		req.UserID = identity.UserID
		req.UserName = identity.Name
	}

	comment, err := h.service.AddComment(r.Context(), blog.AddCommentRequest{
		PostID:         id,
		AuthorID:       req.UserID,
		AuthorName:     req.UserName,
		AuthorVerified: verified,
		Contents:       req.Contents,
	})
	if err != nil {
		slog.Error("Failed to add comment", "post_id", id, "error", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, comment)
}

// DeleteComment removes a comment and returns what is left on the post
func (h *PostHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "post ID")
	if !ok {
		return
	}
	commentID, ok := pathID(w, r, "commentID", "comment ID")
	if !ok {
		return
	}
	identity, _ := IdentityFromContext(r.Context())

	remaining, err := h.service.DeleteComment(r.Context(), id, commentID, identity.UserID)
	if err != nil {
		slog.Error("Failed to delete comment", "comment_id", commentID, "error", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, remaining)
}

// TouchComment is the comment edit route. It changes nothing.
func (h *PostHandler) TouchComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "post ID")
	if !ok {
		return
	}
	commentID, ok := pathID(w, r, "commentID", "comment ID")
	if !ok {
		return
	}
	identity, _ := IdentityFromContext(r.Context())

	comments, err := h.service.TouchComment(r.Context(), id, commentID, identity.UserID)
	if err != nil {
		slog.Error("Failed to edit comment", "comment_id", commentID, "error", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, comments)
}

// FindCategory returns the first category whose name contains the pattern,
// or null.
func (h *PostHandler) FindCategory(w http.ResponseWriter, r *http.Request) {
	pattern := chi.URLParam(r, "categoryName")

	category, err := h.service.FindCategory(r.Context(), pattern)
	if err != nil {
		slog.Error("Failed to find category", "pattern", pattern, "error", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, category)
}
