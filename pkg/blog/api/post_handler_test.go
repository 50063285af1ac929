package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-blog/pkg/blog"
	"github.com/tendant/simple-blog/pkg/blog/repo/memory"
	memorystorage "github.com/tendant/simple-blog/pkg/blog/storage/memory"
)

type handlerEnv struct {
	router  *chi.Mux
	auth    *Auth
	service blog.Service
	store   *memorystorage.Backend
}

// setupPostHandlerTest mounts a PostHandler backed by in-memory stores
func setupPostHandlerTest(t *testing.T) *handlerEnv {
	t.Helper()

	store := memorystorage.New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	service, err := blog.New(
		blog.WithRepository(memory.New()),
		blog.WithBlobStore(store),
		blog.WithEventSink(blog.NewNoopEventSink()),
		blog.WithClock(func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Minute)
		}),
	)
	require.NoError(t, err)

	auth := NewAuth("test-secret")
	handler := NewPostHandler(service, auth, DefaultBasePath)

	router := chi.NewRouter()
	router.Mount(DefaultBasePath, handler.Routes())
	router.Mount("/uploads", NewObjectHandler(store).Routes())

	return &handlerEnv{router: router, auth: auth, service: service, store: store}
}

func (e *handlerEnv) token(t *testing.T, userID, name string) string {
	t.Helper()
	token, err := e.auth.IssueToken(userID, name)
	require.NoError(t, err)
	return token
}

func (e *handlerEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// createPost creates a post through the API and returns its id
func (e *handlerEnv) createPost(t *testing.T, token, title, category string) string {
	t.Helper()

	w := e.do(t, http.MethodPost, DefaultBasePath+"/", PostRequest{
		Title:    title,
		Contents: "contents of " + title,
		FileURL:  URLList{"https://img.example.com/a.png"},
		Category: category,
	}, token)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())

	location := w.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, DefaultBasePath+"/"), location)
	return strings.TrimPrefix(location, DefaultBasePath+"/")
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestPostHandler_CreatePost_RequiresToken(t *testing.T) {
	env := setupPostHandlerTest(t)

	w := env.do(t, http.MethodPost, DefaultBasePath+"/", PostRequest{Title: "A", Category: "Go"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, DefaultBasePath+"/", PostRequest{Title: "A", Category: "Go"}, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPostHandler_CreatePost_TokenWithoutUser(t *testing.T) {
	env := setupPostHandlerTest(t)
	_, token, err := env.auth.jwt.Encode(map[string]interface{}{"name": "nobody"})
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, DefaultBasePath+"/", PostRequest{Title: "A", Category: "Go"}, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "authorization denied")
}

func TestPostHandler_CreateAndGetPost(t *testing.T) {
	env := setupPostHandlerTest(t)
	token := env.token(t, "user1", "Alice")

	id := env.createPost(t, token, "First", "Travel")
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	for i := 1; i <= 2; i++ {
		w := env.do(t, http.MethodGet, DefaultBasePath+"/"+id, nil, "")
		require.Equal(t, http.StatusOK, w.Code)

		var detail blog.PostDetail
		decodeBody(t, w, &detail)
		assert.Equal(t, "First", detail.Title)
		assert.Equal(t, int64(i), detail.Views)
		assert.Equal(t, blog.CreatorRef{ID: "user1", Name: "Alice"}, detail.Creator)
		require.NotNil(t, detail.Category)
		assert.Equal(t, "Travel", detail.Category.CategoryName)
		assert.Equal(t, []string{"https://img.example.com/a.png"}, detail.FileURL)
	}
}

func TestPostHandler_CreatePost_SingleFileURL(t *testing.T) {
	env := setupPostHandlerTest(t)
	token := env.token(t, "user1", "Alice")

	body := `{"title":"A","contents":"x","fileUrl":"https://img/one.png","category":"Go"}`
	req := httptest.NewRequest(http.MethodPost, DefaultBasePath+"/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(AuthTokenHeader, token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)

	id := strings.TrimPrefix(w.Header().Get("Location"), DefaultBasePath+"/")
	w = env.do(t, http.MethodGet, DefaultBasePath+"/"+id, nil, "")
	var detail blog.PostDetail
	decodeBody(t, w, &detail)
	assert.Equal(t, []string{"https://img/one.png"}, detail.FileURL)
}

func TestPostHandler_CreatePost_MultipartForm(t *testing.T) {
	env := setupPostHandlerTest(t)
	token := env.token(t, "user1", "Alice")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Form post"))
	require.NoError(t, mw.WriteField("contents", "from a form"))
	require.NoError(t, mw.WriteField("fileUrl", "https://img/1.png"))
	require.NoError(t, mw.WriteField("fileUrl", "https://img/2.png"))
	require.NoError(t, mw.WriteField("category", "Forms"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, DefaultBasePath+"/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: "jwt", Value: token})
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())

	id := strings.TrimPrefix(w.Header().Get("Location"), DefaultBasePath+"/")
	w = env.do(t, http.MethodGet, DefaultBasePath+"/"+id, nil, "")
	var detail blog.PostDetail
	decodeBody(t, w, &detail)
	assert.Equal(t, "Form post", detail.Title)
	assert.Equal(t, []string{"https://img/1.png", "https://img/2.png"}, detail.FileURL)
}

func TestPostHandler_CreatePost_Validation(t *testing.T) {
	env := setupPostHandlerTest(t)
	token := env.token(t, "user1", "Alice")

	w := env.do(t, http.MethodPost, DefaultBasePath+"/", PostRequest{Title: "", Category: "Go"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var msg MessageResponse
	decodeBody(t, w, &msg)
	assert.Contains(t, msg.Msg, "title")

	w = env.do(t, http.MethodPost, DefaultBasePath+"/", PostRequest{Title: "A"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, DefaultBasePath+"/", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostHandler_GetPost_Errors(t *testing.T) {
	env := setupPostHandlerTest(t)

	w := env.do(t, http.MethodGet, DefaultBasePath+"/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid post ID")

	w = env.do(t, http.MethodGet, DefaultBasePath+"/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	var msg MessageResponse
	decodeBody(t, w, &msg)
	assert.NotEmpty(t, msg.Msg)
}

func TestPostHandler_ListPosts(t *testing.T) {
	env := setupPostHandlerTest(t)
	token := env.token(t, "user1", "Alice")

	var ids []string
	for i := 0; i < 8; i++ {
		ids = append(ids, env.createPost(t, token, "Post", "Go"))
	}

	w := env.do(t, http.MethodGet, DefaultBasePath+"/skip/0", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]json.RawMessage
	decodeBody(t, w, &raw)
	assert.Contains(t, raw, "postFindResult")
	assert.Contains(t, raw, "categoryFindResult")
	assert.Contains(t, raw, "postCount")

	var page blog.PostPage
	decodeBody(t, w, &page)
	require.Len(t, page.Posts, blog.DefaultPageSize)
	assert.Equal(t, ids[7], page.Posts[0].ID)
	assert.Equal(t, int64(8), page.TotalCount)
	require.Len(t, page.Categories, 1)
	assert.Equal(t, "Go", page.Categories[0].CategoryName)

	w = env.do(t, http.MethodGet, DefaultBasePath+"/skip/6", nil, "")
	decodeBody(t, w, &page)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, ids[0], page.Posts[1].ID)

	w = env.do(t, http.MethodGet, DefaultBasePath+"/skip/100", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &page)
	assert.Empty(t, page.Posts)

	w = env.do(t, http.MethodGet, DefaultBasePath+"/skip/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodGet, DefaultBasePath+"/skip/-1", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostHandler_EditPost(t *testing.T) {
	env := setupPostHandlerTest(t)
	alice := env.token(t, "user1", "Alice")
	bob := env.token(t, "user2", "Bob")
	id := env.createPost(t, alice, "Original", "Go")

	w := env.do(t, http.MethodGet, DefaultBasePath+"/"+id+"/edit", nil, alice)
	require.Equal(t, http.StatusOK, w.Code)
	var detail blog.PostDetail
	decodeBody(t, w, &detail)
	assert.Equal(t, "Original", detail.Title)
	assert.Equal(t, int64(0), detail.Views)

	w = env.do(t, http.MethodGet, DefaultBasePath+"/"+id+"/edit", nil, bob)
	assert.Equal(t, http.StatusForbidden, w.Code)

	edit := PostRequest{ID: id, Title: "Edited", Contents: "new", FileURL: URLList{"https://img/new.png"}}
	w = env.do(t, http.MethodPost, DefaultBasePath+"/"+id+"/edit", edit, bob)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, DefaultBasePath+"/"+id+"/edit", edit, alice)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, DefaultBasePath+"/"+id, w.Header().Get("Location"))

	w = env.do(t, http.MethodGet, DefaultBasePath+"/"+id, nil, "")
	decodeBody(t, w, &detail)
	assert.Equal(t, "Edited", detail.Title)
	assert.Equal(t, "new", detail.Contents)
	assert.Equal(t, []string{"https://img/new.png"}, detail.FileURL)
	assert.Equal(t, "Go", detail.Category.CategoryName)

	mismatch := PostRequest{ID: uuid.NewString(), Title: "X"}
	w = env.do(t, http.MethodPost, DefaultBasePath+"/"+id+"/edit", mismatch, alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, DefaultBasePath+"/"+uuid.NewString()+"/edit", PostRequest{Title: "X"}, alice)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostHandler_DeletePost(t *testing.T) {
	env := setupPostHandlerTest(t)
	alice := env.token(t, "user1", "Alice")
	bob := env.token(t, "user2", "Bob")
	id := env.createPost(t, alice, "Doomed", "Solo")

	w := env.do(t, http.MethodDelete, DefaultBasePath+"/"+id, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodDelete, DefaultBasePath+"/"+id, nil, bob)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodDelete, DefaultBasePath+"/"+id, nil, alice)
	require.Equal(t, http.StatusOK, w.Code)
	var resp SuccessResponse
	decodeBody(t, w, &resp)
	assert.True(t, resp.Success)

	w = env.do(t, http.MethodGet, DefaultBasePath+"/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, DefaultBasePath+"/category/solo", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", strings.TrimSpace(w.Body.String()))
}

func TestPostHandler_Comments(t *testing.T) {
	env := setupPostHandlerTest(t)
	alice := env.token(t, "user1", "Alice")
	carol := env.token(t, "user3", "Carol")
	id := env.createPost(t, alice, "Discuss", "Go")

	// Anonymous comment carries its author in the body.
	w := env.do(t, http.MethodPost, DefaultBasePath+"/"+id+"/comments",
		CommentRequest{ID: id, Contents: "first", UserID: "user2", UserName: "Bob"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var first blog.Comment
	decodeBody(t, w, &first)
	assert.Equal(t, "user2", first.Creator)
	assert.Equal(t, "Bob", first.CreatorName)
	assert.Equal(t, id, first.Post)

	// A token wins over the body.
	w = env.do(t, http.MethodPost, DefaultBasePath+"/"+id+"/comments",
		CommentRequest{Contents: "second", UserID: "spoofed", UserName: "Mallory"}, carol)
	require.Equal(t, http.StatusOK, w.Code)
	var second blog.Comment
	decodeBody(t, w, &second)
	assert.Equal(t, "user3", second.Creator)
	assert.Equal(t, "Carol", second.CreatorName)

	w = env.do(t, http.MethodGet, DefaultBasePath+"/"+id+"/comments", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var comments []blog.Comment
	decodeBody(t, w, &comments)
	require.Len(t, comments, 2)
	assert.Equal(t, first.ID, comments[0].ID)
	assert.Equal(t, second.ID, comments[1].ID)

	// Edit route changes nothing.
	w = env.do(t, http.MethodPost, DefaultBasePath+"/"+id+"/comments/"+second.ID, map[string]string{"contents": "changed"}, carol)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &comments)
	require.Len(t, comments, 2)
	assert.Equal(t, "second", comments[1].Contents)

	// Carol may not delete Bob's comment on Alice's post.
	w = env.do(t, http.MethodDelete, DefaultBasePath+"/"+id+"/comments/"+first.ID, nil, carol)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The post owner may.
	w = env.do(t, http.MethodDelete, DefaultBasePath+"/"+id+"/comments/"+first.ID, nil, alice)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &comments)
	require.Len(t, comments, 1)
	assert.Equal(t, second.ID, comments[0].ID)

	w = env.do(t, http.MethodDelete, DefaultBasePath+"/"+id+"/comments/"+first.ID, nil, alice)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostHandler_Comments_Errors(t *testing.T) {
	env := setupPostHandlerTest(t)
	alice := env.token(t, "user1", "Alice")
	id := env.createPost(t, alice, "Discuss", "Go")

	missing := uuid.NewString()
	w := env.do(t, http.MethodPost, DefaultBasePath+"/"+missing+"/comments",
		CommentRequest{Contents: "orphan", UserID: "user2"}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, DefaultBasePath+"/"+missing+"/comments", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, DefaultBasePath+"/"+id+"/comments",
		CommentRequest{Contents: "", UserID: "user2"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, DefaultBasePath+"/"+id+"/comments",
		CommentRequest{ID: missing, Contents: "x", UserID: "user2"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, DefaultBasePath+"/"+id+"/comments/bad", nil, alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid comment ID")

	w = env.do(t, http.MethodPost, DefaultBasePath+"/"+id+"/comments/"+uuid.NewString(), nil, alice)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostHandler_FindCategory(t *testing.T) {
	env := setupPostHandlerTest(t)
	token := env.token(t, "user1", "Alice")
	first := env.createPost(t, token, "One", "Travel")
	second := env.createPost(t, token, "Two", "Travel")
	env.createPost(t, token, "Three", "C++")

	w := env.do(t, http.MethodGet, DefaultBasePath+"/category/RAV", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var detail blog.CategoryDetail
	decodeBody(t, w, &detail)
	assert.Equal(t, "Travel", detail.CategoryName)
	require.Len(t, detail.Posts, 2)
	assert.Equal(t, first, detail.Posts[0].ID)
	assert.Equal(t, second, detail.Posts[1].ID)

	w = env.do(t, http.MethodGet, DefaultBasePath+"/category/c++", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &detail)
	assert.Equal(t, "C++", detail.CategoryName)

	w = env.do(t, http.MethodGet, DefaultBasePath+"/category/zzz", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", strings.TrimSpace(w.Body.String()))
}

func multipartUpload(t *testing.T, names ...string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+UploadField+`"; filename="`+name+`"`)
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("png-bytes-" + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestPostHandler_UploadImages(t *testing.T) {
	env := setupPostHandlerTest(t)

	body, contentType := multipartUpload(t, "cat.png", "dog.png")
	req := httptest.NewRequest(http.MethodPost, DefaultBasePath+"/image", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp UploadResponse
	decodeBody(t, w, &resp)
	assert.True(t, resp.Uploaded)
	require.Len(t, resp.URL, 2)
	assert.True(t, strings.HasPrefix(resp.URL[0], "/uploads/upload/cat"), resp.URL[0])
	assert.True(t, strings.HasSuffix(resp.URL[0], ".png"), resp.URL[0])
	assert.Equal(t, 2, env.store.Len())

	// Stored objects are served back.
	get := httptest.NewRequest(http.MethodGet, resp.URL[1], nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, get)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes-dog.png", rec.Body.String())
}

func TestPostHandler_UploadImages_Rejected(t *testing.T) {
	env := setupPostHandlerTest(t)

	tests := []struct {
		name  string
		files []string
	}{
		{name: "no files", files: nil},
		{name: "too many files", files: []string{"1.png", "2.png", "3.png", "4.png", "5.png", "6.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartUpload(t, tt.files...)
			req := httptest.NewRequest(http.MethodPost, DefaultBasePath+"/image", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"uploaded":false,"url":null}`, w.Body.String())
		})
	}
	assert.Equal(t, 0, env.store.Len())

	req := httptest.NewRequest(http.MethodPost, DefaultBasePath+"/image", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestObjectHandler_NotFound(t *testing.T) {
	env := setupPostHandlerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/uploads/upload/missing.png", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostHandler_AnonymousCommentKeepsCreatorName(t *testing.T) {
	env := setupPostHandlerTest(t)
	alice := env.token(t, "user1", "Alice")
	id := env.createPost(t, alice, "Discuss", "Go")

	w := env.do(t, http.MethodPost, DefaultBasePath+"/"+id+"/comments",
		CommentRequest{Contents: "hi", UserID: "user1", UserName: "Mallory"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var comment blog.Comment
	decodeBody(t, w, &comment)
	assert.Equal(t, "Mallory", comment.CreatorName)

	w = env.do(t, http.MethodGet, DefaultBasePath+"/"+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var detail blog.PostDetail
	decodeBody(t, w, &detail)
	assert.Equal(t, blog.CreatorRef{ID: "user1", Name: "Alice"}, detail.Creator)
}

func TestPostHandler_CommentOnOtherPost(t *testing.T) {
	env := setupPostHandlerTest(t)
	alice := env.token(t, "user1", "Alice")
	first := env.createPost(t, alice, "First", "Go")
	second := env.createPost(t, alice, "Second", "Go")

	w := env.do(t, http.MethodPost, DefaultBasePath+"/"+first+"/comments",
		CommentRequest{Contents: "on first"}, alice)
	require.Equal(t, http.StatusOK, w.Code)
	var comment blog.Comment
	decodeBody(t, w, &comment)

	w = env.do(t, http.MethodDelete, DefaultBasePath+"/"+second+"/comments/"+comment.ID, nil, alice)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodPost, DefaultBasePath+"/"+second+"/comments/"+comment.ID, nil, alice)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, DefaultBasePath+"/"+first+"/comments", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var comments []blog.Comment
	decodeBody(t, w, &comments)
	require.Len(t, comments, 1)
	assert.Equal(t, comment.ID, comments[0].ID)
}

// uploadParts posts one part per "name=content" entry
func uploadParts(t *testing.T, env *handlerEnv, files ...string) UploadResponse {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		name, content, _ := strings.Cut(f, "=")
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+UploadField+`"; filename="`+name+`"`)
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, DefaultBasePath+"/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp UploadResponse
	decodeBody(t, w, &resp)
	return resp
}

func (e *handlerEnv) fetch(t *testing.T, url string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
	return w
}

func TestPostHandler_UploadImages_SameName(t *testing.T) {
	env := setupPostHandlerTest(t)

	resp := uploadParts(t, env, "image.png=A", "image.png=B")
	require.Len(t, resp.URL, 2)
	assert.NotEqual(t, resp.URL[0], resp.URL[1])
	assert.Equal(t, 2, env.store.Len())

	assert.Equal(t, "A", env.fetch(t, resp.URL[0]).Body.String())
	assert.Equal(t, "B", env.fetch(t, resp.URL[1]).Body.String())
}

func TestPostHandler_UploadImages_ReservedCharacters(t *testing.T) {
	env := setupPostHandlerTest(t)

	resp := uploadParts(t, env, "100%#cat.png=meow")
	require.Len(t, resp.URL, 1)
	assert.Contains(t, resp.URL[0], "100%25%23cat")

	w := env.fetch(t, resp.URL[0])
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "meow", w.Body.String())
}
