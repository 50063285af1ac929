package blog

import (
	"context"
	"io"
)

// Tx is the set of document operations available to a single unit of work.
// Implementations return the package's not-found sentinels when an id does
// not resolve. Push operations on users create the user document if it does
// not exist yet; pull operations on a missing user are no-ops.
type Tx interface {
	// Post operations
	CreatePost(ctx context.Context, post *Post) error
	GetPost(ctx context.Context, id string) (*Post, error)
	GetPostsByIDs(ctx context.Context, ids []string) ([]*Post, error)
	UpdatePost(ctx context.Context, post *Post) error
	IncrementPostViews(ctx context.Context, id string) error
	PushPostComment(ctx context.Context, postID, commentID string) error
	PullPostComment(ctx context.Context, postID, commentID string) error
	DeletePost(ctx context.Context, id string) error
	// ListPosts returns posts ordered by date descending
	ListPosts(ctx context.Context, skip, limit int) ([]*Post, error)
	CountPosts(ctx context.Context) (int64, error)

	// Category operations
	CreateCategory(ctx context.Context, category *Category) error
	GetCategory(ctx context.Context, id string) (*Category, error)
	// FindCategoryByName is an exact, case-sensitive match
	FindCategoryByName(ctx context.Context, name string) (*Category, error)
	// FindCategoryMatching is a case-insensitive literal substring match
	// returning the earliest created category that matches
	FindCategoryMatching(ctx context.Context, pattern string) (*Category, error)
	ListCategories(ctx context.Context) ([]*Category, error)
	PushCategoryPost(ctx context.Context, categoryID, postID string) error
	// PullCategoryPost removes postID and returns the updated category
	PullCategoryPost(ctx context.Context, categoryID, postID string) (*Category, error)
	DeleteCategory(ctx context.Context, id string) error

	// Comment operations
	CreateComment(ctx context.Context, comment *Comment) error
	GetComment(ctx context.Context, id string) (*Comment, error)
	GetCommentsByIDs(ctx context.Context, ids []string) ([]*Comment, error)
	ListCommentsByPost(ctx context.Context, postID string) ([]*Comment, error)
	DeleteComment(ctx context.Context, id string) error
	DeleteCommentsByPost(ctx context.Context, postID string) error

	// User operations
	GetUser(ctx context.Context, id string) (*User, error)
	UpsertUser(ctx context.Context, id, name string) error
	PushUserPost(ctx context.Context, userID, postID string) error
	// PullUserPost removes postID and every comment reference on that post
	PullUserPost(ctx context.Context, userID, postID string) error
	PushUserComment(ctx context.Context, userID string, ref CommentRef) error
	PullUserComment(ctx context.Context, userID, commentID string) error
}

// Repository is the document store behind the service.
type Repository interface {
	// RunInTx runs fn as one atomic unit. If fn returns an error none of the
	// writes it issued are persisted. fn must use the ctx it is given.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// View runs fn for reads only.
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// BlobStore defines the interface for object storage backends
type BlobStore interface {
	// UploadWithParams uploads content under params.ObjectKey
	UploadWithParams(ctx context.Context, reader io.Reader, params UploadParams) error

	// PublicURL returns the durable public URL of a stored object
	PublicURL(objectKey string) string

	// Delete deletes content
	Delete(ctx context.Context, objectKey string) error
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ObjectKey string
	MimeType  string
	Size      int64
}

// EventSink receives domain events after the owning transaction commits.
type EventSink interface {
	PostCreated(ctx context.Context, post *Post) error
	PostUpdated(ctx context.Context, post *Post) error
	PostDeleted(ctx context.Context, postID string) error
	CommentCreated(ctx context.Context, comment *Comment) error
	CommentDeleted(ctx context.Context, commentID string) error
}
