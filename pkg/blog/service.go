package blog

import "context"

// Service defines the main interface for the blog library
type Service interface {
	// Post operations
	CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error)
	GetPost(ctx context.Context, id string) (*PostDetail, error)
	GetPostForEdit(ctx context.Context, id, requesterID string) (*PostDetail, error)
	ListPosts(ctx context.Context, skip int) (*PostPage, error)
	EditPost(ctx context.Context, req EditPostRequest) (*Post, error)
	DeletePost(ctx context.Context, id, requesterID string) error

	// Comment operations
	AddComment(ctx context.Context, req AddCommentRequest) (*Comment, error)
	ListComments(ctx context.Context, postID string) ([]*Comment, error)
	// DeleteComment and TouchComment report ErrCommentNotFound when the
	// comment does not belong to postID.
	DeleteComment(ctx context.Context, postID, commentID, requesterID string) ([]*Comment, error)
	TouchComment(ctx context.Context, postID, commentID, requesterID string) ([]*Comment, error)

	// Category operations
	FindCategory(ctx context.Context, pattern string) (*CategoryDetail, error)

	// Upload operations
	UploadImages(ctx context.Context, files []UploadFile) ([]string, error)
}
