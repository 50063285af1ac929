package blog

import "io"

// Request DTOs

// CreatePostRequest contains parameters for creating a post
type CreatePostRequest struct {
	Title        string
	Contents     string
	FileURL      []string
	CreatorID    string
	CreatorName  string
	CategoryName string
}

// EditPostRequest contains parameters for editing a post
type EditPostRequest struct {
	PostID      string
	RequesterID string
	Title       string
	Contents    string
	FileURL     []string
}

// AddCommentRequest contains parameters for commenting on a post.
// AuthorName is always copied onto the comment but only updates the stored
// user when AuthorVerified is set.
type AddCommentRequest struct {
	PostID         string
	AuthorID       string
	AuthorName     string
	AuthorVerified bool
	Contents       string
}

// UploadFile is one file of an upload batch
type UploadFile struct {
	FileName string
	MimeType string
	Size     int64
	Reader   io.Reader
}
