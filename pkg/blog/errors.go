package blog

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrPostNotFound indicates a post id did not resolve
	ErrPostNotFound = errors.New("post not found")

	// ErrCommentNotFound indicates a comment id did not resolve
	ErrCommentNotFound = errors.New("comment not found")

	// ErrCategoryNotFound indicates a category id did not resolve
	ErrCategoryNotFound = errors.New("category not found")

	// ErrUserNotFound indicates a user id did not resolve
	ErrUserNotFound = errors.New("user not found")

	// ErrForbidden indicates the requester does not own the target
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput indicates a missing or malformed field
	ErrInvalidInput = errors.New("invalid input")

	// ErrUploadFailed indicates the blob store rejected a file
	ErrUploadFailed = errors.New("upload failed")

	// ErrConflict indicates a unique constraint rejected a write made by a
	// concurrent operation
	ErrConflict = errors.New("conflicting write")

	// ErrNoBlobStore indicates uploads were requested without a configured blob store
	ErrNoBlobStore = errors.New("no blob store configured")
)

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPostNotFound) ||
		errors.Is(err, ErrCommentNotFound) ||
		errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

// PostError represents an error related to post operations
type PostError struct {
	PostID string
	Op     string
	Err    error
}

func (e *PostError) Error() string {
	return fmt.Sprintf("post operation %s failed for post %s: %v", e.Op, e.PostID, e.Err)
}

func (e *PostError) Unwrap() error {
	return e.Err
}

// CommentError represents an error related to comment operations
type CommentError struct {
	CommentID string
	Op        string
	Err       error
}

func (e *CommentError) Error() string {
	return fmt.Sprintf("comment operation %s failed for comment %s: %v", e.Op, e.CommentID, e.Err)
}

func (e *CommentError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob storage operations
type StorageError struct {
	Key string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
