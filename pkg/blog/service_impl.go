package blog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-blog/pkg/blog/objectkey"
	"golang.org/x/exp/slices"
)

// service implements the Service interface
type service struct {
	repository     Repository
	blobStore      BlobStore
	keyGenerator   objectkey.Generator
	eventSink      EventSink
	logger         *slog.Logger
	pageSize       int
	ownershipCheck bool
	now            func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the object storage used by UploadImages
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithKeyGenerator sets the object key generator for uploads
func WithKeyGenerator(generator objectkey.Generator) Option {
	return func(s *service) {
		s.keyGenerator = generator
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithPageSize sets the number of posts returned by ListPosts
func WithPageSize(size int) Option {
	return func(s *service) {
		s.pageSize = size
	}
}

// WithOwnershipCheck enables or disables owner verification on edits and
// deletes. Enabled by default.
func WithOwnershipCheck(enabled bool) Option {
	return func(s *service) {
		s.ownershipCheck = enabled
	}
}

// WithClock overrides the time source used for post and comment dates
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		keyGenerator:   objectkey.NewTimestampGenerator(),
		eventSink:      NewNoopEventSink(),
		pageSize:       DefaultPageSize,
		ownershipCheck: true,
		now:            time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", s.pageSize)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.keyGenerator == nil {
		s.keyGenerator = objectkey.NewTimestampGenerator()
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s, nil
}

func (s *service) clock() time.Time {
	return s.now().UTC()
}

// emit publishes an event; sink failures never fail the operation.
func (s *service) emit(ctx context.Context, event string, publish func(EventSink) error) {
	if err := publish(s.eventSink); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event", "event", event, "error", err)
	}
}

func (s *service) owns(ownerID, requesterID string) bool {
	return !s.ownershipCheck || ownerID == requesterID
}

// Post operations

func (s *service) CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, invalidInput("title is required")
	}
	if strings.TrimSpace(req.CategoryName) == "" {
		return nil, invalidInput("category is required")
	}
	if req.CreatorID == "" {
		return nil, invalidInput("creator is required")
	}

	now := s.clock()
	post := &Post{
		ID:       uuid.NewString(),
		Title:    req.Title,
		Contents: req.Contents,
		FileURL:  copyStrings(req.FileURL),
		Creator:  req.CreatorID,
		Comments: []string{},
		Date:     now,
	}

	create := func(ctx context.Context, tx Tx) error {
		category, err := tx.FindCategoryByName(ctx, req.CategoryName)
		if errors.Is(err, ErrCategoryNotFound) {
			category = &Category{
				ID:           uuid.NewString(),
				CategoryName: req.CategoryName,
				Posts:        []string{},
				CreatedAt:    now,
			}
			if err := tx.CreateCategory(ctx, category); err != nil {
				return fmt.Errorf("create category %q: %w", req.CategoryName, err)
			}
		} else if err != nil {
			return err
		}

		post.Category = category.ID
		if err := tx.CreatePost(ctx, post); err != nil {
			return err
		}
		if err := tx.PushCategoryPost(ctx, category.ID, post.ID); err != nil {
			return err
		}
		if req.CreatorName != "" {
			if err := tx.UpsertUser(ctx, req.CreatorID, req.CreatorName); err != nil {
				return err
			}
		}
		return tx.PushUserPost(ctx, req.CreatorID, post.ID)
	}

	err := s.repository.RunInTx(ctx, create)
	if errors.Is(err, ErrConflict) {
		// A concurrent create_post inserted the category first. The second
		// attempt finds it by name.
		s.logger.InfoContext(ctx, "Retrying post creation after conflict", "category", req.CategoryName, "error", err)
		err = s.repository.RunInTx(ctx, create)
	}
	if err != nil {
		return nil, &PostError{PostID: post.ID, Op: "create", Err: err}
	}

	s.emit(ctx, "post_created", func(sink EventSink) error { return sink.PostCreated(ctx, post) })
	return post, nil
}

func (s *service) GetPost(ctx context.Context, id string) (*PostDetail, error) {
	var detail *PostDetail
	err := s.repository.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.IncrementPostViews(ctx, id); err != nil {
			return err
		}
		post, err := tx.GetPost(ctx, id)
		if err != nil {
			return err
		}
		detail, err = populatePost(ctx, tx, post)
		return err
	})
	if err != nil {
		return nil, &PostError{PostID: id, Op: "get", Err: err}
	}
	return detail, nil
}

func (s *service) GetPostForEdit(ctx context.Context, id, requesterID string) (*PostDetail, error) {
	var detail *PostDetail
	err := s.repository.View(ctx, func(ctx context.Context, tx Tx) error {
		post, err := tx.GetPost(ctx, id)
		if err != nil {
			return err
		}
		if !s.owns(post.Creator, requesterID) {
			return ErrForbidden
		}
		detail, err = populatePost(ctx, tx, post)
		return err
	})
	if err != nil {
		return nil, &PostError{PostID: id, Op: "get_for_edit", Err: err}
	}
	return detail, nil
}

func (s *service) ListPosts(ctx context.Context, skip int) (*PostPage, error) {
	if skip < 0 {
		return nil, invalidInput("skip must not be negative, got %d", skip)
	}

	page := &PostPage{}
	err := s.repository.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if page.Posts, err = tx.ListPosts(ctx, skip, s.pageSize); err != nil {
			return fmt.Errorf("list posts: %w", err)
		}
		if page.Categories, err = tx.ListCategories(ctx); err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		if page.TotalCount, err = tx.CountPosts(ctx); err != nil {
			return fmt.Errorf("count posts: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if page.Posts == nil {
		page.Posts = []*Post{}
	}
	if page.Categories == nil {
		page.Categories = []*Category{}
	}
	return page, nil
}

func (s *service) EditPost(ctx context.Context, req EditPostRequest) (*Post, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, invalidInput("title is required")
	}

	var post *Post
	err := s.repository.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		post, err = tx.GetPost(ctx, req.PostID)
		if err != nil {
			return err
		}
		if !s.owns(post.Creator, req.RequesterID) {
			return ErrForbidden
		}

		post.Title = req.Title
		post.Contents = req.Contents
		post.FileURL = copyStrings(req.FileURL)
		post.Date = s.clock()
		return tx.UpdatePost(ctx, post)
	})
	if err != nil {
		return nil, &PostError{PostID: req.PostID, Op: "edit", Err: err}
	}

	s.emit(ctx, "post_updated", func(sink EventSink) error { return sink.PostUpdated(ctx, post) })
	return post, nil
}

func (s *service) DeletePost(ctx context.Context, id, requesterID string) error {
	var deleted []*Comment
	err := s.repository.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		post, err := tx.GetPost(ctx, id)
		if err != nil {
			return err
		}
		if !s.owns(post.Creator, requesterID) {
			return ErrForbidden
		}

		if deleted, err = tx.ListCommentsByPost(ctx, post.ID); err != nil {
			return err
		}
		if err := tx.DeleteCommentsByPost(ctx, post.ID); err != nil {
			return err
		}
		if err := tx.DeletePost(ctx, post.ID); err != nil {
			return err
		}

		// Creator, requester and every commenter may hold references.
		users := []string{post.Creator}
		if requesterID != "" && requesterID != post.Creator {
			users = append(users, requesterID)
		}
		for _, c := range deleted {
			if !slices.Contains(users, c.Creator) {
				users = append(users, c.Creator)
			}
		}
		for _, userID := range users {
			if err := tx.PullUserPost(ctx, userID, post.ID); err != nil {
				return fmt.Errorf("pull post from user %s: %w", userID, err)
			}
		}

		if post.Category == "" {
			return nil
		}
		category, err := tx.PullCategoryPost(ctx, post.Category, post.ID)
		if errors.Is(err, ErrCategoryNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(category.Posts) == 0 {
			return tx.DeleteCategory(ctx, category.ID)
		}
		return nil
	})
	if err != nil {
		return &PostError{PostID: id, Op: "delete", Err: err}
	}

	for _, c := range deleted {
		commentID := c.ID
		s.emit(ctx, "comment_deleted", func(sink EventSink) error { return sink.CommentDeleted(ctx, commentID) })
	}
	s.emit(ctx, "post_deleted", func(sink EventSink) error { return sink.PostDeleted(ctx, id) })
	return nil
}

// Comment operations

func (s *service) AddComment(ctx context.Context, req AddCommentRequest) (*Comment, error) {
	if req.PostID == "" {
		return nil, invalidInput("post id is required")
	}
	if req.AuthorID == "" {
		return nil, invalidInput("comment author is required")
	}
	if strings.TrimSpace(req.Contents) == "" {
		return nil, invalidInput("comment contents are required")
	}

	comment := &Comment{
		ID:          uuid.NewString(),
		Contents:    req.Contents,
		Creator:     req.AuthorID,
		CreatorName: req.AuthorName,
		Post:        req.PostID,
		Date:        s.clock(),
	}

	err := s.repository.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetPost(ctx, req.PostID); err != nil {
			return err
		}
		if err := tx.CreateComment(ctx, comment); err != nil {
			return err
		}
		if err := tx.PushPostComment(ctx, req.PostID, comment.ID); err != nil {
			return err
		}
		if req.AuthorVerified && req.AuthorName != "" {
			if err := tx.UpsertUser(ctx, req.AuthorID, req.AuthorName); err != nil {
				return err
			}
		}
		return tx.PushUserComment(ctx, req.AuthorID, CommentRef{PostID: req.PostID, CommentID: comment.ID})
	})
	if err != nil {
		return nil, &CommentError{CommentID: comment.ID, Op: "create", Err: err}
	}

	s.emit(ctx, "comment_created", func(sink EventSink) error { return sink.CommentCreated(ctx, comment) })
	return comment, nil
}

func (s *service) ListComments(ctx context.Context, postID string) ([]*Comment, error) {
	var comments []*Comment
	err := s.repository.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		comments, err = commentsOf(ctx, tx, postID)
		return err
	})
	if err != nil {
		return nil, &PostError{PostID: postID, Op: "list_comments", Err: err}
	}
	return comments, nil
}

func (s *service) DeleteComment(ctx context.Context, postID, commentID, requesterID string) ([]*Comment, error) {
	var remaining []*Comment
	err := s.repository.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		comment, err := commentOn(ctx, tx, postID, commentID)
		if err != nil {
			return err
		}
		post, err := tx.GetPost(ctx, comment.Post)
		if err != nil {
			return err
		}
		if s.ownershipCheck && requesterID != comment.Creator && requesterID != post.Creator {
			return ErrForbidden
		}

		if err := tx.DeleteComment(ctx, comment.ID); err != nil {
			return err
		}
		if err := tx.PullUserComment(ctx, comment.Creator, comment.ID); err != nil {
			return err
		}
		if err := tx.PullPostComment(ctx, post.ID, comment.ID); err != nil {
			return err
		}

		remaining, err = commentsOf(ctx, tx, post.ID)
		return err
	})
	if err != nil {
		return nil, &CommentError{CommentID: commentID, Op: "delete", Err: err}
	}

	s.emit(ctx, "comment_deleted", func(sink EventSink) error { return sink.CommentDeleted(ctx, commentID) })
	return remaining, nil
}

// commentOn loads a comment and checks it is attached to postID.
func commentOn(ctx context.Context, tx Tx, postID, commentID string) (*Comment, error) {
	comment, err := tx.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.Post != postID {
		return nil, ErrCommentNotFound
	}
	return comment, nil
}

// TouchComment resolves a comment and returns its post's comments unchanged.
func (s *service) TouchComment(ctx context.Context, postID, commentID, requesterID string) ([]*Comment, error) {
	var comments []*Comment
	err := s.repository.View(ctx, func(ctx context.Context, tx Tx) error {
		comment, err := commentOn(ctx, tx, postID, commentID)
		if err != nil {
			return err
		}
		if !s.owns(comment.Creator, requesterID) {
			return ErrForbidden
		}
		comments, err = commentsOf(ctx, tx, comment.Post)
		return err
	})
	if err != nil {
		return nil, &CommentError{CommentID: commentID, Op: "touch", Err: err}
	}
	return comments, nil
}

// Category operations

// FindCategory returns nil without error when no category matches.
func (s *service) FindCategory(ctx context.Context, pattern string) (*CategoryDetail, error) {
	if pattern == "" {
		return nil, invalidInput("category pattern is required")
	}

	var detail *CategoryDetail
	err := s.repository.View(ctx, func(ctx context.Context, tx Tx) error {
		category, err := tx.FindCategoryMatching(ctx, pattern)
		if errors.Is(err, ErrCategoryNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		posts, err := tx.GetPostsByIDs(ctx, category.Posts)
		if err != nil {
			return err
		}
		if posts == nil {
			posts = []*Post{}
		}
		detail = &CategoryDetail{
			ID:           category.ID,
			CategoryName: category.CategoryName,
			Posts:        posts,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find category %q: %w", pattern, err)
	}
	return detail, nil
}

// Upload operations

// UploadImages stores every file and returns their public URLs in order.
// Files already stored are removed if a later one fails.
func (s *service) UploadImages(ctx context.Context, files []UploadFile) ([]string, error) {
	if s.blobStore == nil {
		return nil, ErrNoBlobStore
	}
	if len(files) == 0 {
		return nil, invalidInput("no files uploaded")
	}
	if len(files) > MaxUploadFiles {
		return nil, invalidInput("at most %d files per upload, got %d", MaxUploadFiles, len(files))
	}
	for _, f := range files {
		if f.Size > MaxUploadFileSize {
			return nil, invalidInput("file %q exceeds %d bytes", f.FileName, MaxUploadFileSize)
		}
	}

	var stored []string
	taken := make(map[string]bool, len(files))
	urls := make([]string, 0, len(files))
	for _, f := range files {
		key := batchKey(s.keyGenerator.GenerateKey(&objectkey.KeyMetadata{
			FileName:    f.FileName,
			ContentType: f.MimeType,
		}), taken)
		params := UploadParams{ObjectKey: key, MimeType: f.MimeType, Size: f.Size}
		if err := s.blobStore.UploadWithParams(ctx, f.Reader, params); err != nil {
			s.cleanupUploads(ctx, stored)
			return nil, &StorageError{Key: key, Op: "upload", Err: fmt.Errorf("%w: %v", ErrUploadFailed, err)}
		}
		stored = append(stored, key)
		urls = append(urls, s.blobStore.PublicURL(key))
	}
	return urls, nil
}

// batchKey returns key, or key with a -N suffix before its extension when
// an earlier file of the same batch already took it.
func batchKey(key string, taken map[string]bool) string {
	ext := path.Ext(key)
	base := strings.TrimSuffix(key, ext)
	candidate := key
	for n := 1; taken[candidate]; n++ {
		candidate = fmt.Sprintf("%s-%d%s", base, n, ext)
	}
	taken[candidate] = true
	return candidate
}

func (s *service) cleanupUploads(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.blobStore.Delete(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "Failed to remove partial upload", "key", key, "error", err)
		}
	}
}

// Helpers

func populatePost(ctx context.Context, tx Tx, post *Post) (*PostDetail, error) {
	detail := &PostDetail{
		ID:       post.ID,
		Title:    post.Title,
		Contents: post.Contents,
		FileURL:  post.FileURL,
		Creator:  CreatorRef{ID: post.Creator},
		Comments: post.Comments,
		Views:    post.Views,
		Date:     post.Date,
	}

	user, err := tx.GetUser(ctx, post.Creator)
	switch {
	case err == nil:
		detail.Creator.Name = user.Name
	case !errors.Is(err, ErrUserNotFound):
		return nil, err
	}

	if post.Category != "" {
		category, err := tx.GetCategory(ctx, post.Category)
		switch {
		case err == nil:
			detail.Category = &CategoryRef{ID: category.ID, CategoryName: category.CategoryName}
		case !errors.Is(err, ErrCategoryNotFound):
			return nil, err
		}
	}
	return detail, nil
}

func commentsOf(ctx context.Context, tx Tx, postID string) ([]*Comment, error) {
	post, err := tx.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	comments, err := tx.GetCommentsByIDs(ctx, post.Comments)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []*Comment{}
	}
	return comments, nil
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
