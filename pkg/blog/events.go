package blog

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) PostCreated(ctx context.Context, post *Post) error { return nil }
func (n *NoopEventSink) PostUpdated(ctx context.Context, post *Post) error { return nil }
func (n *NoopEventSink) PostDeleted(ctx context.Context, postID string) error { return nil }
func (n *NoopEventSink) CommentCreated(ctx context.Context, c *Comment) error { return nil }
func (n *NoopEventSink) CommentDeleted(ctx context.Context, commentID string) error { return nil }

// LoggingEventSink writes every event to a structured logger.
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates an event sink that logs through logger, or
// slog.Default() when logger is nil.
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) PostCreated(ctx context.Context, post *Post) error {
	l.logger.InfoContext(ctx, "post created", "post_id", post.ID, "creator", post.Creator, "category_id", post.Category)
	return nil
}

func (l *LoggingEventSink) PostUpdated(ctx context.Context, post *Post) error {
	l.logger.InfoContext(ctx, "post updated", "post_id", post.ID)
	return nil
}

func (l *LoggingEventSink) PostDeleted(ctx context.Context, postID string) error {
	l.logger.InfoContext(ctx, "post deleted", "post_id", postID)
	return nil
}

func (l *LoggingEventSink) CommentCreated(ctx context.Context, c *Comment) error {
	l.logger.InfoContext(ctx, "comment created", "comment_id", c.ID, "post_id", c.Post, "creator", c.Creator)
	return nil
}

func (l *LoggingEventSink) CommentDeleted(ctx context.Context, commentID string) error {
	l.logger.InfoContext(ctx, "comment deleted", "comment_id", commentID)
	return nil
}
