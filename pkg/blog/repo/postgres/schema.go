package postgres

import (
	"context"
	"fmt"
)

// schemaStatements create the blog schema. Every statement is idempotent.
var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS blog`,
	`CREATE TABLE IF NOT EXISTS blog.users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		post_ids TEXT[] NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS blog.categories (
		id TEXT PRIMARY KEY,
		category_name TEXT NOT NULL,
		post_ids TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT unique_category_name UNIQUE (category_name)
	)`,
	`CREATE TABLE IF NOT EXISTS blog.posts (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		contents TEXT NOT NULL DEFAULT '',
		file_urls TEXT[] NOT NULL DEFAULT '{}',
		creator_id TEXT NOT NULL,
		category_id TEXT,
		comment_ids TEXT[] NOT NULL DEFAULT '{}',
		views BIGINT NOT NULL DEFAULT 0 CHECK (views >= 0),
		date TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS posts_date_idx ON blog.posts (date DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS blog.comments (
		id TEXT PRIMARY KEY,
		contents TEXT NOT NULL,
		creator_id TEXT NOT NULL,
		creator_name TEXT NOT NULL DEFAULT '',
		post_id TEXT NOT NULL,
		date TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS comments_post_idx ON blog.comments (post_id)`,
	`CREATE TABLE IF NOT EXISTS blog.user_comments (
		position BIGSERIAL,
		user_id TEXT NOT NULL,
		post_id TEXT NOT NULL,
		comment_id TEXT NOT NULL,
		CONSTRAINT unique_user_comment PRIMARY KEY (user_id, comment_id)
	)`,
}

// Migrate creates the tables the repository needs if they are missing.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return r.handlePostgresError("migrate", err)
		}
	}
	return nil
}

// Truncate removes all rows. Intended for tests.
func (r *Repository) Truncate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `TRUNCATE blog.user_comments, blog.comments, blog.posts, blog.categories, blog.users`)
	if err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	return nil
}
