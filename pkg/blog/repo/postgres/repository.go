package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-blog/pkg/blog"
)

// ErrDuplicate is returned when a unique constraint rejects a write,
// e.g. two concurrent posts racing to create the same category.
var ErrDuplicate = fmt.Errorf("duplicate entry: %w", blog.ErrConflict)

// DBTX is an interface that allows us to use either a connection pool or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

// Repository implements blog.Repository and blog.Tx using PostgreSQL.
// Back-references live in TEXT[] columns so push and pull map to
// array_append and array_remove.
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

func (r *Repository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx blog.Tx) error) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &Repository{db: tx})
	})
}

// View runs fn in a read-only repeatable-read transaction when the
// underlying handle can start one, so multi-query reads see one snapshot.
func (r *Repository) View(ctx context.Context, fn func(ctx context.Context, tx blog.Tx) error) error {
	starter, ok := r.db.(interface {
		BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error)
	})
	if !ok {
		return fn(ctx, r)
	}
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	return pgx.BeginTxFunc(ctx, starter, opts, func(tx pgx.Tx) error {
		return fn(ctx, &Repository{db: tx})
	})
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w (%s)", operation, ErrDuplicate, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) notFound(operation string, err error, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return r.handlePostgresError(operation, err)
}

func requireRow(tag pgconn.CommandTag, sentinel error) error {
	if tag.RowsAffected() == 0 {
		return sentinel
	}
	return nil
}

// Post operations

const postColumns = `id, title, contents, file_urls, creator_id, COALESCE(category_id, ''), comment_ids, views, date`

func scanPost(row pgx.Row) (*blog.Post, error) {
	var p blog.Post
	err := row.Scan(&p.ID, &p.Title, &p.Contents, &p.FileURL, &p.Creator,
		&p.Category, &p.Comments, &p.Views, &p.Date)
	if err != nil {
		return nil, err
	}
	p.Date = p.Date.UTC()
	return &p, nil
}

func collectPosts(rows pgx.Rows) ([]*blog.Post, error) {
	defer rows.Close()
	var result []*blog.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (r *Repository) CreatePost(ctx context.Context, post *blog.Post) error {
	query := `
		INSERT INTO blog.posts (
			id, title, contents, file_urls, creator_id, category_id, comment_ids, views, date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		post.ID, post.Title, post.Contents, nonNil(post.FileURL), post.Creator,
		nullable(post.Category), nonNil(post.Comments), post.Views, post.Date)
	if err != nil {
		return r.handlePostgresError("create post", err)
	}
	return nil
}

func (r *Repository) GetPost(ctx context.Context, id string) (*blog.Post, error) {
	query := `SELECT ` + postColumns + ` FROM blog.posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.notFound("get post", err, blog.ErrPostNotFound)
	}
	return post, nil
}

func (r *Repository) GetPostsByIDs(ctx context.Context, ids []string) ([]*blog.Post, error) {
	query := `
		SELECT p.id, p.title, p.contents, p.file_urls, p.creator_id, COALESCE(p.category_id, ''),
		       p.comment_ids, p.views, p.date
		FROM blog.posts p
		JOIN unnest($1::text[]) WITH ORDINALITY AS u(id, ord) ON p.id = u.id
		ORDER BY u.ord`

	rows, err := r.db.Query(ctx, query, nonNil(ids))
	if err != nil {
		return nil, r.handlePostgresError("get posts by ids", err)
	}
	return collectPosts(rows)
}

func (r *Repository) UpdatePost(ctx context.Context, post *blog.Post) error {
	query := `
		UPDATE blog.posts SET
			title = $2, contents = $3, file_urls = $4, category_id = $5,
			comment_ids = $6, views = $7, date = $8
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		post.ID, post.Title, post.Contents, nonNil(post.FileURL), nullable(post.Category),
		nonNil(post.Comments), post.Views, post.Date)
	if err != nil {
		return r.handlePostgresError("update post", err)
	}
	return requireRow(tag, blog.ErrPostNotFound)
}

func (r *Repository) IncrementPostViews(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE blog.posts SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("increment views", err)
	}
	return requireRow(tag, blog.ErrPostNotFound)
}

func (r *Repository) PushPostComment(ctx context.Context, postID, commentID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE blog.posts SET comment_ids = array_append(comment_ids, $2::text) WHERE id = $1`,
		postID, commentID)
	if err != nil {
		return r.handlePostgresError("push post comment", err)
	}
	return requireRow(tag, blog.ErrPostNotFound)
}

func (r *Repository) PullPostComment(ctx context.Context, postID, commentID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE blog.posts SET comment_ids = array_remove(comment_ids, $2::text) WHERE id = $1`,
		postID, commentID)
	if err != nil {
		return r.handlePostgresError("pull post comment", err)
	}
	return requireRow(tag, blog.ErrPostNotFound)
}

func (r *Repository) DeletePost(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM blog.posts WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete post", err)
	}
	return requireRow(tag, blog.ErrPostNotFound)
}

func (r *Repository) ListPosts(ctx context.Context, skip, limit int) ([]*blog.Post, error) {
	query := `SELECT ` + postColumns + ` FROM blog.posts ORDER BY date DESC, id DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, skip)
	if err != nil {
		return nil, r.handlePostgresError("list posts", err)
	}
	return collectPosts(rows)
}

func (r *Repository) CountPosts(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM blog.posts`).Scan(&count); err != nil {
		return 0, r.handlePostgresError("count posts", err)
	}
	return count, nil
}

// Category operations

const categoryColumns = `id, category_name, post_ids, created_at`

func scanCategory(row pgx.Row) (*blog.Category, error) {
	var c blog.Category
	if err := row.Scan(&c.ID, &c.CategoryName, &c.Posts, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, category *blog.Category) error {
	query := `INSERT INTO blog.categories (id, category_name, post_ids, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.Exec(ctx, query, category.ID, category.CategoryName, nonNil(category.Posts), category.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create category", err)
	}
	return nil
}

func (r *Repository) GetCategory(ctx context.Context, id string) (*blog.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM blog.categories WHERE id = $1`
	category, err := scanCategory(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.notFound("get category", err, blog.ErrCategoryNotFound)
	}
	return category, nil
}

func (r *Repository) FindCategoryByName(ctx context.Context, name string) (*blog.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM blog.categories WHERE category_name = $1`
	category, err := scanCategory(r.db.QueryRow(ctx, query, name))
	if err != nil {
		return nil, r.notFound("find category by name", err, blog.ErrCategoryNotFound)
	}
	return category, nil
}

// escapeLike makes pattern match literally inside an ILIKE expression.
func escapeLike(pattern string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(pattern)
}

func (r *Repository) FindCategoryMatching(ctx context.Context, pattern string) (*blog.Category, error) {
	query := `
		SELECT ` + categoryColumns + ` FROM blog.categories
		WHERE category_name ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY created_at, id
		LIMIT 1`
	category, err := scanCategory(r.db.QueryRow(ctx, query, escapeLike(pattern)))
	if err != nil {
		return nil, r.notFound("find category matching", err, blog.ErrCategoryNotFound)
	}
	return category, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]*blog.Category, error) {
	rows, err := r.db.Query(ctx, `SELECT `+categoryColumns+` FROM blog.categories ORDER BY created_at, id`)
	if err != nil {
		return nil, r.handlePostgresError("list categories", err)
	}
	defer rows.Close()

	var result []*blog.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *Repository) PushCategoryPost(ctx context.Context, categoryID, postID string) error {
	query := `
		UPDATE blog.categories
		SET post_ids = CASE WHEN $2::text = ANY(post_ids) THEN post_ids ELSE array_append(post_ids, $2::text) END
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, categoryID, postID)
	if err != nil {
		return r.handlePostgresError("push category post", err)
	}
	return requireRow(tag, blog.ErrCategoryNotFound)
}

func (r *Repository) PullCategoryPost(ctx context.Context, categoryID, postID string) (*blog.Category, error) {
	query := `
		UPDATE blog.categories SET post_ids = array_remove(post_ids, $2::text)
		WHERE id = $1
		RETURNING ` + categoryColumns
	category, err := scanCategory(r.db.QueryRow(ctx, query, categoryID, postID))
	if err != nil {
		return nil, r.notFound("pull category post", err, blog.ErrCategoryNotFound)
	}
	return category, nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM blog.categories WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete category", err)
	}
	return requireRow(tag, blog.ErrCategoryNotFound)
}

// Comment operations

const commentColumns = `id, contents, creator_id, creator_name, post_id, date`

func scanComment(row pgx.Row) (*blog.Comment, error) {
	var c blog.Comment
	if err := row.Scan(&c.ID, &c.Contents, &c.Creator, &c.CreatorName, &c.Post, &c.Date); err != nil {
		return nil, err
	}
	c.Date = c.Date.UTC()
	return &c, nil
}

func collectComments(rows pgx.Rows) ([]*blog.Comment, error) {
	defer rows.Close()
	var result []*blog.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *Repository) CreateComment(ctx context.Context, comment *blog.Comment) error {
	query := `
		INSERT INTO blog.comments (id, contents, creator_id, creator_name, post_id, date)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Exec(ctx, query,
		comment.ID, comment.Contents, comment.Creator, comment.CreatorName, comment.Post, comment.Date)
	if err != nil {
		return r.handlePostgresError("create comment", err)
	}
	return nil
}

func (r *Repository) GetComment(ctx context.Context, id string) (*blog.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM blog.comments WHERE id = $1`
	comment, err := scanComment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.notFound("get comment", err, blog.ErrCommentNotFound)
	}
	return comment, nil
}

func (r *Repository) GetCommentsByIDs(ctx context.Context, ids []string) ([]*blog.Comment, error) {
	query := `
		SELECT c.id, c.contents, c.creator_id, c.creator_name, c.post_id, c.date
		FROM blog.comments c
		JOIN unnest($1::text[]) WITH ORDINALITY AS u(id, ord) ON c.id = u.id
		ORDER BY u.ord`
	rows, err := r.db.Query(ctx, query, nonNil(ids))
	if err != nil {
		return nil, r.handlePostgresError("get comments by ids", err)
	}
	return collectComments(rows)
}

func (r *Repository) ListCommentsByPost(ctx context.Context, postID string) ([]*blog.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM blog.comments WHERE post_id = $1 ORDER BY date, id`
	rows, err := r.db.Query(ctx, query, postID)
	if err != nil {
		return nil, r.handlePostgresError("list comments by post", err)
	}
	return collectComments(rows)
}

func (r *Repository) DeleteComment(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM blog.comments WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete comment", err)
	}
	return requireRow(tag, blog.ErrCommentNotFound)
}

func (r *Repository) DeleteCommentsByPost(ctx context.Context, postID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM blog.comments WHERE post_id = $1`, postID); err != nil {
		return r.handlePostgresError("delete comments by post", err)
	}
	return nil
}

// User operations

func (r *Repository) GetUser(ctx context.Context, id string) (*blog.User, error) {
	var u blog.User
	err := r.db.QueryRow(ctx, `SELECT id, name, post_ids FROM blog.users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Posts)
	if err != nil {
		return nil, r.notFound("get user", err, blog.ErrUserNotFound)
	}

	rows, err := r.db.Query(ctx,
		`SELECT post_id, comment_id FROM blog.user_comments WHERE user_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, r.handlePostgresError("get user comments", err)
	}
	defer rows.Close()

	u.Comments = []blog.CommentRef{}
	for rows.Next() {
		var ref blog.CommentRef
		if err := rows.Scan(&ref.PostID, &ref.CommentID); err != nil {
			return nil, err
		}
		u.Comments = append(u.Comments, ref)
	}
	return &u, rows.Err()
}

func (r *Repository) ensureUser(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `INSERT INTO blog.users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id); err != nil {
		return r.handlePostgresError("ensure user", err)
	}
	return nil
}

func (r *Repository) UpsertUser(ctx context.Context, id, name string) error {
	query := `
		INSERT INTO blog.users AS u (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE u.name END`
	if _, err := r.db.Exec(ctx, query, id, name); err != nil {
		return r.handlePostgresError("upsert user", err)
	}
	return nil
}

func (r *Repository) PushUserPost(ctx context.Context, userID, postID string) error {
	query := `
		INSERT INTO blog.users AS u (id, post_ids) VALUES ($1, ARRAY[$2::text])
		ON CONFLICT (id) DO UPDATE
		SET post_ids = CASE WHEN $2::text = ANY(u.post_ids)
			THEN u.post_ids
			ELSE array_append(u.post_ids, $2::text) END`
	if _, err := r.db.Exec(ctx, query, userID, postID); err != nil {
		return r.handlePostgresError("push user post", err)
	}
	return nil
}

func (r *Repository) PullUserPost(ctx context.Context, userID, postID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE blog.users SET post_ids = array_remove(post_ids, $2::text) WHERE id = $1`, userID, postID)
	if err != nil {
		return r.handlePostgresError("pull user post", err)
	}
	_, err = r.db.Exec(ctx,
		`DELETE FROM blog.user_comments WHERE user_id = $1 AND post_id = $2`, userID, postID)
	if err != nil {
		return r.handlePostgresError("pull user post comments", err)
	}
	return nil
}

func (r *Repository) PushUserComment(ctx context.Context, userID string, ref blog.CommentRef) error {
	if err := r.ensureUser(ctx, userID); err != nil {
		return err
	}
	query := `
		INSERT INTO blog.user_comments (user_id, post_id, comment_id) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, comment_id) DO NOTHING`
	if _, err := r.db.Exec(ctx, query, userID, ref.PostID, ref.CommentID); err != nil {
		return r.handlePostgresError("push user comment", err)
	}
	return nil
}

func (r *Repository) PullUserComment(ctx context.Context, userID, commentID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM blog.user_comments WHERE user_id = $1 AND comment_id = $2`, userID, commentID)
	if err != nil {
		return r.handlePostgresError("pull user comment", err)
	}
	return nil
}

var (
	_ blog.Repository = (*Repository)(nil)
	_ blog.Tx         = (*Repository)(nil)
)
