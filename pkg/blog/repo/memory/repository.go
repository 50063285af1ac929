package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/tendant/simple-blog/pkg/blog"
	"golang.org/x/exp/slices"
)

var errReadOnly = errors.New("write attempted in read-only view")

// Repository implements blog.Repository using in-memory storage.
// Transactions run one at a time against a copy of the data that replaces
// the live copy only when the transaction function succeeds.
type Repository struct {
	mu    sync.RWMutex
	state *state
}

type state struct {
	posts         map[string]*blog.Post
	postOrder     []string // insertion order
	categories    map[string]*blog.Category
	categoryOrder []string // creation order
	comments      map[string]*blog.Comment
	users         map[string]*blog.User
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{state: newState()}
}

func newState() *state {
	return &state{
		posts:      make(map[string]*blog.Post),
		categories: make(map[string]*blog.Category),
		comments:   make(map[string]*blog.Comment),
		users:      make(map[string]*blog.User),
	}
}

func (r *Repository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx blog.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := r.state.clone()
	if err := fn(ctx, &tx{s: working}); err != nil {
		return err
	}
	r.state = working
	return nil
}

func (r *Repository) View(ctx context.Context, fn func(ctx context.Context, tx blog.Tx) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, &tx{s: r.state, readOnly: true})
}

func (s *state) clone() *state {
	c := newState()
	for id, p := range s.posts {
		c.posts[id] = copyPost(p)
	}
	for id, cat := range s.categories {
		c.categories[id] = copyCategory(cat)
	}
	for id, cm := range s.comments {
		cmCopy := *cm
		c.comments[id] = &cmCopy
	}
	for id, u := range s.users {
		c.users[id] = copyUser(u)
	}
	c.postOrder = slices.Clone(s.postOrder)
	c.categoryOrder = slices.Clone(s.categoryOrder)
	return c
}

func copyPost(p *blog.Post) *blog.Post {
	postCopy := *p
	postCopy.FileURL = cloneStrings(p.FileURL)
	postCopy.Comments = cloneStrings(p.Comments)
	return &postCopy
}

func copyCategory(c *blog.Category) *blog.Category {
	categoryCopy := *c
	categoryCopy.Posts = cloneStrings(c.Posts)
	return &categoryCopy
}

func copyUser(u *blog.User) *blog.User {
	userCopy := *u
	userCopy.Posts = cloneStrings(u.Posts)
	userCopy.Comments = append([]blog.CommentRef{}, u.Comments...)
	return &userCopy
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return slices.Clone(in)
}

// tx is a view over one state snapshot.
type tx struct {
	s        *state
	readOnly bool
}

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

// Post operations

func (t *tx) CreatePost(ctx context.Context, post *blog.Post) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.s.posts[post.ID]; exists {
		return blog.ErrInvalidInput
	}
	t.s.posts[post.ID] = copyPost(post)
	t.s.postOrder = append(t.s.postOrder, post.ID)
	return nil
}

func (t *tx) GetPost(ctx context.Context, id string) (*blog.Post, error) {
	post, exists := t.s.posts[id]
	if !exists {
		return nil, blog.ErrPostNotFound
	}
	return copyPost(post), nil
}

func (t *tx) GetPostsByIDs(ctx context.Context, ids []string) ([]*blog.Post, error) {
	result := make([]*blog.Post, 0, len(ids))
	for _, id := range ids {
		if post, exists := t.s.posts[id]; exists {
			result = append(result, copyPost(post))
		}
	}
	return result, nil
}

func (t *tx) UpdatePost(ctx context.Context, post *blog.Post) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.s.posts[post.ID]; !exists {
		return blog.ErrPostNotFound
	}
	t.s.posts[post.ID] = copyPost(post)
	return nil
}

func (t *tx) IncrementPostViews(ctx context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	post, exists := t.s.posts[id]
	if !exists {
		return blog.ErrPostNotFound
	}
	post.Views++
	return nil
}

func (t *tx) PushPostComment(ctx context.Context, postID, commentID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	post, exists := t.s.posts[postID]
	if !exists {
		return blog.ErrPostNotFound
	}
	post.Comments = append(post.Comments, commentID)
	return nil
}

func (t *tx) PullPostComment(ctx context.Context, postID, commentID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	post, exists := t.s.posts[postID]
	if !exists {
		return blog.ErrPostNotFound
	}
	post.Comments = removeString(post.Comments, commentID)
	return nil
}

func (t *tx) DeletePost(ctx context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.s.posts[id]; !exists {
		return blog.ErrPostNotFound
	}
	delete(t.s.posts, id)
	t.s.postOrder = removeString(t.s.postOrder, id)
	return nil
}

func (t *tx) ListPosts(ctx context.Context, skip, limit int) ([]*blog.Post, error) {
	// Newest insertion first so equal dates keep a stable, recent-first order.
	ordered := make([]*blog.Post, 0, len(t.s.postOrder))
	for i := len(t.s.postOrder) - 1; i >= 0; i-- {
		ordered = append(ordered, t.s.posts[t.s.postOrder[i]])
	}
	slices.SortStableFunc(ordered, func(a, b *blog.Post) int {
		return b.Date.Compare(a.Date)
	})

	if skip >= len(ordered) {
		return []*blog.Post{}, nil
	}
	end := len(ordered)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}

	result := make([]*blog.Post, 0, end-skip)
	for _, post := range ordered[skip:end] {
		result = append(result, copyPost(post))
	}
	return result, nil
}

func (t *tx) CountPosts(ctx context.Context) (int64, error) {
	return int64(len(t.s.posts)), nil
}

// Category operations

func (t *tx) CreateCategory(ctx context.Context, category *blog.Category) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.s.categories[category.ID]; exists {
		return blog.ErrInvalidInput
	}
	t.s.categories[category.ID] = copyCategory(category)
	t.s.categoryOrder = append(t.s.categoryOrder, category.ID)
	return nil
}

func (t *tx) GetCategory(ctx context.Context, id string) (*blog.Category, error) {
	category, exists := t.s.categories[id]
	if !exists {
		return nil, blog.ErrCategoryNotFound
	}
	return copyCategory(category), nil
}

func (t *tx) FindCategoryByName(ctx context.Context, name string) (*blog.Category, error) {
	for _, id := range t.s.categoryOrder {
		if category := t.s.categories[id]; category.CategoryName == name {
			return copyCategory(category), nil
		}
	}
	return nil, blog.ErrCategoryNotFound
}

func (t *tx) FindCategoryMatching(ctx context.Context, pattern string) (*blog.Category, error) {
	needle := strings.ToLower(pattern)
	for _, id := range t.s.categoryOrder {
		category := t.s.categories[id]
		if strings.Contains(strings.ToLower(category.CategoryName), needle) {
			return copyCategory(category), nil
		}
	}
	return nil, blog.ErrCategoryNotFound
}

func (t *tx) ListCategories(ctx context.Context) ([]*blog.Category, error) {
	result := make([]*blog.Category, 0, len(t.s.categoryOrder))
	for _, id := range t.s.categoryOrder {
		result = append(result, copyCategory(t.s.categories[id]))
	}
	return result, nil
}

func (t *tx) PushCategoryPost(ctx context.Context, categoryID, postID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	category, exists := t.s.categories[categoryID]
	if !exists {
		return blog.ErrCategoryNotFound
	}
	if !slices.Contains(category.Posts, postID) {
		category.Posts = append(category.Posts, postID)
	}
	return nil
}

func (t *tx) PullCategoryPost(ctx context.Context, categoryID, postID string) (*blog.Category, error) {
	if err := t.writable(); err != nil {
		return nil, err
	}
	category, exists := t.s.categories[categoryID]
	if !exists {
		return nil, blog.ErrCategoryNotFound
	}
	category.Posts = removeString(category.Posts, postID)
	return copyCategory(category), nil
}

func (t *tx) DeleteCategory(ctx context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.s.categories[id]; !exists {
		return blog.ErrCategoryNotFound
	}
	delete(t.s.categories, id)
	t.s.categoryOrder = removeString(t.s.categoryOrder, id)
	return nil
}

// Comment operations

func (t *tx) CreateComment(ctx context.Context, comment *blog.Comment) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.s.comments[comment.ID]; exists {
		return blog.ErrInvalidInput
	}
	commentCopy := *comment
	t.s.comments[comment.ID] = &commentCopy
	return nil
}

func (t *tx) GetComment(ctx context.Context, id string) (*blog.Comment, error) {
	comment, exists := t.s.comments[id]
	if !exists {
		return nil, blog.ErrCommentNotFound
	}
	commentCopy := *comment
	return &commentCopy, nil
}

func (t *tx) GetCommentsByIDs(ctx context.Context, ids []string) ([]*blog.Comment, error) {
	result := make([]*blog.Comment, 0, len(ids))
	for _, id := range ids {
		if comment, exists := t.s.comments[id]; exists {
			commentCopy := *comment
			result = append(result, &commentCopy)
		}
	}
	return result, nil
}

func (t *tx) ListCommentsByPost(ctx context.Context, postID string) ([]*blog.Comment, error) {
	var result []*blog.Comment
	for _, comment := range t.s.comments {
		if comment.Post == postID {
			commentCopy := *comment
			result = append(result, &commentCopy)
		}
	}
	slices.SortStableFunc(result, func(a, b *blog.Comment) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}

func (t *tx) DeleteComment(ctx context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.s.comments[id]; !exists {
		return blog.ErrCommentNotFound
	}
	delete(t.s.comments, id)
	return nil
}

func (t *tx) DeleteCommentsByPost(ctx context.Context, postID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	for id, comment := range t.s.comments {
		if comment.Post == postID {
			delete(t.s.comments, id)
		}
	}
	return nil
}

// User operations

func (t *tx) GetUser(ctx context.Context, id string) (*blog.User, error) {
	user, exists := t.s.users[id]
	if !exists {
		return nil, blog.ErrUserNotFound
	}
	return copyUser(user), nil
}

func (t *tx) user(id string) *blog.User {
	user, exists := t.s.users[id]
	if !exists {
		user = &blog.User{ID: id, Posts: []string{}, Comments: []blog.CommentRef{}}
		t.s.users[id] = user
	}
	return user
}

func (t *tx) UpsertUser(ctx context.Context, id, name string) error {
	if err := t.writable(); err != nil {
		return err
	}
	user := t.user(id)
	if name != "" {
		user.Name = name
	}
	return nil
}

func (t *tx) PushUserPost(ctx context.Context, userID, postID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	user := t.user(userID)
	if !slices.Contains(user.Posts, postID) {
		user.Posts = append(user.Posts, postID)
	}
	return nil
}

func (t *tx) PullUserPost(ctx context.Context, userID, postID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	user, exists := t.s.users[userID]
	if !exists {
		return nil
	}
	user.Posts = removeString(user.Posts, postID)
	user.Comments = slices.DeleteFunc(user.Comments, func(ref blog.CommentRef) bool {
		return ref.PostID == postID
	})
	return nil
}

func (t *tx) PushUserComment(ctx context.Context, userID string, ref blog.CommentRef) error {
	if err := t.writable(); err != nil {
		return err
	}
	user := t.user(userID)
	user.Comments = append(user.Comments, ref)
	return nil
}

func (t *tx) PullUserComment(ctx context.Context, userID, commentID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	user, exists := t.s.users[userID]
	if !exists {
		return nil
	}
	user.Comments = slices.DeleteFunc(user.Comments, func(ref blog.CommentRef) bool {
		return ref.CommentID == commentID
	})
	return nil
}

func removeString(list []string, v string) []string {
	return slices.DeleteFunc(list, func(s string) bool { return s == v })
}

var _ blog.Repository = (*Repository)(nil)
