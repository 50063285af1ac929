package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/tendant/simple-blog/pkg/blog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	postsCollection      = "posts"
	categoriesCollection = "categories"
	commentsCollection   = "comments"
	usersCollection      = "users"
)

// ErrDuplicate is returned when a unique index rejects a write.
var ErrDuplicate = fmt.Errorf("duplicate entry: %w", blog.ErrConflict)

// Repository implements blog.Repository on MongoDB. RunInTx uses
// multi-document transactions, which require a replica set or sharded
// cluster.
type Repository struct {
	client *mongo.Client
	db     *mongo.Database
}

// New wraps an already connected client
func New(client *mongo.Client, database string) *Repository {
	return &Repository{client: client, db: client.Database(database)}
}

// Connect dials uri and returns a repository over database
func Connect(ctx context.Context, uri, database string) (*Repository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return New(client, database), nil
}

// Close disconnects the underlying client
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes queries rely on. Safe to call repeatedly.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		categoriesCollection: {
			{Keys: bson.D{{Key: "categoryName", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}},
		},
		postsCollection: {
			{Keys: bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}}},
		},
		commentsCollection: {
			{Keys: bson.D{{Key: "post", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := r.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// Drop removes every collection. Intended for tests.
func (r *Repository) Drop(ctx context.Context) error {
	for _, name := range []string{postsCollection, categoriesCollection, commentsCollection, usersCollection} {
		if err := r.db.Collection(name).Drop(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx blog.Tx) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, &tx{db: r.db})
	})
	return err
}

func (r *Repository) View(ctx context.Context, fn func(ctx context.Context, tx blog.Tx) error) error {
	return fn(ctx, &tx{db: r.db})
}

type tx struct {
	db *mongo.Database
}

func (t *tx) posts() *mongo.Collection      { return t.db.Collection(postsCollection) }
func (t *tx) categories() *mongo.Collection { return t.db.Collection(categoriesCollection) }
func (t *tx) comments() *mongo.Collection   { return t.db.Collection(commentsCollection) }
func (t *tx) users() *mongo.Collection      { return t.db.Collection(usersCollection) }

func wrap(operation string, err error, notFound error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return notFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", operation, ErrDuplicate)
	default:
		return fmt.Errorf("mongo error in %s: %w", operation, err)
	}
}

func matched(res *mongo.UpdateResult, notFound error) error {
	if res.MatchedCount == 0 {
		return notFound
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func byID(id string) bson.M {
	return bson.M{"_id": id}
}

// Post operations

func (t *tx) CreatePost(ctx context.Context, post *blog.Post) error {
	doc := *post
	doc.FileURL = nonNil(post.FileURL)
	doc.Comments = nonNil(post.Comments)
	if _, err := t.posts().InsertOne(ctx, &doc); err != nil {
		return wrap("create post", err, blog.ErrPostNotFound)
	}
	return nil
}

func (t *tx) GetPost(ctx context.Context, id string) (*blog.Post, error) {
	var post blog.Post
	if err := t.posts().FindOne(ctx, byID(id)).Decode(&post); err != nil {
		return nil, wrap("get post", err, blog.ErrPostNotFound)
	}
	return &post, nil
}

func (t *tx) GetPostsByIDs(ctx context.Context, ids []string) ([]*blog.Post, error) {
	result := make([]*blog.Post, 0, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	cursor, err := t.posts().Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, wrap("get posts by ids", err, nil)
	}
	var found []*blog.Post
	if err := cursor.All(ctx, &found); err != nil {
		return nil, wrap("get posts by ids", err, nil)
	}

	index := make(map[string]*blog.Post, len(found))
	for _, p := range found {
		index[p.ID] = p
	}
	for _, id := range ids {
		if p, ok := index[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

func (t *tx) UpdatePost(ctx context.Context, post *blog.Post) error {
	doc := *post
	doc.FileURL = nonNil(post.FileURL)
	doc.Comments = nonNil(post.Comments)
	res, err := t.posts().ReplaceOne(ctx, byID(post.ID), &doc)
	if err != nil {
		return wrap("update post", err, blog.ErrPostNotFound)
	}
	return matched(res, blog.ErrPostNotFound)
}

func (t *tx) updatePost(ctx context.Context, operation, id string, update bson.M) error {
	res, err := t.posts().UpdateOne(ctx, byID(id), update)
	if err != nil {
		return wrap(operation, err, blog.ErrPostNotFound)
	}
	return matched(res, blog.ErrPostNotFound)
}

func (t *tx) IncrementPostViews(ctx context.Context, id string) error {
	return t.updatePost(ctx, "increment views", id, bson.M{"$inc": bson.M{"views": 1}})
}

func (t *tx) PushPostComment(ctx context.Context, postID, commentID string) error {
	return t.updatePost(ctx, "push post comment", postID, bson.M{"$push": bson.M{"comments": commentID}})
}

func (t *tx) PullPostComment(ctx context.Context, postID, commentID string) error {
	return t.updatePost(ctx, "pull post comment", postID, bson.M{"$pull": bson.M{"comments": commentID}})
}

func (t *tx) DeletePost(ctx context.Context, id string) error {
	res, err := t.posts().DeleteOne(ctx, byID(id))
	if err != nil {
		return wrap("delete post", err, blog.ErrPostNotFound)
	}
	if res.DeletedCount == 0 {
		return blog.ErrPostNotFound
	}
	return nil
}

func (t *tx) ListPosts(ctx context.Context, skip, limit int) ([]*blog.Post, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(skip))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := t.posts().Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, wrap("list posts", err, nil)
	}
	var posts []*blog.Post
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, wrap("list posts", err, nil)
	}
	return posts, nil
}

func (t *tx) CountPosts(ctx context.Context) (int64, error) {
	count, err := t.posts().CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, wrap("count posts", err, nil)
	}
	return count, nil
}

// Category operations

func (t *tx) CreateCategory(ctx context.Context, category *blog.Category) error {
	doc := *category
	doc.Posts = nonNil(category.Posts)
	if _, err := t.categories().InsertOne(ctx, &doc); err != nil {
		return wrap("create category", err, blog.ErrCategoryNotFound)
	}
	return nil
}

func (t *tx) findCategory(ctx context.Context, operation string, filter interface{}, opts ...*options.FindOneOptions) (*blog.Category, error) {
	var category blog.Category
	if err := t.categories().FindOne(ctx, filter, opts...).Decode(&category); err != nil {
		return nil, wrap(operation, err, blog.ErrCategoryNotFound)
	}
	return &category, nil
}

func (t *tx) GetCategory(ctx context.Context, id string) (*blog.Category, error) {
	return t.findCategory(ctx, "get category", byID(id))
}

func (t *tx) FindCategoryByName(ctx context.Context, name string) (*blog.Category, error) {
	return t.findCategory(ctx, "find category by name", bson.M{"categoryName": name})
}

func (t *tx) FindCategoryMatching(ctx context.Context, pattern string) (*blog.Category, error) {
	filter := bson.M{"categoryName": bson.M{"$regex": primitive.Regex{
		Pattern: regexp.QuoteMeta(pattern),
		Options: "i",
	}}}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	return t.findCategory(ctx, "find category matching", filter, opts)
}

func (t *tx) ListCategories(ctx context.Context) ([]*blog.Category, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := t.categories().Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, wrap("list categories", err, nil)
	}
	var categories []*blog.Category
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, wrap("list categories", err, nil)
	}
	return categories, nil
}

func (t *tx) PushCategoryPost(ctx context.Context, categoryID, postID string) error {
	res, err := t.categories().UpdateOne(ctx, byID(categoryID), bson.M{"$addToSet": bson.M{"posts": postID}})
	if err != nil {
		return wrap("push category post", err, blog.ErrCategoryNotFound)
	}
	return matched(res, blog.ErrCategoryNotFound)
}

func (t *tx) PullCategoryPost(ctx context.Context, categoryID, postID string) (*blog.Category, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var category blog.Category
	err := t.categories().FindOneAndUpdate(ctx, byID(categoryID),
		bson.M{"$pull": bson.M{"posts": postID}}, opts).Decode(&category)
	if err != nil {
		return nil, wrap("pull category post", err, blog.ErrCategoryNotFound)
	}
	return &category, nil
}

func (t *tx) DeleteCategory(ctx context.Context, id string) error {
	res, err := t.categories().DeleteOne(ctx, byID(id))
	if err != nil {
		return wrap("delete category", err, blog.ErrCategoryNotFound)
	}
	if res.DeletedCount == 0 {
		return blog.ErrCategoryNotFound
	}
	return nil
}

// Comment operations

func (t *tx) CreateComment(ctx context.Context, comment *blog.Comment) error {
	if _, err := t.comments().InsertOne(ctx, comment); err != nil {
		return wrap("create comment", err, blog.ErrCommentNotFound)
	}
	return nil
}

func (t *tx) GetComment(ctx context.Context, id string) (*blog.Comment, error) {
	var comment blog.Comment
	if err := t.comments().FindOne(ctx, byID(id)).Decode(&comment); err != nil {
		return nil, wrap("get comment", err, blog.ErrCommentNotFound)
	}
	return &comment, nil
}

func (t *tx) GetCommentsByIDs(ctx context.Context, ids []string) ([]*blog.Comment, error) {
	result := make([]*blog.Comment, 0, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	cursor, err := t.comments().Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, wrap("get comments by ids", err, nil)
	}
	var found []*blog.Comment
	if err := cursor.All(ctx, &found); err != nil {
		return nil, wrap("get comments by ids", err, nil)
	}

	index := make(map[string]*blog.Comment, len(found))
	for _, c := range found {
		index[c.ID] = c
	}
	for _, id := range ids {
		if c, ok := index[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

func (t *tx) ListCommentsByPost(ctx context.Context, postID string) ([]*blog.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := t.comments().Find(ctx, bson.M{"post": postID}, opts)
	if err != nil {
		return nil, wrap("list comments by post", err, nil)
	}
	var comments []*blog.Comment
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, wrap("list comments by post", err, nil)
	}
	return comments, nil
}

func (t *tx) DeleteComment(ctx context.Context, id string) error {
	res, err := t.comments().DeleteOne(ctx, byID(id))
	if err != nil {
		return wrap("delete comment", err, blog.ErrCommentNotFound)
	}
	if res.DeletedCount == 0 {
		return blog.ErrCommentNotFound
	}
	return nil
}

func (t *tx) DeleteCommentsByPost(ctx context.Context, postID string) error {
	if _, err := t.comments().DeleteMany(ctx, bson.M{"post": postID}); err != nil {
		return wrap("delete comments by post", err, nil)
	}
	return nil
}

// User operations

func (t *tx) GetUser(ctx context.Context, id string) (*blog.User, error) {
	var user blog.User
	if err := t.users().FindOne(ctx, byID(id)).Decode(&user); err != nil {
		return nil, wrap("get user", err, blog.ErrUserNotFound)
	}
	if user.Posts == nil {
		user.Posts = []string{}
	}
	if user.Comments == nil {
		user.Comments = []blog.CommentRef{}
	}
	return &user, nil
}

func (t *tx) upsertUser(ctx context.Context, operation, id string, update bson.M) error {
	_, err := t.users().UpdateOne(ctx, byID(id), update, options.Update().SetUpsert(true))
	if err != nil {
		return wrap(operation, err, blog.ErrUserNotFound)
	}
	return nil
}

func (t *tx) UpsertUser(ctx context.Context, id, name string) error {
	if name == "" {
		return t.upsertUser(ctx, "upsert user", id, bson.M{
			"$setOnInsert": bson.M{"name": "", "posts": bson.A{}, "comments": bson.A{}},
		})
	}
	return t.upsertUser(ctx, "upsert user", id, bson.M{
		"$set":         bson.M{"name": name},
		"$setOnInsert": bson.M{"posts": bson.A{}, "comments": bson.A{}},
	})
}

func (t *tx) PushUserPost(ctx context.Context, userID, postID string) error {
	return t.upsertUser(ctx, "push user post", userID, bson.M{
		"$addToSet":    bson.M{"posts": postID},
		"$setOnInsert": bson.M{"name": "", "comments": bson.A{}},
	})
}

func (t *tx) PullUserPost(ctx context.Context, userID, postID string) error {
	_, err := t.users().UpdateOne(ctx, byID(userID), bson.M{"$pull": bson.M{
		"posts":    postID,
		"comments": bson.M{"post_id": postID},
	}})
	if err != nil {
		return wrap("pull user post", err, nil)
	}
	return nil
}

func (t *tx) PushUserComment(ctx context.Context, userID string, ref blog.CommentRef) error {
	return t.upsertUser(ctx, "push user comment", userID, bson.M{
		"$push":        bson.M{"comments": ref},
		"$setOnInsert": bson.M{"name": "", "posts": bson.A{}},
	})
}

func (t *tx) PullUserComment(ctx context.Context, userID, commentID string) error {
	_, err := t.users().UpdateOne(ctx, byID(userID), bson.M{"$pull": bson.M{
		"comments": bson.M{"comment_id": commentID},
	}})
	if err != nil {
		return wrap("pull user comment", err, nil)
	}
	return nil
}

var _ blog.Repository = (*Repository)(nil)
