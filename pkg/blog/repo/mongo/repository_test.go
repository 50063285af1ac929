package mongo_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-blog/pkg/blog"
	"github.com/tendant/simple-blog/pkg/blog/repo/mongo"
)

// setupMongo needs a replica set, e.g.
// TEST_MONGO_URL=mongodb://localhost:27017/?replicaSet=rs0
func setupMongo(t *testing.T) *mongo.Repository {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping mongo test in short mode")
	}
	uri := os.Getenv("TEST_MONGO_URL")
	if uri == "" {
		t.Skip("Skipping mongo test. Set TEST_MONGO_URL to run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	database := fmt.Sprintf("simple_blog_test_%d", time.Now().UnixNano())
	repo, err := mongo.Connect(ctx, uri, database)
	require.NoError(t, err)
	require.NoError(t, repo.EnsureIndexes(ctx))

	t.Cleanup(func() {
		ctx := context.Background()
		_ = repo.Drop(ctx)
		_ = repo.Close(ctx)
	})
	return repo
}

func TestMongoRepository_RollbackOnError(t *testing.T) {
	repo := setupMongo(t)
	ctx := context.Background()
	post := &blog.Post{ID: uuid.NewString(), Title: "A", Creator: "user1", Date: time.Now().UTC()}

	boom := errors.New("boom")
	err := repo.RunInTx(ctx, func(ctx context.Context, tx blog.Tx) error {
		require.NoError(t, tx.CreatePost(ctx, post))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, repo.View(ctx, func(ctx context.Context, tx blog.Tx) error {
		_, err := tx.GetPost(ctx, post.ID)
		assert.ErrorIs(t, err, blog.ErrPostNotFound)
		return nil
	}))
}

func TestMongoRepository_UserReferences(t *testing.T) {
	repo := setupMongo(t)
	ctx := context.Background()

	require.NoError(t, repo.RunInTx(ctx, func(ctx context.Context, tx blog.Tx) error {
		require.NoError(t, tx.UpsertUser(ctx, "u1", "Alice"))
		require.NoError(t, tx.PushUserPost(ctx, "u1", "p1"))
		require.NoError(t, tx.PushUserPost(ctx, "u1", "p1"))
		require.NoError(t, tx.PushUserComment(ctx, "u1", blog.CommentRef{PostID: "p1", CommentID: "c1"}))
		require.NoError(t, tx.PushUserComment(ctx, "u1", blog.CommentRef{PostID: "p2", CommentID: "c2"}))
		return tx.PullUserPost(ctx, "u1", "p1")
	}))

	require.NoError(t, repo.View(ctx, func(ctx context.Context, tx blog.Tx) error {
		user, err := tx.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "Alice", user.Name)
		assert.Empty(t, user.Posts)
		assert.Equal(t, []blog.CommentRef{{PostID: "p2", CommentID: "c2"}}, user.Comments)
		return nil
	}))
}

func TestMongoRepository_ServiceIntegration(t *testing.T) {
	repo := setupMongo(t)
	ctx := context.Background()
	svc, err := blog.New(blog.WithRepository(repo))
	require.NoError(t, err)

	a, err := svc.CreatePost(ctx, blog.CreatePostRequest{Title: "A", Contents: "body", CreatorID: "user1", CategoryName: "C++"})
	require.NoError(t, err)

	detail, err := svc.GetPost(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), detail.Views)

	comment, err := svc.AddComment(ctx, blog.AddCommentRequest{PostID: a.ID, AuthorID: "user2", Contents: "hi"})
	require.NoError(t, err)

	category, err := svc.FindCategory(ctx, "c++")
	require.NoError(t, err)
	require.NotNil(t, category)
	assert.Equal(t, "C++", category.CategoryName)

	remaining, err := svc.DeleteComment(ctx, a.ID, comment.ID, "user2")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	require.NoError(t, svc.DeletePost(ctx, a.ID, "user1"))
	category, err = svc.FindCategory(ctx, "c++")
	require.NoError(t, err)
	assert.Nil(t, category)
}

func TestMongoRepository_ConcurrentNewCategory(t *testing.T) {
	repo := setupMongo(t)
	ctx := context.Background()
	svc, err := blog.New(blog.WithRepository(repo))
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreatePost(ctx, blog.CreatePostRequest{
				Title:        fmt.Sprintf("Post %d", i),
				Contents:     "body",
				CreatorID:    fmt.Sprintf("user%d", i),
				CategoryName: "Race",
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "writer %d", i)
	}

	require.NoError(t, repo.View(ctx, func(ctx context.Context, tx blog.Tx) error {
		categories, err := tx.ListCategories(ctx)
		require.NoError(t, err)
		assert.Len(t, categories, 1)
		return nil
	}))

	detail, err := svc.FindCategory(ctx, "race")
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Len(t, detail.Posts, writers)
}
