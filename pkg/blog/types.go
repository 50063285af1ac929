package blog

import "time"

// DefaultPageSize is the number of posts returned by ListPosts unless
// overridden with WithPageSize.
const DefaultPageSize = 6

// Upload limits for UploadImages.
const (
	MaxUploadFiles    = 5
	MaxUploadFileSize = 100 << 20
)

// Post is a blog entry owned by a user. Category holds a single category id.
type Post struct {
	ID       string    `json:"_id" bson:"_id"`
	Title    string    `json:"title" bson:"title"`
	Contents string    `json:"contents" bson:"contents"`
	FileURL  []string  `json:"fileUrl" bson:"fileUrl"`
	Creator  string    `json:"creator" bson:"creator"`
	Category string    `json:"category,omitempty" bson:"category,omitempty"`
	Comments []string  `json:"comments" bson:"comments"`
	Views    int64     `json:"views" bson:"views"`
	Date     time.Time `json:"date" bson:"date"`
}

// Category groups posts under a name. A category with no posts is removed.
type Category struct {
	ID           string    `json:"_id" bson:"_id"`
	CategoryName string    `json:"categoryName" bson:"categoryName"`
	Posts        []string  `json:"posts" bson:"posts"`
	CreatedAt    time.Time `json:"-" bson:"createdAt"`
}

// Comment is attached to exactly one post.
type Comment struct {
	ID          string    `json:"_id" bson:"_id"`
	Contents    string    `json:"contents" bson:"contents"`
	Creator     string    `json:"creator" bson:"creator"`
	CreatorName string    `json:"creatorName" bson:"creatorName"`
	Post        string    `json:"post" bson:"post"`
	Date        time.Time `json:"date" bson:"date"`
}

// CommentRef is the back-reference a user keeps for every comment they wrote.
type CommentRef struct {
	PostID    string `json:"post_id" bson:"post_id"`
	CommentID string `json:"comment_id" bson:"comment_id"`
}

// User carries the display name and the denormalized ownership sets.
type User struct {
	ID       string       `json:"_id" bson:"_id"`
	Name     string       `json:"name" bson:"name"`
	Posts    []string     `json:"posts" bson:"posts"`
	Comments []CommentRef `json:"comments" bson:"comments"`
}

// CreatorRef is a populated creator reference.
type CreatorRef struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// CategoryRef is a populated category reference.
type CategoryRef struct {
	ID           string `json:"_id"`
	CategoryName string `json:"categoryName"`
}

// PostDetail is a post with its creator and category resolved.
type PostDetail struct {
	ID       string       `json:"_id"`
	Title    string       `json:"title"`
	Contents string       `json:"contents"`
	FileURL  []string     `json:"fileUrl"`
	Creator  CreatorRef   `json:"creator"`
	Category *CategoryRef `json:"category,omitempty"`
	Comments []string     `json:"comments"`
	Views    int64        `json:"views"`
	Date     time.Time    `json:"date"`
}

// PostPage is one page of the post listing.
type PostPage struct {
	Posts      []*Post     `json:"postFindResult"`
	Categories []*Category `json:"categoryFindResult"`
	TotalCount int64       `json:"postCount"`
}

// CategoryDetail is a category with its posts populated, in the order the
// category references them.
type CategoryDetail struct {
	ID           string  `json:"_id"`
	CategoryName string  `json:"categoryName"`
	Posts        []*Post `json:"posts"`
}
