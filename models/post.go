package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Post struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title     string               `bson:"title" json:"title"`
	Content   string               `bson:"content" json:"content"`
	AuthorID  primitive.ObjectID   `bson:"authorId" json:"authorId"`
	Media     []string             `bson:"media" json:"media"`
	Tags      []string             `bson:"tags" json:"tags"`
	Mentions  []primitive.ObjectID `bson:"mentions" json:"mentions"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt" json:"updatedAt"`
}

type PostView struct {
	Post
	Author       UserSummary `json:"author"`
	LikeCount    int64       `json:"likeCount"`
	CommentCount int64       `json:"commentCount"`
	LikedByMe    bool        `json:"likedByMe"`
}

// PostQuery narrows a post listing. Zero values match everything.
type PostQuery struct {
	Search   string
	AuthorID *primitive.ObjectID
}

// Upload is a media file received from a client, already sniffed.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}
