package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Comment struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	PostID    primitive.ObjectID   `bson:"postId" json:"postId"`
	AuthorID  primitive.ObjectID   `bson:"authorId" json:"authorId"`
	Content   string               `bson:"content" json:"content"`
	Mentions  []primitive.ObjectID `bson:"mentions" json:"mentions"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt" json:"updatedAt"`
}

type Reply struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	CommentID primitive.ObjectID   `bson:"commentId" json:"commentId"`
	PostID    primitive.ObjectID   `bson:"postId" json:"postId"`
	AuthorID  primitive.ObjectID   `bson:"authorId" json:"authorId"`
	Content   string               `bson:"content" json:"content"`
	Mentions  []primitive.ObjectID `bson:"mentions" json:"mentions"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt" json:"updatedAt"`
}

type ReplyView struct {
	Reply
	Author    UserSummary `json:"author"`
	LikeCount int64       `json:"likeCount"`
	LikedByMe bool        `json:"likedByMe"`
}

type CommentView struct {
	Comment
	Author    UserSummary `json:"author"`
	LikeCount int64       `json:"likeCount"`
	LikedByMe bool        `json:"likedByMe"`
	Replies   []ReplyView `json:"replies"`
}

// Thread is a post with one page of its comments, each carrying its replies.
type Thread struct {
	Post     PostView          `json:"post"`
	Comments Page[CommentView] `json:"comments"`
}
