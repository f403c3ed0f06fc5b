package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TargetType string

const (
	TargetPost    TargetType = "post"
	TargetComment TargetType = "comment"
	TargetReply   TargetType = "reply"
)

// Like is unique per (user, target). PostID is the root post of the target so
// a post delete can drop every like in its tree at once.
type Like struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	TargetType TargetType         `bson:"targetType" json:"targetType"`
	TargetID   primitive.ObjectID `bson:"targetId" json:"targetId"`
	PostID     primitive.ObjectID `bson:"postId" json:"postId"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}
