package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotifyMention NotificationType = "mention"
	NotifyComment NotificationType = "comment"
	NotifyLike    NotificationType = "like"
)

type Notification struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	RecipientID primitive.ObjectID  `bson:"recipientId" json:"recipientId"`
	ActorID     primitive.ObjectID  `bson:"actorId" json:"actorId"`
	Type        NotificationType    `bson:"type" json:"type"`
	PostID      primitive.ObjectID  `bson:"postId" json:"postId"`
	CommentID   *primitive.ObjectID `bson:"commentId,omitempty" json:"commentId,omitempty"`
	IsRead      bool                `bson:"isRead" json:"isRead"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
}

type PushKeys struct {
	P256dh string `bson:"p256dh" json:"p256dh" validate:"required"`
	Auth   string `bson:"auth" json:"auth" validate:"required"`
}

// PushSubscription is a browser Web Push endpoint. One per user.
type PushSubscription struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Endpoint  string             `bson:"endpoint" json:"endpoint"`
	Keys      PushKeys           `bson:"keys" json:"keys"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
