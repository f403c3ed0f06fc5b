package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultAvatar is used when a profile is created without an avatar.
const DefaultAvatar = "https://cdn-icons-png.flaticon.com/512/149/149071.png"

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type Profile struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	Bio        string             `bson:"bio" json:"bio"`
	Avatar     string             `bson:"avatar" json:"avatar"`
	Location   string             `bson:"location" json:"location"`
	Visibility Visibility         `bson:"visibility" json:"visibility"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type ProfileView struct {
	Profile
	User           UserSummary `json:"user"`
	FollowerCount  int64       `json:"followerCount"`
	FollowingCount int64       `json:"followingCount"`
}
