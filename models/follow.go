package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Follow is a directed edge: FollowerID follows FolloweeID. The pair is unique.
type Follow struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FollowerID primitive.ObjectID `bson:"followerId" json:"followerId"`
	FolloweeID primitive.ObjectID `bson:"followeeId" json:"followeeId"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}

type Direction int

const (
	Followers Direction = iota
	Following
)

func (d Direction) String() string {
	if d == Following {
		return "following"
	}
	return "followers"
}

// Connection is one entry of a follower or following listing: the user on the
// other end of the edge joined with their profile.
type Connection struct {
	UserID     primitive.ObjectID  `bson:"userId" json:"userId"`
	Name       string              `bson:"name" json:"name"`
	Email      string              `bson:"email" json:"email"`
	ProfileID  *primitive.ObjectID `bson:"profileId,omitempty" json:"profileId,omitempty"`
	Bio        string              `bson:"bio" json:"bio"`
	Avatar     string              `bson:"avatar" json:"avatar"`
	Location   string              `bson:"location" json:"location"`
	FollowedAt time.Time           `bson:"followedAt" json:"followedAt"`
}
