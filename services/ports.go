package services

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"kinship/models"
)

// Store errors. Adapters translate their driver errors into these.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	LinkGoogle(ctx context.Context, id primitive.ObjectID, googleID string) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	ExistingIDs(ctx context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error)
}

type ProfileStore interface {
	Create(ctx context.Context, p *models.Profile) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Profile, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.Profile, error)
	List(ctx context.Context, skip, limit int) ([]models.Profile, int64, error)
	Update(ctx context.Context, p *models.Profile) error
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) error
}

type FollowStore interface {
	// Insert reports false when the edge already existed.
	Insert(ctx context.Context, f *models.Follow) (bool, error)
	Delete(ctx context.Context, followerID, followeeID primitive.ObjectID) (bool, error)
	// Connections returns the other end of every edge of userID in edge
	// insertion order, joined with user and profile. Edges whose user is
	// gone are skipped.
	Connections(ctx context.Context, userID primitive.ObjectID, dir models.Direction) ([]models.Connection, error)
	Counts(ctx context.Context, userID primitive.ObjectID) (followers, following int64, err error)
	DeleteByUsers(ctx context.Context, userIDs []primitive.ObjectID) (int64, error)
	DistinctUserIDs(ctx context.Context) ([]primitive.ObjectID, error)
}

type PostStore interface {
	Create(ctx context.Context, p *models.Post) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	// List returns posts newest first. limit <= 0 returns everything.
	List(ctx context.Context, q models.PostQuery, skip, limit int) ([]models.Post, int64, error)
	Update(ctx context.Context, p *models.Post) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	ExistingIDs(ctx context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error)
}

type CommentStore interface {
	Create(ctx context.Context, c *models.Comment) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error)
	// ListByPost returns comments oldest first.
	ListByPost(ctx context.Context, postID primitive.ObjectID, skip, limit int) ([]models.Comment, int64, error)
	CountByPosts(ctx context.Context, postIDs []primitive.ObjectID) (map[primitive.ObjectID]int64, error)
	Update(ctx context.Context, c *models.Comment) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByPosts(ctx context.Context, postIDs []primitive.ObjectID) (int64, error)
	DistinctPostIDs(ctx context.Context) ([]primitive.ObjectID, error)
	ExistingIDs(ctx context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error)
}

type ReplyStore interface {
	Create(ctx context.Context, r *models.Reply) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Reply, error)
	// ListByComments returns replies oldest first.
	ListByComments(ctx context.Context, commentIDs []primitive.ObjectID) ([]models.Reply, error)
	Update(ctx context.Context, r *models.Reply) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByComments(ctx context.Context, commentIDs []primitive.ObjectID) (int64, error)
	DeleteByPosts(ctx context.Context, postIDs []primitive.ObjectID) (int64, error)
	DistinctCommentIDs(ctx context.Context) ([]primitive.ObjectID, error)
	ExistingIDs(ctx context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error)
}

type LikeStore interface {
	// Add reports false when the user already liked the target.
	Add(ctx context.Context, l *models.Like) (bool, error)
	Remove(ctx context.Context, userID primitive.ObjectID, t models.TargetType, targetID primitive.ObjectID) (bool, error)
	Counts(ctx context.Context, t models.TargetType, targetIDs []primitive.ObjectID) (map[primitive.ObjectID]int64, error)
	LikedBy(ctx context.Context, userID primitive.ObjectID, t models.TargetType, targetIDs []primitive.ObjectID) (map[primitive.ObjectID]bool, error)
	// Likers returns user ids in like order.
	Likers(ctx context.Context, t models.TargetType, targetID primitive.ObjectID) ([]primitive.ObjectID, error)
	DeleteByTargets(ctx context.Context, t models.TargetType, targetIDs []primitive.ObjectID) (int64, error)
	DeleteByPosts(ctx context.Context, postIDs []primitive.ObjectID) (int64, error)
	DistinctTargets(ctx context.Context, t models.TargetType) ([]primitive.ObjectID, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	// List returns notifications newest first.
	List(ctx context.Context, recipientID primitive.ObjectID, unreadOnly bool, skip, limit int) ([]models.Notification, int64, error)
	MarkRead(ctx context.Context, recipientID, id primitive.ObjectID) (bool, error)
	MarkAllRead(ctx context.Context, recipientID primitive.ObjectID) (int64, error)
	DeleteByPosts(ctx context.Context, postIDs []primitive.ObjectID) (int64, error)
	DistinctPostIDs(ctx context.Context) ([]primitive.ObjectID, error)
}

type SubscriptionStore interface {
	Upsert(ctx context.Context, s *models.PushSubscription) error
	FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.PushSubscription, error)
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) error
}

// Stores bundles one implementation of every store.
type Stores struct {
	Users         UserStore
	Profiles      ProfileStore
	Follows       FollowStore
	Posts         PostStore
	Comments      CommentStore
	Replies       ReplyStore
	Likes         LikeStore
	Notifications NotificationStore
	Subscriptions SubscriptionStore
}

// MediaStore keeps uploaded files outside the database.
type MediaStore interface {
	Upload(ctx context.Context, u models.Upload) (string, error)
	// Delete succeeds when the object is already gone.
	Delete(ctx context.Context, url string) error
}

// MediaOwner is implemented by media stores that can tell their own objects
// apart from arbitrary URLs a client submitted.
type MediaOwner interface {
	Owns(url string) bool
}

func ownsMedia(media MediaStore, url string) bool {
	if url == "" || media == nil {
		return false
	}
	if o, ok := media.(MediaOwner); ok {
		return o.Owns(url)
	}
	return false
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}

type TokenIssuer interface {
	Issue(user *models.User) (string, error)
}

// LiveSink pushes an event to every open connection of a user.
type LiveSink interface {
	SendToUser(userID string, event string, payload any)
}

// PushSender delivers a Web Push message. It returns ErrSubscriptionGone when
// the endpoint no longer exists.
type PushSender interface {
	Send(ctx context.Context, sub *models.PushSubscription, payload []byte) error
	PublicKey() string
}

var ErrSubscriptionGone = errors.New("push subscription gone")

// Deps is everything the services are built from. Live and Push may be nil.
type Deps struct {
	Stores
	Media  MediaStore
	Hasher PasswordHasher
	Tokens TokenIssuer
	Live   LiveSink
	Push   PushSender
	Log    *zap.Logger
}
