package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Collection names.
const (
	Users             = "users"
	Profiles          = "profiles"
	Follows           = "follows"
	Posts             = "posts"
	Comments          = "comments"
	Replies           = "replies"
	Likes             = "likes"
	Notifications     = "notifications"
	PushSubscriptions = "push_subscriptions"
)

const (
	connectAttempts = 3
	retryDelay      = 2 * time.Second
)

type Mongo struct {
	Client *mongo.Client
	DB     *mongo.Database
	log    *zap.Logger
}

// Connect dials MongoDB and pings it, retrying a few times before giving up.
func Connect(ctx context.Context, uri, dbName string, log *zap.Logger) (*Mongo, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongodb uri is empty")
	}

	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		client, err := dial(ctx, uri)
		if err == nil {
			log.Info("connected to mongodb", zap.String("database", dbName))
			return &Mongo{Client: client, DB: client.Database(dbName), log: log}, nil
		}
		lastErr = err
		log.Warn("mongodb connection attempt failed", zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, fmt.Errorf("connect mongodb: %w", lastErr)
}

func dial(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

func (m *Mongo) Collection(name string) *mongo.Collection {
	return m.DB.Collection(name)
}

// EnsureIndexes creates the unique and lookup indexes every store relies on.
// It is safe to run on every start.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		Users: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		Profiles: {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		Follows: {
			{Keys: bson.D{{Key: "followerId", Value: 1}, {Key: "followeeId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "followeeId", Value: 1}, {Key: "createdAt", Value: 1}}},
			{Keys: bson.D{{Key: "followerId", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		Posts: {
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "authorId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		Comments: {
			{Keys: bson.D{{Key: "postId", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		Replies: {
			{Keys: bson.D{{Key: "commentId", Value: 1}, {Key: "createdAt", Value: 1}}},
			{Keys: bson.D{{Key: "postId", Value: 1}}},
		},
		Likes: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "targetType", Value: 1}, {Key: "targetId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "targetType", Value: 1}, {Key: "targetId", Value: 1}}},
			{Keys: bson.D{{Key: "postId", Value: 1}}},
		},
		Notifications: {
			{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "postId", Value: 1}}},
		},
		PushSubscriptions: {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for coll, models := range specs {
		if _, err := m.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	m.log.Info("mongodb indexes ensured")
	return nil
}

func (m *Mongo) Disconnect(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := m.Client.Disconnect(ctx); err != nil {
		return err
	}
	m.log.Info("disconnected from mongodb")
	return nil
}
