// Package repository implements the service stores on MongoDB.
package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kinship/database"
	"kinship/services"
)

// NewStores binds every store to its collection in db.
func NewStores(db *mongo.Database) services.Stores {
	return services.Stores{
		Users:         &UserRepo{c: db.Collection(database.Users)},
		Profiles:      &ProfileRepo{c: db.Collection(database.Profiles)},
		Follows:       &FollowRepo{c: db.Collection(database.Follows)},
		Posts:         &PostRepo{c: db.Collection(database.Posts)},
		Comments:      &CommentRepo{c: db.Collection(database.Comments)},
		Replies:       &ReplyRepo{c: db.Collection(database.Replies)},
		Likes:         &LikeRepo{c: db.Collection(database.Likes)},
		Notifications: &NotificationRepo{c: db.Collection(database.Notifications)},
		Subscriptions: &SubscriptionRepo{c: db.Collection(database.PushSubscriptions)},
	}
}

func findOne[T any](ctx context.Context, c *mongo.Collection, filter any) (*T, error) {
	var out T
	if err := c.FindOne(ctx, filter).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, services.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, c *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cur, err := c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func aggregate[T any](ctx context.Context, c *mongo.Collection, pipeline mongo.Pipeline) ([]T, error) {
	cur, err := c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// page applies skip and limit. limit <= 0 means no limit.
func page(skip, limit int) *options.FindOptions {
	opts := options.Find()
	if skip > 0 {
		opts.SetSkip(int64(skip))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}

func insert(ctx context.Context, c *mongo.Collection, doc any) error {
	if _, err := c.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return services.ErrDuplicate
		}
		return err
	}
	return nil
}

// insertOnce reports false instead of failing when a unique index rejects doc.
func insertOnce(ctx context.Context, c *mongo.Collection, doc any) (bool, error) {
	err := insert(ctx, c, doc)
	if errors.Is(err, services.ErrDuplicate) {
		return false, nil
	}
	return err == nil, err
}

func replaceByID(ctx context.Context, c *mongo.Collection, id primitive.ObjectID, doc any) error {
	res, err := c.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return services.ErrNotFound
	}
	return nil
}

func deleteOne(ctx context.Context, c *mongo.Collection, filter any) error {
	res, err := c.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return services.ErrNotFound
	}
	return nil
}

func deleteMany(ctx context.Context, c *mongo.Collection, filter any) (int64, error) {
	res, err := c.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func in(ids []primitive.ObjectID) bson.M {
	if ids == nil {
		ids = []primitive.ObjectID{}
	}
	return bson.M{"$in": ids}
}

func distinctIDs(ctx context.Context, c *mongo.Collection, field string, filter any) ([]primitive.ObjectID, error) {
	if filter == nil {
		filter = bson.M{}
	}
	values, err := c.Distinct(ctx, field, filter)
	if err != nil {
		return nil, err
	}
	out := make([]primitive.ObjectID, 0, len(values))
	for _, v := range values {
		id, ok := v.(primitive.ObjectID)
		if !ok {
			return nil, fmt.Errorf("distinct %s: unexpected %T", field, v)
		}
		out = append(out, id)
	}
	return out, nil
}

func existingIDs(ctx context.Context, c *mongo.Collection, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	docs, err := findAll[struct {
		ID primitive.ObjectID `bson:"_id"`
	}](ctx, c, bson.M{"_id": in(ids)}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	out := make([]primitive.ObjectID, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out, nil
}

// countBy groups the documents matching match by field and counts each group.
func countBy(ctx context.Context, c *mongo.Collection, match bson.M, field string) (map[primitive.ObjectID]int64, error) {
	rows, err := aggregate[struct {
		ID    primitive.ObjectID `bson:"_id"`
		Count int64              `bson:"count"`
	}](ctx, c, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]int64, len(rows))
	for _, r := range rows {
		out[r.ID] = r.Count
	}
	return out, nil
}
