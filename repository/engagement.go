package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kinship/models"
)

// LikeRepo relies on the unique (userId, targetType, targetId) index.
type LikeRepo struct{ c *mongo.Collection }

func (r *LikeRepo) Add(ctx context.Context, l *models.Like) (bool, error) {
	return insertOnce(ctx, r.c, l)
}

func (r *LikeRepo) Remove(ctx context.Context, userID primitive.ObjectID, t models.TargetType, targetID primitive.ObjectID) (bool, error) {
	res, err := r.c.DeleteOne(ctx, bson.M{"userId": userID, "targetType": t, "targetId": targetID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *LikeRepo) Counts(ctx context.Context, t models.TargetType, targetIDs []primitive.ObjectID) (map[primitive.ObjectID]int64, error) {
	return countBy(ctx, r.c, bson.M{"targetType": t, "targetId": in(targetIDs)}, "targetId")
}

func (r *LikeRepo) LikedBy(ctx context.Context, userID primitive.ObjectID, t models.TargetType, targetIDs []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	likes, err := findAll[models.Like](ctx, r.c,
		bson.M{"userId": userID, "targetType": t, "targetId": in(targetIDs)},
		options.Find().SetProjection(bson.M{"targetId": 1}),
	)
	if err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]bool, len(likes))
	for _, l := range likes {
		out[l.TargetID] = true
	}
	return out, nil
}

func (r *LikeRepo) Likers(ctx context.Context, t models.TargetType, targetID primitive.ObjectID) ([]primitive.ObjectID, error) {
	likes, err := findAll[models.Like](ctx, r.c,
		bson.M{"targetType": t, "targetId": targetID},
		options.Find().SetSort(oldestFirst).SetProjection(bson.M{"userId": 1}),
	)
	if err != nil {
		return nil, err
	}
	out := make([]primitive.ObjectID, len(likes))
	for i, l := range likes {
		out[i] = l.UserID
	}
	return out, nil
}

func (r *LikeRepo) DeleteByTargets(ctx context.Context, t models.TargetType, targetIDs []primitive.ObjectID) (int64, error) {
	return deleteMany(ctx, r.c, bson.M{"targetType": t, "targetId": in(targetIDs)})
}

func (r *LikeRepo) DeleteByPosts(ctx context.Context, postIDs []primitive.ObjectID) (int64, error) {
	return deleteMany(ctx, r.c, bson.M{"postId": in(postIDs)})
}

func (r *LikeRepo) DistinctTargets(ctx context.Context, t models.TargetType) ([]primitive.ObjectID, error) {
	return distinctIDs(ctx, r.c, "targetId", bson.M{"targetType": t})
}

type NotificationRepo struct{ c *mongo.Collection }

func (r *NotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	return insert(ctx, r.c, n)
}

func (r *NotificationRepo) List(ctx context.Context, recipientID primitive.ObjectID, unreadOnly bool, skip, limit int) ([]models.Notification, int64, error) {
	filter := bson.M{"recipientId": recipientID}
	if unreadOnly {
		filter["isRead"] = false
	}
	total, err := r.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	items, err := findAll[models.Notification](ctx, r.c, filter, page(skip, limit).SetSort(newestFirst))
	return items, total, err
}

func (r *NotificationRepo) MarkRead(ctx context.Context, recipientID, id primitive.ObjectID) (bool, error) {
	res, err := r.c.UpdateOne(ctx,
		bson.M{"_id": id, "recipientId": recipientID},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, recipientID primitive.ObjectID) (int64, error) {
	res, err := r.c.UpdateMany(ctx,
		bson.M{"recipientId": recipientID, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *NotificationRepo) DeleteByPosts(ctx context.Context, postIDs []primitive.ObjectID) (int64, error) {
	return deleteMany(ctx, r.c, bson.M{"postId": in(postIDs)})
}

func (r *NotificationRepo) DistinctPostIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	return distinctIDs(ctx, r.c, "postId", nil)
}
