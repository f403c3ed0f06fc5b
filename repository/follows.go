package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"kinship/database"
	"kinship/models"
)

// FollowRepo stores one document per directed edge. A unique index on
// (followerId, followeeId) makes inserts idempotent.
type FollowRepo struct{ c *mongo.Collection }

func (r *FollowRepo) Insert(ctx context.Context, f *models.Follow) (bool, error) {
	return insertOnce(ctx, r.c, f)
}

func (r *FollowRepo) Delete(ctx context.Context, followerID, followeeID primitive.ObjectID) (bool, error) {
	res, err := r.c.DeleteOne(ctx, bson.M{"followerId": followerID, "followeeId": followeeID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// Connections joins each edge with the user on its other end and that user's
// profile, if any. The inner unwind on users drops edges to deleted users.
func (r *FollowRepo) Connections(ctx context.Context, userID primitive.ObjectID, dir models.Direction) ([]models.Connection, error) {
	self, other := "followeeId", "followerId"
	if dir == models.Following {
		self, other = "followerId", "followeeId"
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{self: userID}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         database.Users,
			"localField":   other,
			"foreignField": "_id",
			"as":           "user",
		}}},
		{{Key: "$unwind", Value: "$user"}},
		{{Key: "$lookup", Value: bson.M{
			"from":         database.Profiles,
			"localField":   other,
			"foreignField": "userId",
			"as":           "profile",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$profile", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$project", Value: bson.M{
			"_id":        0,
			"userId":     "$user._id",
			"name":       "$user.name",
			"email":      "$user.email",
			"profileId":  "$profile._id",
			"bio":        bson.M{"$ifNull": bson.A{"$profile.bio", ""}},
			"avatar":     bson.M{"$ifNull": bson.A{"$profile.avatar", ""}},
			"location":   bson.M{"$ifNull": bson.A{"$profile.location", ""}},
			"followedAt": "$createdAt",
		}}},
	}
	return aggregate[models.Connection](ctx, r.c, pipeline)
}

func (r *FollowRepo) Counts(ctx context.Context, userID primitive.ObjectID) (int64, int64, error) {
	followers, err := r.c.CountDocuments(ctx, bson.M{"followeeId": userID})
	if err != nil {
		return 0, 0, err
	}
	following, err := r.c.CountDocuments(ctx, bson.M{"followerId": userID})
	if err != nil {
		return 0, 0, err
	}
	return followers, following, nil
}

func (r *FollowRepo) DeleteByUsers(ctx context.Context, userIDs []primitive.ObjectID) (int64, error) {
	return deleteMany(ctx, r.c, bson.M{"$or": bson.A{
		bson.M{"followerId": in(userIDs)},
		bson.M{"followeeId": in(userIDs)},
	}})
}

func (r *FollowRepo) DistinctUserIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	followers, err := distinctIDs(ctx, r.c, "followerId", nil)
	if err != nil {
		return nil, err
	}
	followees, err := distinctIDs(ctx, r.c, "followeeId", nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[primitive.ObjectID]bool, len(followers)+len(followees))
	out := make([]primitive.ObjectID, 0, len(followers)+len(followees))
	for _, id := range append(followers, followees...) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}
