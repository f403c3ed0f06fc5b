package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kinship/models"
	"kinship/services"
)

type UserRepo struct{ c *mongo.Collection }

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	return insert(ctx, r.c, u)
}

func (r *UserRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return findOne[models.User](ctx, r.c, bson.M{"_id": id})
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](ctx, r.c, bson.M{"email": email})
}

func (r *UserRepo) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return findAll[models.User](ctx, r.c, bson.M{"_id": in(ids)})
}

func (r *UserRepo) LinkGoogle(ctx context.Context, id primitive.ObjectID, googleID string) error {
	res, err := r.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"googleId":  googleID,
		"updatedAt": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteOne(ctx, r.c, bson.M{"_id": id})
}

func (r *UserRepo) ExistingIDs(ctx context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	return existingIDs(ctx, r.c, ids)
}

type ProfileRepo struct{ c *mongo.Collection }

func (r *ProfileRepo) Create(ctx context.Context, p *models.Profile) error {
	return insert(ctx, r.c, p)
}

func (r *ProfileRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Profile, error) {
	return findOne[models.Profile](ctx, r.c, bson.M{"_id": id})
}

func (r *ProfileRepo) FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.Profile, error) {
	return findOne[models.Profile](ctx, r.c, bson.M{"userId": userID})
}

func (r *ProfileRepo) List(ctx context.Context, skip, limit int) ([]models.Profile, int64, error) {
	total, err := r.c.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}
	opts := page(skip, limit).SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	profiles, err := findAll[models.Profile](ctx, r.c, bson.M{}, opts)
	return profiles, total, err
}

func (r *ProfileRepo) Update(ctx context.Context, p *models.Profile) error {
	return replaceByID(ctx, r.c, p.ID, p)
}

func (r *ProfileRepo) DeleteByUser(ctx context.Context, userID primitive.ObjectID) error {
	return deleteOne(ctx, r.c, bson.M{"userId": userID})
}

type SubscriptionRepo struct{ c *mongo.Collection }

// Upsert keeps one subscription per user, replacing the endpoint and keys.
func (r *SubscriptionRepo) Upsert(ctx context.Context, s *models.PushSubscription) error {
	_, err := r.c.UpdateOne(ctx,
		bson.M{"userId": s.UserID},
		bson.M{
			"$set": bson.M{
				"endpoint":  s.Endpoint,
				"keys":      s.Keys,
				"updatedAt": s.UpdatedAt,
			},
			"$setOnInsert": bson.M{"_id": s.ID},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *SubscriptionRepo) FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.PushSubscription, error) {
	return findOne[models.PushSubscription](ctx, r.c, bson.M{"userId": userID})
}

func (r *SubscriptionRepo) DeleteByUser(ctx context.Context, userID primitive.ObjectID) error {
	return deleteOne(ctx, r.c, bson.M{"userId": userID})
}
