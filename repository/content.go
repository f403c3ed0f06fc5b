package repository

import (
	"context"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"kinship/models"
)

var (
	newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	oldestFirst = bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}
)

type PostRepo struct{ c *mongo.Collection }

func (r *PostRepo) Create(ctx context.Context, p *models.Post) error {
	return insert(ctx, r.c, p)
}

func (r *PostRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	return findOne[models.Post](ctx, r.c, bson.M{"_id": id})
}

func postFilter(q models.PostQuery) bson.M {
	filter := bson.M{}
	if q.AuthorID != nil {
		filter["authorId"] = *q.AuthorID
	}
	if q.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"content": re},
			bson.M{"tags": re},
		}
	}
	return filter
}

func (r *PostRepo) List(ctx context.Context, q models.PostQuery, skip, limit int) ([]models.Post, int64, error) {
	filter := postFilter(q)
	total, err := r.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	posts, err := findAll[models.Post](ctx, r.c, filter, page(skip, limit).SetSort(newestFirst))
	return posts, total, err
}

func (r *PostRepo) Update(ctx context.Context, p *models.Post) error {
	return replaceByID(ctx, r.c, p.ID, p)
}

func (r *PostRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteOne(ctx, r.c, bson.M{"_id": id})
}

func (r *PostRepo) ExistingIDs(ctx context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	return existingIDs(ctx, r.c, ids)
}

type CommentRepo struct{ c *mongo.Collection }

func (r *CommentRepo) Create(ctx context.Context, c *models.Comment) error {
	return insert(ctx, r.c, c)
}

func (r *CommentRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	return findOne[models.Comment](ctx, r.c, bson.M{"_id": id})
}

func (r *CommentRepo) ListByPost(ctx context.Context, postID primitive.ObjectID, skip, limit int) ([]models.Comment, int64, error) {
	filter := bson.M{"postId": postID}
	total, err := r.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	comments, err := findAll[models.Comment](ctx, r.c, filter, page(skip, limit).SetSort(oldestFirst))
	return comments, total, err
}

func (r *CommentRepo) CountByPosts(ctx context.Context, postIDs []primitive.ObjectID) (map[primitive.ObjectID]int64, error) {
	return countBy(ctx, r.c, bson.M{"postId": in(postIDs)}, "postId")
}

func (r *CommentRepo) Update(ctx context.Context, c *models.Comment) error {
	return replaceByID(ctx, r.c, c.ID, c)
}

func (r *CommentRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteOne(ctx, r.c, bson.M{"_id": id})
}

func (r *CommentRepo) DeleteByPosts(ctx context.Context, postIDs []primitive.ObjectID) (int64, error) {
	return deleteMany(ctx, r.c, bson.M{"postId": in(postIDs)})
}

func (r *CommentRepo) DistinctPostIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	return distinctIDs(ctx, r.c, "postId", nil)
}

func (r *CommentRepo) ExistingIDs(ctx context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	return existingIDs(ctx, r.c, ids)
}

type ReplyRepo struct{ c *mongo.Collection }

func (r *ReplyRepo) Create(ctx context.Context, reply *models.Reply) error {
	return insert(ctx, r.c, reply)
}

func (r *ReplyRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Reply, error) {
	return findOne[models.Reply](ctx, r.c, bson.M{"_id": id})
}

func (r *ReplyRepo) ListByComments(ctx context.Context, commentIDs []primitive.ObjectID) ([]models.Reply, error) {
	if len(commentIDs) == 0 {
		return nil, nil
	}
	return findAll[models.Reply](ctx, r.c, bson.M{"commentId": in(commentIDs)}, page(0, 0).SetSort(oldestFirst))
}

func (r *ReplyRepo) Update(ctx context.Context, reply *models.Reply) error {
	return replaceByID(ctx, r.c, reply.ID, reply)
}

func (r *ReplyRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteOne(ctx, r.c, bson.M{"_id": id})
}

func (r *ReplyRepo) DeleteByComments(ctx context.Context, commentIDs []primitive.ObjectID) (int64, error) {
	return deleteMany(ctx, r.c, bson.M{"commentId": in(commentIDs)})
}

func (r *ReplyRepo) DeleteByPosts(ctx context.Context, postIDs []primitive.ObjectID) (int64, error) {
	return deleteMany(ctx, r.c, bson.M{"postId": in(postIDs)})
}

func (r *ReplyRepo) DistinctCommentIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	return distinctIDs(ctx, r.c, "commentId", nil)
}

func (r *ReplyRepo) ExistingIDs(ctx context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	return existingIDs(ctx, r.c, ids)
}
