package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"kinship/apperr"
	"kinship/models"
)

// LikeState is the caller's like status on a target after a like or unlike.
type LikeState struct {
	TargetID  primitive.ObjectID `json:"targetId"`
	Liked     bool               `json:"liked"`
	LikeCount int64              `json:"likeCount"`
}

// Likes adds and removes likes on posts, comments and replies. Both
// directions are idempotent.
type Likes struct {
	users    UserStore
	posts    PostStore
	comments CommentStore
	replies  ReplyStore
	likes    LikeStore
	notifier *Notifier
	log      *zap.Logger
}

func NewLikes(d Deps, notifier *Notifier) *Likes {
	return &Likes{
		users:    d.Users,
		posts:    d.Posts,
		comments: d.Comments,
		replies:  d.Replies,
		likes:    d.Likes,
		notifier: notifier,
		log:      ensureLogger(d.Log).Named("likes"),
	}
}

type likeTarget struct {
	id        primitive.ObjectID
	postID    primitive.ObjectID
	commentID *primitive.ObjectID
	authorID  primitive.ObjectID
}

func (s *Likes) Like(ctx context.Context, actor primitive.ObjectID, t models.TargetType, rawID string) (*LikeState, error) {
	target, err := s.resolve(ctx, t, rawID)
	if err != nil {
		return nil, err
	}

	created, err := s.likes.Add(ctx, &models.Like{
		ID:         primitive.NewObjectID(),
		UserID:     actor,
		TargetType: t,
		TargetID:   target.id,
		PostID:     target.postID,
		CreatedAt:  now(),
	})
	if err != nil {
		return nil, storeErr("add like", err)
	}
	if created {
		s.notifier.Notify(ctx, target.authorID, actor, models.NotifyLike, target.postID, target.commentID)
	}
	return s.state(ctx, t, target.id, true)
}

func (s *Likes) Unlike(ctx context.Context, actor primitive.ObjectID, t models.TargetType, rawID string) (*LikeState, error) {
	target, err := s.resolve(ctx, t, rawID)
	if err != nil {
		return nil, err
	}
	if _, err := s.likes.Remove(ctx, actor, t, target.id); err != nil {
		return nil, storeErr("remove like", err)
	}
	return s.state(ctx, t, target.id, false)
}

// Likers lists the users who liked the target, in like order.
func (s *Likes) Likers(ctx context.Context, t models.TargetType, rawID string) ([]models.UserSummary, error) {
	target, err := s.resolve(ctx, t, rawID)
	if err != nil {
		return nil, err
	}
	ids, err := s.likes.Likers(ctx, t, target.id)
	if err != nil {
		return nil, storeErr("list likers", err)
	}
	idx, err := userIndex(ctx, s.users, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		if u, ok := idx[id]; ok {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}

func (s *Likes) state(ctx context.Context, t models.TargetType, id primitive.ObjectID, liked bool) (*LikeState, error) {
	counts, err := s.likes.Counts(ctx, t, []primitive.ObjectID{id})
	if err != nil {
		return nil, storeErr("count likes", err)
	}
	return &LikeState{TargetID: id, Liked: liked, LikeCount: counts[id]}, nil
}

func (s *Likes) resolve(ctx context.Context, t models.TargetType, rawID string) (*likeTarget, error) {
	id, err := parseID(string(t)+"Id", rawID)
	if err != nil {
		return nil, err
	}

	switch t {
	case models.TargetPost:
		p, err := s.posts.FindByID(ctx, id)
		if err != nil {
			return nil, lookupErr("find post", "Post not found", err)
		}
		return &likeTarget{id: p.ID, postID: p.ID, authorID: p.AuthorID}, nil
	case models.TargetComment:
		c, err := s.comments.FindByID(ctx, id)
		if err != nil {
			return nil, lookupErr("find comment", "Comment not found", err)
		}
		return &likeTarget{id: c.ID, postID: c.PostID, commentID: &c.ID, authorID: c.AuthorID}, nil
	case models.TargetReply:
		r, err := s.replies.FindByID(ctx, id)
		if err != nil {
			return nil, lookupErr("find reply", "Reply not found", err)
		}
		return &likeTarget{id: r.ID, postID: r.PostID, commentID: &r.CommentID, authorID: r.AuthorID}, nil
	}
	return nil, apperr.Field("targetType", "Unknown like target")
}
