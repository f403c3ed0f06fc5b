package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"kinship/models"
)

// SweepReport counts the orphans removed per collection in one pass.
type SweepReport map[string]int64

// Sweeper removes records whose parent is gone: comments of deleted posts,
// replies of deleted comments, likes of deleted targets, follow edges of
// deleted users and notifications of deleted posts. It backs up the cascades
// that run inline on delete.
type Sweeper struct {
	Stores
	interval time.Duration
	log      *zap.Logger
}

func NewSweeper(d Deps, interval time.Duration) *Sweeper {
	return &Sweeper{Stores: d.Stores, interval: interval, log: ensureLogger(d.Log).Named("sweeper")}
}

// Run sweeps every interval until ctx is done. A zero interval disables it.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info("consistency sweeper disabled")
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one pass. Parents are processed before children so a pass
// also catches the records orphaned by its own earlier steps.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	report := SweepReport{}

	steps := []struct {
		name     string
		refs     func(context.Context) ([]primitive.ObjectID, error)
		existing func(context.Context, []primitive.ObjectID) ([]primitive.ObjectID, error)
		remove   func(context.Context, []primitive.ObjectID) (int64, error)
	}{
		{"follows", s.Follows.DistinctUserIDs, s.Users.ExistingIDs, s.Follows.DeleteByUsers},
		{"comments", s.Comments.DistinctPostIDs, s.Posts.ExistingIDs, s.Comments.DeleteByPosts},
		{"replies", s.Replies.DistinctCommentIDs, s.Comments.ExistingIDs, s.Replies.DeleteByComments},
		{"notifications", s.Notifications.DistinctPostIDs, s.Posts.ExistingIDs, s.Notifications.DeleteByPosts},
		{"likes.post", s.likeTargets(models.TargetPost), s.Posts.ExistingIDs, s.deleteLikes(models.TargetPost)},
		{"likes.comment", s.likeTargets(models.TargetComment), s.Comments.ExistingIDs, s.deleteLikes(models.TargetComment)},
		{"likes.reply", s.likeTargets(models.TargetReply), s.Replies.ExistingIDs, s.deleteLikes(models.TargetReply)},
	}

	for _, step := range steps {
		refs, err := step.refs(ctx)
		if err != nil {
			return report, err
		}
		missing, err := s.missing(ctx, refs, step.existing)
		if err != nil {
			return report, err
		}
		if len(missing) == 0 {
			continue
		}
		n, err := step.remove(ctx, missing)
		if err != nil {
			return report, err
		}
		report[step.name] = n
	}

	if len(report) > 0 {
		fields := make([]zap.Field, 0, len(report))
		for name, n := range report {
			fields = append(fields, zap.Int64(name, n))
		}
		s.log.Info("removed orphaned records", fields...)
	}
	return report, nil
}

func (s *Sweeper) missing(ctx context.Context, refs []primitive.ObjectID, existing func(context.Context, []primitive.ObjectID) ([]primitive.ObjectID, error)) ([]primitive.ObjectID, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	found, err := existing(ctx, refs)
	if err != nil {
		return nil, err
	}
	present := make(map[primitive.ObjectID]bool, len(found))
	for _, id := range found {
		present[id] = true
	}
	var out []primitive.ObjectID
	for _, id := range refs {
		if !present[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Sweeper) likeTargets(t models.TargetType) func(context.Context) ([]primitive.ObjectID, error) {
	return func(ctx context.Context) ([]primitive.ObjectID, error) {
		return s.Likes.DistinctTargets(ctx, t)
	}
}

func (s *Sweeper) deleteLikes(t models.TargetType) func(context.Context, []primitive.ObjectID) (int64, error) {
	return func(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
		return s.Likes.DeleteByTargets(ctx, t, ids)
	}
}
