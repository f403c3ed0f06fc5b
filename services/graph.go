package services

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"kinship/apperr"
	"kinship/models"
)

// Graph maintains follow edges between users and lists them.
type Graph struct {
	profiles ProfileStore
	follows  FollowStore
	log      *zap.Logger
}

func NewGraph(d Deps) *Graph {
	return &Graph{
		profiles: d.Profiles,
		follows:  d.Follows,
		log:      ensureLogger(d.Log).Named("graph"),
	}
}

// Follow makes actor follow the user rawTarget. Following twice is a no-op.
func (g *Graph) Follow(ctx context.Context, actor primitive.ObjectID, rawTarget string) error {
	target, err := g.endpoints(ctx, actor, rawTarget, "You cannot follow yourself.")
	if err != nil {
		return err
	}

	created, err := g.follows.Insert(ctx, &models.Follow{
		ID:         primitive.NewObjectID(),
		FollowerID: actor,
		FolloweeID: target,
		CreatedAt:  now(),
	})
	if err != nil {
		return storeErr("insert follow", err)
	}
	if created {
		g.log.Debug("follow created", zap.String("follower", actor.Hex()), zap.String("followee", target.Hex()))
	}
	return nil
}

// Unfollow removes the edge; it is a no-op when actor was not following.
func (g *Graph) Unfollow(ctx context.Context, actor primitive.ObjectID, rawTarget string) error {
	target, err := g.endpoints(ctx, actor, rawTarget, "You cannot unfollow yourself.")
	if err != nil {
		return err
	}

	if _, err := g.follows.Delete(ctx, actor, target); err != nil {
		return storeErr("delete follow", err)
	}
	return nil
}

// endpoints rejects self edges and makes sure both users have a profile.
func (g *Graph) endpoints(ctx context.Context, actor primitive.ObjectID, rawTarget, selfMsg string) (primitive.ObjectID, error) {
	target, err := parseID("userId", rawTarget)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if target == actor {
		return primitive.NilObjectID, apperr.InvalidOperation(selfMsg)
	}

	for _, id := range []primitive.ObjectID{actor, target} {
		if _, err := g.profiles.FindByUser(ctx, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return primitive.NilObjectID, apperr.NotFound("User profile not found")
			}
			return primitive.NilObjectID, storeErr("find profile", err)
		}
	}
	return target, nil
}

// Connections lists the followers or followings of owner in edge order,
// keeping only entries whose name or bio contains query (case-insensitive).
// totalCount is the filtered count.
func (g *Graph) Connections(ctx context.Context, owner primitive.ObjectID, dir models.Direction, query string, req models.PageRequest) (models.Page[models.Connection], error) {
	req = req.Normalize()

	if _, err := g.profiles.FindByUser(ctx, owner); err != nil {
		return models.Page[models.Connection]{}, lookupErr("find profile", "Profile not found", err)
	}

	all, err := g.follows.Connections(ctx, owner, dir)
	if err != nil {
		return models.Page[models.Connection]{}, storeErr("list "+dir.String(), err)
	}

	return models.Paginate(filterConnections(all, query), req), nil
}

// ConnectionsOf is Connections for a user id taken from a request.
func (g *Graph) ConnectionsOf(ctx context.Context, rawOwner string, dir models.Direction, query string, req models.PageRequest) (models.Page[models.Connection], error) {
	owner, err := parseID("userId", rawOwner)
	if err != nil {
		return models.Page[models.Connection]{}, err
	}
	return g.Connections(ctx, owner, dir, query, req)
}

func filterConnections(all []models.Connection, query string) []models.Connection {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return all
	}
	out := make([]models.Connection, 0, len(all))
	for _, c := range all {
		if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(strings.ToLower(c.Bio), q) {
			out = append(out, c)
		}
	}
	return out
}
