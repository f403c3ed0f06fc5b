package services

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"kinship/apperr"
	"kinship/models"
	"kinship/validation"
)

// ProfileInput is shared by create and update. Nil fields keep their current
// value, or the default on create.
type ProfileInput struct {
	Bio        *string `json:"bio" form:"bio" validate:"omitempty,max=200"`
	Avatar     *string `json:"avatar" form:"avatar" validate:"omitempty,url"`
	Location   *string `json:"location" form:"location" validate:"omitempty,max=50"`
	Visibility *string `json:"visibility" form:"visibility" validate:"omitempty,oneof=public private"`
}

var profileMessages = validation.Messages{
	"bio.max":          "Bio must not exceed 200 characters.",
	"avatar.url":       "Avatar must be a valid URL.",
	"location.max":     "Location must not exceed 50 characters.",
	"visibility.oneof": "Visibility must be either public or private.",
}

type Profiles struct {
	users    UserStore
	profiles ProfileStore
	follows  FollowStore
	subs     SubscriptionStore
	media    MediaStore
	log      *zap.Logger
}

func NewProfiles(d Deps) *Profiles {
	return &Profiles{
		users:    d.Users,
		profiles: d.Profiles,
		follows:  d.Follows,
		subs:     d.Subscriptions,
		media:    d.Media,
		log:      ensureLogger(d.Log).Named("profiles"),
	}
}

func (s *Profiles) Create(ctx context.Context, userID primitive.ObjectID, in ProfileInput, avatar *models.Upload) (*models.ProfileView, error) {
	if err := validation.Struct(in, profileMessages); err != nil {
		return nil, err
	}

	if _, err := s.profiles.FindByUser(ctx, userID); err == nil {
		return nil, apperr.Conflict("", "Profile already exists.")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, storeErr("find profile", err)
	}

	ts := now()
	p := &models.Profile{
		ID:         primitive.NewObjectID(),
		UserID:     userID,
		Avatar:     models.DefaultAvatar,
		Visibility: models.VisibilityPrivate,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	apply(p, in)

	var uploaded string
	if avatar != nil {
		url, err := s.media.Upload(ctx, *avatar)
		if err != nil {
			return nil, apperr.Dependency("Failed to upload avatar", err)
		}
		p.Avatar, uploaded = url, url
	}

	if err := s.profiles.Create(ctx, p); err != nil {
		s.discard(ctx, uploaded)
		if errors.Is(err, ErrDuplicate) {
			return nil, apperr.Conflict("", "Profile already exists.")
		}
		return nil, storeErr("create profile", err)
	}
	return s.view(ctx, p)
}

// Get returns the profile of userID.
func (s *Profiles) Get(ctx context.Context, userID primitive.ObjectID) (*models.ProfileView, error) {
	p, err := s.profiles.FindByUser(ctx, userID)
	if err != nil {
		return nil, lookupErr("find profile", "Profile not found", err)
	}
	return s.view(ctx, p)
}

func (s *Profiles) GetByUser(ctx context.Context, rawUserID string) (*models.ProfileView, error) {
	userID, err := parseID("userId", rawUserID)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *Profiles) GetByID(ctx context.Context, rawID string) (*models.ProfileView, error) {
	id, err := parseID("profileId", rawID)
	if err != nil {
		return nil, err
	}
	p, err := s.profiles.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("find profile", "Profile not found", err)
	}
	return s.view(ctx, p)
}

func (s *Profiles) List(ctx context.Context, req models.PageRequest) (models.Page[models.ProfileView], error) {
	req = req.Normalize()
	profiles, total, err := s.profiles.List(ctx, req.Skip(), req.Limit)
	if err != nil {
		return models.Page[models.ProfileView]{}, storeErr("list profiles", err)
	}

	views := make([]models.ProfileView, 0, len(profiles))
	for i := range profiles {
		v, err := s.view(ctx, &profiles[i])
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				continue
			}
			return models.Page[models.ProfileView]{}, err
		}
		views = append(views, *v)
	}
	return models.NewPage(views, total, req), nil
}

// Update changes a profile owned by actor. A new avatar upload replaces the
// stored one; the old object is removed first and a failure aborts the update.
func (s *Profiles) Update(ctx context.Context, actor primitive.ObjectID, rawID string, in ProfileInput, avatar *models.Upload) (*models.ProfileView, error) {
	id, err := parseID("profileId", rawID)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(in, profileMessages); err != nil {
		return nil, err
	}

	p, err := s.profiles.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("find profile", "Profile not found", err)
	}
	if p.UserID != actor {
		return nil, apperr.Forbidden("User is not authorized to update this profile")
	}

	oldAvatar := p.Avatar
	apply(p, in)

	var uploaded string
	if avatar != nil {
		url, err := s.media.Upload(ctx, *avatar)
		if err != nil {
			return nil, apperr.Dependency("Failed to upload avatar", err)
		}
		p.Avatar, uploaded = url, url
	}

	if p.Avatar != oldAvatar && s.owned(oldAvatar) {
		if err := s.media.Delete(ctx, oldAvatar); err != nil {
			s.discard(ctx, uploaded)
			return nil, apperr.Dependency("Failed to delete previous avatar", err)
		}
	}

	p.UpdatedAt = now()
	if err := s.profiles.Update(ctx, p); err != nil {
		s.discard(ctx, uploaded)
		return nil, storeErr("update profile", err)
	}
	return s.view(ctx, p)
}

// Delete removes the profile of userID, every follow edge touching the user,
// and finally the user itself.
func (s *Profiles) Delete(ctx context.Context, userID primitive.ObjectID) error {
	p, err := s.profiles.FindByUser(ctx, userID)
	if err != nil {
		return lookupErr("find profile", "Profile not found", err)
	}

	if s.owned(p.Avatar) {
		if err := s.media.Delete(ctx, p.Avatar); err != nil {
			return apperr.Dependency("Failed to delete avatar", err)
		}
	}

	if err := s.profiles.DeleteByUser(ctx, userID); err != nil {
		return storeErr("delete profile", err)
	}

	log := s.log.With(zap.String("userId", userID.Hex()))
	if n, err := s.follows.DeleteByUsers(ctx, []primitive.ObjectID{userID}); err != nil {
		log.Error("failed to remove follow edges", zap.Error(err))
	} else {
		log.Debug("removed follow edges", zap.Int64("count", n))
	}
	if err := s.subs.DeleteByUser(ctx, userID); err != nil && !errors.Is(err, ErrNotFound) {
		log.Error("failed to remove push subscription", zap.Error(err))
	}

	if err := s.users.Delete(ctx, userID); err != nil && !errors.Is(err, ErrNotFound) {
		return storeErr("delete user", err)
	}
	log.Info("profile and user deleted")
	return nil
}

func (s *Profiles) view(ctx context.Context, p *models.Profile) (*models.ProfileView, error) {
	user, err := s.users.FindByID(ctx, p.UserID)
	if err != nil {
		return nil, lookupErr("find user", "User not found", err)
	}
	followers, following, err := s.follows.Counts(ctx, p.UserID)
	if err != nil {
		return nil, storeErr("count follows", err)
	}
	return &models.ProfileView{
		Profile:        *p,
		User:           user.Summary(),
		FollowerCount:  followers,
		FollowingCount: following,
	}, nil
}

func (s *Profiles) owned(url string) bool {
	return url != models.DefaultAvatar && ownsMedia(s.media, url)
}

// discard removes an object uploaded by a request that then failed.
func (s *Profiles) discard(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.media.Delete(ctx, url); err != nil {
		s.log.Warn("failed to remove orphaned upload", zap.String("url", url), zap.Error(err))
	}
}

func apply(p *models.Profile, in ProfileInput) {
	if in.Bio != nil {
		p.Bio = strings.TrimSpace(*in.Bio)
	}
	if in.Avatar != nil && strings.TrimSpace(*in.Avatar) != "" {
		p.Avatar = strings.TrimSpace(*in.Avatar)
	}
	if in.Location != nil {
		p.Location = strings.TrimSpace(*in.Location)
	}
	if in.Visibility != nil && *in.Visibility != "" {
		p.Visibility = models.Visibility(*in.Visibility)
	}
}
