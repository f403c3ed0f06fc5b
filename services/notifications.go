package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"kinship/apperr"
	"kinship/models"
	"kinship/validation"
)

const (
	EventNotification = "notification"
	pushTimeout       = 5 * time.Second
)

// Notifier records engagement events for their recipients and delivers them
// over the live channel and Web Push. Failures are logged, never returned.
type Notifier struct {
	store    NotificationStore
	subs     SubscriptionStore
	users    UserStore
	comments CommentStore
	live     LiveSink
	push     PushSender
	log      *zap.Logger
}

func NewNotifier(d Deps) *Notifier {
	return &Notifier{
		store:    d.Notifications,
		subs:     d.Subscriptions,
		users:    d.Users,
		comments: d.Comments,
		live:     d.Live,
		push:     d.Push,
		log:      ensureLogger(d.Log).Named("notifier"),
	}
}

// Notify records one notification. Actors are never notified of their own
// actions.
func (n *Notifier) Notify(ctx context.Context, recipient, actor primitive.ObjectID, typ models.NotificationType, postID primitive.ObjectID, commentID *primitive.ObjectID) {
	if recipient == actor || recipient.IsZero() {
		return
	}

	rec := &models.Notification{
		ID:          primitive.NewObjectID(),
		RecipientID: recipient,
		ActorID:     actor,
		Type:        typ,
		PostID:      postID,
		CommentID:   commentID,
		CreatedAt:   now(),
	}
	log := n.log.With(zap.String("recipient", recipient.Hex()), zap.String("type", string(typ)))

	if err := n.store.Create(ctx, rec); err != nil {
		log.Error("failed to store notification", zap.Error(err))
		return
	}

	if n.live != nil {
		n.live.SendToUser(recipient.Hex(), EventNotification, rec)
	}
	if n.push != nil {
		go n.sendPush(rec)
	}
}

// NotifyMentions notifies every mentioned user once.
func (n *Notifier) NotifyMentions(ctx context.Context, mentions []primitive.ObjectID, actor, postID primitive.ObjectID, commentID *primitive.ObjectID) {
	for _, m := range mentions {
		n.Notify(ctx, m, actor, models.NotifyMention, postID, commentID)
	}
}

func (n *Notifier) sendPush(rec *models.Notification) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("panic in push notification", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	log := n.log.With(zap.String("recipient", rec.RecipientID.Hex()))

	sub, err := n.subs.FindByUser(ctx, rec.RecipientID)
	if errors.Is(err, ErrNotFound) {
		return
	}
	if err != nil {
		log.Error("failed to find push subscription", zap.Error(err))
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"title": n.title(ctx, rec),
		"body":  pushBody(rec.Type),
		"data": map[string]interface{}{
			"type":      rec.Type,
			"postId":    rec.PostID.Hex(),
			"timestamp": rec.CreatedAt.Unix(),
		},
	})
	if err != nil {
		log.Error("failed to marshal push payload", zap.Error(err))
		return
	}

	if err := n.push.Send(ctx, sub, payload); err != nil {
		if errors.Is(err, ErrSubscriptionGone) {
			log.Info("push subscription expired, removing")
			if err := n.subs.DeleteByUser(ctx, rec.RecipientID); err != nil {
				log.Error("failed to delete expired subscription", zap.Error(err))
			}
			return
		}
		log.Warn("failed to send push notification", zap.Error(err))
	}
}

func (n *Notifier) title(ctx context.Context, rec *models.Notification) string {
	name := "Someone"
	if u, err := n.users.FindByID(ctx, rec.ActorID); err == nil && u.Name != "" {
		name = u.Name
	}
	switch rec.Type {
	case models.NotifyMention:
		return name + " mentioned you"
	case models.NotifyComment:
		if n.ownsComment(ctx, rec) {
			return name + " replied to your comment"
		}
		return name + " commented on your post"
	default:
		switch {
		case rec.CommentID == nil:
			return name + " liked your post"
		case n.ownsComment(ctx, rec):
			return name + " liked your comment"
		default:
			return name + " liked your reply"
		}
	}
}

// ownsComment reports whether the recipient wrote the comment rec points at.
// A comment notification on a post points at the new comment, whose author
// is the actor, so this is only true for replies.
func (n *Notifier) ownsComment(ctx context.Context, rec *models.Notification) bool {
	if rec.CommentID == nil || n.comments == nil {
		return false
	}
	c, err := n.comments.FindByID(ctx, *rec.CommentID)
	return err == nil && c.AuthorID == rec.RecipientID
}

func pushBody(t models.NotificationType) string {
	switch t {
	case models.NotifyMention:
		return "Tap to see where you were mentioned"
	case models.NotifyComment:
		return "Tap to read the conversation"
	default:
		return "Tap to see the post"
	}
}

// SubscribeInput is a browser PushSubscription as serialized by the client.
type SubscribeInput struct {
	Endpoint string          `json:"endpoint" validate:"required,url"`
	Keys     models.PushKeys `json:"keys" validate:"required"`
}

var subscribeMessages = validation.Messages{
	"endpoint": "A valid push endpoint is required.",
	"p256dh":   "Subscription key p256dh is required.",
	"auth":     "Subscription key auth is required.",
}

// Notifications is the recipient's view of their notifications.
type Notifications struct {
	store NotificationStore
	subs  SubscriptionStore
	push  PushSender
}

func NewNotifications(d Deps) *Notifications {
	return &Notifications{store: d.Notifications, subs: d.Subscriptions, push: d.Push}
}

func (s *Notifications) List(ctx context.Context, recipient primitive.ObjectID, unreadOnly bool, req models.PageRequest) (models.Page[models.Notification], error) {
	req = req.Normalize()
	items, total, err := s.store.List(ctx, recipient, unreadOnly, req.Skip(), req.Limit)
	if err != nil {
		return models.Page[models.Notification]{}, storeErr("list notifications", err)
	}
	return models.NewPage(items, total, req), nil
}

func (s *Notifications) MarkRead(ctx context.Context, recipient primitive.ObjectID, rawID string) error {
	id, err := parseID("notificationId", rawID)
	if err != nil {
		return err
	}
	found, err := s.store.MarkRead(ctx, recipient, id)
	if err != nil {
		return storeErr("mark notification read", err)
	}
	if !found {
		return apperr.NotFound("Notification not found")
	}
	return nil
}

func (s *Notifications) MarkAllRead(ctx context.Context, recipient primitive.ObjectID) (int64, error) {
	n, err := s.store.MarkAllRead(ctx, recipient)
	if err != nil {
		return 0, storeErr("mark notifications read", err)
	}
	return n, nil
}

// Subscribe stores the recipient's push endpoint, replacing any previous one.
func (s *Notifications) Subscribe(ctx context.Context, recipient primitive.ObjectID, in SubscribeInput) error {
	if err := validation.Struct(in, subscribeMessages); err != nil {
		return err
	}
	err := s.subs.Upsert(ctx, &models.PushSubscription{
		ID:        primitive.NewObjectID(),
		UserID:    recipient,
		Endpoint:  in.Endpoint,
		Keys:      in.Keys,
		UpdatedAt: now(),
	})
	if err != nil {
		return storeErr("save push subscription", err)
	}
	return nil
}

// VAPIDPublicKey is empty when Web Push is disabled.
func (s *Notifications) VAPIDPublicKey() string {
	if s.push == nil {
		return ""
	}
	return s.push.PublicKey()
}
