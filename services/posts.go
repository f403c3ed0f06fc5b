package services

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kinship/apperr"
	"kinship/models"
	"kinship/validation"
)

type PostInput struct {
	Title    string   `json:"title" form:"title" validate:"required,max=200"`
	Content  string   `json:"content" form:"content" validate:"required"`
	Media    []string `json:"media" form:"media" validate:"omitempty,dive,url"`
	Tags     []string `json:"tags" form:"tags" validate:"omitempty,dive,max=50"`
	Mentions []string `json:"mentions" form:"mentions" validate:"omitempty,dive,mongodb"`
}

// PostUpdate changes only the fields that are set. Media lists URLs to
// append; RemovedMedia lists URLs to drop.
type PostUpdate struct {
	Title        *string  `json:"title" form:"title"`
	Content      *string  `json:"content" form:"content"`
	Media        []string `json:"media" form:"media"`
	Tags         []string `json:"tags" form:"tags"`
	Mentions     []string `json:"mentions" form:"mentions"`
	RemovedMedia []string `json:"removedMedia" form:"removedMedia"`
}

var postMessages = validation.Messages{
	"title.required":   "Title is required.",
	"title.max":        "Title must not exceed 200 characters.",
	"content.required": "Content is required.",
	"media.url":        "Media must be valid URLs.",
	"tags.max":         "Tags must not exceed 50 characters.",
	"mentions.mongodb": "Mentions must be valid user ids.",
}

// maxParallelDeletes bounds concurrent storage deletes for one post.
const maxParallelDeletes = 4

type Posts struct {
	users    UserStore
	posts    PostStore
	comments CommentStore
	replies  ReplyStore
	likes    LikeStore
	notes    NotificationStore
	media    MediaStore
	notifier *Notifier
	log      *zap.Logger
}

func NewPosts(d Deps, notifier *Notifier) *Posts {
	return &Posts{
		users:    d.Users,
		posts:    d.Posts,
		comments: d.Comments,
		replies:  d.Replies,
		likes:    d.Likes,
		notes:    d.Notifications,
		media:    d.Media,
		notifier: notifier,
		log:      ensureLogger(d.Log).Named("posts"),
	}
}

// Create validates the post, stores the uploads after the given media URLs
// and persists the post. Uploads are removed again if the insert fails.
func (s *Posts) Create(ctx context.Context, author primitive.ObjectID, in PostInput, uploads []models.Upload) (*models.PostView, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in, postMessages); err != nil {
		return nil, err
	}
	mentions, err := parseIDSet("mentions", in.Mentions)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.upload(ctx, uploads)
	if err != nil {
		return nil, err
	}

	ts := now()
	p := &models.Post{
		ID:        primitive.NewObjectID(),
		Title:     in.Title,
		Content:   in.Content,
		AuthorID:  author,
		Media:     append(stringSet(in.Media), uploaded...),
		Tags:      stringSet(in.Tags),
		Mentions:  mentions,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := s.posts.Create(ctx, p); err != nil {
		s.discard(ctx, uploaded)
		return nil, storeErr("create post", err)
	}

	s.notifier.NotifyMentions(ctx, mentions, author, p.ID, nil)
	return s.view(ctx, p, &author)
}

// Get returns one post. viewer may be nil for anonymous requests.
func (s *Posts) Get(ctx context.Context, rawID string, viewer *primitive.ObjectID) (*models.PostView, error) {
	p, err := s.find(ctx, rawID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, p, viewer)
}

func (s *Posts) List(ctx context.Context, req models.PageRequest, viewer *primitive.ObjectID) (models.Page[models.PostView], error) {
	return s.Search(ctx, "", req, viewer)
}

// Search matches query against title, content and tags, case-insensitively.
// An empty query lists every post.
func (s *Posts) Search(ctx context.Context, query string, req models.PageRequest, viewer *primitive.ObjectID) (models.Page[models.PostView], error) {
	req = req.Normalize()
	posts, total, err := s.posts.List(ctx, models.PostQuery{Search: strings.TrimSpace(query)}, req.Skip(), req.Limit)
	if err != nil {
		return models.Page[models.PostView]{}, storeErr("list posts", err)
	}
	views, err := s.views(ctx, posts, viewer)
	if err != nil {
		return models.Page[models.PostView]{}, err
	}
	return models.NewPage(views, total, req), nil
}

// Mine lists every post of author, newest first.
func (s *Posts) Mine(ctx context.Context, author primitive.ObjectID) ([]models.PostView, error) {
	posts, _, err := s.posts.List(ctx, models.PostQuery{AuthorID: &author}, 0, 0)
	if err != nil {
		return nil, storeErr("list posts", err)
	}
	if len(posts) == 0 {
		return nil, apperr.NotFound("No posts found")
	}
	return s.views(ctx, posts, &author)
}

// Update applies the set fields of in. New uploads are stored first, then
// removed media owned by the media store is deleted, then the document is
// rewritten. A failed upload or delete aborts the update and discards the
// new uploads.
func (s *Posts) Update(ctx context.Context, actor primitive.ObjectID, rawID string, in PostUpdate, uploads []models.Upload) (*models.PostView, error) {
	p, err := s.find(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if p.AuthorID != actor {
		return nil, apperr.Forbidden("User is not authorized to update the post")
	}

	merged := PostInput{Title: p.Title, Content: p.Content, Media: in.Media, Tags: p.Tags, Mentions: hexIDs(p.Mentions)}
	if in.Title != nil {
		merged.Title = strings.TrimSpace(*in.Title)
	}
	if in.Content != nil {
		merged.Content = strings.TrimSpace(*in.Content)
	}
	if in.Tags != nil {
		merged.Tags = in.Tags
	}
	if in.Mentions != nil {
		merged.Mentions = in.Mentions
	}
	if err := validation.Struct(merged, postMessages); err != nil {
		return nil, err
	}
	mentions, err := parseIDSet("mentions", merged.Mentions)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.upload(ctx, uploads)
	if err != nil {
		return nil, err
	}

	kept, removed := splitMedia(p.Media, in.RemovedMedia)
	if err := s.deleteMedia(ctx, removed); err != nil {
		s.discard(ctx, uploaded)
		return nil, apperr.Dependency("Failed to delete media", err)
	}

	previous := p.Mentions
	p.Title = merged.Title
	p.Content = merged.Content
	p.Tags = stringSet(merged.Tags)
	p.Mentions = mentions
	p.Media = append(append(kept, stringSet(in.Media)...), uploaded...)
	p.UpdatedAt = now()

	if err := s.posts.Update(ctx, p); err != nil {
		s.discard(ctx, uploaded)
		return nil, lookupErr("update post", "Post not found", err)
	}

	s.notifier.NotifyMentions(ctx, newIDs(previous, mentions), actor, p.ID, nil)
	return s.view(ctx, p, &actor)
}

// Delete removes the post, its stored media and everything hanging off it.
// Only the author may delete; anyone else leaves post and media untouched.
func (s *Posts) Delete(ctx context.Context, actor primitive.ObjectID, rawID string) error {
	p, err := s.find(ctx, rawID)
	if err != nil {
		return err
	}
	if p.AuthorID != actor {
		return apperr.Forbidden("User is not authorized to delete the post")
	}

	if err := s.deleteMedia(ctx, p.Media); err != nil {
		return apperr.Dependency("Failed to delete media", err)
	}
	if err := s.posts.Delete(ctx, p.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return storeErr("delete post", err)
	}

	s.cascade(ctx, p.ID)
	return nil
}

// cascade removes comments, replies, likes and notifications of a deleted
// post. Failures are logged and left to the sweeper.
func (s *Posts) cascade(ctx context.Context, postID primitive.ObjectID) {
	ids := []primitive.ObjectID{postID}
	log := s.log.With(zap.String("postId", postID.Hex()))

	steps := []struct {
		name string
		run  func(context.Context, []primitive.ObjectID) (int64, error)
	}{
		{"comments", s.comments.DeleteByPosts},
		{"replies", s.replies.DeleteByPosts},
		{"likes", s.likes.DeleteByPosts},
		{"notifications", s.notes.DeleteByPosts},
	}
	for _, step := range steps {
		n, err := step.run(ctx, ids)
		if err != nil {
			log.Error("cascade delete failed", zap.String("collection", step.name), zap.Error(err))
			continue
		}
		log.Debug("cascade delete", zap.String("collection", step.name), zap.Int64("count", n))
	}
}

func (s *Posts) find(ctx context.Context, rawID string) (*models.Post, error) {
	id, err := parseID("postId", rawID)
	if err != nil {
		return nil, err
	}
	p, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("find post", "Post not found", err)
	}
	return p, nil
}

// upload stores every file, removing the ones already stored if a later
// one fails.
func (s *Posts) upload(ctx context.Context, uploads []models.Upload) ([]string, error) {
	urls := make([]string, 0, len(uploads))
	for _, u := range uploads {
		url, err := s.media.Upload(ctx, u)
		if err != nil {
			s.discard(ctx, urls)
			return nil, apperr.Dependency("Failed to upload media", err)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// deleteMedia deletes the stored objects among urls concurrently. The first
// failure cancels the rest.
func (s *Posts) deleteMedia(ctx context.Context, urls []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDeletes)
	for _, url := range urls {
		if !ownsMedia(s.media, url) {
			continue
		}
		g.Go(func() error {
			return s.media.Delete(gctx, url)
		})
	}
	return g.Wait()
}

func (s *Posts) discard(ctx context.Context, urls []string) {
	for _, url := range urls {
		if err := s.media.Delete(ctx, url); err != nil {
			s.log.Warn("failed to remove orphaned upload", zap.String("url", url), zap.Error(err))
		}
	}
}

func (s *Posts) view(ctx context.Context, p *models.Post, viewer *primitive.ObjectID) (*models.PostView, error) {
	views, err := s.views(ctx, []models.Post{*p}, viewer)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// views joins posts with their authors, like and comment counts and whether
// viewer liked them.
func (s *Posts) views(ctx context.Context, posts []models.Post, viewer *primitive.ObjectID) ([]models.PostView, error) {
	out := make([]models.PostView, 0, len(posts))
	if len(posts) == 0 {
		return out, nil
	}

	ids := make([]primitive.ObjectID, len(posts))
	authorIDs := make([]primitive.ObjectID, 0, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		authorIDs = append(authorIDs, p.AuthorID)
	}

	authors, err := userIndex(ctx, s.users, authorIDs)
	if err != nil {
		return nil, err
	}
	likeCounts, err := s.likes.Counts(ctx, models.TargetPost, ids)
	if err != nil {
		return nil, storeErr("count likes", err)
	}
	commentCounts, err := s.comments.CountByPosts(ctx, ids)
	if err != nil {
		return nil, storeErr("count comments", err)
	}
	liked := map[primitive.ObjectID]bool{}
	if viewer != nil {
		if liked, err = s.likes.LikedBy(ctx, *viewer, models.TargetPost, ids); err != nil {
			return nil, storeErr("find likes", err)
		}
	}

	for _, p := range posts {
		out = append(out, models.PostView{
			Post:         p,
			Author:       authors.summary(p.AuthorID),
			LikeCount:    likeCounts[p.ID],
			CommentCount: commentCounts[p.ID],
			LikedByMe:    liked[p.ID],
		})
	}
	return out, nil
}

// splitMedia keeps the order of media and separates the entries listed in
// remove.
func splitMedia(media, remove []string) (kept, removed []string) {
	drop := make(map[string]bool, len(remove))
	for _, r := range remove {
		drop[strings.TrimSpace(r)] = true
	}
	kept = make([]string, 0, len(media))
	for _, m := range media {
		if drop[m] {
			removed = append(removed, m)
			continue
		}
		kept = append(kept, m)
	}
	return kept, removed
}

// newIDs returns the ids in next that are not in prev.
func newIDs(prev, next []primitive.ObjectID) []primitive.ObjectID {
	had := make(map[primitive.ObjectID]bool, len(prev))
	for _, id := range prev {
		had[id] = true
	}
	var out []primitive.ObjectID
	for _, id := range next {
		if !had[id] {
			out = append(out, id)
		}
	}
	return out
}

type users map[primitive.ObjectID]models.User

// summary falls back to an id-only summary for deleted users.
func (u users) summary(id primitive.ObjectID) models.UserSummary {
	if user, ok := u[id]; ok {
		return user.Summary()
	}
	return models.UserSummary{ID: id, Name: "Deleted user"}
}

func userIndex(ctx context.Context, store UserStore, ids []primitive.ObjectID) (users, error) {
	found, err := store.FindByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr("find users", err)
	}
	idx := make(users, len(found))
	for _, u := range found {
		idx[u.ID] = u
	}
	return idx, nil
}
