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

type CommentInput struct {
	PostID   string   `json:"postId" validate:"required,mongodb"`
	Content  string   `json:"content" validate:"required"`
	Mentions []string `json:"mentions" validate:"omitempty,dive,mongodb"`
}

// ContentInput is the body of a comment edit and of a reply.
type ContentInput struct {
	Content  string   `json:"content" validate:"required"`
	Mentions []string `json:"mentions" validate:"omitempty,dive,mongodb"`
}

var commentMessages = validation.Messages{
	"postId.required":  "Post id is required.",
	"postId.mongodb":   "Post id must be a valid id.",
	"content.required": "Content is required.",
	"mentions.mongodb": "Mentions must be valid user ids.",
}

// Comments manages comments and their replies.
type Comments struct {
	users    UserStore
	posts    PostStore
	comments CommentStore
	replies  ReplyStore
	likes    LikeStore
	postView *Posts
	notifier *Notifier
	log      *zap.Logger
}

func NewComments(d Deps, posts *Posts, notifier *Notifier) *Comments {
	return &Comments{
		users:    d.Users,
		posts:    d.Posts,
		comments: d.Comments,
		replies:  d.Replies,
		likes:    d.Likes,
		postView: posts,
		notifier: notifier,
		log:      ensureLogger(d.Log).Named("comments"),
	}
}

func (s *Comments) Add(ctx context.Context, author primitive.ObjectID, in CommentInput) (*models.CommentView, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in, commentMessages); err != nil {
		return nil, err
	}
	postID, err := parseID("postId", in.PostID)
	if err != nil {
		return nil, err
	}
	mentions, err := parseIDSet("mentions", in.Mentions)
	if err != nil {
		return nil, err
	}

	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, lookupErr("find post", "Post not found", err)
	}

	ts := now()
	c := &models.Comment{
		ID:        primitive.NewObjectID(),
		PostID:    post.ID,
		AuthorID:  author,
		Content:   in.Content,
		Mentions:  mentions,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, storeErr("create comment", err)
	}

	s.notifier.Notify(ctx, post.AuthorID, author, models.NotifyComment, post.ID, &c.ID)
	s.notifier.NotifyMentions(ctx, mentions, author, post.ID, &c.ID)
	return s.commentView(ctx, c, &author)
}

// Edit is allowed for the comment author only.
func (s *Comments) Edit(ctx context.Context, actor primitive.ObjectID, rawID string, in ContentInput) (*models.CommentView, error) {
	c, err := s.findComment(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != actor {
		return nil, apperr.Forbidden("User is not authorized to edit the comment")
	}
	mentions, err := s.content(&in)
	if err != nil {
		return nil, err
	}

	previous := c.Mentions
	c.Content = in.Content
	c.Mentions = mentions
	c.UpdatedAt = now()
	if err := s.comments.Update(ctx, c); err != nil {
		return nil, lookupErr("update comment", "Comment not found", err)
	}

	s.notifier.NotifyMentions(ctx, newIDs(previous, mentions), actor, c.PostID, &c.ID)
	return s.commentView(ctx, c, &actor)
}

// Delete removes a comment of the given post together with its replies and
// their likes. The comment author and the post author may delete.
func (s *Comments) Delete(ctx context.Context, actor primitive.ObjectID, rawPostID, rawCommentID string) error {
	postID, err := parseID("postId", rawPostID)
	if err != nil {
		return err
	}
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return lookupErr("find post", "Post not found", err)
	}
	c, err := s.findComment(ctx, rawCommentID)
	if err != nil {
		return err
	}
	if c.PostID != post.ID {
		return apperr.NotFound("Comment not found")
	}
	if c.AuthorID != actor && post.AuthorID != actor {
		return apperr.Forbidden("User is not authorized to delete the comment")
	}

	if err := s.comments.Delete(ctx, c.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return storeErr("delete comment", err)
	}
	s.cascade(ctx, c.ID)
	return nil
}

func (s *Comments) cascade(ctx context.Context, commentID primitive.ObjectID) {
	log := s.log.With(zap.String("commentId", commentID.Hex()))
	ids := []primitive.ObjectID{commentID}

	replies, err := s.replies.ListByComments(ctx, ids)
	if err != nil {
		log.Error("failed to list replies for cascade", zap.Error(err))
	} else if len(replies) > 0 {
		replyIDs := make([]primitive.ObjectID, len(replies))
		for i, r := range replies {
			replyIDs[i] = r.ID
		}
		if _, err := s.likes.DeleteByTargets(ctx, models.TargetReply, replyIDs); err != nil {
			log.Error("failed to delete reply likes", zap.Error(err))
		}
	}
	if _, err := s.replies.DeleteByComments(ctx, ids); err != nil {
		log.Error("failed to delete replies", zap.Error(err))
	}
	if _, err := s.likes.DeleteByTargets(ctx, models.TargetComment, ids); err != nil {
		log.Error("failed to delete comment likes", zap.Error(err))
	}
}

// Thread returns the post with one page of comments, oldest first, each with
// all its replies.
func (s *Comments) Thread(ctx context.Context, rawPostID string, req models.PageRequest, viewer *primitive.ObjectID) (*models.Thread, error) {
	req = req.Normalize()
	post, err := s.postView.Get(ctx, rawPostID, viewer)
	if err != nil {
		return nil, err
	}

	comments, total, err := s.comments.ListByPost(ctx, post.ID, req.Skip(), req.Limit)
	if err != nil {
		return nil, storeErr("list comments", err)
	}
	views, err := s.commentViews(ctx, comments, viewer)
	if err != nil {
		return nil, err
	}
	return &models.Thread{Post: *post, Comments: models.NewPage(views, total, req)}, nil
}

func (s *Comments) AddReply(ctx context.Context, author primitive.ObjectID, rawCommentID string, in ContentInput) (*models.ReplyView, error) {
	mentions, err := s.content(&in)
	if err != nil {
		return nil, err
	}
	c, err := s.findComment(ctx, rawCommentID)
	if err != nil {
		return nil, err
	}

	ts := now()
	r := &models.Reply{
		ID:        primitive.NewObjectID(),
		CommentID: c.ID,
		PostID:    c.PostID,
		AuthorID:  author,
		Content:   in.Content,
		Mentions:  mentions,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := s.replies.Create(ctx, r); err != nil {
		return nil, storeErr("create reply", err)
	}

	s.notifier.Notify(ctx, c.AuthorID, author, models.NotifyComment, c.PostID, &c.ID)
	s.notifier.NotifyMentions(ctx, mentions, author, c.PostID, &c.ID)
	return s.replyView(ctx, r, &author)
}

// EditReply is allowed for the reply author only.
func (s *Comments) EditReply(ctx context.Context, actor primitive.ObjectID, rawID string, in ContentInput) (*models.ReplyView, error) {
	r, err := s.findReply(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if r.AuthorID != actor {
		return nil, apperr.Forbidden("User is not authorized to edit the reply")
	}
	mentions, err := s.content(&in)
	if err != nil {
		return nil, err
	}

	previous := r.Mentions
	r.Content = in.Content
	r.Mentions = mentions
	r.UpdatedAt = now()
	if err := s.replies.Update(ctx, r); err != nil {
		return nil, lookupErr("update reply", "Reply not found", err)
	}

	s.notifier.NotifyMentions(ctx, newIDs(previous, mentions), actor, r.PostID, &r.CommentID)
	return s.replyView(ctx, r, &actor)
}

// DeleteReply is allowed for the reply author, the comment author and the
// post author.
func (s *Comments) DeleteReply(ctx context.Context, actor primitive.ObjectID, rawID string) error {
	r, err := s.findReply(ctx, rawID)
	if err != nil {
		return err
	}

	allowed := r.AuthorID == actor
	if !allowed {
		if c, err := s.comments.FindByID(ctx, r.CommentID); err == nil && c.AuthorID == actor {
			allowed = true
		}
	}
	if !allowed {
		if p, err := s.posts.FindByID(ctx, r.PostID); err == nil && p.AuthorID == actor {
			allowed = true
		}
	}
	if !allowed {
		return apperr.Forbidden("User is not authorized to delete the reply")
	}

	if err := s.replies.Delete(ctx, r.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return storeErr("delete reply", err)
	}
	if _, err := s.likes.DeleteByTargets(ctx, models.TargetReply, []primitive.ObjectID{r.ID}); err != nil {
		s.log.Error("failed to delete reply likes", zap.String("replyId", r.ID.Hex()), zap.Error(err))
	}
	return nil
}

func (s *Comments) content(in *ContentInput) ([]primitive.ObjectID, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(*in, commentMessages); err != nil {
		return nil, err
	}
	return parseIDSet("mentions", in.Mentions)
}

func (s *Comments) findComment(ctx context.Context, rawID string) (*models.Comment, error) {
	id, err := parseID("commentId", rawID)
	if err != nil {
		return nil, err
	}
	c, err := s.comments.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("find comment", "Comment not found", err)
	}
	return c, nil
}

func (s *Comments) findReply(ctx context.Context, rawID string) (*models.Reply, error) {
	id, err := parseID("replyId", rawID)
	if err != nil {
		return nil, err
	}
	r, err := s.replies.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("find reply", "Reply not found", err)
	}
	return r, nil
}

func (s *Comments) commentView(ctx context.Context, c *models.Comment, viewer *primitive.ObjectID) (*models.CommentView, error) {
	views, err := s.commentViews(ctx, []models.Comment{*c}, viewer)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *Comments) replyView(ctx context.Context, r *models.Reply, viewer *primitive.ObjectID) (*models.ReplyView, error) {
	authors, err := userIndex(ctx, s.users, []primitive.ObjectID{r.AuthorID})
	if err != nil {
		return nil, err
	}
	ids := []primitive.ObjectID{r.ID}
	counts, liked, err := s.likeState(ctx, models.TargetReply, ids, viewer)
	if err != nil {
		return nil, err
	}
	return &models.ReplyView{
		Reply:     *r,
		Author:    authors.summary(r.AuthorID),
		LikeCount: counts[r.ID],
		LikedByMe: liked[r.ID],
	}, nil
}

// commentViews joins comments with authors, like state and their replies.
func (s *Comments) commentViews(ctx context.Context, comments []models.Comment, viewer *primitive.ObjectID) ([]models.CommentView, error) {
	out := make([]models.CommentView, 0, len(comments))
	if len(comments) == 0 {
		return out, nil
	}

	commentIDs := make([]primitive.ObjectID, len(comments))
	authorIDs := make([]primitive.ObjectID, 0, len(comments))
	for i, c := range comments {
		commentIDs[i] = c.ID
		authorIDs = append(authorIDs, c.AuthorID)
	}

	replies, err := s.replies.ListByComments(ctx, commentIDs)
	if err != nil {
		return nil, storeErr("list replies", err)
	}
	replyIDs := make([]primitive.ObjectID, len(replies))
	for i, r := range replies {
		replyIDs[i] = r.ID
		authorIDs = append(authorIDs, r.AuthorID)
	}

	authors, err := userIndex(ctx, s.users, authorIDs)
	if err != nil {
		return nil, err
	}
	commentCounts, commentLiked, err := s.likeState(ctx, models.TargetComment, commentIDs, viewer)
	if err != nil {
		return nil, err
	}
	replyCounts, replyLiked, err := s.likeState(ctx, models.TargetReply, replyIDs, viewer)
	if err != nil {
		return nil, err
	}

	byComment := make(map[primitive.ObjectID][]models.ReplyView, len(comments))
	for _, r := range replies {
		byComment[r.CommentID] = append(byComment[r.CommentID], models.ReplyView{
			Reply:     r,
			Author:    authors.summary(r.AuthorID),
			LikeCount: replyCounts[r.ID],
			LikedByMe: replyLiked[r.ID],
		})
	}

	for _, c := range comments {
		rv := byComment[c.ID]
		if rv == nil {
			rv = []models.ReplyView{}
		}
		out = append(out, models.CommentView{
			Comment:   c,
			Author:    authors.summary(c.AuthorID),
			LikeCount: commentCounts[c.ID],
			LikedByMe: commentLiked[c.ID],
			Replies:   rv,
		})
	}
	return out, nil
}

func (s *Comments) likeState(ctx context.Context, t models.TargetType, ids []primitive.ObjectID, viewer *primitive.ObjectID) (map[primitive.ObjectID]int64, map[primitive.ObjectID]bool, error) {
	if len(ids) == 0 {
		return map[primitive.ObjectID]int64{}, map[primitive.ObjectID]bool{}, nil
	}
	counts, err := s.likes.Counts(ctx, t, ids)
	if err != nil {
		return nil, nil, storeErr("count likes", err)
	}
	liked := map[primitive.ObjectID]bool{}
	if viewer != nil {
		if liked, err = s.likes.LikedBy(ctx, *viewer, t, ids); err != nil {
			return nil, nil, storeErr("find likes", err)
		}
	}
	return counts, liked, nil
}
