package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"kinship/apperr"
	"kinship/models"
	"kinship/repository/memstore"
	"kinship/security"
	"kinship/services"
	"kinship/storage"
)

type env struct {
	ctx      context.Context
	stores   services.Stores
	media    *storage.Memory
	accounts *services.Accounts
	profiles *services.Profiles
	graph    *services.Graph
	posts    *services.Posts
	comments *services.Comments
	likes    *services.Likes
	notes    *services.Notifications
	sweeper  *services.Sweeper
}

func newEnv(t *testing.T, opts ...func(*services.Deps)) *env {
	t.Helper()
	media := storage.NewMemory()
	d := services.Deps{
		Stores: memstore.New().Stores(),
		Media:  media,
		Hasher: security.NewBcryptHasher(),
		Tokens: security.NewTokens("test-secret", time.Hour),
	}
	for _, opt := range opts {
		opt(&d)
	}
	notifier := services.NewNotifier(d)
	posts := services.NewPosts(d, notifier)
	return &env{
		ctx:      context.Background(),
		stores:   d.Stores,
		media:    media,
		accounts: services.NewAccounts(d, time.Hour),
		profiles: services.NewProfiles(d),
		graph:    services.NewGraph(d),
		posts:    posts,
		comments: services.NewComments(d, posts, notifier),
		likes:    services.NewLikes(d, notifier),
		notes:    services.NewNotifications(d),
		sweeper:  services.NewSweeper(d, 0),
	}
}

func strPtr(s string) *string { return &s }

// member registers a user and gives them a profile with bio.
func (e *env) member(t *testing.T, name, bio string) primitive.ObjectID {
	t.Helper()
	u, err := e.accounts.Register(e.ctx, services.RegisterInput{
		Name:      name,
		Email:     fmt.Sprintf("%s-%s@example.com", name, primitive.NewObjectID().Hex()),
		Password:  "secret1",
		Password2: "secret1",
	})
	require.NoError(t, err)
	_, err = e.profiles.Create(e.ctx, u.ID, services.ProfileInput{Bio: strPtr(bio)}, nil)
	require.NoError(t, err)
	return u.ID
}

func (e *env) post(t *testing.T, author primitive.ObjectID, title string) *models.PostView {
	t.Helper()
	p, err := e.posts.Create(e.ctx, author, services.PostInput{Title: title, Content: "body of " + title}, nil)
	require.NoError(t, err)
	return p
}

func TestRegisterRejectsMismatchedPasswords(t *testing.T) {
	e := newEnv(t)
	_, err := e.accounts.Register(e.ctx, services.RegisterInput{
		Name: "ann", Email: "ann@example.com", Password: "secret1", Password2: "secret2",
	})
	require.Error(t, err)

	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.KindValidation, ae.Kind)
	assert.Equal(t, "Passwords do not match.", ae.Fields["password2"])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	e := newEnv(t)
	in := services.RegisterInput{Name: "ann", Email: "Ann@Example.com", Password: "secret1", Password2: "secret1"}
	_, err := e.accounts.Register(e.ctx, in)
	require.NoError(t, err)

	in.Email = "ann@example.com"
	_, err = e.accounts.Register(e.ctx, in)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	_, err := e.accounts.Register(e.ctx, services.RegisterInput{
		Name: "ann", Email: "ann@example.com", Password: "secret1", Password2: "secret1",
	})
	require.NoError(t, err)

	session, err := e.accounts.Login(e.ctx, services.LoginInput{Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.True(t, session.Success)
	assert.Contains(t, session.Token, "Bearer ")
	assert.Equal(t, "ann", session.User.Name)

	_, err = e.accounts.Login(e.ctx, services.LoginInput{Email: "ann@example.com", Password: "wrong"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = e.accounts.Login(e.ctx, services.LoginInput{Email: "nobody@example.com", Password: "secret1"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCreateProfileTwice(t *testing.T) {
	e := newEnv(t)
	id := e.member(t, "ann", "hello")

	_, err := e.profiles.Create(e.ctx, id, services.ProfileInput{}, nil)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestProfileDefaults(t *testing.T) {
	e := newEnv(t)
	u, err := e.accounts.Register(e.ctx, services.RegisterInput{
		Name: "ann", Email: "ann@example.com", Password: "secret1", Password2: "secret1",
	})
	require.NoError(t, err)

	p, err := e.profiles.Create(e.ctx, u.ID, services.ProfileInput{}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultAvatar, p.Avatar)
	assert.Equal(t, models.VisibilityPrivate, p.Visibility)
}

func TestFollowRoundTrip(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")
	b := e.member(t, "bob", "")

	require.NoError(t, e.graph.Follow(e.ctx, a, b.Hex()))

	following, err := e.graph.Connections(e.ctx, a, models.Following, "", models.PageRequest{})
	require.NoError(t, err)
	require.Len(t, following.Items, 1)
	assert.Equal(t, b, following.Items[0].UserID)

	followers, err := e.graph.Connections(e.ctx, b, models.Followers, "", models.PageRequest{})
	require.NoError(t, err)
	require.Len(t, followers.Items, 1)
	assert.Equal(t, a, followers.Items[0].UserID)

	require.NoError(t, e.graph.Unfollow(e.ctx, a, b.Hex()))
	following, err = e.graph.Connections(e.ctx, a, models.Following, "", models.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, following.Items)
	assert.Equal(t, int64(0), following.TotalCount)
	assert.Equal(t, int64(0), following.TotalPages)
}

func TestFollowIsIdempotent(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")
	b := e.member(t, "bob", "")

	require.NoError(t, e.graph.Follow(e.ctx, a, b.Hex()))
	require.NoError(t, e.graph.Follow(e.ctx, a, b.Hex()))

	followers, err := e.graph.Connections(e.ctx, b, models.Followers, "", models.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), followers.TotalCount)

	// unfollowing a user you do not follow is a no-op
	c := e.member(t, "cat", "")
	assert.NoError(t, e.graph.Unfollow(e.ctx, a, c.Hex()))
}

func TestFollowRejectsSelfAndMissingProfile(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")

	err := e.graph.Follow(e.ctx, a, a.Hex())
	assert.True(t, apperr.Is(err, apperr.KindInvalidOperation))

	err = e.graph.Follow(e.ctx, a, primitive.NewObjectID().Hex())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = e.graph.Follow(e.ctx, a, "not-an-id")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestConnectionsPagination(t *testing.T) {
	e := newEnv(t)
	owner := e.member(t, "owner", "")

	var ids []primitive.ObjectID
	for i := 0; i < 25; i++ {
		id := e.member(t, fmt.Sprintf("user%02d", i), "")
		require.NoError(t, e.graph.Follow(e.ctx, id, owner.Hex()))
		ids = append(ids, id)
	}

	page, err := e.graph.Connections(e.ctx, owner, models.Followers, "", models.PageRequest{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(25), page.TotalCount)
	assert.Equal(t, int64(3), page.TotalPages)
	assert.Equal(t, 2, page.CurrentPage)
	require.Len(t, page.Items, 10)
	for i, c := range page.Items {
		assert.Equal(t, ids[10+i], c.UserID)
	}

	last, err := e.graph.Connections(e.ctx, owner, models.Followers, "", models.PageRequest{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, last.Items, 5)

	beyond, err := e.graph.Connections(e.ctx, owner, models.Followers, "", models.PageRequest{Page: 9, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, int64(25), beyond.TotalCount)
}

func TestConnectionsSearchMatchesNameOrBio(t *testing.T) {
	e := newEnv(t)
	owner := e.member(t, "owner", "")
	berliner := e.member(t, "ann", "Living in Berlin")
	named := e.member(t, "berlinda", "")
	other := e.member(t, "cat", "Paris")
	for _, id := range []primitive.ObjectID{berliner, named, other} {
		require.NoError(t, e.graph.Follow(e.ctx, owner, id.Hex()))
	}

	page, err := e.graph.Connections(e.ctx, owner, models.Following, "BERLIN", models.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.TotalCount)
	require.Len(t, page.Items, 2)
	assert.Equal(t, berliner, page.Items[0].UserID)
	assert.Equal(t, named, page.Items[1].UserID)
}

func TestConnectionsRequireOwnerProfile(t *testing.T) {
	e := newEnv(t)
	_, err := e.graph.Connections(e.ctx, primitive.NewObjectID(), models.Followers, "", models.PageRequest{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestPostValidation(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")

	_, err := e.posts.Create(e.ctx, a, services.PostInput{Title: "  ", Content: "x"}, nil)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.KindValidation, ae.Kind)
	assert.Contains(t, ae.Fields, "title")
}

func TestSearchPosts(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")
	e.post(t, a, "Go tips")
	e.post(t, a, "Cooking")
	_, err := e.posts.Create(e.ctx, a, services.PostInput{Title: "Misc", Content: "stuff", Tags: []string{"golang"}}, nil)
	require.NoError(t, err)

	page, err := e.posts.Search(e.ctx, "go", models.PageRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.TotalCount)
	// newest first
	assert.Equal(t, "Misc", page.Items[0].Title)
	assert.Equal(t, "Go tips", page.Items[1].Title)

	all, err := e.posts.List(e.ctx, models.PageRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.TotalCount)
}

func TestMinePostsEmpty(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")
	_, err := e.posts.Mine(e.ctx, a)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestLikeIsIdempotent(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")
	b := e.member(t, "bob", "")
	p := e.post(t, a, "hello")

	for i := 0; i < 2; i++ {
		state, err := e.likes.Like(e.ctx, b, models.TargetPost, p.ID.Hex())
		require.NoError(t, err)
		assert.True(t, state.Liked)
		assert.Equal(t, int64(1), state.LikeCount)
	}

	view, err := e.posts.Get(e.ctx, p.ID.Hex(), &b)
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.LikeCount)
	assert.True(t, view.LikedByMe)

	likers, err := e.likes.Likers(e.ctx, models.TargetPost, p.ID.Hex())
	require.NoError(t, err)
	require.Len(t, likers, 1)
	assert.Equal(t, b, likers[0].ID)

	for i := 0; i < 2; i++ {
		state, err := e.likes.Unlike(e.ctx, b, models.TargetPost, p.ID.Hex())
		require.NoError(t, err)
		assert.False(t, state.Liked)
		assert.Equal(t, int64(0), state.LikeCount)
	}

	// only the first like notified the author
	notes, err := e.notes.List(e.ctx, a, false, models.PageRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(1), notes.TotalCount)
	assert.Equal(t, models.NotifyLike, notes.Items[0].Type)
}

func TestLikeMissingTarget(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")
	_, err := e.likes.Like(e.ctx, a, models.TargetComment, primitive.NewObjectID().Hex())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeletePostByOtherUserKeepsMedia(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")
	b := e.member(t, "bob", "")

	p, err := e.posts.Create(e.ctx, a, services.PostInput{Title: "pic", Content: "look"},
		[]models.Upload{{Filename: "a.png", ContentType: "image/png", Data: []byte("png")}})
	require.NoError(t, err)
	require.Len(t, p.Media, 1)

	err = e.posts.Delete(e.ctx, b, p.ID.Hex())
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.True(t, e.media.Has(p.Media[0]))

	_, err = e.posts.Get(e.ctx, p.ID.Hex(), nil)
	assert.NoError(t, err)
}

func TestDeletePostAbortsWhenMediaDeleteFails(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")
	p, err := e.posts.Create(e.ctx, a, services.PostInput{Title: "pic", Content: "look"},
		[]models.Upload{{Filename: "a.png", ContentType: "image/png", Data: []byte("png")}})
	require.NoError(t, err)

	e.media.FailDelete = errors.New("storage down")
	err = e.posts.Delete(e.ctx, a, p.ID.Hex())
	assert.True(t, apperr.Is(err, apperr.KindDependency))

	_, err = e.posts.Get(e.ctx, p.ID.Hex(), nil)
	assert.NoError(t, err, "post must survive a failed media delete")

	e.media.FailDelete = nil
	require.NoError(t, e.posts.Delete(e.ctx, a, p.ID.Hex()))
	assert.Equal(t, 0, e.media.Len())
}

func TestDeletePostCascades(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")
	b := e.member(t, "bob", "")
	p := e.post(t, a, "hello")

	c, err := e.comments.Add(e.ctx, b, services.CommentInput{PostID: p.ID.Hex(), Content: "nice"})
	require.NoError(t, err)
	r, err := e.comments.AddReply(e.ctx, a, c.ID.Hex(), services.ContentInput{Content: "thanks"})
	require.NoError(t, err)
	_, err = e.likes.Like(e.ctx, b, models.TargetReply, r.ID.Hex())
	require.NoError(t, err)

	require.NoError(t, e.posts.Delete(e.ctx, a, p.ID.Hex()))

	_, err = e.stores.Comments.FindByID(e.ctx, c.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
	_, err = e.stores.Replies.FindByID(e.ctx, r.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
	counts, err := e.stores.Likes.Counts(e.ctx, models.TargetReply, []primitive.ObjectID{r.ID})
	require.NoError(t, err)
	assert.Zero(t, counts[r.ID])

	notes, err := e.notes.List(e.ctx, a, false, models.PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, notes.TotalCount)
}

func TestCommentThread(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")
	b := e.member(t, "bob", "")
	p := e.post(t, a, "hello")

	first, err := e.comments.Add(e.ctx, b, services.CommentInput{PostID: p.ID.Hex(), Content: "first"})
	require.NoError(t, err)
	_, err = e.comments.Add(e.ctx, a, services.CommentInput{PostID: p.ID.Hex(), Content: "second"})
	require.NoError(t, err)
	_, err = e.comments.AddReply(e.ctx, a, first.ID.Hex(), services.ContentInput{Content: "reply"})
	require.NoError(t, err)

	thread, err := e.comments.Thread(e.ctx, p.ID.Hex(), models.PageRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), thread.Post.CommentCount)
	require.Len(t, thread.Comments.Items, 2)
	assert.Equal(t, "first", thread.Comments.Items[0].Content)
	require.Len(t, thread.Comments.Items[0].Replies, 1)
	assert.Empty(t, thread.Comments.Items[1].Replies)
}

func TestCommentPermissions(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")
	b := e.member(t, "bob", "")
	c := e.member(t, "cat", "")
	p := e.post(t, a, "hello")
	other := e.post(t, a, "other")

	cm, err := e.comments.Add(e.ctx, b, services.CommentInput{PostID: p.ID.Hex(), Content: "hi"})
	require.NoError(t, err)

	_, err = e.comments.Edit(e.ctx, a, cm.ID.Hex(), services.ContentInput{Content: "edited"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	err = e.comments.Delete(e.ctx, c, p.ID.Hex(), cm.ID.Hex())
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	err = e.comments.Delete(e.ctx, a, other.ID.Hex(), cm.ID.Hex())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	// the post author may delete comments on their post
	assert.NoError(t, e.comments.Delete(e.ctx, a, p.ID.Hex(), cm.ID.Hex()))
}

func TestNotificationsMarkRead(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")
	b := e.member(t, "bob", "")
	p := e.post(t, a, "hello")
	_, err := e.comments.Add(e.ctx, b, services.CommentInput{PostID: p.ID.Hex(), Content: "hi"})
	require.NoError(t, err)
	_, err = e.likes.Like(e.ctx, b, models.TargetPost, p.ID.Hex())
	require.NoError(t, err)

	unread, err := e.notes.List(e.ctx, a, true, models.PageRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(2), unread.TotalCount)

	require.NoError(t, e.notes.MarkRead(e.ctx, a, unread.Items[0].ID.Hex()))
	err = e.notes.MarkRead(e.ctx, b, unread.Items[1].ID.Hex())
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "recipients only see their own notifications")

	n, err := e.notes.MarkAllRead(e.ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	unread, err = e.notes.List(e.ctx, a, true, models.PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, unread.TotalCount)
}

func TestSweeperRemovesOrphans(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")
	b := e.member(t, "bob", "")
	require.NoError(t, e.graph.Follow(e.ctx, a, b.Hex()))
	p := e.post(t, a, "hello")
	c, err := e.comments.Add(e.ctx, b, services.CommentInput{PostID: p.ID.Hex(), Content: "hi"})
	require.NoError(t, err)
	_, err = e.comments.AddReply(e.ctx, a, c.ID.Hex(), services.ContentInput{Content: "yo"})
	require.NoError(t, err)
	_, err = e.likes.Like(e.ctx, b, models.TargetPost, p.ID.Hex())
	require.NoError(t, err)

	// bypass the service cascades
	require.NoError(t, e.stores.Posts.Delete(e.ctx, p.ID))
	require.NoError(t, e.stores.Users.Delete(e.ctx, b))

	report, err := e.sweeper.Sweep(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report["follows"])
	assert.Equal(t, int64(1), report["comments"])
	assert.Equal(t, int64(1), report["replies"])
	assert.Equal(t, int64(1), report["likes.post"])

	again, err := e.sweeper.Sweep(e.ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func upload(name string) models.Upload {
	return models.Upload{Filename: name, ContentType: "image/png", Data: []byte(name)}
}

func TestRegisterRejectsLongPassword(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name     string
		password string
	}{
		{"ascii", strings.Repeat("a", 80)},
		{"multibyte", strings.Repeat("é", 40)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.accounts.Register(e.ctx, services.RegisterInput{
				Name: "ann", Email: tt.name + "@example.com", Password: tt.password, Password2: tt.password,
			})
			var ae *apperr.Error
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, apperr.KindValidation, ae.Kind)
			assert.Equal(t, "Password must not exceed 72 characters.", ae.Fields["password"])
		})
	}
}

func TestHugePageNumber(t *testing.T) {
	e := newEnv(t)
	owner := e.member(t, "owner", "")
	fan := e.member(t, "fan", "")
	require.NoError(t, e.graph.Follow(e.ctx, fan, owner.Hex()))
	e.post(t, owner, "hello")

	req := models.PageRequest{Page: 1<<62 + 1, Limit: 10}
	require.NotPanics(t, func() {
		page, err := e.graph.Connections(e.ctx, owner, models.Followers, "", req)
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.Equal(t, int64(1), page.TotalCount)

		posts, err := e.posts.List(e.ctx, req, nil)
		require.NoError(t, err)
		assert.Empty(t, posts.Items)

		profiles, err := e.profiles.List(e.ctx, req)
		require.NoError(t, err)
		assert.Empty(t, profiles.Items)
	})
}

func TestUpdatePostMedia(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")
	p, err := e.posts.Create(e.ctx, a, services.PostInput{
		Title: "pics", Content: "look", Media: []string{"https://example.com/a.png"},
	}, []models.Upload{upload("one.png"), upload("two.png")})
	require.NoError(t, err)
	require.Len(t, p.Media, 3)
	external, first, second := p.Media[0], p.Media[1], p.Media[2]

	updated, err := e.posts.Update(e.ctx, a, p.ID.Hex(), services.PostUpdate{
		Title:        strPtr("more pics"),
		Media:        []string{"https://example.com/b.png"},
		RemovedMedia: []string{first},
	}, []models.Upload{upload("three.png")})
	require.NoError(t, err)

	assert.Equal(t, "more pics", updated.Title)
	assert.Equal(t, "look", updated.Content)
	require.Len(t, updated.Media, 4)
	assert.Equal(t, []string{external, second, "https://example.com/b.png"}, updated.Media[:3])
	assert.False(t, e.media.Has(first))
	assert.True(t, e.media.Has(second))
	assert.True(t, e.media.Has(updated.Media[3]))
}

func TestUpdatePostPermissions(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")
	b := e.member(t, "bob", "")
	p := e.post(t, a, "hello")

	_, err := e.posts.Update(e.ctx, b, p.ID.Hex(), services.PostUpdate{Title: strPtr("mine now")}, nil)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = e.posts.Update(e.ctx, a, primitive.NewObjectID().Hex(), services.PostUpdate{Title: strPtr("x")}, nil)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	got, err := e.posts.Get(e.ctx, p.ID.Hex(), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Title)
}

func TestUpdatePostAbortsWhenMediaDeleteFails(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")
	p, err := e.posts.Create(e.ctx, a, services.PostInput{Title: "pic", Content: "look"}, []models.Upload{upload("a.png")})
	require.NoError(t, err)
	old := p.Media[0]

	e.media.FailDelete = errors.New("storage down")
	_, err = e.posts.Update(e.ctx, a, p.ID.Hex(), services.PostUpdate{
		Title: strPtr("changed"), RemovedMedia: []string{old},
	}, nil)
	assert.True(t, apperr.Is(err, apperr.KindDependency))

	got, err := e.posts.Get(e.ctx, p.ID.Hex(), nil)
	require.NoError(t, err)
	assert.Equal(t, "pic", got.Title)
	assert.Equal(t, []string{old}, got.Media)
	assert.True(t, e.media.Has(old))
}

func TestUpdatePostKeepsMediaWhenUploadFails(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")
	p, err := e.posts.Create(e.ctx, a, services.PostInput{Title: "pic", Content: "look"}, []models.Upload{upload("a.png")})
	require.NoError(t, err)
	old := p.Media[0]

	e.media.FailUpload = errors.New("storage down")
	_, err = e.posts.Update(e.ctx, a, p.ID.Hex(), services.PostUpdate{RemovedMedia: []string{old}},
		[]models.Upload{upload("b.png")})
	assert.True(t, apperr.Is(err, apperr.KindDependency))

	got, err := e.posts.Get(e.ctx, p.ID.Hex(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{old}, got.Media)
	assert.True(t, e.media.Has(old), "removed media must outlive a failed update")
	assert.Equal(t, 1, e.media.Len())
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t)
	u, err := e.accounts.Register(e.ctx, services.RegisterInput{
		Name: "ann", Email: "ann@example.com", Password: "secret1", Password2: "secret1",
	})
	require.NoError(t, err)
	a := u.ID
	stranger := e.member(t, "bob", "")

	created, err := e.profiles.Create(e.ctx, a, services.ProfileInput{Bio: strPtr("hi")}, &models.Upload{
		Filename: "me.png", ContentType: "image/png", Data: []byte("me"),
	})
	require.NoError(t, err)
	oldAvatar := created.Avatar
	require.True(t, e.media.Has(oldAvatar))

	_, err = e.profiles.Update(e.ctx, stranger, created.ID.Hex(), services.ProfileInput{Bio: strPtr("hacked")}, nil)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	updated, err := e.profiles.Update(e.ctx, a, created.ID.Hex(), services.ProfileInput{
		Bio: strPtr("new bio"), Visibility: strPtr(string(models.VisibilityPublic)),
	}, &models.Upload{Filename: "me2.png", ContentType: "image/png", Data: []byte("me2")})
	require.NoError(t, err)
	assert.Equal(t, "new bio", updated.Bio)
	assert.Equal(t, models.VisibilityPublic, updated.Visibility)
	assert.NotEqual(t, oldAvatar, updated.Avatar)
	assert.False(t, e.media.Has(oldAvatar))
	assert.True(t, e.media.Has(updated.Avatar))
	assert.Equal(t, 1, e.media.Len())
}

func TestDeleteProfileRemovesEdgesAndUser(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")
	b := e.member(t, "bob", "")
	require.NoError(t, e.graph.Follow(e.ctx, a, b.Hex()))
	require.NoError(t, e.graph.Follow(e.ctx, b, a.Hex()))

	require.NoError(t, e.profiles.Delete(e.ctx, b))

	following, err := e.graph.Connections(e.ctx, a, models.Following, "", models.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, following.Items)
	assert.Zero(t, following.TotalCount)

	followers, err := e.graph.Connections(e.ctx, a, models.Followers, "", models.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, followers.Items)

	_, err = e.stores.Users.FindByID(e.ctx, b)
	assert.ErrorIs(t, err, services.ErrNotFound)
	_, err = e.profiles.Get(e.ctx, b)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	// nothing left to delete the second time
	err = e.profiles.Delete(e.ctx, b)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestReplyPermissions(t *testing.T) {
	e := newEnv(t)
	postAuthor := e.member(t, "ann", "")
	commentAuthor := e.member(t, "bob", "")
	replyAuthor := e.member(t, "cat", "")
	stranger := e.member(t, "dan", "")
	p := e.post(t, postAuthor, "hello")
	c, err := e.comments.Add(e.ctx, commentAuthor, services.CommentInput{PostID: p.ID.Hex(), Content: "hi"})
	require.NoError(t, err)

	reply := func() string {
		r, err := e.comments.AddReply(e.ctx, replyAuthor, c.ID.Hex(), services.ContentInput{Content: "yo"})
		require.NoError(t, err)
		return r.ID.Hex()
	}
	r := reply()

	for _, actor := range []primitive.ObjectID{postAuthor, commentAuthor, stranger} {
		_, err = e.comments.EditReply(e.ctx, actor, r, services.ContentInput{Content: "edited"})
		assert.True(t, apperr.Is(err, apperr.KindForbidden))
	}
	edited, err := e.comments.EditReply(e.ctx, replyAuthor, r, services.ContentInput{Content: "edited"})
	require.NoError(t, err)
	assert.Equal(t, "edited", edited.Content)

	err = e.comments.DeleteReply(e.ctx, stranger, r)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	for _, actor := range []primitive.ObjectID{replyAuthor, commentAuthor, postAuthor} {
		id := reply()
		require.NoError(t, e.comments.DeleteReply(e.ctx, actor, id))
		_, err = e.comments.EditReply(e.ctx, replyAuthor, id, services.ContentInput{Content: "gone"})
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	}
}

func TestUnlikeCommentAndReply(t *testing.T) {
	e := newEnv(t)
	a := e.member(t, "ann", "")
	b := e.member(t, "bob", "")
	p := e.post(t, a, "hello")
	c, err := e.comments.Add(e.ctx, b, services.CommentInput{PostID: p.ID.Hex(), Content: "hi"})
	require.NoError(t, err)
	r, err := e.comments.AddReply(e.ctx, a, c.ID.Hex(), services.ContentInput{Content: "yo"})
	require.NoError(t, err)

	targets := []struct {
		kind models.TargetType
		id   string
	}{
		{models.TargetComment, c.ID.Hex()},
		{models.TargetReply, r.ID.Hex()},
	}
	for _, tt := range targets {
		state, err := e.likes.Like(e.ctx, a, tt.kind, tt.id)
		require.NoError(t, err)
		assert.True(t, state.Liked)

		for i := 0; i < 2; i++ {
			state, err = e.likes.Unlike(e.ctx, a, tt.kind, tt.id)
			require.NoError(t, err)
			assert.False(t, state.Liked)
			assert.Zero(t, state.LikeCount)
		}

		likers, err := e.likes.Likers(e.ctx, tt.kind, tt.id)
		require.NoError(t, err)
		assert.Empty(t, likers)
	}
}

type recordedPush struct {
	sent chan []byte
}

func (r *recordedPush) Send(_ context.Context, _ *models.PushSubscription, payload []byte) error {
	r.sent <- payload
	return nil
}

func (r *recordedPush) PublicKey() string { return "test-key" }

func (r *recordedPush) title(t *testing.T) string {
	t.Helper()
	select {
	case payload := <-r.sent:
		var msg struct {
			Title string `json:"title"`
		}
		require.NoError(t, json.Unmarshal(payload, &msg))
		return msg.Title
	case <-time.After(2 * time.Second):
		t.Fatal("no push sent")
		return ""
	}
}

func TestPushTitles(t *testing.T) {
	push := &recordedPush{sent: make(chan []byte, 8)}
	e := newEnv(t, func(d *services.Deps) { d.Push = push })
	a := e.member(t, "ann", "")
	b := e.member(t, "bob", "")
	for _, id := range []primitive.ObjectID{a, b} {
		require.NoError(t, e.notes.Subscribe(e.ctx, id, services.SubscribeInput{
			Endpoint: "https://push.example.com/" + id.Hex(),
			Keys:     models.PushKeys{P256dh: "key", Auth: "auth"},
		}))
	}
	p := e.post(t, a, "hello")

	c, err := e.comments.Add(e.ctx, b, services.CommentInput{PostID: p.ID.Hex(), Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "bob commented on your post", push.title(t))

	r, err := e.comments.AddReply(e.ctx, a, c.ID.Hex(), services.ContentInput{Content: "yo"})
	require.NoError(t, err)
	assert.Equal(t, "ann replied to your comment", push.title(t))

	_, err = e.likes.Like(e.ctx, b, models.TargetPost, p.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "bob liked your post", push.title(t))

	_, err = e.likes.Like(e.ctx, a, models.TargetComment, c.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "ann liked your comment", push.title(t))

	_, err = e.likes.Like(e.ctx, b, models.TargetReply, r.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "bob liked your reply", push.title(t))
}
