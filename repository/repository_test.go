package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"kinship/database"
	"kinship/models"
	"kinship/repository"
	"kinship/services"
)

// openStores connects to MONGODB_TEST_URI and returns stores bound to a
// throwaway database that is dropped when the test ends.
func openStores(t *testing.T) services.Stores {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping mongodb integration test in short mode")
	}
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	name := "kinship_test_" + primitive.NewObjectID().Hex()
	m, err := database.Connect(ctx, uri, name, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.EnsureIndexes(ctx))

	t.Cleanup(func() {
		_ = m.DB.Drop(context.Background())
		_ = m.Disconnect(context.Background())
	})
	return repository.NewStores(m.DB)
}

func newUser(t *testing.T, s services.Stores, name, email string) *models.User {
	t.Helper()
	u := &models.User{ID: primitive.NewObjectID(), Name: name, Email: email, AuthProvider: models.ProviderEmail, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.Users.Create(context.Background(), u))
	return u
}

func TestUsersRejectDuplicateEmail(t *testing.T) {
	s := openStores(t)
	newUser(t, s, "Ann", "ann@example.com")

	dup := &models.User{ID: primitive.NewObjectID(), Name: "Other", Email: "ann@example.com"}
	err := s.Users.Create(context.Background(), dup)
	assert.ErrorIs(t, err, services.ErrDuplicate)

	_, err = s.Users.FindByID(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestFollowConnectionsJoinUserAndProfile(t *testing.T) {
	s := openStores(t)
	ctx := context.Background()

	owner := newUser(t, s, "Owner", "owner@example.com")
	withProfile := newUser(t, s, "Berta", "berta@example.com")
	bare := newUser(t, s, "Carl", "carl@example.com")

	require.NoError(t, s.Profiles.Create(ctx, &models.Profile{
		ID: primitive.NewObjectID(), UserID: withProfile.ID, Bio: "Lives in Berlin", Avatar: models.DefaultAvatar,
	}))

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, follower := range []*models.User{withProfile, bare} {
		created, err := s.Follows.Insert(ctx, &models.Follow{
			ID: primitive.NewObjectID(), FollowerID: follower.ID, FolloweeID: owner.ID, CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		assert.True(t, created)
	}

	again, err := s.Follows.Insert(ctx, &models.Follow{ID: primitive.NewObjectID(), FollowerID: bare.ID, FolloweeID: owner.ID, CreatedAt: base})
	require.NoError(t, err)
	assert.False(t, again)

	conns, err := s.Follows.Connections(ctx, owner.ID, models.Followers)
	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.Equal(t, "Berta", conns[0].Name)
	assert.Equal(t, "Lives in Berlin", conns[0].Bio)
	require.NotNil(t, conns[0].ProfileID)
	assert.Equal(t, "Carl", conns[1].Name)
	assert.Nil(t, conns[1].ProfileID)

	followers, following, err := s.Follows.Counts(ctx, owner.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, followers)
	assert.EqualValues(t, 0, following)

	require.NoError(t, s.Users.Delete(ctx, bare.ID))
	conns, err = s.Follows.Connections(ctx, owner.ID, models.Followers)
	require.NoError(t, err)
	assert.Len(t, conns, 1)
}

func TestPostSearchAndLikeCounts(t *testing.T) {
	s := openStores(t)
	ctx := context.Background()
	author := newUser(t, s, "Ann", "ann@example.com")
	reader := newUser(t, s, "Bob", "bob@example.com")

	now := time.Now().UTC()
	older := &models.Post{ID: primitive.NewObjectID(), Title: "Go (1.25) notes", Content: "x", AuthorID: author.ID, Tags: []string{"golang"}, CreatedAt: now}
	newer := &models.Post{ID: primitive.NewObjectID(), Title: "Cooking", Content: "pasta", AuthorID: author.ID, CreatedAt: now.Add(time.Second)}
	require.NoError(t, s.Posts.Create(ctx, older))
	require.NoError(t, s.Posts.Create(ctx, newer))

	all, total, err := s.Posts.List(ctx, models.PostQuery{}, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, newer.ID, all[0].ID)

	found, total, err := s.Posts.List(ctx, models.PostQuery{Search: "(1.25)"}, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, older.ID, found[0].ID)

	like := &models.Like{ID: primitive.NewObjectID(), UserID: reader.ID, TargetType: models.TargetPost, TargetID: older.ID, PostID: older.ID, CreatedAt: now}
	created, err := s.Likes.Add(ctx, like)
	require.NoError(t, err)
	assert.True(t, created)

	like.ID = primitive.NewObjectID()
	created, err = s.Likes.Add(ctx, like)
	require.NoError(t, err)
	assert.False(t, created)

	counts, err := s.Likes.Counts(ctx, models.TargetPost, []primitive.ObjectID{older.ID, newer.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[older.ID])
	assert.EqualValues(t, 0, counts[newer.ID])

	n, err := s.Likes.DeleteByPosts(ctx, []primitive.ObjectID{older.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
