// Package memstore keeps every collection in process memory. It backs the
// service tests and the STORE_BACKEND=memory development mode.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"kinship/models"
	"kinship/services"
)

// Store holds all collections behind one lock. Slices keep insertion order.
type Store struct {
	mu            sync.RWMutex
	users         []models.User
	profiles      []models.Profile
	follows       []models.Follow
	posts         []models.Post
	comments      []models.Comment
	replies       []models.Reply
	likes         []models.Like
	notifications []models.Notification
	subs          []models.PushSubscription
}

func New() *Store {
	return &Store{}
}

// Stores exposes the collections through the service ports.
func (s *Store) Stores() services.Stores {
	return services.Stores{
		Users:         users{s},
		Profiles:      profiles{s},
		Follows:       follows{s},
		Posts:         posts{s},
		Comments:      comments{s},
		Replies:       replies{s},
		Likes:         likes{s},
		Notifications: notifications{s},
		Subscriptions: subscriptions{s},
	}
}

func idSet(ids []primitive.ObjectID) map[primitive.ObjectID]bool {
	set := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func window[T any](all []T, skip, limit int) []T {
	if skip < 0 || skip > len(all) {
		skip = len(all)
	}
	end := len(all)
	if limit > 0 && limit < end-skip {
		end = skip + limit
	}
	return all[skip:end]
}

func cloneIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	return append([]primitive.ObjectID(nil), ids...)
}

func cloneStrings(s []string) []string {
	return append([]string(nil), s...)
}

// deleteWhere removes matching items in place and returns the count.
func deleteWhere[T any](items *[]T, match func(*T) bool) int64 {
	kept := (*items)[:0]
	var n int64
	for i := range *items {
		if match(&(*items)[i]) {
			n++
			continue
		}
		kept = append(kept, (*items)[i])
	}
	*items = kept
	return n
}

func distinct[T any](items []T, key func(*T) primitive.ObjectID) []primitive.ObjectID {
	seen := map[primitive.ObjectID]bool{}
	var out []primitive.ObjectID
	for i := range items {
		k := key(&items[i])
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func existing[T any](items []T, key func(*T) primitive.ObjectID, ids []primitive.ObjectID) []primitive.ObjectID {
	want := idSet(ids)
	var out []primitive.ObjectID
	for i := range items {
		if k := key(&items[i]); want[k] {
			out = append(out, k)
		}
	}
	return out
}

// users

type users struct{ *Store }

func (s users) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.users {
		if x.Email == u.Email {
			return services.ErrDuplicate
		}
	}
	s.users = append(s.users, *u)
	return nil
}

func (s users) find(match func(*models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.users {
		if match(&s.users[i]) {
			u := s.users[i]
			return &u, nil
		}
	}
	return nil, services.ErrNotFound
}

func (s users) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.ID == id })
}

func (s users) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Email == email })
}

func (s users) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	want := idSet(ids)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.User
	for _, u := range s.users {
		if want[u.ID] {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s users) LinkGoogle(_ context.Context, id primitive.ObjectID, googleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].ID == id {
			s.users[i].GoogleID = &googleID
			s.users[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return services.ErrNotFound
}

func (s users) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if deleteWhere(&s.users, func(u *models.User) bool { return u.ID == id }) == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s users) ExistingIDs(_ context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return existing(s.users, func(u *models.User) primitive.ObjectID { return u.ID }, ids), nil
}

// profiles

type profiles struct{ *Store }

func (s profiles) Create(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.profiles {
		if x.UserID == p.UserID {
			return services.ErrDuplicate
		}
	}
	s.profiles = append(s.profiles, *p)
	return nil
}

func (s profiles) find(match func(*models.Profile) bool) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.profiles {
		if match(&s.profiles[i]) {
			p := s.profiles[i]
			return &p, nil
		}
	}
	return nil, services.ErrNotFound
}

func (s profiles) FindByID(_ context.Context, id primitive.ObjectID) (*models.Profile, error) {
	return s.find(func(p *models.Profile) bool { return p.ID == id })
}

func (s profiles) FindByUser(_ context.Context, userID primitive.ObjectID) (*models.Profile, error) {
	return s.find(func(p *models.Profile) bool { return p.UserID == userID })
}

func (s profiles) List(_ context.Context, skip, limit int) ([]models.Profile, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page := window(s.profiles, skip, limit)
	return append([]models.Profile(nil), page...), int64(len(s.profiles)), nil
}

func (s profiles) Update(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.profiles {
		if s.profiles[i].ID == p.ID {
			s.profiles[i] = *p
			return nil
		}
	}
	return services.ErrNotFound
}

func (s profiles) DeleteByUser(_ context.Context, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if deleteWhere(&s.profiles, func(p *models.Profile) bool { return p.UserID == userID }) == 0 {
		return services.ErrNotFound
	}
	return nil
}

// follows

type follows struct{ *Store }

func (s follows) Insert(_ context.Context, f *models.Follow) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.follows {
		if x.FollowerID == f.FollowerID && x.FolloweeID == f.FolloweeID {
			return false, nil
		}
	}
	s.follows = append(s.follows, *f)
	return true, nil
}

func (s follows) Delete(_ context.Context, followerID, followeeID primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := deleteWhere(&s.follows, func(f *models.Follow) bool {
		return f.FollowerID == followerID && f.FolloweeID == followeeID
	})
	return n > 0, nil
}

func (s follows) Connections(_ context.Context, userID primitive.ObjectID, dir models.Direction) ([]models.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Connection{}
	for _, f := range s.follows {
		var other primitive.ObjectID
		switch {
		case dir == models.Followers && f.FolloweeID == userID:
			other = f.FollowerID
		case dir == models.Following && f.FollowerID == userID:
			other = f.FolloweeID
		default:
			continue
		}

		var user *models.User
		for i := range s.users {
			if s.users[i].ID == other {
				user = &s.users[i]
				break
			}
		}
		if user == nil {
			continue
		}

		c := models.Connection{UserID: user.ID, Name: user.Name, Email: user.Email, FollowedAt: f.CreatedAt}
		for i := range s.profiles {
			if p := s.profiles[i]; p.UserID == other {
				id := p.ID
				c.ProfileID, c.Bio, c.Avatar, c.Location = &id, p.Bio, p.Avatar, p.Location
				break
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (s follows) Counts(_ context.Context, userID primitive.ObjectID) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var followers, following int64
	for _, f := range s.follows {
		if f.FolloweeID == userID {
			followers++
		}
		if f.FollowerID == userID {
			following++
		}
	}
	return followers, following, nil
}

func (s follows) DeleteByUsers(_ context.Context, userIDs []primitive.ObjectID) (int64, error) {
	gone := idSet(userIDs)
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteWhere(&s.follows, func(f *models.Follow) bool {
		return gone[f.FollowerID] || gone[f.FolloweeID]
	}), nil
}

func (s follows) DistinctUserIDs(_ context.Context) ([]primitive.ObjectID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ends := make([]primitive.ObjectID, 0, 2*len(s.follows))
	for _, f := range s.follows {
		ends = append(ends, f.FollowerID, f.FolloweeID)
	}
	return distinct(ends, func(id *primitive.ObjectID) primitive.ObjectID { return *id }), nil
}

// posts

type posts struct{ *Store }

func clonePost(p models.Post) models.Post {
	p.Media = cloneStrings(p.Media)
	p.Tags = cloneStrings(p.Tags)
	p.Mentions = cloneIDs(p.Mentions)
	return p
}

func (s posts) Create(_ context.Context, p *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, clonePost(*p))
	return nil
}

func (s posts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.posts {
		if p.ID == id {
			cp := clonePost(p)
			return &cp, nil
		}
	}
	return nil, services.ErrNotFound
}

func matchesSearch(p *models.Post, q string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Content), q) {
		return true
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

func (s posts) List(_ context.Context, q models.PostQuery, skip, limit int) ([]models.Post, int64, error) {
	s.mu.RLock()
	var matched []models.Post
	for i := range s.posts {
		p := &s.posts[i]
		if q.AuthorID != nil && p.AuthorID != *q.AuthorID {
			continue
		}
		if !matchesSearch(p, q.Search) {
			continue
		}
		matched = append(matched, clonePost(*p))
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.Hex() > b.ID.Hex()
	})
	return window(matched, skip, limit), int64(len(matched)), nil
}

func (s posts) Update(_ context.Context, p *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if s.posts[i].ID == p.ID {
			s.posts[i] = clonePost(*p)
			return nil
		}
	}
	return services.ErrNotFound
}

func (s posts) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if deleteWhere(&s.posts, func(p *models.Post) bool { return p.ID == id }) == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s posts) ExistingIDs(_ context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return existing(s.posts, func(p *models.Post) primitive.ObjectID { return p.ID }, ids), nil
}

// comments

type comments struct{ *Store }

func (s comments) Create(_ context.Context, c *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	cp.Mentions = cloneIDs(c.Mentions)
	s.comments = append(s.comments, cp)
	return nil
}

func (s comments) FindByID(_ context.Context, id primitive.ObjectID) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.comments {
		if c.ID == id {
			c.Mentions = cloneIDs(c.Mentions)
			return &c, nil
		}
	}
	return nil, services.ErrNotFound
}

func (s comments) ListByPost(_ context.Context, postID primitive.ObjectID, skip, limit int) ([]models.Comment, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []models.Comment
	for _, c := range s.comments {
		if c.PostID == postID {
			matched = append(matched, c)
		}
	}
	return window(matched, skip, limit), int64(len(matched)), nil
}

func (s comments) CountByPosts(_ context.Context, postIDs []primitive.ObjectID) (map[primitive.ObjectID]int64, error) {
	want := idSet(postIDs)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[primitive.ObjectID]int64{}
	for _, c := range s.comments {
		if want[c.PostID] {
			out[c.PostID]++
		}
	}
	return out, nil
}

func (s comments) Update(_ context.Context, c *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.comments {
		if s.comments[i].ID == c.ID {
			s.comments[i] = *c
			return nil
		}
	}
	return services.ErrNotFound
}

func (s comments) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if deleteWhere(&s.comments, func(c *models.Comment) bool { return c.ID == id }) == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s comments) DeleteByPosts(_ context.Context, postIDs []primitive.ObjectID) (int64, error) {
	gone := idSet(postIDs)
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteWhere(&s.comments, func(c *models.Comment) bool { return gone[c.PostID] }), nil
}

func (s comments) DistinctPostIDs(_ context.Context) ([]primitive.ObjectID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return distinct(s.comments, func(c *models.Comment) primitive.ObjectID { return c.PostID }), nil
}

func (s comments) ExistingIDs(_ context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return existing(s.comments, func(c *models.Comment) primitive.ObjectID { return c.ID }, ids), nil
}

// replies

type replies struct{ *Store }

func (s replies) Create(_ context.Context, r *models.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	cp.Mentions = cloneIDs(r.Mentions)
	s.replies = append(s.replies, cp)
	return nil
}

func (s replies) FindByID(_ context.Context, id primitive.ObjectID) (*models.Reply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.replies {
		if r.ID == id {
			r.Mentions = cloneIDs(r.Mentions)
			return &r, nil
		}
	}
	return nil, services.ErrNotFound
}

func (s replies) ListByComments(_ context.Context, commentIDs []primitive.ObjectID) ([]models.Reply, error) {
	want := idSet(commentIDs)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Reply
	for _, r := range s.replies {
		if want[r.CommentID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s replies) Update(_ context.Context, r *models.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.replies {
		if s.replies[i].ID == r.ID {
			s.replies[i] = *r
			return nil
		}
	}
	return services.ErrNotFound
}

func (s replies) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if deleteWhere(&s.replies, func(r *models.Reply) bool { return r.ID == id }) == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s replies) DeleteByComments(_ context.Context, commentIDs []primitive.ObjectID) (int64, error) {
	gone := idSet(commentIDs)
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteWhere(&s.replies, func(r *models.Reply) bool { return gone[r.CommentID] }), nil
}

func (s replies) DeleteByPosts(_ context.Context, postIDs []primitive.ObjectID) (int64, error) {
	gone := idSet(postIDs)
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteWhere(&s.replies, func(r *models.Reply) bool { return gone[r.PostID] }), nil
}

func (s replies) DistinctCommentIDs(_ context.Context) ([]primitive.ObjectID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return distinct(s.replies, func(r *models.Reply) primitive.ObjectID { return r.CommentID }), nil
}

func (s replies) ExistingIDs(_ context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return existing(s.replies, func(r *models.Reply) primitive.ObjectID { return r.ID }, ids), nil
}

// likes

type likes struct{ *Store }

func (s likes) Add(_ context.Context, l *models.Like) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.likes {
		if x.UserID == l.UserID && x.TargetType == l.TargetType && x.TargetID == l.TargetID {
			return false, nil
		}
	}
	s.likes = append(s.likes, *l)
	return true, nil
}

func (s likes) Remove(_ context.Context, userID primitive.ObjectID, t models.TargetType, targetID primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := deleteWhere(&s.likes, func(l *models.Like) bool {
		return l.UserID == userID && l.TargetType == t && l.TargetID == targetID
	})
	return n > 0, nil
}

func (s likes) Counts(_ context.Context, t models.TargetType, targetIDs []primitive.ObjectID) (map[primitive.ObjectID]int64, error) {
	want := idSet(targetIDs)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[primitive.ObjectID]int64{}
	for _, l := range s.likes {
		if l.TargetType == t && want[l.TargetID] {
			out[l.TargetID]++
		}
	}
	return out, nil
}

func (s likes) LikedBy(_ context.Context, userID primitive.ObjectID, t models.TargetType, targetIDs []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	want := idSet(targetIDs)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[primitive.ObjectID]bool{}
	for _, l := range s.likes {
		if l.UserID == userID && l.TargetType == t && want[l.TargetID] {
			out[l.TargetID] = true
		}
	}
	return out, nil
}

func (s likes) Likers(_ context.Context, t models.TargetType, targetID primitive.ObjectID) ([]primitive.ObjectID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []primitive.ObjectID
	for _, l := range s.likes {
		if l.TargetType == t && l.TargetID == targetID {
			out = append(out, l.UserID)
		}
	}
	return out, nil
}

func (s likes) DeleteByTargets(_ context.Context, t models.TargetType, targetIDs []primitive.ObjectID) (int64, error) {
	gone := idSet(targetIDs)
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteWhere(&s.likes, func(l *models.Like) bool { return l.TargetType == t && gone[l.TargetID] }), nil
}

func (s likes) DeleteByPosts(_ context.Context, postIDs []primitive.ObjectID) (int64, error) {
	gone := idSet(postIDs)
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteWhere(&s.likes, func(l *models.Like) bool { return gone[l.PostID] }), nil
}

func (s likes) DistinctTargets(_ context.Context, t models.TargetType) ([]primitive.ObjectID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ofType []models.Like
	for _, l := range s.likes {
		if l.TargetType == t {
			ofType = append(ofType, l)
		}
	}
	return distinct(ofType, func(l *models.Like) primitive.ObjectID { return l.TargetID }), nil
}

// notifications

type notifications struct{ *Store }

func (s notifications) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s notifications) List(_ context.Context, recipientID primitive.ObjectID, unreadOnly bool, skip, limit int) ([]models.Notification, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []models.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if n.RecipientID != recipientID || (unreadOnly && n.IsRead) {
			continue
		}
		matched = append(matched, n)
	}
	return window(matched, skip, limit), int64(len(matched)), nil
}

func (s notifications) MarkRead(_ context.Context, recipientID, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if n := &s.notifications[i]; n.ID == id && n.RecipientID == recipientID {
			n.IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (s notifications) MarkAllRead(_ context.Context, recipientID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for i := range s.notifications {
		if n := &s.notifications[i]; n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (s notifications) DeleteByPosts(_ context.Context, postIDs []primitive.ObjectID) (int64, error) {
	gone := idSet(postIDs)
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteWhere(&s.notifications, func(n *models.Notification) bool { return gone[n.PostID] }), nil
}

func (s notifications) DistinctPostIDs(_ context.Context) ([]primitive.ObjectID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return distinct(s.notifications, func(n *models.Notification) primitive.ObjectID { return n.PostID }), nil
}

// subscriptions

type subscriptions struct{ *Store }

func (s subscriptions) Upsert(_ context.Context, sub *models.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.subs {
		if s.subs[i].UserID == sub.UserID {
			id := s.subs[i].ID
			s.subs[i] = *sub
			s.subs[i].ID = id
			return nil
		}
	}
	s.subs = append(s.subs, *sub)
	return nil
}

func (s subscriptions) FindByUser(_ context.Context, userID primitive.ObjectID) (*models.PushSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.UserID == userID {
			return &sub, nil
		}
	}
	return nil, services.ErrNotFound
}

func (s subscriptions) DeleteByUser(_ context.Context, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if deleteWhere(&s.subs, func(sub *models.PushSubscription) bool { return sub.UserID == userID }) == 0 {
		return services.ErrNotFound
	}
	return nil
}
