package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"vistagram/internal/models"
	"vistagram/internal/pagination"
	"vistagram/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryUsers is an in-memory repository.UserRepository. EdgeHook, when set,
// runs before every edge mutation and can fail it.
type MemoryUsers struct {
	mu       sync.Mutex
	users    map[primitive.ObjectID]*models.User
	EdgeHook func(userID primitive.ObjectID, side repository.EdgeSide, other primitive.ObjectID) error
}

var _ repository.UserRepository = (*MemoryUsers)(nil)

// NewMemoryUsers creates an empty in-memory user store.
func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[primitive.ObjectID]*models.User)}
}

// Add stores a new active user with the given username and returns it.
func (s *MemoryUsers) Add(username string) *models.User {
	now := time.Now().UTC()
	u := &models.User{
		ID:        primitive.NewObjectID(),
		Username:  username,
		Email:     username + "@example.com",
		Followers: []primitive.ObjectID{},
		Following: []primitive.ObjectID{},
		Posts:     []primitive.ObjectID{},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
	return copyUser(u)
}

// Snapshot returns a copy of the stored user regardless of its active flag.
func (s *MemoryUsers) Snapshot(id primitive.ObjectID) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	return copyUser(u)
}

// IDs returns every stored user id.
func (s *MemoryUsers) IDs() []primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]primitive.ObjectID, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	return ids
}

// Corrupt applies fn to the stored user directly, bypassing every invariant.
func (s *MemoryUsers) Corrupt(id primitive.ObjectID, fn func(u *models.User)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		fn(u)
	}
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.Followers = append([]primitive.ObjectID{}, u.Followers...)
	c.Following = append([]primitive.ObjectID{}, u.Following...)
	c.Posts = append([]primitive.ObjectID{}, u.Posts...)
	return &c
}

func (s *MemoryUsers) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || !u.IsActive {
		return nil, models.NewNotFoundError("User", id.Hex())
	}
	c := copyUser(u)
	c.Password = ""
	return c, nil
}

func (s *MemoryUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email && u.IsActive {
			return copyUser(u), nil
		}
	}
	return nil, models.NewNotFoundError("User", email)
}

func (s *MemoryUsers) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username {
			return models.NewValidationError("Username already taken")
		}
		if u.Email == user.Email {
			return models.NewValidationError("Email already registered")
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *MemoryUsers) UpdateProfile(_ context.Context, id primitive.ObjectID, update repository.ProfileUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || !u.IsActive {
		return nil, models.NewNotFoundError("User", id.Hex())
	}
	if update.Bio != nil {
		u.Bio = *update.Bio
	}
	if update.ProfilePicture != nil {
		u.ProfilePicture = *update.ProfilePicture
	}
	u.UpdatedAt = time.Now().UTC()
	return copyUser(u), nil
}

func (s *MemoryUsers) PushPost(_ context.Context, userID, postID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return models.NewNotFoundError("User", userID.Hex())
	}
	u.Posts = append(u.Posts, postID)
	return nil
}

func (s *MemoryUsers) PullPost(_ context.Context, userID, postID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return models.NewNotFoundError("User", userID.Hex())
	}
	u.Posts = without(u.Posts, postID)
	return nil
}

func (s *MemoryUsers) AddEdge(_ context.Context, userID primitive.ObjectID, side repository.EdgeSide, other primitive.ObjectID) error {
	if s.EdgeHook != nil {
		if err := s.EdgeHook(userID, side, other); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return models.NewNotFoundError("User", userID.Hex())
	}
	set := edgeSet(u, side)
	for _, id := range *set {
		if id == other {
			return nil
		}
	}
	*set = append(*set, other)
	return nil
}

func (s *MemoryUsers) RemoveEdge(_ context.Context, userID primitive.ObjectID, side repository.EdgeSide, other primitive.ObjectID) error {
	if s.EdgeHook != nil {
		if err := s.EdgeHook(userID, side, other); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return models.NewNotFoundError("User", userID.Hex())
	}
	set := edgeSet(u, side)
	*set = without(*set, other)
	return nil
}

func edgeSet(u *models.User, side repository.EdgeSide) *[]primitive.ObjectID {
	if side == repository.SideFollowers {
		return &u.Followers
	}
	return &u.Following
}

func without(ids []primitive.ObjectID, drop primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

func (s *MemoryUsers) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok && u.IsActive {
			out = append(out, copyUser(u))
		}
	}
	return out, nil
}

func (s *MemoryUsers) matching(search string) []*models.User {
	search = strings.ToLower(search)
	var out []*models.User
	for _, u := range s.users {
		if !u.IsActive {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Username), search) &&
			!strings.Contains(strings.ToLower(u.Bio), search) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return out
}

func (s *MemoryUsers) List(_ context.Context, search string, p pagination.Params) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.matching(search)
	start, end := p.Window(len(all))
	out := make([]*models.User, 0, end-start)
	for _, u := range all[start:end] {
		out = append(out, copyUser(u))
	}
	return out, nil
}

func (s *MemoryUsers) Count(_ context.Context, search string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.matching(search))), nil
}

func (s *MemoryUsers) Each(_ context.Context, fn func(*models.User) error) error {
	s.mu.Lock()
	snapshot := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		snapshot = append(snapshot, copyUser(u))
	}
	s.mu.Unlock()

	for _, u := range snapshot {
		if err := fn(u); err != nil {
			return err
		}
	}
	return nil
}
