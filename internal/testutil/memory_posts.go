package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"vistagram/internal/models"
	"vistagram/internal/pagination"
	"vistagram/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryPosts is an in-memory repository.PostRepository with the same
// filter, ordering and set semantics as the Mongo implementation. When users
// is non-nil it also fills Post.Author like the $lookup stage does.
type MemoryPosts struct {
	mu    sync.Mutex
	posts map[primitive.ObjectID]*models.Post
	users *MemoryUsers
}

var _ repository.PostRepository = (*MemoryPosts)(nil)

// NewMemoryPosts creates an empty in-memory post store.
func NewMemoryPosts(users *MemoryUsers) *MemoryPosts {
	return &MemoryPosts{posts: make(map[primitive.ObjectID]*models.Post), users: users}
}

// Snapshot returns a copy of the stored post, including soft-deleted ones.
func (s *MemoryPosts) Snapshot(id primitive.ObjectID) *models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil
	}
	return copyPost(p)
}

func copyPost(p *models.Post) *models.Post {
	c := *p
	c.Likes = append([]models.Like{}, p.Likes...)
	c.Shares = append([]models.Share{}, p.Shares...)
	c.Comments = append([]models.Comment{}, p.Comments...)
	c.Tags = append([]string{}, p.Tags...)
	return &c
}

func (s *MemoryPosts) withAuthor(p *models.Post) *models.Post {
	c := copyPost(p)
	if s.users != nil {
		if u := s.users.Snapshot(p.User); u != nil {
			a := u.Author()
			c.Author = &a
		}
	}
	return c
}

func (s *MemoryPosts) active(id primitive.ObjectID) (*models.Post, error) {
	p, ok := s.posts[id]
	if !ok || !p.IsActive {
		return nil, models.NewNotFoundError("Post", id.Hex())
	}
	return p, nil
}

func (s *MemoryPosts) Create(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	s.posts[post.ID] = copyPost(post)
	return nil
}

func (s *MemoryPosts) GetActiveByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.active(id)
	if err != nil {
		return nil, err
	}
	return s.withAuthor(p), nil
}

func (s *MemoryPosts) matching(filter repository.PostFilter) []*models.Post {
	var authors map[primitive.ObjectID]bool
	if filter.Authors != nil {
		authors = make(map[primitive.ObjectID]bool, len(filter.Authors))
		for _, id := range filter.Authors {
			authors[id] = true
		}
	}
	var out []*models.Post
	for _, p := range s.posts {
		if !p.IsActive {
			continue
		}
		if authors != nil && !authors[p.User] {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return out
}

func (s *MemoryPosts) List(_ context.Context, filter repository.PostFilter, p pagination.Params) ([]*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.matching(filter)
	start, end := p.Window(len(all))
	out := make([]*models.Post, 0, end-start)
	for _, post := range all[start:end] {
		out = append(out, s.withAuthor(post))
	}
	return out, nil
}

func (s *MemoryPosts) Count(_ context.Context, filter repository.PostFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.matching(filter))), nil
}

func (s *MemoryPosts) ToggleLike(_ context.Context, postID, userID primitive.ObjectID, at time.Time) (*models.LikeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.active(postID)
	if err != nil {
		return nil, err
	}
	for i, l := range p.Likes {
		if l.User == userID {
			p.Likes = append(p.Likes[:i], p.Likes[i+1:]...)
			return &models.LikeResult{IsLiked: false, LikeCount: len(p.Likes)}, nil
		}
	}
	p.Likes = append(p.Likes, models.Like{User: userID, LikedAt: at})
	return &models.LikeResult{IsLiked: true, LikeCount: len(p.Likes)}, nil
}

func (s *MemoryPosts) AddShare(_ context.Context, postID, userID primitive.ObjectID, at time.Time) (*models.ShareResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.active(postID)
	if err != nil {
		return nil, err
	}
	for _, sh := range p.Shares {
		if sh.User == userID {
			return &models.ShareResult{IsShared: true, ShareCount: len(p.Shares)}, nil
		}
	}
	p.Shares = append(p.Shares, models.Share{User: userID, SharedAt: at})
	return &models.ShareResult{IsShared: true, ShareCount: len(p.Shares)}, nil
}

func (s *MemoryPosts) AddComment(_ context.Context, postID primitive.ObjectID, comment models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.active(postID)
	if err != nil {
		return err
	}
	p.Comments = append(p.Comments, comment)
	return nil
}

func (s *MemoryPosts) SoftDelete(_ context.Context, postID primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.active(postID)
	if err != nil {
		return err
	}
	p.IsActive = false
	p.UpdatedAt = at
	return nil
}
