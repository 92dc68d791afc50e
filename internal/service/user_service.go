package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"vistagram/internal/models"
	"vistagram/internal/pagination"
	"vistagram/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxBioLength bounds the profile bio.
const MaxBioLength = 150

// ProfilePostCount is the number of recent posts shown on a profile.
const ProfilePostCount = 12

// UserService serves profiles, user listings and follow edge pages.
type UserService struct {
	users repository.UserRepository
	posts repository.PostRepository
}

type UpdateProfileInput struct {
	UserID         primitive.ObjectID
	Bio            *string
	ProfilePicture *string
}

// UserPage is one page of user profiles.
type UserPage struct {
	Users []models.UserProfile
	Meta  pagination.Meta
}

// EdgePage is one page of a follower or following list.
type EdgePage struct {
	Users []models.UserSummary
	Meta  pagination.Meta
}

// Profile is a user's public page as seen by one viewer.
type Profile struct {
	User        models.UserProfile `json:"user"`
	Posts       []models.PostView  `json:"posts"`
	IsFollowing bool               `json:"isFollowing"`
}

// NewUserService returns a UserService over the given stores.
func NewUserService(users repository.UserRepository, posts repository.PostRepository) *UserService {
	return &UserService{users: users, posts: posts}
}

// ListUsers lists active users, optionally filtered by a case-insensitive
// substring of username or bio.
func (s *UserService) ListUsers(ctx context.Context, search string, p pagination.Params) (*UserPage, error) {
	search = strings.TrimSpace(search)
	total, err := s.users.Count(ctx, search)
	if err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, search, p)
	if err != nil {
		return nil, err
	}
	profiles := make([]models.UserProfile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Profile(false))
	}
	return &UserPage{Users: profiles, Meta: pagination.NewMeta(total, p)}, nil
}

// Me returns the authenticated user's own profile, email included.
func (s *UserService) Me(ctx context.Context, userID primitive.ObjectID) (*models.UserProfile, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := u.Profile(true)
	return &profile, nil
}

// GetProfile returns a user with their most recent posts.
func (s *UserService) GetProfile(ctx context.Context, userID primitive.ObjectID, viewer models.Viewer) (*Profile, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	page, err := listPage(ctx, s.posts, s.users,
		repository.PostFilter{Authors: []primitive.ObjectID{userID}},
		viewer, pagination.New(1, ProfilePostCount, ProfilePostCount))
	if err != nil {
		return nil, err
	}

	viewerID, authenticated := viewer.ID()
	return &Profile{
		User:        u.Profile(authenticated && viewerID == userID),
		Posts:       page.Posts,
		IsFollowing: authenticated && u.IsFollowedBy(viewerID),
	}, nil
}

// Followers pages through the users following userID.
func (s *UserService) Followers(ctx context.Context, userID primitive.ObjectID, p pagination.Params) (*EdgePage, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.edgePage(ctx, u.Followers, p)
}

// Following pages through the users userID follows.
func (s *UserService) Following(ctx context.Context, userID primitive.ObjectID, p pagination.Params) (*EdgePage, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.edgePage(ctx, u.Following, p)
}

func (s *UserService) edgePage(ctx context.Context, ids []primitive.ObjectID, p pagination.Params) (*EdgePage, error) {
	start, end := p.Window(len(ids))
	users, err := s.users.FindByIDs(ctx, ids[start:end])
	if err != nil {
		return nil, err
	}
	summaries := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, u.Summary())
	}
	return &EdgePage{Users: summaries, Meta: pagination.NewMeta(int64(len(ids)), p)}, nil
}

// UpdateProfile changes the caller's bio and profile picture.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.UserProfile, error) {
	update := repository.ProfileUpdate{ProfilePicture: in.ProfilePicture}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if utf8.RuneCountInString(bio) > MaxBioLength {
			return nil, models.NewValidationError("Bio cannot exceed 150 characters")
		}
		update.Bio = &bio
	}

	u, err := s.users.UpdateProfile(ctx, in.UserID, update)
	if err != nil {
		return nil, err
	}
	profile := u.Profile(true)
	return &profile, nil
}
