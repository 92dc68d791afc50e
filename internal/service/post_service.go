package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"vistagram/internal/models"
	"vistagram/internal/observability"
	"vistagram/internal/pagination"
	"vistagram/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostService handles posts and the interactions recorded on them.
type PostService struct {
	posts repository.PostRepository
	users repository.UserRepository
	now   func() time.Time
}

type CreatePostInput struct {
	UserID   primitive.ObjectID
	Image    string
	Caption  string
	Location *models.Location
}

// NewPostService returns a PostService over the given stores.
func NewPostService(posts repository.PostRepository, users repository.UserRepository) *PostService {
	return &PostService{
		posts: posts,
		users: users,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreatePost stores a new post and records it on the owner's post list.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.PostView, error) {
	caption := strings.TrimSpace(in.Caption)
	if caption == "" {
		return nil, models.NewValidationError("Caption is required")
	}
	if utf8.RuneCountInString(caption) > models.MaxCaptionLength {
		return nil, models.NewValidationError("Caption cannot exceed 2200 characters")
	}
	if strings.TrimSpace(in.Image) == "" {
		return nil, models.NewValidationError("Image is required")
	}

	owner, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	post := models.NewPost(in.UserID, in.Image, caption, in.Location, s.now())
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	// The post exists either way; a failed back-reference only skews postCount.
	if err := s.users.PushPost(ctx, in.UserID, post.ID); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "failed to record post on owner",
			slog.String("user_id", in.UserID.Hex()),
			slog.String("post_id", post.ID.Hex()),
			slog.String("error", err.Error()),
		)
	}

	author := owner.Author()
	post.Author = &author
	view := Annotate(post, models.AuthenticatedViewer(in.UserID), nil)
	return &view, nil
}

// GetPost returns one active post with its author and comment authors resolved.
func (s *PostService) GetPost(ctx context.Context, postID primitive.ObjectID, viewer models.Viewer) (*models.PostView, error) {
	post, err := s.posts.GetActiveByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	authors, err := commentAuthors(ctx, s.users, []*models.Post{post})
	if err != nil {
		return nil, err
	}
	view := Annotate(post, viewer, authors)
	return &view, nil
}

// ListPosts returns every active post, newest first.
func (s *PostService) ListPosts(ctx context.Context, viewer models.Viewer, p pagination.Params) (*FeedPage, error) {
	return listPage(ctx, s.posts, s.users, repository.PostFilter{}, viewer, p)
}

// ListUserPosts returns the active posts of one user.
func (s *PostService) ListUserPosts(ctx context.Context, userID primitive.ObjectID, viewer models.Viewer, p pagination.Params) (*FeedPage, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return listPage(ctx, s.posts, s.users, repository.PostFilter{Authors: []primitive.ObjectID{userID}}, viewer, p)
}

// DeletePost soft-deletes a post owned by userID.
func (s *PostService) DeletePost(ctx context.Context, postID, userID primitive.ObjectID) error {
	post, err := s.posts.GetActiveByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.User != userID {
		return models.NewForbiddenError("Not authorized to delete this post")
	}
	if err := s.posts.SoftDelete(ctx, postID, s.now()); err != nil {
		return err
	}
	if err := s.users.PullPost(ctx, userID, postID); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "failed to remove post from owner",
			slog.String("user_id", userID.Hex()),
			slog.String("post_id", postID.Hex()),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// ToggleLike likes the post, or removes the like when userID already likes it.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (*models.LikeResult, error) {
	res, err := s.posts.ToggleLike(ctx, postID, userID, s.now())
	if err != nil {
		return nil, err
	}
	kind := "unlike"
	if res.IsLiked {
		kind = "like"
	}
	observability.PostInteractions.WithLabelValues(kind).Inc()
	return res, nil
}

// AddShare records a share. Sharing twice is a no-op.
func (s *PostService) AddShare(ctx context.Context, postID, userID primitive.ObjectID) (*models.ShareResult, error) {
	res, err := s.posts.AddShare(ctx, postID, userID, s.now())
	if err != nil {
		return nil, err
	}
	observability.PostInteractions.WithLabelValues("share").Inc()
	return res, nil
}

// AddComment appends a comment and returns it with the author resolved.
func (s *PostService) AddComment(ctx context.Context, postID, userID primitive.ObjectID, text string) (*models.CommentView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.NewValidationError("Comment text is required")
	}
	if utf8.RuneCountInString(text) > models.MaxCommentLength {
		return nil, models.NewValidationError("Comment cannot exceed 500 characters")
	}

	author, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	comment := models.Comment{
		ID:        primitive.NewObjectID(),
		User:      userID,
		Text:      text,
		CreatedAt: s.now(),
	}
	if err := s.posts.AddComment(ctx, postID, comment); err != nil {
		return nil, err
	}
	observability.PostInteractions.WithLabelValues("comment").Inc()

	return &models.CommentView{
		ID:        comment.ID,
		User:      author.Author(),
		Text:      comment.Text,
		CreatedAt: comment.CreatedAt,
	}, nil
}
