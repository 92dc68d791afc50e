package service

import (
	"context"
	"log/slog"

	"vistagram/internal/config"
	"vistagram/internal/featureflags"
	"vistagram/internal/models"
	"vistagram/internal/observability"
	"vistagram/internal/pagination"
	"vistagram/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
)

// FlagEvaluator is the part of the feature-flag manager the services use.
type FlagEvaluator interface {
	Enabled(name string, userID string) bool
}

// FeedPage is one page of annotated posts.
type FeedPage struct {
	Posts []models.PostView
	Meta  pagination.Meta
}

// FeedService composes the home feed of an authenticated viewer.
type FeedService struct {
	posts  repository.PostRepository
	users  repository.UserRepository
	flags  FlagEvaluator
	policy string
}

// NewFeedService builds the feed composer. An unknown policy falls back to
// the following-filtered feed.
func NewFeedService(posts repository.PostRepository, users repository.UserRepository, flags FlagEvaluator, policy string) *FeedService {
	if policy != config.FeedPolicyGlobal {
		policy = config.FeedPolicyFollowing
	}
	return &FeedService{posts: posts, users: users, flags: flags, policy: policy}
}

// PolicyFor returns the policy that serves viewerID.
func (s *FeedService) PolicyFor(viewerID primitive.ObjectID) string {
	if s.policy == config.FeedPolicyGlobal {
		return config.FeedPolicyGlobal
	}
	if s.flags != nil && s.flags.Enabled(featureflags.GlobalFeed, viewerID.Hex()) {
		return config.FeedPolicyGlobal
	}
	return config.FeedPolicyFollowing
}

// Feed returns the viewer's feed, newest first.
func (s *FeedService) Feed(ctx context.Context, viewerID primitive.ObjectID, p pagination.Params) (*FeedPage, error) {
	span, ctx := observability.StartSpan(ctx, "FeedService.Feed",
		attribute.String("viewer.id", viewerID.Hex()),
		attribute.Int("page", p.Page),
	)
	defer span.End()

	viewer, err := s.users.GetByID(ctx, viewerID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	authors := make([]primitive.ObjectID, 0, len(viewer.Following)+1)
	authors = append(authors, viewerID)
	authors = append(authors, viewer.Following...)

	policy := s.PolicyFor(viewerID)
	span.AddAttributes(attribute.String("feed.policy", policy))
	observability.FeedRequests.WithLabelValues(policy).Inc()

	filter := repository.PostFilter{Authors: authors}
	if policy == config.FeedPolicyGlobal {
		observability.GlobalLogger.DebugContext(ctx, "global feed",
			slog.String("viewer_id", viewerID.Hex()),
			slog.Int("following", len(viewer.Following)),
		)
		filter = repository.PostFilter{}
	}

	page, err := listPage(ctx, s.posts, s.users, filter, models.AuthenticatedViewer(viewerID), p)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return page, nil
}

// listPage runs the count and list queries for filter and annotates the result.
func listPage(
	ctx context.Context,
	posts repository.PostRepository,
	users repository.UserRepository,
	filter repository.PostFilter,
	viewer models.Viewer,
	p pagination.Params,
) (*FeedPage, error) {
	total, err := posts.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	items, err := posts.List(ctx, filter, p)
	if err != nil {
		return nil, err
	}
	authors, err := commentAuthors(ctx, users, items)
	if err != nil {
		return nil, err
	}
	return &FeedPage{
		Posts: AnnotateAll(items, viewer, authors),
		Meta:  pagination.NewMeta(total, p),
	}, nil
}
