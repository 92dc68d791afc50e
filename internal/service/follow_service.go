package service

import (
	"context"
	"log/slog"

	"vistagram/internal/cache"
	"vistagram/internal/models"
	"vistagram/internal/observability"
	"vistagram/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
)

// FollowService mutates the follow graph. An edge A->B is stored twice,
// as B in A.following and as A in B.followers.
type FollowService struct {
	users repository.UserRepository
	tx    repository.Transactor
}

// ReconcileReport summarizes a repair pass over the follow graph.
type ReconcileReport struct {
	UsersScanned int `json:"usersScanned"`
	EdgesAdded   int `json:"edgesAdded"`
	EdgesRemoved int `json:"edgesRemoved"`
}

// NewFollowService returns a FollowService; a nil tx runs edge writes without a transaction.
func NewFollowService(users repository.UserRepository, tx repository.Transactor) *FollowService {
	if tx == nil {
		tx = repository.NewTransactor(nil, false)
	}
	return &FollowService{users: users, tx: tx}
}

// ToggleFollow makes followerID follow targetID, or unfollow when the edge
// already exists. Both sides are written inside one transaction when the
// deployment supports it.
func (s *FollowService) ToggleFollow(ctx context.Context, followerID, targetID primitive.ObjectID) (*models.FollowResult, error) {
	span, ctx := observability.StartSpan(ctx, "FollowService.ToggleFollow",
		attribute.String("follower.id", followerID.Hex()),
		attribute.String("target.id", targetID.Hex()),
	)
	defer span.End()

	if followerID == targetID {
		return nil, models.NewValidationError("Cannot follow yourself")
	}

	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return nil, err
	}
	follower, err := s.users.GetByID(ctx, followerID)
	if err != nil {
		return nil, err
	}

	following := follower.IsFollowing(targetID)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if following {
			if err := s.users.RemoveEdge(ctx, followerID, repository.SideFollowing, targetID); err != nil {
				return err
			}
			return s.users.RemoveEdge(ctx, targetID, repository.SideFollowers, followerID)
		}
		if err := s.users.AddEdge(ctx, followerID, repository.SideFollowing, targetID); err != nil {
			return err
		}
		return s.users.AddEdge(ctx, targetID, repository.SideFollowers, followerID)
	})
	cache.InvalidateUsers(ctx, followerID, targetID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	action := "follow"
	if following {
		action = "unfollow"
	}
	observability.FollowToggles.WithLabelValues(action).Inc()

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return &models.FollowResult{
		IsFollowing:   !following,
		FollowerCount: len(target.Followers),
	}, nil
}

// Reconcile scans every user and restores the mirror side of each one-sided
// edge. Self edges and edges to users that no longer exist are dropped.
func (s *FollowService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	span, ctx := observability.StartSpan(ctx, "FollowService.Reconcile")
	defer span.End()

	graph := make(map[primitive.ObjectID]*models.User)
	err := s.users.Each(ctx, func(u *models.User) error {
		graph[u.ID] = u
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	report := &ReconcileReport{UsersScanned: len(graph)}
	for id, u := range graph {
		for _, other := range u.Following {
			if err := s.repairEdge(ctx, graph, report, id, repository.SideFollowing, other); err != nil {
				span.SetError(err)
				return report, err
			}
		}
		for _, other := range u.Followers {
			if err := s.repairEdge(ctx, graph, report, id, repository.SideFollowers, other); err != nil {
				span.SetError(err)
				return report, err
			}
		}
	}

	span.AddAttributes(
		attribute.Int("reconcile.users", report.UsersScanned),
		attribute.Int("reconcile.added", report.EdgesAdded),
		attribute.Int("reconcile.removed", report.EdgesRemoved),
	)
	observability.GlobalLogger.InfoContext(ctx, "follow graph reconciled",
		slog.Int("users", report.UsersScanned),
		slog.Int("edges_added", report.EdgesAdded),
		slog.Int("edges_removed", report.EdgesRemoved),
	)
	return report, nil
}

// repairEdge checks the reference other stored on side of user id.
func (s *FollowService) repairEdge(
	ctx context.Context,
	graph map[primitive.ObjectID]*models.User,
	report *ReconcileReport,
	id primitive.ObjectID,
	side repository.EdgeSide,
	other primitive.ObjectID,
) error {
	peer, exists := graph[other]
	if other == id || !exists {
		if err := s.users.RemoveEdge(ctx, id, side, other); err != nil {
			return err
		}
		report.EdgesRemoved++
		return nil
	}

	mirror := repository.SideFollowers
	present := peer.IsFollowedBy(id)
	if side == repository.SideFollowers {
		mirror = repository.SideFollowing
		present = peer.IsFollowing(id)
	}
	if present {
		return nil
	}

	err := s.users.AddEdge(ctx, other, mirror, id)
	if models.IsCode(err, models.CodeNotFound) {
		// The peer was removed after the scan; drop our side instead.
		if err := s.users.RemoveEdge(ctx, id, side, other); err != nil {
			return err
		}
		report.EdgesRemoved++
		return nil
	}
	if err != nil {
		return err
	}
	if side == repository.SideFollowers {
		peer.Following = append(peer.Following, id)
	} else {
		peer.Followers = append(peer.Followers, id)
	}
	report.EdgesAdded++
	return nil
}
