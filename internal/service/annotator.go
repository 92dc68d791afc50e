package service

import (
	"context"

	"vistagram/internal/models"
	"vistagram/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthorIndex resolves user ids to their slim author projection.
type AuthorIndex map[primitive.ObjectID]models.Author

func (idx AuthorIndex) lookup(id primitive.ObjectID) models.Author {
	if a, ok := idx[id]; ok {
		return a
	}
	return models.Author{ID: id}
}

// Annotate derives the viewer-relative view of post. Counts always equal the
// lengths of the interaction lists. IsLiked and IsShared are only set for an
// authenticated viewer.
func Annotate(post *models.Post, viewer models.Viewer, authors AuthorIndex) models.PostView {
	view := models.PostView{
		ID:           post.ID,
		Image:        post.Image,
		Caption:      post.Caption,
		Location:     post.Location,
		Tags:         nonNil(post.Tags),
		Likes:        nonNil(post.Likes),
		Shares:       nonNil(post.Shares),
		Comments:     make([]models.CommentView, 0, len(post.Comments)),
		LikeCount:    len(post.Likes),
		ShareCount:   len(post.Shares),
		CommentCount: len(post.Comments),
		CreatedAt:    post.CreatedAt,
		UpdatedAt:    post.UpdatedAt,
	}

	if post.Author != nil {
		view.User = *post.Author
	} else {
		view.User = authors.lookup(post.User)
	}

	for _, c := range post.Comments {
		view.Comments = append(view.Comments, models.CommentView{
			ID:        c.ID,
			User:      authors.lookup(c.User),
			Text:      c.Text,
			CreatedAt: c.CreatedAt,
		})
	}

	if id, ok := viewer.ID(); ok {
		liked := memberSet(post.Likes, func(l models.Like) primitive.ObjectID { return l.User })[id]
		shared := memberSet(post.Shares, func(s models.Share) primitive.ObjectID { return s.User })[id]
		view.IsLiked = &liked
		view.IsShared = &shared
	}
	return view
}

// AnnotateAll annotates a page of posts for one viewer.
func AnnotateAll(posts []*models.Post, viewer models.Viewer, authors AuthorIndex) []models.PostView {
	views := make([]models.PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, Annotate(p, viewer, authors))
	}
	return views
}

func memberSet[T any](items []T, key func(T) primitive.ObjectID) map[primitive.ObjectID]bool {
	set := make(map[primitive.ObjectID]bool, len(items))
	for _, it := range items {
		set[key(it)] = true
	}
	return set
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// commentAuthors resolves every comment author on the page in one query.
func commentAuthors(ctx context.Context, users repository.UserRepository, posts []*models.Post) (AuthorIndex, error) {
	seen := make(map[primitive.ObjectID]bool)
	var ids []primitive.ObjectID
	for _, p := range posts {
		for _, c := range p.Comments {
			if !seen[c.User] {
				seen[c.User] = true
				ids = append(ids, c.User)
			}
		}
	}
	idx := make(AuthorIndex, len(ids))
	if len(ids) == 0 {
		return idx, nil
	}
	found, err := users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range found {
		idx[u.ID] = u.Author()
	}
	return idx, nil
}
