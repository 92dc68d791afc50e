package repository

import (
	"context"
	"errors"
	"time"

	"vistagram/internal/database"
	"vistagram/internal/models"
	"vistagram/internal/observability"
	"vistagram/internal/pagination"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostFilter selects active posts. A nil Authors slice matches every author;
// a non-nil empty slice matches none.
type PostFilter struct {
	Authors []primitive.ObjectID
}

func (f PostFilter) match() bson.M {
	m := bson.M{"isActive": true}
	if f.Authors != nil {
		m["user"] = bson.M{"$in": f.Authors}
	}
	return m
}

// PostRepository defines the interface for post data operations.
// Every read and mutation ignores soft-deleted posts.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetActiveByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	List(ctx context.Context, filter PostFilter, p pagination.Params) ([]*models.Post, error)
	Count(ctx context.Context, filter PostFilter) (int64, error)
	ToggleLike(ctx context.Context, postID, userID primitive.ObjectID, at time.Time) (*models.LikeResult, error)
	AddShare(ctx context.Context, postID, userID primitive.ObjectID, at time.Time) (*models.ShareResult, error)
	AddComment(ctx context.Context, postID primitive.ObjectID, comment models.Comment) error
	SoftDelete(ctx context.Context, postID primitive.ObjectID, at time.Time) error
}

type postRepository struct {
	coll *mongo.Collection
	log  *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *mongo.Database) PostRepository {
	return &postRepository{
		coll: db.Collection(database.PostsCollection),
		log:  observability.NewRepoLogger(database.PostsCollection),
	}
}

// recencyOrder is the single feed ordering: newest first, _id breaking ties.
var recencyOrder = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

// authorLookup joins the slim author projection onto each post.
var authorLookup = []bson.D{
	{{Key: "$lookup", Value: bson.M{
		"from": database.UsersCollection,
		"let":  bson.M{"uid": "$user"},
		"pipeline": bson.A{
			bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$_id", "$$uid"}}}},
			bson.M{"$project": bson.M{"username": 1, "profilePicture": 1}},
		},
		"as": "author",
	}}},
	{{Key: "$unwind", Value: bson.M{"path": "$author", "preserveNullAndEmptyArrays": true}}},
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	ctx, span := observability.TraceRepositoryMethod(ctx, "Create", database.PostsCollection)
	defer span.End()
	defer observability.TrackQuery("insert", database.PostsCollection)()

	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, post); err != nil {
		r.log.LogError(ctx, err, "create")
		return translateError("Post", post.ID.Hex(), err)
	}
	r.log.LogCreate(ctx, map[string]any{"post_id": post.ID.Hex(), "user_id": post.User.Hex()})
	return nil
}

func (r *postRepository) GetActiveByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "GetActiveByID", database.PostsCollection)
	defer span.End()
	defer observability.TrackQuery("aggregate", database.PostsCollection)()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": id, "isActive": true}}},
		{{Key: "$limit", Value: 1}},
	}
	pipeline = append(pipeline, authorLookup...)

	posts, err := r.aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, models.NewNotFoundError("Post", id.Hex())
	}
	return posts[0], nil
}

func (r *postRepository) List(ctx context.Context, filter PostFilter, p pagination.Params) ([]*models.Post, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "List", database.PostsCollection)
	defer span.End()
	defer observability.TrackQuery("aggregate", database.PostsCollection)()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter.match()}},
		{{Key: "$sort", Value: recencyOrder}},
		{{Key: "$skip", Value: p.Skip()}},
		{{Key: "$limit", Value: int64(p.Limit)}},
	}
	pipeline = append(pipeline, authorLookup...)

	posts, err := r.aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	r.log.LogRead(ctx, map[string]any{"count": len(posts), "page": p.Page, "limit": p.Limit})
	return posts, nil
}

func (r *postRepository) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]*models.Post, error) {
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		r.log.LogError(ctx, err, "aggregate")
		return nil, models.NewInternalError(err)
	}
	posts := make([]*models.Post, 0)
	if err := cur.All(ctx, &posts); err != nil {
		r.log.LogError(ctx, err, "aggregate")
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) Count(ctx context.Context, filter PostFilter) (int64, error) {
	defer observability.TrackQuery("count", database.PostsCollection)()

	n, err := r.coll.CountDocuments(ctx, filter.match())
	if err != nil {
		r.log.LogError(ctx, err, "count")
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// ToggleLike removes the user's like when present and adds one otherwise.
// Both branches are single guarded updates, so a user never holds two likes.
func (r *postRepository) ToggleLike(ctx context.Context, postID, userID primitive.ObjectID, at time.Time) (*models.LikeResult, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "ToggleLike", database.PostsCollection)
	defer span.End()
	defer observability.TrackQuery("findAndModify", database.PostsCollection)()

	after := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"likes": 1})

	var post models.Post
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": postID, "isActive": true, "likes.user": userID},
		bson.M{
			"$pull": bson.M{"likes": bson.M{"user": userID}},
			"$set":  bson.M{"updatedAt": at},
		},
		after,
	).Decode(&post)
	if err == nil {
		r.log.LogUpdate(ctx, map[string]any{"post_id": postID.Hex(), "action": "unlike"})
		return &models.LikeResult{IsLiked: false, LikeCount: len(post.Likes)}, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		r.log.LogError(ctx, err, "unlike")
		return nil, models.NewInternalError(err)
	}

	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": postID, "isActive": true, "likes.user": bson.M{"$ne": userID}},
		bson.M{
			"$push": bson.M{"likes": models.Like{User: userID, LikedAt: at}},
			"$set":  bson.M{"updatedAt": at},
		},
		after,
	).Decode(&post)
	if err == nil {
		r.log.LogUpdate(ctx, map[string]any{"post_id": postID.Hex(), "action": "like"})
		return &models.LikeResult{IsLiked: true, LikeCount: len(post.Likes)}, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		r.log.LogError(ctx, err, "like")
		return nil, models.NewInternalError(err)
	}

	// Neither guard matched: the post is gone, or a concurrent request by the
	// same user liked it between the two updates. Report what is stored.
	current, err := r.interactions(ctx, postID)
	if err != nil {
		return nil, err
	}
	return &models.LikeResult{IsLiked: likedBy(current.Likes, userID), LikeCount: len(current.Likes)}, nil
}

// AddShare records a share at most once per user.
func (r *postRepository) AddShare(ctx context.Context, postID, userID primitive.ObjectID, at time.Time) (*models.ShareResult, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "AddShare", database.PostsCollection)
	defer span.End()
	defer observability.TrackQuery("findAndModify", database.PostsCollection)()

	var post models.Post
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": postID, "isActive": true, "shares.user": bson.M{"$ne": userID}},
		bson.M{
			"$push": bson.M{"shares": models.Share{User: userID, SharedAt: at}},
			"$set":  bson.M{"updatedAt": at},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(bson.M{"shares": 1}),
	).Decode(&post)
	if err == nil {
		r.log.LogUpdate(ctx, map[string]any{"post_id": postID.Hex(), "action": "share"})
		return &models.ShareResult{IsShared: true, ShareCount: len(post.Shares)}, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		r.log.LogError(ctx, err, "share")
		return nil, models.NewInternalError(err)
	}

	current, err := r.interactions(ctx, postID)
	if err != nil {
		return nil, err
	}
	return &models.ShareResult{IsShared: true, ShareCount: len(current.Shares)}, nil
}

func (r *postRepository) interactions(ctx context.Context, postID primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := r.coll.FindOne(ctx,
		bson.M{"_id": postID, "isActive": true},
		options.FindOne().SetProjection(bson.M{"likes": 1, "shares": 1}),
	).Decode(&post)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			r.log.LogError(ctx, err, "findOne")
		}
		return nil, translateError("Post", postID.Hex(), err)
	}
	return &post, nil
}

func (r *postRepository) AddComment(ctx context.Context, postID primitive.ObjectID, comment models.Comment) error {
	ctx, span := observability.TraceRepositoryMethod(ctx, "AddComment", database.PostsCollection)
	defer span.End()
	defer observability.TrackQuery("update", database.PostsCollection)()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": postID, "isActive": true},
		bson.M{
			"$push": bson.M{"comments": comment},
			"$set":  bson.M{"updatedAt": comment.CreatedAt},
		},
	)
	if err != nil {
		r.log.LogError(ctx, err, "comment")
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("Post", postID.Hex())
	}
	r.log.LogUpdate(ctx, map[string]any{"post_id": postID.Hex(), "action": "comment"})
	return nil
}

func (r *postRepository) SoftDelete(ctx context.Context, postID primitive.ObjectID, at time.Time) error {
	ctx, span := observability.TraceRepositoryMethod(ctx, "SoftDelete", database.PostsCollection)
	defer span.End()
	defer observability.TrackQuery("update", database.PostsCollection)()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": postID, "isActive": true},
		bson.M{"$set": bson.M{"isActive": false, "updatedAt": at}},
	)
	if err != nil {
		r.log.LogError(ctx, err, "delete")
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("Post", postID.Hex())
	}
	r.log.LogDelete(ctx, map[string]any{"post_id": postID.Hex()})
	return nil
}

func likedBy(likes []models.Like, userID primitive.ObjectID) bool {
	for _, l := range likes {
		if l.User == userID {
			return true
		}
	}
	return false
}
