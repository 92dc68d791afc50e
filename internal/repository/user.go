package repository

import (
	"context"
	"errors"
	"regexp"
	"time"

	"vistagram/internal/cache"
	"vistagram/internal/database"
	"vistagram/internal/models"
	"vistagram/internal/observability"
	"vistagram/internal/pagination"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EdgeSide names one of the two reference sets that make up a follow edge.
type EdgeSide string

const (
	SideFollowers EdgeSide = "followers"
	SideFollowing EdgeSide = "following"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, update ProfileUpdate) (*models.User, error)
	PushPost(ctx context.Context, userID, postID primitive.ObjectID) error
	PullPost(ctx context.Context, userID, postID primitive.ObjectID) error
	AddEdge(ctx context.Context, userID primitive.ObjectID, side EdgeSide, other primitive.ObjectID) error
	RemoveEdge(ctx context.Context, userID primitive.ObjectID, side EdgeSide, other primitive.ObjectID) error
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error)
	List(ctx context.Context, search string, p pagination.Params) ([]*models.User, error)
	Count(ctx context.Context, search string) (int64, error)
	Each(ctx context.Context, fn func(*models.User) error) error
}

// ProfileUpdate carries the editable profile fields; nil leaves a field unchanged.
type ProfileUpdate struct {
	Bio            *string
	ProfilePicture *string
}

type userRepository struct {
	coll *mongo.Collection
	log  *observability.RepoLogger
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{
		coll: db.Collection(database.UsersCollection),
		log:  observability.NewRepoLogger(database.UsersCollection),
	}
}

// publicProjection drops the password hash from every read that may be cached
// or rendered.
var publicProjection = bson.M{"password": 0}

// GetByID returns an active user. The result is served through the profile
// cache, so the password field is always empty.
func (r *userRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "GetByID", database.UsersCollection)
	defer span.End()

	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		defer observability.TrackQuery("find", database.UsersCollection)()
		err := r.coll.FindOne(ctx,
			bson.M{"_id": id, "isActive": true},
			options.FindOne().SetProjection(publicProjection),
		).Decode(&user)
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			r.log.LogError(ctx, err, "findOne")
		}
		return translateError("User", id.Hex(), err)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail returns the full document including the password hash.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	defer observability.TrackQuery("find", database.UsersCollection)()

	var user models.User
	err := r.coll.FindOne(ctx, bson.M{"email": email, "isActive": true}).Decode(&user)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			r.log.LogError(ctx, err, "findOne")
		}
		return nil, translateError("User", email, err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	ctx, span := observability.TraceRepositoryMethod(ctx, "Create", database.UsersCollection)
	defer span.End()
	defer observability.TrackQuery("insert", database.UsersCollection)()

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			r.log.LogError(ctx, err, "create")
		}
		return translateError("User", user.ID.Hex(), err)
	}
	r.log.LogCreate(ctx, map[string]any{"user_id": user.ID.Hex()})
	return nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, update ProfileUpdate) (*models.User, error) {
	defer observability.TrackQuery("findAndModify", database.UsersCollection)()

	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Bio != nil {
		set["bio"] = *update.Bio
	}
	if update.ProfilePicture != nil {
		set["profilePicture"] = *update.ProfilePicture
	}

	var user models.User
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "isActive": true},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(publicProjection),
	).Decode(&user)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			r.log.LogError(ctx, err, "updateProfile")
		}
		return nil, translateError("User", id.Hex(), err)
	}
	cache.InvalidateUsers(ctx, id)
	r.log.LogUpdate(ctx, map[string]any{"user_id": id.Hex(), "action": "profile"})
	return &user, nil
}

func (r *userRepository) PushPost(ctx context.Context, userID, postID primitive.ObjectID) error {
	return r.updateRefs(ctx, userID, "pushPost", bson.M{"$push": bson.M{"posts": postID}})
}

func (r *userRepository) PullPost(ctx context.Context, userID, postID primitive.ObjectID) error {
	return r.updateRefs(ctx, userID, "pullPost", bson.M{"$pull": bson.M{"posts": postID}})
}

// AddEdge adds other to one side of userID's follow sets. $addToSet keeps a
// repeated add from creating a duplicate entry.
func (r *userRepository) AddEdge(ctx context.Context, userID primitive.ObjectID, side EdgeSide, other primitive.ObjectID) error {
	return r.updateRefs(ctx, userID, "addEdge", bson.M{"$addToSet": bson.M{string(side): other}})
}

func (r *userRepository) RemoveEdge(ctx context.Context, userID primitive.ObjectID, side EdgeSide, other primitive.ObjectID) error {
	return r.updateRefs(ctx, userID, "removeEdge", bson.M{"$pull": bson.M{string(side): other}})
}

func (r *userRepository) updateRefs(ctx context.Context, userID primitive.ObjectID, op string, update bson.M) error {
	defer observability.TrackQuery("update", database.UsersCollection)()

	update["$set"] = bson.M{"updatedAt": time.Now().UTC()}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		r.log.LogError(ctx, err, op)
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("User", userID.Hex())
	}
	// Inside a transaction the write is invisible until commit, so the
	// caller invalidates once the transaction has finished.
	if mongo.SessionFromContext(ctx) == nil {
		cache.InvalidateUsers(ctx, userID)
	}
	r.log.LogUpdate(ctx, map[string]any{"user_id": userID.Hex(), "action": op})
	return nil
}

// FindByIDs returns the active users among ids in the order of ids. Unknown
// ids are skipped.
func (r *userRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}
	defer observability.TrackQuery("find", database.UsersCollection)()

	cur, err := r.coll.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "isActive": true},
		options.Find().SetProjection(bson.M{"password": 0, "posts": 0, "email": 0}),
	)
	if err != nil {
		r.log.LogError(ctx, err, "find")
		return nil, models.NewInternalError(err)
	}
	var found []*models.User
	if err := cur.All(ctx, &found); err != nil {
		r.log.LogError(ctx, err, "find")
		return nil, models.NewInternalError(err)
	}

	byID := make(map[primitive.ObjectID]*models.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	ordered := make([]*models.User, 0, len(found))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			ordered = append(ordered, u)
		}
	}
	return ordered, nil
}

func searchFilter(search string) bson.M {
	filter := bson.M{"isActive": true}
	if search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"username": pattern},
			bson.M{"bio": pattern},
		}
	}
	return filter
}

func (r *userRepository) List(ctx context.Context, search string, p pagination.Params) ([]*models.User, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "List", database.UsersCollection)
	defer span.End()
	defer observability.TrackQuery("find", database.UsersCollection)()

	cur, err := r.coll.Find(ctx, searchFilter(search),
		options.Find().
			SetProjection(bson.M{"password": 0, "email": 0}).
			SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
			SetSkip(p.Skip()).
			SetLimit(int64(p.Limit)),
	)
	if err != nil {
		r.log.LogError(ctx, err, "list")
		return nil, models.NewInternalError(err)
	}
	users := make([]*models.User, 0)
	if err := cur.All(ctx, &users); err != nil {
		r.log.LogError(ctx, err, "list")
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) Count(ctx context.Context, search string) (int64, error) {
	defer observability.TrackQuery("count", database.UsersCollection)()

	n, err := r.coll.CountDocuments(ctx, searchFilter(search))
	if err != nil {
		r.log.LogError(ctx, err, "count")
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// Each streams every user's id and follow sets to fn, stopping at the first error.
func (r *userRepository) Each(ctx context.Context, fn func(*models.User) error) error {
	cur, err := r.coll.Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"followers": 1, "following": 1, "username": 1}),
	)
	if err != nil {
		r.log.LogError(ctx, err, "scan")
		return models.NewInternalError(err)
	}
	defer func() { _ = cur.Close(ctx) }()

	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return models.NewInternalError(err)
		}
		if err := fn(&u); err != nil {
			return err
		}
	}
	if err := cur.Err(); err != nil {
		r.log.LogError(ctx, err, "scan")
		return models.NewInternalError(err)
	}
	return nil
}
