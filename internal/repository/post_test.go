package repository

import (
	"context"
	"testing"
	"time"

	"vistagram/internal/models"
	"vistagram/internal/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const postsNS = "vistagram.posts"

func newMock(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func likeDocs(users ...primitive.ObjectID) bson.A {
	likes := bson.A{}
	for _, u := range users {
		likes = append(likes, bson.D{{Key: "user", Value: u}, {Key: "likedAt", Value: time.Now()}})
	}
	return likes
}

func findAndModifyValue(doc interface{}) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "value", Value: doc})
}

func TestPostRepository_Create(t *testing.T) {
	mt := newMock(t)

	mt.Run("assigns an id", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		post := models.NewPost(primitive.NewObjectID(), "data:image/jpeg;base64,AA==", "hi #go", nil, time.Now())
		require.NoError(mt, repo.Create(context.Background(), post))
		assert.False(mt, post.ID.IsZero())
	})

	mt.Run("store failure is internal", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 1, Message: "boom"}))

		post := models.NewPost(primitive.NewObjectID(), "img", "caption", nil, time.Now())
		err := repo.Create(context.Background(), post)
		assert.True(mt, models.IsCode(err, models.CodeInternal))
	})
}

func TestPostRepository_GetActiveByID(t *testing.T) {
	mt := newMock(t)
	id := primitive.NewObjectID()
	owner := primitive.NewObjectID()

	mt.Run("found with author", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, postsNS, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "user", Value: owner},
			{Key: "caption", Value: "sunset"},
			{Key: "isActive", Value: true},
			{Key: "author", Value: bson.D{{Key: "_id", Value: owner}, {Key: "username", Value: "ansel"}}},
		}))

		post, err := repo.GetActiveByID(context.Background(), id)
		require.NoError(mt, err)
		assert.Equal(mt, id, post.ID)
		require.NotNil(mt, post.Author)
		assert.Equal(mt, "ansel", post.Author.Username)
	})

	mt.Run("soft deleted is not found", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, postsNS, mtest.FirstBatch))

		_, err := repo.GetActiveByID(context.Background(), id)
		assert.True(mt, models.IsCode(err, models.CodeNotFound))
	})
}

func TestPostRepository_ListAndCount(t *testing.T) {
	mt := newMock(t)

	mt.Run("list decodes the page", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		first := bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "caption", Value: "a"}, {Key: "isActive", Value: true}}
		second := bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "caption", Value: "b"}, {Key: "isActive", Value: true}}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, postsNS, mtest.FirstBatch, first, second))

		posts, err := repo.List(context.Background(), PostFilter{}, pagination.New(1, 10, 10))
		require.NoError(mt, err)
		require.Len(mt, posts, 2)
		assert.Equal(mt, "a", posts[0].Caption)
	})

	mt.Run("count", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, postsNS, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(25)}}))

		n, err := repo.Count(context.Background(), PostFilter{Authors: []primitive.ObjectID{primitive.NewObjectID()}})
		require.NoError(mt, err)
		assert.Equal(mt, int64(25), n)
	})
}

func TestPostFilter_Match(t *testing.T) {
	assert.Equal(t, bson.M{"isActive": true}, PostFilter{}.match())

	none := PostFilter{Authors: []primitive.ObjectID{}}.match()
	assert.Equal(t, bson.M{"$in": []primitive.ObjectID{}}, none["user"])
}

func TestPostRepository_ToggleLike(t *testing.T) {
	mt := newMock(t)
	postID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	other := primitive.NewObjectID()

	mt.Run("like when absent", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(
			findAndModifyValue(nil),
			findAndModifyValue(bson.D{{Key: "_id", Value: postID}, {Key: "likes", Value: likeDocs(other, userID)}}),
		)

		res, err := repo.ToggleLike(context.Background(), postID, userID, time.Now())
		require.NoError(mt, err)
		assert.True(mt, res.IsLiked)
		assert.Equal(mt, 2, res.LikeCount)
	})

	mt.Run("unlike when present", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(
			findAndModifyValue(bson.D{{Key: "_id", Value: postID}, {Key: "likes", Value: likeDocs(other)}}),
		)

		res, err := repo.ToggleLike(context.Background(), postID, userID, time.Now())
		require.NoError(mt, err)
		assert.False(mt, res.IsLiked)
		assert.Equal(mt, 1, res.LikeCount)
	})

	mt.Run("missing post", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(
			findAndModifyValue(nil),
			findAndModifyValue(nil),
			mtest.CreateCursorResponse(0, postsNS, mtest.FirstBatch),
		)

		_, err := repo.ToggleLike(context.Background(), postID, userID, time.Now())
		assert.True(mt, models.IsCode(err, models.CodeNotFound))
	})

	mt.Run("concurrent like by same user", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(
			findAndModifyValue(nil),
			findAndModifyValue(nil),
			mtest.CreateCursorResponse(0, postsNS, mtest.FirstBatch,
				bson.D{{Key: "_id", Value: postID}, {Key: "likes", Value: likeDocs(userID)}}),
		)

		res, err := repo.ToggleLike(context.Background(), postID, userID, time.Now())
		require.NoError(mt, err)
		assert.True(mt, res.IsLiked)
		assert.Equal(mt, 1, res.LikeCount)
	})
}

func TestPostRepository_AddShare(t *testing.T) {
	mt := newMock(t)
	postID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	shares := bson.A{bson.D{{Key: "user", Value: userID}, {Key: "sharedAt", Value: time.Now()}}}

	mt.Run("first share appends", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(findAndModifyValue(bson.D{{Key: "_id", Value: postID}, {Key: "shares", Value: shares}}))

		res, err := repo.AddShare(context.Background(), postID, userID, time.Now())
		require.NoError(mt, err)
		assert.Equal(mt, &models.ShareResult{IsShared: true, ShareCount: 1}, res)
	})

	mt.Run("repeat share re-reads without appending", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(
			findAndModifyValue(nil),
			mtest.CreateCursorResponse(0, postsNS, mtest.FirstBatch, bson.D{{Key: "_id", Value: postID}, {Key: "shares", Value: shares}}),
		)

		res, err := repo.AddShare(context.Background(), postID, userID, time.Now())
		require.NoError(mt, err)
		assert.Equal(mt, &models.ShareResult{IsShared: true, ShareCount: 1}, res)
	})

	mt.Run("missing post", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(findAndModifyValue(nil), mtest.CreateCursorResponse(0, postsNS, mtest.FirstBatch))

		_, err := repo.AddShare(context.Background(), postID, userID, time.Now())
		assert.True(mt, models.IsCode(err, models.CodeNotFound))
	})
}

func TestPostRepository_AddCommentAndSoftDelete(t *testing.T) {
	mt := newMock(t)
	postID := primitive.NewObjectID()
	comment := models.Comment{ID: primitive.NewObjectID(), User: primitive.NewObjectID(), Text: "nice", CreatedAt: time.Now()}

	mt.Run("comment on active post", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		assert.NoError(mt, repo.AddComment(context.Background(), postID, comment))
	})

	mt.Run("comment on inactive post", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		err := repo.AddComment(context.Background(), postID, comment)
		assert.True(mt, models.IsCode(err, models.CodeNotFound))
	})

	mt.Run("soft delete", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		assert.NoError(mt, repo.SoftDelete(context.Background(), postID, time.Now()))
	})

	mt.Run("soft delete twice is not found", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		err := repo.SoftDelete(context.Background(), postID, time.Now())
		assert.True(mt, models.IsCode(err, models.CodeNotFound))
	})
}
