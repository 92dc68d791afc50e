package repository

import (
	"context"
	"errors"
	"testing"

	"vistagram/internal/models"
	"vistagram/internal/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const usersNS = "vistagram.users"

func userDoc(id primitive.ObjectID, username string, followers ...primitive.ObjectID) bson.D {
	f := bson.A{}
	for _, id := range followers {
		f = append(f, id)
	}
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "username", Value: username},
		{Key: "followers", Value: f},
		{Key: "following", Value: bson.A{}},
		{Key: "isActive", Value: true},
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	mt := newMock(t)
	id := primitive.NewObjectID()

	mt.Run("found", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch, userDoc(id, "ansel")))

		u, err := repo.GetByID(context.Background(), id)
		require.NoError(mt, err)
		assert.Equal(mt, "ansel", u.Username)
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch))

		_, err := repo.GetByID(context.Background(), id)
		assert.True(mt, models.IsCode(err, models.CodeNotFound))
	})
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	mt := newMock(t)

	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"username", "E11000 duplicate key error collection: vistagram.users index: username_unique", "Username already taken"},
		{"email", "E11000 duplicate key error collection: vistagram.users index: email_unique", "Email already registered"},
	}

	for _, tt := range tests {
		mt.Run(tt.name, func(mt *mtest.T) {
			repo := NewUserRepository(mt.DB)
			mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
				Index:   0,
				Code:    11000,
				Message: tt.message,
			}))

			err := repo.Create(context.Background(), &models.User{Username: "ansel", Email: "a@b.c"})
			require.Error(mt, err)
			var appErr *models.AppError
			require.True(mt, errors.As(err, &appErr))
			assert.Equal(mt, models.CodeValidation, appErr.Code)
			assert.Equal(mt, tt.want, appErr.Message)
		})
	}
}

func TestUserRepository_Edges(t *testing.T) {
	mt := newMock(t)
	a, b := primitive.NewObjectID(), primitive.NewObjectID()

	mt.Run("add edge", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		assert.NoError(mt, repo.AddEdge(context.Background(), a, SideFollowing, b))
	})

	mt.Run("repeated add still matches", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 0}))
		assert.NoError(mt, repo.AddEdge(context.Background(), a, SideFollowing, b))
	})

	mt.Run("missing user", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		err := repo.RemoveEdge(context.Background(), a, SideFollowers, b)
		assert.True(mt, models.IsCode(err, models.CodeNotFound))
	})
}

func TestUserRepository_FindByIDsKeepsOrder(t *testing.T) {
	mt := newMock(t)
	a, b, missing := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

	mt.Run("ordered", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch, userDoc(a, "first"), userDoc(b, "second")))

		users, err := repo.FindByIDs(context.Background(), []primitive.ObjectID{b, missing, a})
		require.NoError(mt, err)
		require.Len(mt, users, 2)
		assert.Equal(mt, "second", users[0].Username)
		assert.Equal(mt, "first", users[1].Username)
	})

	mt.Run("empty input skips the query", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		users, err := repo.FindByIDs(context.Background(), nil)
		require.NoError(mt, err)
		assert.Empty(mt, users)
	})
}

func TestUserRepository_ListAndCount(t *testing.T) {
	mt := newMock(t)

	mt.Run("list", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch, userDoc(primitive.NewObjectID(), "ansel")))

		users, err := repo.List(context.Background(), "ans", pagination.New(1, 20, 20))
		require.NoError(mt, err)
		require.Len(mt, users, 1)
	})

	mt.Run("count", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}))

		n, err := repo.Count(context.Background(), "")
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), n)
	})
}

func TestSearchFilter_EscapesRegex(t *testing.T) {
	f := searchFilter("a.b*")
	or, ok := f["$or"].(bson.A)
	require.True(t, ok)
	re := or[0].(bson.M)["username"].(primitive.Regex)
	assert.Equal(t, `a\.b\*`, re.Pattern)
	assert.Equal(t, "i", re.Options)

	_, hasOr := searchFilter("")["$or"]
	assert.False(t, hasOr)
}

func TestUserRepository_Each(t *testing.T) {
	mt := newMock(t)
	a, b := primitive.NewObjectID(), primitive.NewObjectID()

	mt.Run("streams all users", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, usersNS, mtest.FirstBatch, userDoc(a, "a", b)),
			mtest.CreateCursorResponse(0, usersNS, mtest.NextBatch, userDoc(b, "b")),
		)

		var seen []primitive.ObjectID
		err := repo.Each(context.Background(), func(u *models.User) error {
			seen = append(seen, u.ID)
			return nil
		})
		require.NoError(mt, err)
		assert.Equal(mt, []primitive.ObjectID{a, b}, seen)
	})
}

func TestNewTransactor_DisabledRunsInline(t *testing.T) {
	tx := NewTransactor(nil, true)
	called := false
	err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
