package validation

import (
	"errors"
	"strings"
	"testing"

	"vistagram/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerPayload struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,vemail"`
	Password string `json:"password" validate:"required,password"`
}

type commentPayload struct {
	Text string `json:"text" validate:"notblank,max=500" msg:"Comment text is required and must be at most 500 characters"`
}

type bioPayload struct {
	Bio string `json:"bio" validate:"max=150"`
}

func messageOf(t *testing.T, err error) string {
	t.Helper()
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.CodeValidation, appErr.Code)
	return appErr.Message
}

func TestStruct(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Struct(registerPayload{Username: "ansel", Email: "a@example.com", Password: "password123"}))

	err := Struct(registerPayload{Username: "ansel", Email: "a@example.com", Password: "short"})
	assert.Equal(t, "Password must be at least 8 characters long", messageOf(t, err))

	err = Struct(&registerPayload{Username: "a", Email: "a@example.com", Password: "password123"})
	assert.Equal(t, "Username must be at least 3 characters long", messageOf(t, err))

	err = Struct(registerPayload{Email: "a@example.com", Password: "password123"})
	assert.Equal(t, "username is required", messageOf(t, err))
}

func TestStruct_NotBlankUsesMessageTag(t *testing.T) {
	t.Parallel()

	err := Struct(commentPayload{Text: "   "})
	assert.Equal(t, "Comment text is required and must be at most 500 characters", messageOf(t, err))

	assert.NoError(t, Struct(commentPayload{Text: "nice shot"}))
}

func TestStruct_MaxLength(t *testing.T) {
	t.Parallel()

	err := Struct(bioPayload{Bio: strings.Repeat("x", 151)})
	assert.Equal(t, "bio must be at most 150 characters", messageOf(t, err))
}
