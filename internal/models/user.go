// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents an account document in the users collection.
// Followers and Following must stay mirror images of each other across users.
type User struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Username       string               `bson:"username" json:"username"`
	Email          string               `bson:"email" json:"email"`
	Password       string               `bson:"password" json:"-"`
	Bio            string               `bson:"bio" json:"bio"`
	ProfilePicture string               `bson:"profilePicture" json:"profilePicture"`
	Followers      []primitive.ObjectID `bson:"followers" json:"followers"`
	Following      []primitive.ObjectID `bson:"following" json:"following"`
	Posts          []primitive.ObjectID `bson:"posts" json:"posts"`
	IsActive       bool                 `bson:"isActive" json:"isActive"`
	CreatedAt      time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// UserProfile is the public projection of a user with derived counts.
type UserProfile struct {
	ID             primitive.ObjectID `json:"_id"`
	Username       string             `json:"username"`
	Email          string             `json:"email,omitempty"`
	Bio            string             `json:"bio"`
	ProfilePicture string             `json:"profilePicture"`
	FollowerCount  int                `json:"followerCount"`
	FollowingCount int                `json:"followingCount"`
	PostCount      int                `json:"postCount"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// Author is the slim user shape embedded in posts and comments.
type Author struct {
	ID             primitive.ObjectID `bson:"_id" json:"_id"`
	Username       string             `bson:"username" json:"username"`
	ProfilePicture string             `bson:"profilePicture" json:"profilePicture"`
}

// Profile returns the public projection. Email is only included for the owner.
func (u *User) Profile(includeEmail bool) UserProfile {
	p := UserProfile{
		ID:             u.ID,
		Username:       u.Username,
		Bio:            u.Bio,
		ProfilePicture: u.ProfilePicture,
		FollowerCount:  len(u.Followers),
		FollowingCount: len(u.Following),
		PostCount:      len(u.Posts),
		CreatedAt:      u.CreatedAt,
	}
	if includeEmail {
		p.Email = u.Email
	}
	return p
}

// Author returns the slim author projection.
func (u *User) Author() Author {
	return Author{ID: u.ID, Username: u.Username, ProfilePicture: u.ProfilePicture}
}

// IsFollowing reports whether u follows target.
func (u *User) IsFollowing(target primitive.ObjectID) bool {
	return containsID(u.Following, target)
}

// IsFollowedBy reports whether follower appears in u.Followers.
func (u *User) IsFollowedBy(follower primitive.ObjectID) bool {
	return containsID(u.Followers, follower)
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// UserSummary is the row shape of follower and following listings.
type UserSummary struct {
	ID             primitive.ObjectID `json:"_id"`
	Username       string             `json:"username"`
	ProfilePicture string             `json:"profilePicture"`
	Bio            string             `json:"bio"`
	FollowerCount  int                `json:"followerCount"`
	FollowingCount int                `json:"followingCount"`
}

// Summary returns the listing projection of u.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:             u.ID,
		Username:       u.Username,
		ProfilePicture: u.ProfilePicture,
		Bio:            u.Bio,
		FollowerCount:  len(u.Followers),
		FollowingCount: len(u.Following),
	}
}
