package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Viewer identifies who is looking at a resource. The zero value is anonymous.
type Viewer struct {
	id            primitive.ObjectID
	authenticated bool
}

// Anonymous returns a viewer without identity.
func Anonymous() Viewer { return Viewer{} }

// AuthenticatedViewer returns a viewer bound to a user id.
func AuthenticatedViewer(id primitive.ObjectID) Viewer {
	return Viewer{id: id, authenticated: true}
}

// ID returns the viewer's user id and whether the viewer is authenticated.
func (v Viewer) ID() (primitive.ObjectID, bool) {
	return v.id, v.authenticated
}

// IsAuthenticated reports whether the viewer carries a user id.
func (v Viewer) IsAuthenticated() bool { return v.authenticated }

// CommentView is a comment with its author resolved.
type CommentView struct {
	ID        primitive.ObjectID `json:"_id"`
	User      Author             `json:"user"`
	Text      string             `json:"text"`
	CreatedAt time.Time          `json:"createdAt"`
}

// PostView is a post as seen by one viewer.
// IsLiked and IsShared are nil for anonymous viewers and then omitted from JSON.
type PostView struct {
	ID           primitive.ObjectID `json:"_id"`
	User         Author             `json:"user"`
	Image        string             `json:"image"`
	Caption      string             `json:"caption"`
	Location     *Location          `json:"location,omitempty"`
	Tags         []string           `json:"tags"`
	Likes        []Like             `json:"likes"`
	Shares       []Share            `json:"shares"`
	Comments     []CommentView      `json:"comments"`
	LikeCount    int                `json:"likeCount"`
	ShareCount   int                `json:"shareCount"`
	CommentCount int                `json:"commentCount"`
	IsLiked      *bool              `json:"isLiked,omitempty"`
	IsShared     *bool              `json:"isShared,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// LikeResult is returned by the like toggle.
type LikeResult struct {
	IsLiked   bool `json:"isLiked"`
	LikeCount int  `json:"likeCount"`
}

// ShareResult is returned by the share mutator.
type ShareResult struct {
	IsShared   bool `json:"isShared"`
	ShareCount int  `json:"shareCount"`
}

// FollowResult is returned by the follow toggle.
type FollowResult struct {
	IsFollowing   bool `json:"isFollowing"`
	FollowerCount int  `json:"followerCount"`
}
