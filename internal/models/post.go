package models

import (
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Field limits enforced before a post or comment is written.
const (
	MaxCaptionLength = 2200
	MaxCommentLength = 500
)

var hashtagPattern = regexp.MustCompile(`#[\w\x{0590}-\x{05ff}]+`)

// GeoPoint is a GeoJSON point; coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

// Location is the optional place attached to a post.
type Location struct {
	Name        string    `bson:"name,omitempty" json:"name,omitempty"`
	Coordinates *GeoPoint `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
}

// Like is one user's like. A user appears at most once per post.
type Like struct {
	User    primitive.ObjectID `bson:"user" json:"user"`
	LikedAt time.Time          `bson:"likedAt" json:"likedAt"`
}

// Share is one user's share. A user appears at most once per post.
type Share struct {
	User     primitive.ObjectID `bson:"user" json:"user"`
	SharedAt time.Time          `bson:"sharedAt" json:"sharedAt"`
}

// Comment is append-only; a user may comment many times.
type Comment struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Post is an image post document. Counts are never stored; they are derived
// from the interaction lists whenever a post is read.
type Post struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	User      primitive.ObjectID `bson:"user"`
	Image     string             `bson:"image"`
	Caption   string             `bson:"caption"`
	Location  *Location          `bson:"location,omitempty"`
	Likes     []Like             `bson:"likes"`
	Shares    []Share            `bson:"shares"`
	Comments  []Comment          `bson:"comments"`
	Tags      []string           `bson:"tags"`
	IsActive  bool               `bson:"isActive"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`

	// Author is filled by the $lookup stage of listing queries and never persisted.
	Author *Author `bson:"author,omitempty"`
}

// NewPost builds an active post with its hashtags extracted from the caption.
func NewPost(owner primitive.ObjectID, image, caption string, location *Location, now time.Time) *Post {
	caption = strings.TrimSpace(caption)
	return &Post{
		User:      owner,
		Image:     image,
		Caption:   caption,
		Location:  location,
		Likes:     []Like{},
		Shares:    []Share{},
		Comments:  []Comment{},
		Tags:      ExtractTags(caption),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ExtractTags returns the lowercase hashtags of caption, without the leading '#'.
func ExtractTags(caption string) []string {
	matches := hashtagPattern.FindAllString(caption, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, strings.ToLower(strings.TrimPrefix(m, "#")))
	}
	return tags
}

// NewGeoPoint builds a GeoJSON point from longitude and latitude.
func NewGeoPoint(lng, lat float64) *GeoPoint {
	return &GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}
