// Package seed creates demo data for local development: users with bcrypt
// passwords, a symmetric follow graph, and image posts with likes, shares
// and comments. It is not meant to run against production data.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"vistagram/internal/database"
	"vistagram/internal/middleware"
	"vistagram/internal/models"
	"vistagram/internal/repository"
	"vistagram/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPassword is used when SEED_PASSWORD is not set.
const DefaultPassword = "password123"

// Options size the generated data set.
type Options struct {
	Users          int
	PostsPerUser   int
	FollowsPerUser int
	Password       string
	// Seed makes a run reproducible; zero uses the clock.
	Seed int64
}

// Report counts what a run created.
type Report struct {
	Users    int `json:"users"`
	Posts    int `json:"posts"`
	Follows  int `json:"follows"`
	Likes    int `json:"likes"`
	Shares   int `json:"shares"`
	Comments int `json:"comments"`
}

// place is a landmark a seeded post can be tagged with.
type place struct {
	name     string
	lng, lat float64
	tags     []string
}

var places = []place{
	{"Old Jaffa Port", 34.7506, 32.0543, []string{"TelAviv", "Sea"}},
	{"Mount Fuji", 138.7274, 35.3606, []string{"Japan", "Hiking"}},
	{"Sagrada Familia", 2.1744, 41.4036, []string{"Barcelona", "Architecture"}},
	{"Table Mountain", 18.4097, -33.9628, []string{"CapeTown", "Views"}},
	{"Lake Bled", 14.0938, 46.3625, []string{"Slovenia", "Lakes"}},
	{"Central Park", -73.9654, 40.7829, []string{"NYC", "Parks"}},
	{"Angkor Wat", 103.8670, 13.4125, []string{"Cambodia", "History"}},
	{"Banff", -115.5708, 51.1784, []string{"Canada", "Mountains"}},
}

var nonUsername = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Seeder writes demo data through the same services the API uses, so the
// follow graph stays symmetric and counters stay consistent.
type Seeder struct {
	users   repository.UserRepository
	posts   *service.PostService
	follows *service.FollowService
	images  *service.ImageService
	opts    Options
	faker   *gofakeit.Faker
	rng     *rand.Rand
}

// NewSeeder returns a Seeder writing to the given repositories.
func NewSeeder(users repository.UserRepository, posts repository.PostRepository, images *service.ImageService, opts Options) *Seeder {
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	return &Seeder{
		users:   users,
		posts:   service.NewPostService(posts, users),
		follows: service.NewFollowService(users, nil),
		images:  images,
		opts:    opts,
		faker:   gofakeit.New(opts.Seed),
		rng:     rand.New(rand.NewSource(opts.Seed)),
	}
}

// Run creates users, then follow edges, then posts and their interactions.
func (s *Seeder) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	users, err := s.createUsers(ctx, s.opts.Users)
	if err != nil {
		return report, err
	}
	report.Users = len(users)

	if report.Follows, err = s.createFollows(ctx, users); err != nil {
		return report, err
	}

	for _, u := range users {
		for i := 0; i < s.opts.PostsPerUser; i++ {
			post, err := s.createPost(ctx, u)
			if err != nil {
				return report, err
			}
			report.Posts++
			if err := s.engage(ctx, post.ID, users, report); err != nil {
				return report, err
			}
		}
	}

	middleware.Logger.InfoContext(ctx, "seed complete",
		slog.Int("users", report.Users),
		slog.Int("posts", report.Posts),
		slog.Int("follows", report.Follows),
	)
	return report, nil
}

func (s *Seeder) createUsers(ctx context.Context, n int) ([]*models.User, error) {
	// One hash serves every account; bcrypt salts are per hash, not per user.
	hash, err := bcrypt.GenerateFromPassword([]byte(s.opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		username := s.username(i)
		now := time.Now().UTC().Add(-time.Duration(n-i) * time.Hour)
		u := &models.User{
			ID:        primitive.NewObjectID(),
			Username:  username,
			Email:     strings.ToLower(username) + "@example.com",
			Password:  string(hash),
			Bio:       truncate(s.faker.Sentence(8), service.MaxBioLength),
			Followers: []primitive.ObjectID{},
			Following: []primitive.ObjectID{},
			Posts:     []primitive.ObjectID{},
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.users.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("create user %s: %w", username, err)
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Seeder) username(i int) string {
	base := nonUsername.ReplaceAllString(s.faker.Username(), "")
	if len(base) > 20 {
		base = base[:20]
	}
	if len(base) < 3 {
		base = "user"
	}
	return fmt.Sprintf("%s_%d", base, i)
}

func (s *Seeder) createFollows(ctx context.Context, users []*models.User) (int, error) {
	count := 0
	for i, u := range users {
		made := 0
		for _, j := range s.rng.Perm(len(users)) {
			if made >= s.opts.FollowsPerUser {
				break
			}
			if j == i {
				continue
			}
			// u has no outgoing edges yet, so the toggle always adds one.
			if _, err := s.follows.ToggleFollow(ctx, u.ID, users[j].ID); err != nil {
				return count, fmt.Errorf("follow: %w", err)
			}
			made++
		}
		count += made
	}
	return count, nil
}

func (s *Seeder) createPost(ctx context.Context, owner *models.User) (*models.PostView, error) {
	p := places[s.rng.Intn(len(places))]

	raw, err := SolidJPEG(s.randomColor(), 640, 480)
	if err != nil {
		return nil, err
	}
	img, err := s.images.Process(ctx, service.UploadImageInput{
		Filename:    "seed.jpg",
		ContentType: "image/jpeg",
		Content:     raw,
	})
	if err != nil {
		return nil, fmt.Errorf("process seed image: %w", err)
	}

	caption := fmt.Sprintf("%s at %s #%s #%s", strings.TrimSuffix(s.faker.Sentence(6), "."), p.name, p.tags[0], p.tags[1])
	return s.posts.CreatePost(ctx, service.CreatePostInput{
		UserID:   owner.ID,
		Image:    img.DataURL,
		Caption:  caption,
		Location: &models.Location{Name: p.name, Coordinates: models.NewGeoPoint(p.lng, p.lat)},
	})
}

func (s *Seeder) engage(ctx context.Context, postID primitive.ObjectID, users []*models.User, report *Report) error {
	for _, idx := range s.rng.Perm(len(users))[:s.rng.Intn(len(users)+1)] {
		if _, err := s.posts.ToggleLike(ctx, postID, users[idx].ID); err != nil {
			return err
		}
		report.Likes++
	}
	if len(users) > 0 && s.rng.Intn(3) == 0 {
		if _, err := s.posts.AddShare(ctx, postID, users[s.rng.Intn(len(users))].ID); err != nil {
			return err
		}
		report.Shares++
	}
	for n := s.rng.Intn(3); n > 0 && len(users) > 0; n-- {
		author := users[s.rng.Intn(len(users))]
		if _, err := s.posts.AddComment(ctx, postID, author.ID, s.faker.Sentence(5)); err != nil {
			return err
		}
		report.Comments++
	}
	return nil
}

func (s *Seeder) randomColor() color.RGBA {
	return color.RGBA{R: uint8(s.rng.Intn(256)), G: uint8(s.rng.Intn(256)), B: uint8(s.rng.Intn(256)), A: 255}
}

// SolidJPEG encodes a w×h image filled with c.
func SolidJPEG(c color.RGBA, w, h int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// ClearAll removes every user and post document. Indexes are kept.
func ClearAll(ctx context.Context, db *mongo.Database) error {
	for _, name := range []string{database.UsersCollection, database.PostsCollection} {
		if _, err := db.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			return fmt.Errorf("clear %s: %w", name, err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
