// Command main runs the database seeder for Vistagram.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"vistagram/internal/bootstrap"
	"vistagram/internal/config"
	"vistagram/internal/repository"
	"vistagram/internal/seed"
	"vistagram/internal/service"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	postsPerUser := flag.Int("posts", 3, "Posts to create per user")
	followsPerUser := flag.Int("follows", 5, "Accounts each user follows")
	shouldClear := flag.Bool("clear", true, "Remove existing users and posts before seeding")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d posts each, %d follows each, clear=%v\n", *numUsers, *postsPerUser, *followsPerUser, *shouldClear)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer func() { _ = rt.Close() }()

	if *shouldClear {
		if err := seed.ClearAll(ctx, rt.DB); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = seed.DefaultPassword
	}

	s := seed.NewSeeder(
		repository.NewUserRepository(rt.DB),
		repository.NewPostRepository(rt.DB),
		service.NewImageService(cfg),
		seed.Options{
			Users:          *numUsers,
			PostsPerUser:   *postsPerUser,
			FollowsPerUser: *followsPerUser,
			Password:       password,
		},
	)
	report, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ Created %d users, %d posts, %d follows, %d likes, %d shares, %d comments\n",
		report.Users, report.Posts, report.Follows, report.Likes, report.Shares, report.Comments)
	log.Printf("📧 All seeded users have the password: %s\n", password)
}
