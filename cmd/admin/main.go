// Package main provides admin maintenance utilities for Vistagram.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"vistagram/internal/bootstrap"
	"vistagram/internal/config"
	"vistagram/internal/models"
	"vistagram/internal/repository"
	"vistagram/internal/service"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin lookup <email>   - Print a user's id (for ADMIN_USER_IDS)")
	fmt.Println("  go run ./cmd/admin list-admins      - List the configured admins")
	fmt.Println("  go run ./cmd/admin reconcile        - Repair one-sided follow edges")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SkipIndexes: true})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = rt.Close() }()

	users := repository.NewUserRepository(rt.DB)

	switch os.Args[1] {
	case "lookup":
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run ./cmd/admin lookup <email>")
			os.Exit(1)
		}
		lookup(ctx, users, os.Args[2])

	case "list-admins":
		listAdmins(ctx, users, cfg.AdminIDs())

	case "reconcile":
		follows := service.NewFollowService(users, repository.NewTransactor(rt.Client, cfg.MongoTransactions))
		report, err := follows.Reconcile(ctx)
		if err != nil {
			log.Fatalf("Reconcile failed: %v", err)
		}
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func lookup(ctx context.Context, users repository.UserRepository, email string) {
	user, err := users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			fmt.Printf("User with email %s not found\n", email)
			os.Exit(1)
		}
		log.Fatalf("Database error: %v", err)
	}
	fmt.Printf("ID: %s | Username: %s | Email: %s\n", user.ID.Hex(), user.Username, user.Email)
}

func listAdmins(ctx context.Context, users repository.UserRepository, raw []string) {
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, hex := range raw {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			fmt.Printf("⚠️  Ignoring malformed admin id %q\n", hex)
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		fmt.Println("No admins configured (set ADMIN_USER_IDS)")
		return
	}

	admins, err := users.FindByIDs(ctx, ids)
	if err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	fmt.Println("\n📋 Configured Admins:")
	fmt.Println("─────────────────────────────────────")
	for _, admin := range admins {
		fmt.Printf("ID: %s | Username: %s | Email: %s\n", admin.ID.Hex(), admin.Username, admin.Email)
	}
	fmt.Println("─────────────────────────────────────")
	if missing := len(ids) - len(admins); missing > 0 {
		fmt.Printf("%d configured id(s) match no active user\n", missing)
	}
}
