// Command migrate manages the MongoDB indexes the backend relies on.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"vistagram/internal/bootstrap"
	"vistagram/internal/config"
	"vistagram/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <up|status>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SkipIndexes: true})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = rt.Close() }()

	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		if err := database.EnsureIndexes(ctx, rt.DB); err != nil {
			return err
		}
		log.Println("indexes ensured")
	case "status":
		reports, err := database.IndexStatus(ctx, rt.DB)
		if err != nil {
			return err
		}
		for _, r := range reports {
			log.Printf("%s: present=%v missing=%v", r.Collection, r.Present, r.Missing)
		}
	default:
		return usage()
	}
	return nil
}
