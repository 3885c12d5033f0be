// Command seed fills the configured database with demo data.
package main

import (
	"context"
	"flag"
	"log"

	"microblog/internal/bootstrap"
	"microblog/internal/config"
	"microblog/internal/seed"

	"github.com/joho/godotenv"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	numPosts := flag.Int("posts", 100, "Number of posts to create")
	numLikes := flag.Int("likes", 200, "Number of likes to create")
	replies := flag.Int("replies", 30, "Percentage of posts that reply to an earlier post")
	shouldClean := flag.Bool("clean", false, "Delete all users, posts and likes first")
	fast := flag.Bool("fast", false, "Store passwords unhashed (login will not work)")
	seedValue := flag.Int64("seed", 0, "Random seed; 0 picks one")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	ctx := context.Background()
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SkipAdmin: true})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	log.Printf("Target: %d users, %d posts, %d likes, clean=%v", *numUsers, *numPosts, *numLikes, *shouldClean)
	summary, err := seed.NewSeeder(db, seed.Options{
		Users:        *numUsers,
		Posts:        *numPosts,
		Likes:        *numLikes,
		ReplyPercent: *replies,
		Clean:        *shouldClean,
		SkipBcrypt:   *fast,
		Seed:         *seedValue,
	}).Run(ctx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d posts (%d replies), %d likes",
		summary.Users, summary.Posts, summary.Replies, summary.Likes)
	if !*fast {
		log.Printf("All seeded users have the password: %s", seed.DemoPassword)
	}
	if *shouldClean {
		// The admin account went with the clean; put it back.
		if _, err := bootstrap.EnsureAdmin(ctx, cfg, db); err != nil {
			log.Fatalf("Failed to restore admin account: %v", err)
		}
	}
}
