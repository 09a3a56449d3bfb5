// Command main runs the demo data seeder for Rebound.
package main

import (
	"context"
	"flag"
	"log"

	"rebound/internal/config"
	"rebound/internal/database"
	"rebound/internal/seed"
)

func main() {
	numMembers := flag.Int("members", 30, "Number of distinct member ids to act as")
	numPosts := flag.Int("posts", 100, "Number of posts to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed (0 picks one from the clock)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d members, %d posts, clean=%v\n", *numMembers, *numPosts, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	err = seed.Seed(context.Background(), db, seed.Options{
		NumMembers:  *numMembers,
		NumPosts:    *numPosts,
		ShouldClean: *shouldClean,
		SeedOptions: seed.SeedOptions{Seed: *randSeed},
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! Your database is now populated with demo data.")
}
