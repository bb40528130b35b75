package main

// Load the sample customer directory:
//   go run ./cmd/seed

import (
	"context"
	"log"
	"os"

	"docchaser/internal/customers"
	"docchaser/internal/shared/config"
	"docchaser/internal/shared/storage/db"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		log.Printf("failed to run migrations: %v", err)
		os.Exit(1)
	}

	svc := customers.NewService(&customers.PGRepo{DB: sqlDB})
	n, err := customers.Seed(ctx, svc, customers.SampleDirectory)
	if err != nil {
		log.Printf("seed stopped after %d customers: %v", n, err)
		os.Exit(1)
	}
	log.Printf("seeded %d customers", n)
}
