package main

import (
	"flag"
	"fmt"
	"log"

	"visionchat/internal/app"
	"visionchat/internal/config"
)

// migrate creates or updates the schema of DB_URL (or -db) and exits.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	dsn := flag.String("db", cfg.DatabaseURL, "Database URL or sqlite path")
	flag.Parse()

	fmt.Printf("Migrating database %s\n", *dsn)

	store, err := app.OpenStore(*dsn)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	if err := store.Close(); err != nil {
		log.Fatalf("Failed to close database: %v", err)
	}

	fmt.Println("Schema is up to date")
}
