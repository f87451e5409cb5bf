//go:build ignore
// +build ignore

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"credit-risk-engine/internal/config"
	"credit-risk-engine/internal/services/database"
)

func main() {
	fmt.Println("=== Prediction Log Initialization Script ===")
	fmt.Println()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		fmt.Printf("⚠️  Warning: Could not load .env file: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	connConfig, err := pgx.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		fmt.Printf("❌ Invalid database URL: %v\n", err)
		os.Exit(1)
	}
	dbName := connConfig.Database

	// First connect to default 'postgres' database to create our database
	fmt.Println("📡 Connecting to PostgreSQL server...")
	adminConfig := connConfig.Copy()
	adminConfig.Database = "postgres"

	adminConn, err := pgx.ConnectConfig(ctx, adminConfig)
	if err != nil {
		fmt.Printf("❌ Failed to connect to PostgreSQL: %v\n", err)
		os.Exit(1)
	}

	// Check if database exists
	var exists bool
	err = adminConn.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil {
		fmt.Printf("❌ Failed to check database existence: %v\n", err)
		adminConn.Close(ctx)
		os.Exit(1)
	}

	if !exists {
		fmt.Printf("📦 Creating '%s' database...\n", dbName)
		_, err = adminConn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{dbName}.Sanitize())
		if err != nil {
			fmt.Printf("❌ Failed to create database: %v\n", err)
			adminConn.Close(ctx)
			os.Exit(1)
		}
		fmt.Printf("✅ Database '%s' created!\n", dbName)
	} else {
		fmt.Printf("✅ Database '%s' already exists\n", dbName)
	}
	adminConn.Close(ctx)

	// Now connect through the engine's pool
	fmt.Printf("📡 Connecting to %s database...\n", dbName)
	db, err := database.New(ctx, cfg)
	if err != nil {
		fmt.Printf("❌ Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("✅ Connected to database successfully!")
	fmt.Println()

	fmt.Println("🚀 Applying schema migrations...")
	applied, err := db.Migrate()
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Schema ready! (%d migrations applied)\n", applied)
	repo := database.NewPredictionRepository(db)
	fmt.Println()

	// Verify
	fmt.Println("🔍 Verifying database setup...")
	counts, err := repo.CountByModelVersion(ctx, time.Time{})
	if err != nil {
		fmt.Printf("⚠️  Warning: Could not count predictions: %v\n", err)
	} else {
		var total int64
		for _, n := range counts {
			total += n
		}
		fmt.Printf("   📦 Prediction logs in database: %d across %d model versions\n", total, len(counts))
	}

	fmt.Println()
	fmt.Println("🎉 Database initialization completed successfully!")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Test the connection: go run scripts/test_connection.go")
	fmt.Println("  2. Enable the audit log: PREDICTION_LOG_ENABLED=true")
}
