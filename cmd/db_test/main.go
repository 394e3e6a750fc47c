package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		godotenv.Load("../../.env") // Fallback
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set. Please check your .env file.")
	}

	fmt.Println("Attempting to connect to PostgreSQL...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to the database. Error: %v\n(Check your connection string, password, and Ensure you have internet access)", err)
	}
	defer conn.Close(context.Background())

	var version string
	if err := conn.QueryRow(context.Background(), "SELECT version()").Scan(&version); err != nil {
		log.Fatalf("❌ Query failed: %v", err)
	}

	var dbSize string
	if err := conn.QueryRow(context.Background(), "SELECT pg_size_pretty(pg_database_size(current_database()))").Scan(&dbSize); err == nil {
		fmt.Printf("📦 Current Database Size: %s\n", dbSize)
	}

	fmt.Println("✅ Successfully connected to the database!")
	fmt.Println("🚀 Database Version:", version)

	//quick look at the applications table if it exists
	var total int
	if err := conn.QueryRow(context.Background(), "SELECT COUNT(*) FROM applications").Scan(&total); err != nil {
		fmt.Println("ℹ️ applications table not found yet, run one of the main binaries to create the schema")
		return
	}
	fmt.Printf("📋 applications rows: %d\n", total)

	rows, err := conn.Query(context.Background(), "SELECT status, COUNT(*) FROM applications GROUP BY status ORDER BY status")
	if err != nil {
		log.Fatalf("❌ Status breakdown query failed: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			log.Fatalf("❌ Scan failed: %v", err)
		}
		fmt.Printf("   %s: %d\n", status, count)
	}
}
