package main

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/foodmanager/user-service/config"
	"github.com/foodmanager/user-service/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	name := "Demo Customer"
	email := "demo@foodmanager.dev"
	login := "demoCustomer"
	password := "password123"
	hash, err := helpers.HashPassword(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	var id int64
	err = db.QueryRow(`
		INSERT INTO users (name, email, login, password, address, user_type, avatar_url, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, '', now())
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, last_updated = now()
		RETURNING id
	`, name, email, login, hash, "1 Demo Street", "CUSTOMER").Scan(&id)
	if err != nil {
		log.Fatalf("failed to seed user: %v", err)
	}
	fmt.Printf("seeded user: id=%d email=%s login=%s password=%s\n", id, email, login, password)
}
