package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"algoforge/internal/platform/config"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

//go:embed schema.sql
var schemaSQL string

var DB *sql.DB

func Connect(ctx context.Context) error {
	db, err := sql.Open("pgx", config.AppConfig.DBConnStr)
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return fmt.Errorf("error connecting to database: %w", err)
	}

	DB = db
	return nil
}

// EnsureSchema creates the tables and indexes when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("error applying schema: %w", err)
	}
	return nil
}

func Close() {
	if DB != nil {
		DB.Close()
	}
}
