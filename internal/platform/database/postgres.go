package database

import (
	"context"
	"database/sql"
	_ "embed"
	"log"
	"time"

	"cptracker/internal/platform/config"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

//go:embed schema.sql
var schemaSQL string

var DB *sql.DB

func Connect() {
	var err error
	DB, err = sql.Open("pgx", config.AppConfig.DBConnStr)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	if err = DB.Ping(); err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}
}

// Migrate applies the embedded schema. All statements are idempotent
// (CREATE ... IF NOT EXISTS) so this is safe to run on every start.
func Migrate(ctx context.Context) error {
	_, err := DB.ExecContext(ctx, schemaSQL)
	return err
}

func Close() {
	if DB != nil {
		DB.Close()
	}
}
