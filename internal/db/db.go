package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	database, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(database); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return database, nil
}

func runMigrations(database *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS chat_rooms (
            id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS chat_room_participants (
            room_id BIGINT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
            user_id UUID NOT NULL,
            joined_at TIMESTAMPTZ,
            PRIMARY KEY(room_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
            id BIGSERIAL PRIMARY KEY,
            room_id BIGINT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
            sender_id UUID NOT NULL,
            content TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_room_created
            ON chat_messages(room_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS message_read_status (
            id BIGSERIAL PRIMARY KEY,
            message_id BIGINT NOT NULL REFERENCES chat_messages(id) ON DELETE CASCADE,
            reader_id UUID NOT NULL,
            read_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            is_deleted BOOLEAN NOT NULL DEFAULT FALSE
        );`,
		// One non-deleted row per (message, reader). Retention soft-deletes
		// rows, so uniqueness is partial rather than table-wide.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_read_status_unique_live
            ON message_read_status(message_id, reader_id) WHERE NOT is_deleted;`,
		`CREATE INDEX IF NOT EXISTS idx_read_status_read_at
            ON message_read_status(read_at) WHERE NOT is_deleted;`,
	}

	for _, m := range migrations {
		if _, err := database.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
