package database

import (
	"context"
	"database/sql"
	"fmt"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS festivals (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(200) NOT NULL,
		slug VARCHAR(200) NOT NULL,
		starts_at DATETIME(3) NOT NULL,
		ends_at DATETIME(3) NOT NULL,
		created_at DATETIME(3) NOT NULL,
		UNIQUE KEY uq_festivals_slug (slug)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS stages (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		festival_id BIGINT UNSIGNED NOT NULL,
		name VARCHAR(200) NOT NULL,
		description TEXT NULL,
		capacity INT NULL,
		location VARCHAR(255) NULL,
		created_at DATETIME(3) NOT NULL,
		UNIQUE KEY uq_stages_festival_name (festival_id, name),
		CONSTRAINT fk_stages_festival FOREIGN KEY (festival_id) REFERENCES festivals(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS artists (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(200) NOT NULL,
		genre VARCHAR(100) NULL,
		bio TEXT NULL,
		image_url VARCHAR(500) NULL,
		links TEXT NULL,
		created_at DATETIME(3) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS performances (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		artist_id BIGINT UNSIGNED NOT NULL,
		stage_id BIGINT UNSIGNED NOT NULL,
		starts_at DATETIME(3) NOT NULL,
		ends_at DATETIME(3) NOT NULL,
		description TEXT NULL,
		is_cancelled TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME(3) NOT NULL,
		updated_at DATETIME(3) NOT NULL,
		KEY idx_performances_stage_start (stage_id, starts_at),
		KEY idx_performances_artist_start (artist_id, starts_at),
		CONSTRAINT fk_performances_artist FOREIGN KEY (artist_id) REFERENCES artists(id),
		CONSTRAINT fk_performances_stage FOREIGN KEY (stage_id) REFERENCES stages(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS festivals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		starts_at TEXT NOT NULL,
		ends_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		festival_id INTEGER NOT NULL REFERENCES festivals(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT NULL,
		capacity INTEGER NULL,
		location TEXT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (festival_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS artists (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		genre TEXT NULL,
		bio TEXT NULL,
		image_url TEXT NULL,
		links TEXT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS performances (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		artist_id INTEGER NOT NULL REFERENCES artists(id),
		stage_id INTEGER NOT NULL REFERENCES stages(id),
		starts_at TEXT NOT NULL,
		ends_at TEXT NOT NULL,
		description TEXT NULL,
		is_cancelled INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_performances_stage_start ON performances(stage_id, starts_at)`,
	`CREATE INDEX IF NOT EXISTS idx_performances_artist_start ON performances(artist_id, starts_at)`,
}

// Migrate creates the program tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	stmts := mysqlSchema
	if dialect == SQLite {
		stmts = sqliteSchema
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", dialect, err)
		}
	}
	return nil
}
