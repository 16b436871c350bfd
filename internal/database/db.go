package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/senthilkumarv/aq-telemetry/internal/models"
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and runs migrations
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// GetConn returns the underlying database connection
func (db *DB) GetConn() *sql.DB {
	return db.conn
}

// Ping checks that the database is usable
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the necessary tables if they don't exist
func (db *DB) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		host TEXT NOT NULL,
		probe_type TEXT NOT NULL,
		name TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		value REAL NOT NULL,
		quality INTEGER NOT NULL,
		UNIQUE(host, probe_type, name, timestamp)
	);

	CREATE INDEX IF NOT EXISTS idx_host_name_timestamp ON readings(host, name, timestamp);
	`

	_, err := db.conn.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return nil
}

// upsertSQL stores a reading, replacing an existing one only when the new
// quality is greater or equal
const upsertSQL = `
	INSERT INTO readings (host, probe_type, name, timestamp, value, quality)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(host, probe_type, name, timestamp) DO UPDATE
	SET value = excluded.value, quality = excluded.quality
	WHERE excluded.quality >= readings.quality
`

// UpsertReadings writes readings in a single transaction and returns how
// many rows were inserted or updated
func (db *DB) UpsertReadings(ctx context.Context, readings []models.Reading) (int, error) {
	return db.ReplaceProbeReadings(ctx, "", nil, readings)
}

// ReplaceProbeReadings deletes the readings of the named probes of host and
// upserts readings, all in one transaction. With no probe names nothing is
// deleted.
func (db *DB) ReplaceProbeReadings(ctx context.Context, host string, probes []string, readings []models.Reading) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, name := range probes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM readings WHERE host = ? AND name = ?`, host, name); err != nil {
			return 0, fmt.Errorf("failed to delete readings for %s/%s: %w", host, name, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert statement: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, r := range readings {
		res, err := stmt.ExecContext(ctx, r.Host, r.ProbeType, r.Name, r.Timestamp, r.Value, r.Quality)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert reading %s/%s at %d: %w", r.Host, r.Name, r.Timestamp, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read affected rows: %w", err)
		}
		written += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return written, nil
}

// DeleteHostReadings removes every reading of one aquarium controller
func (db *DB) DeleteHostReadings(ctx context.Context, host string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM readings WHERE host = ?`, host)
	if err != nil {
		return 0, fmt.Errorf("failed to delete readings for %s: %w", host, err)
	}
	return res.RowsAffected()
}
