package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pomodoro/focus/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps snapshots in a local SQLite file, one row per namespace.
// Several users of one device can share the database file.
type SQLiteStore struct {
	db        *sql.DB
	namespace string
}

// OpenSQLiteStore opens (and if needed creates) the database at path.
func OpenSQLiteStore(path, namespace string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create snapshot db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	database, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	database.SetMaxOpenConns(1)

	if _, err := database.Exec(`
		CREATE TABLE IF NOT EXISTS timer_snapshots (
			namespace TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("create timer_snapshots: %w", err)
	}

	return &SQLiteStore{db: database, namespace: namespace}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads the namespace row.
func (s *SQLiteStore) Load(ctx context.Context) (*model.TimerSnapshot, error) {
	var payload string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT payload FROM timer_snapshots WHERE namespace = ?`,
		s.namespace,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return decode([]byte(payload))
}

// Save upserts the namespace row.
func (s *SQLiteStore) Save(ctx context.Context, snapshot model.TimerSnapshot) error {
	data, err := encode(snapshot)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO timer_snapshots (namespace, payload, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(namespace) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		s.namespace,
		string(data),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Clear deletes the namespace row.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM timer_snapshots WHERE namespace = ?`, s.namespace); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}
