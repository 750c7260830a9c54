// Package store persists user-added model profiles outside the built-in
// catalog.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jguan/llmfit/pkg/unit/model"
)

// SQLiteStore implements model.ProfileStore using SQLite. Profiles are
// stored as JSON blobs so new optional fields need no migration.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS custom_profiles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		provider TEXT NOT NULL DEFAULT '',
		data TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_custom_profiles_name ON custom_profiles(name);
	CREATE INDEX IF NOT EXISTS idx_custom_profiles_provider ON custom_profiles(provider);
	`
	_, err := s.db.Exec(query)
	return err
}

// Create implements model.ProfileStore.Create
func (s *SQLiteStore) Create(ctx context.Context, p *model.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	query := `INSERT INTO custom_profiles (id, name, provider, data, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query, p.ID, p.Name, p.Provider, string(data), time.Now().Unix())
	if err != nil {
		if msg := err.Error(); strings.Contains(msg, "UNIQUE constraint failed") {
			if strings.Contains(msg, "custom_profiles.name") {
				return model.ErrModelAlreadyExists.WithDetails("name", p.Name)
			}
			return model.ErrModelAlreadyExists.WithDetails("id", p.ID)
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// Get implements model.ProfileStore.Get
func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Profile, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM custom_profiles WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrModelNotFound.WithDetails("id", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	var p model.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile %s: %w", id, err)
	}
	return &p, nil
}

// List implements model.ProfileStore.List
func (s *SQLiteStore) List(ctx context.Context, filter model.ProfileFilter) ([]model.Profile, int, error) {
	whereClause := "1=1"
	args := []any{}

	if filter.Provider != "" {
		whereClause += " AND provider = ?"
		args = append(args, filter.Provider)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM custom_profiles WHERE %s", whereClause)
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count profiles: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT data FROM custom_profiles
		WHERE %s
		ORDER BY name
		LIMIT ? OFFSET ?
	`, whereClause)

	// SQLite reads a negative LIMIT as no limit.
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, 0, fmt.Errorf("scan profile: %w", err)
		}
		var p model.Profile
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, 0, fmt.Errorf("unmarshal profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate profiles: %w", err)
	}

	return profiles, total, nil
}

// Delete implements model.ProfileStore.Delete
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM custom_profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return model.ErrModelNotFound.WithDetails("id", id)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ model.ProfileStore = (*SQLiteStore)(nil)
