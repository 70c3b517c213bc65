package rtdb

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLitePersistence keeps the tree as leaf rows in a SQLite file.
type SQLitePersistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens the database at path, sets pragmas and applies the schema.
func OpenSQLite(path string, logger *slog.Logger) (*SQLitePersistence, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}
	if logger != nil {
		logger.Info("SQLite database opened", "path", path)
	}
	return &SQLitePersistence{db: db, logger: logger}, nil
}

// Load reads every row and rebuilds the tree.
func (s *SQLitePersistence) Load(ctx context.Context) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, value FROM nodes`)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	flat := make(map[string]any)
	for rows.Next() {
		var path, raw string
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decode %q: %w", path, err)
		}
		flat[path] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rebuild(flat), nil
}

// Apply writes muts in one transaction.
func (s *SQLitePersistence) Apply(ctx context.Context, muts []Mutation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, m := range muts {
		if err := s.apply(ctx, tx, m); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLitePersistence) apply(ctx context.Context, tx *sql.Tx, m Mutation) error {
	segs, err := splitPath(m.Path)
	if err != nil {
		return err
	}

	if m.Path == "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM nodes`); err != nil {
			return fmt.Errorf("clear nodes: %w", err)
		}
	} else {
		prefix := m.Path + "/"
		_, err := tx.ExecContext(ctx,
			`DELETE FROM nodes WHERE path = ? OR substr(path, 1, ?) = ?`,
			m.Path, utf8.RuneCountInString(prefix), prefix)
		if err != nil {
			return fmt.Errorf("delete subtree %q: %w", m.Path, err)
		}
	}
	for _, a := range ancestors(segs) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE path = ?`, a); err != nil {
			return fmt.Errorf("delete ancestor %q: %w", a, err)
		}
	}

	flat := make(map[string]any)
	leaves(m.Path, m.Value, flat)
	for path, v := range flat {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %q: %w", path, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO nodes (path, value) VALUES (?, ?)
			 ON CONFLICT(path) DO UPDATE SET value = excluded.value`,
			path, string(data)); err != nil {
			return fmt.Errorf("insert %q: %w", path, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLitePersistence) Close() error {
	return s.db.Close()
}
