package boardstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	core "github.com/kilianp07/fieldboard/core/boardstore"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists board states in a SQLite database, one row per day.
type SQLiteStore struct {
	db *sql.DB
}

var _ core.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS board_state (
        day TEXT PRIMARY KEY,
        version INTEGER NOT NULL,
        saved_at INTEGER NOT NULL,
        state TEXT NOT NULL
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Load returns the stored state of day.
func (s *SQLiteStore) Load(ctx context.Context, day string) (core.State, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM board_state WHERE day = ?`, day).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return core.State{}, false, nil
	}
	if err != nil {
		return core.State{}, false, err
	}
	var st core.State
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return core.State{}, false, fmt.Errorf("decode board %s: %w", day, err)
	}
	return st, true, nil
}

// Save upserts the state. A row holding a newer version is left untouched.
func (s *SQLiteStore) Save(ctx context.Context, st core.State) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO board_state (day, version, saved_at, state)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(day) DO UPDATE SET
            version = excluded.version,
            saved_at = excluded.saved_at,
            state = excluded.state
        WHERE excluded.version >= board_state.version`,
		st.Date, int64(st.Version), st.SavedAt.UnixNano(), string(b))
	return err
}

// Days lists the stored days in order.
func (s *SQLiteStore) Days(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT day FROM board_state ORDER BY day`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
