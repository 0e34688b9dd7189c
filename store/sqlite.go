package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/arloliu/vario/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS experiments (
	id       TEXT PRIMARY KEY,
	body     TEXT NOT NULL,
	revision INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sticky_assignments (
	experiment_id TEXT NOT NULL,
	token         TEXT NOT NULL,
	variant_id    TEXT NOT NULL,
	PRIMARY KEY (experiment_id, token)
);`

// OpenSQLite opens an SQLite database with WAL journaling and the vario schema.
//
// Pragmas are passed in the DSN so every pooled connection gets them.
// ":memory:" is limited to a single connection because each connection to
// an in-memory database sees a separate database.
//
// Parameters:
//   - path: Database file path or ":memory:"
//
// Returns:
//   - *sql.DB: Open database shared by SQLite and SQLiteSticky
//   - error: Open, pragma or schema failure
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir: %w", err)
		}
		dsn = "file:" + path +
			"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	return db, nil
}

// SQLite is an ExperimentRepository backed by an SQLite table.
//
// Save is `UPDATE ... WHERE revision = ?`; zero affected rows means the
// record moved on (or was deleted).
type SQLite struct {
	db *sql.DB
}

var _ types.ExperimentRepository = (*SQLite)(nil)

// NewSQLite wraps a database opened with OpenSQLite.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// Create inserts a new experiment at revision 1.
func (s *SQLite) Create(ctx context.Context, exp *types.Experiment) error {
	data, err := encodeExperiment(exp)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO experiments (id, body, revision) VALUES (?, ?, 1) ON CONFLICT(id) DO NOTHING`,
		exp.ID, string(data))
	if err != nil {
		return unavailable("create", exp.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("create", exp.ID, err)
	}
	if n == 0 {
		return alreadyExists(exp.ID)
	}
	exp.Revision = 1

	return nil
}

// Load reads an experiment and its revision.
func (s *SQLite) Load(ctx context.Context, id string) (*types.Experiment, error) {
	var (
		body     string
		revision uint64
	)

	err := s.db.QueryRowContext(ctx, `SELECT body, revision FROM experiments WHERE id = ?`, id).Scan(&body, &revision)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}

		return nil, unavailable("load", id, err)
	}

	return decodeExperiment(id, []byte(body), revision)
}

// Save writes the experiment if the stored revision equals exp.Revision.
func (s *SQLite) Save(ctx context.Context, exp *types.Experiment) error {
	data, err := encodeExperiment(exp)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE experiments SET body = ?, revision = revision + 1 WHERE id = ? AND revision = ?`,
		string(data), exp.ID, exp.Revision)
	if err != nil {
		return unavailable("save", exp.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("save", exp.ID, err)
	}

	if n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM experiments WHERE id = ?`, exp.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(exp.ID)
		}
		if err != nil {
			return unavailable("save", exp.ID, err)
		}

		return conflict(exp.ID, exp.Revision)
	}
	exp.Revision++

	return nil
}

// Delete removes an experiment.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM experiments WHERE id = ?`, id); err != nil {
		return unavailable("delete", id, err)
	}

	return nil
}

// SQLiteSticky is a StickyStore backed by an SQLite table.
type SQLiteSticky struct {
	db *sql.DB
}

var _ types.StickyStore = (*SQLiteSticky)(nil)

// NewSQLiteSticky wraps a database opened with OpenSQLite.
func NewSQLiteSticky(db *sql.DB) *SQLiteSticky {
	return &SQLiteSticky{db: db}
}

// Get returns the variant mapped to token.
func (s *SQLiteSticky) Get(ctx context.Context, experimentID, token string) (string, bool, error) {
	var variantID string

	err := s.db.QueryRowContext(ctx,
		`SELECT variant_id FROM sticky_assignments WHERE experiment_id = ? AND token = ?`,
		experimentID, token).Scan(&variantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}

		return "", false, unavailable("sticky get", experimentID, err)
	}

	return variantID, true, nil
}

// Set stores the mapping for token unless another value than previous is
// already mapped. Variant ids are never empty, so an empty previous only
// inserts.
func (s *SQLiteSticky) Set(ctx context.Context, experimentID, token, previous, variantID string) (string, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sticky_assignments (experiment_id, token, variant_id) VALUES (?, ?, ?)
		 ON CONFLICT(experiment_id, token) DO UPDATE SET variant_id = excluded.variant_id
		 WHERE sticky_assignments.variant_id = ?`,
		experimentID, token, variantID, previous)
	if err != nil {
		return "", unavailable("sticky set", experimentID, err)
	}

	stored, found, err := s.Get(ctx, experimentID, token)
	if err != nil {
		return "", err
	}
	if !found {
		return "", unavailable("sticky set", experimentID, errors.New("mapping vanished after write"))
	}

	return stored, nil
}
