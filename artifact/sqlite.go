package artifact

import (
	"bytes"
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	manifest   BLOB NOT NULL,
	model      BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_created_at ON runs (created_at DESC, id DESC);
`

// SQLiteStore keeps runs in a single SQLite table. created_at holds unix
// nanoseconds so that ordering by it is exact.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite store %s", path)
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "create sqlite schema in %s", path)
	}
	return &SQLiteStore{db: db}, nil
}

// Put inserts a in one transaction. It fails with ArtifactExistsError when
// the id is taken.
func (s *SQLiteStore) Put(ctx context.Context, a *RunArtifact) error {
	if err := a.validate(); err != nil {
		return err
	}
	manifest, err := encodeManifest(a)
	if err != nil {
		return err
	}
	var blob bytes.Buffer
	if err := model.SavePredictor(a.Model, &blob); err != nil {
		return errors.Wrapf(err, "encode model of run %s", a.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, a.ID).Scan(&n); err != nil {
		return errors.Wrapf(err, "look up run %s", a.ID)
	}
	if n > 0 {
		return errors.NewArtifactExistsError(a.ID)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, manifest, model) VALUES (?, ?, ?, ?)`,
		a.ID, a.CreatedAt.UnixNano(), manifest, blob.Bytes(),
	); err != nil {
		return errors.Wrapf(err, "insert run %s", a.ID)
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "commit run %s", a.ID)
	}
	return nil
}

// Get loads the run with the given id, or the newest run for Latest.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*RunArtifact, error) {
	var row *sql.Row
	if id == Latest {
		row = s.db.QueryRowContext(ctx,
			`SELECT manifest, model FROM runs ORDER BY created_at DESC, id DESC LIMIT 1`)
	} else {
		if err := ValidateID(id); err != nil {
			return nil, err
		}
		row = s.db.QueryRowContext(ctx, `SELECT manifest, model FROM runs WHERE id = ?`, id)
	}

	var manifest, blob []byte
	if err := row.Scan(&manifest, &blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewArtifactNotFoundError(id)
		}
		return nil, errors.Wrapf(err, "read run %s", id)
	}
	a, err := decodeManifest(manifest)
	if err != nil {
		return nil, err
	}
	a.Model, err = model.LoadPredictor(bytes.NewReader(blob))
	if err != nil {
		return nil, errors.Wrapf(err, "load model of run %s", a.ID)
	}
	return a, nil
}

// List returns run ids, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan run id")
		}
		ids = append(ids, id)
	}
	return ids, errors.WithStack(rows.Err())
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
