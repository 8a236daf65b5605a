// Package sqlite serves ranking rows and show metadata from a local SQLite
// database laid out like the hosted backend's tables.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/topten/internal/adapters/source"
	"github.com/okian/topten/internal/domain/model"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// ErrMalformedRow reports a ranking row missing its title or date.
var ErrMalformedRow = errors.New("malformed row")

const schema = `
CREATE TABLE IF NOT EXISTS Shows (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	title    TEXT NOT NULL,
	platform TEXT,
	image    TEXT
);
CREATE TABLE IF NOT EXISTS TopTenList (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	show_id INTEGER REFERENCES Shows(id),
	rank    INTEGER,
	date    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_toptenlist_date ON TopTenList(date);
`

const observationsQuery = `
SELECT s.title, t.rank, t.date
FROM TopTenList t
LEFT JOIN Shows s ON s.id = t.show_id
ORDER BY t.date DESC, t.id ASC`

const catalogQuery = `SELECT id, title, platform, image FROM Shows ORDER BY id`

// Store implements source.RankingSource and source.ShowCatalog.
type Store struct {
	db *sql.DB
}

var _ source.Backend = (*Store)(nil)

// Open opens the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// In-memory databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddShow inserts a catalog row and returns its id. Empty platform or
// image are stored as NULL.
func (s *Store) AddShow(ctx context.Context, meta model.ShowMeta) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO Shows (title, platform, image) VALUES (?, ?, ?)`,
		meta.Title, nullable(meta.Platform), nullable(meta.Image))
	if err != nil {
		return 0, fmt.Errorf("insert show: %w", err)
	}
	return res.LastInsertId()
}

// AddRanking records a weekly rank for the show with the given id.
func (s *Store) AddRanking(ctx context.Context, showID int64, rank int, date time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO TopTenList (show_id, rank, date) VALUES (?, ?, ?)`,
		showID, rank, date.UTC().Format(model.DateLayout))
	if err != nil {
		return fmt.Errorf("insert ranking: %w", err)
	}
	return nil
}

// FetchObservations returns every ranking row, newest date first.
func (s *Store) FetchObservations(ctx context.Context) ([]model.Observation, error) {
	rows, err := s.db.QueryContext(ctx, observationsQuery)
	if err != nil {
		return nil, source.NewFetchError(source.KindSQLite, source.OpObservations, err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]model.Observation, 0)
	for i := 0; rows.Next(); i++ {
		var (
			title sql.NullString
			rank  sql.NullInt64
			date  string
		)
		if err := rows.Scan(&title, &rank, &date); err != nil {
			return nil, source.NewFetchError(source.KindSQLite, source.OpObservations, err)
		}
		if !title.Valid || title.String == "" || !rank.Valid {
			return nil, source.NewFetchError(source.KindSQLite, source.OpObservations,
				fmt.Errorf("%w %d: missing title or rank", ErrMalformedRow, i))
		}
		d, err := time.Parse(model.DateLayout, date)
		if err != nil {
			return nil, source.NewFetchError(source.KindSQLite, source.OpObservations,
				fmt.Errorf("%w %d: %w", ErrMalformedRow, i, err))
		}
		out = append(out, model.Observation{Title: title.String, Rank: int(rank.Int64), Date: d})
	}
	if err := rows.Err(); err != nil {
		return nil, source.NewFetchError(source.KindSQLite, source.OpObservations, err)
	}
	return out, nil
}

// FetchAll returns the full show catalog.
func (s *Store) FetchAll(ctx context.Context) ([]model.ShowMeta, error) {
	rows, err := s.db.QueryContext(ctx, catalogQuery)
	if err != nil {
		return nil, source.NewFetchError(source.KindSQLite, source.OpCatalog, err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]model.ShowMeta, 0)
	for rows.Next() {
		var (
			meta            model.ShowMeta
			platform, image sql.NullString
		)
		if err := rows.Scan(&meta.ID, &meta.Title, &platform, &image); err != nil {
			return nil, source.NewFetchError(source.KindSQLite, source.OpCatalog, err)
		}
		meta.Platform = platform.String
		meta.Image = image.String
		out = append(out, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, source.NewFetchError(source.KindSQLite, source.OpCatalog, err)
	}
	return out, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
