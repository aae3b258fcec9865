package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/kindlehubapp/kindlehub/internal/domain"
	"github.com/kindlehubapp/kindlehub/internal/store"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// timeLayout is RFC 3339 with fixed-width nanoseconds, so stored timestamps
// sort lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store provides SQLite-backed persistence for the clipping library.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// connPragmas run on every new pooled connection.
var connPragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// dsn builds the driver DSN for path with connPragmas attached.
func dsn(path string) string {
	q := url.Values{}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}

// Open creates a new SQLite store at the given path.
// It configures WAL mode, sets pragmas, and runs schema migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	// Run schema migration.
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	if logger != nil {
		logger.Info("SQLite database opened successfully", "path", path)
	}

	return &Store{
		db:     db,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveClippings commits clippings in one SQL transaction.
func (s *Store) SaveClippings(ctx context.Context, clippings []domain.Clipping) (*store.SaveResult, error) {
	return store.SaveClippings(ctx, s, clippings, s.now())
}

// UpdateClipping edits one stored clipping.
func (s *Store) UpdateClipping(ctx context.Context, id int64, edit store.ClippingEdit) (*domain.StoredClipping, error) {
	return store.UpdateClipping(ctx, s, id, edit, s.now())
}

// DeleteClippings removes stored clippings and recounts their books.
func (s *Store) DeleteClippings(ctx context.Context, ids []int64) (int, error) {
	return store.DeleteClippings(ctx, s, ids, s.now())
}

// DuplicateClippings copies stored clippings within their books.
func (s *Store) DuplicateClippings(ctx context.Context, ids []int64) ([]*domain.StoredClipping, error) {
	return store.DuplicateClippings(ctx, s, ids, s.now())
}

// AddClipping writes a new clipping into a stored book.
func (s *Store) AddClipping(ctx context.Context, bookID int64, c store.NewClipping) (*domain.StoredClipping, error) {
	return store.AddClipping(ctx, s, bookID, c, s.now())
}

// WithWriteTx runs fn in a transaction and commits it if fn succeeds.
func (s *Store) WithWriteTx(ctx context.Context, fn func(tx store.WriteTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&writeTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// ClearAll deletes every book and clipping in one transaction.
func (s *Store) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM clippings`); err != nil {
		return fmt.Errorf("delete clippings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM books`); err != nil {
		return fmt.Errorf("delete books: %w", err)
	}
	return tx.Commit()
}

// formatTime formats a time.Time for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a stored timestamp back to time.Time.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// parseNullableTime parses an optional time string.
func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nullString returns a sql.NullString from a string, NULL when empty.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullTimeString returns a sql.NullString from a *time.Time.
func nullTimeString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// nullInt returns a sql.NullInt64 from an *int.
func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
