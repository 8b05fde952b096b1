package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"wingspan/pkg/models"
)

// ErrNotFound is returned when a row lookup matches nothing.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a unique constraint.
var ErrConflict = errors.New("unique constraint violated")

// ErrSlotConflict is returned when a write would give a home page slot a
// second holder.
var ErrSlotConflict = errors.New("home page slot already held")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns the database handle.
type Store struct {
	db     *sql.DB
	driver string
	sb     sq.StatementBuilderType
}

// Queries runs statements against the database or inside a transaction.
type Queries struct {
	q  querier
	sb sq.StatementBuilderType
}

// Open connects to the database. SQLite connections are limited to one so that
// writers serialize and ":memory:" databases are shared across calls.
func Open(driver, dsn string) (*Store, error) {
	sb := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	switch driver {
	case DriverSQLite:
	case DriverPostgres:
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db, driver: driver, sb: sb}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Driver() string {
	return s.driver
}

// Queries returns a handle that runs each statement on its own.
func (s *Store) Queries() *Queries {
	return &Queries{q: s.db, sb: s.sb}
}

// InTx runs fn inside a transaction, committing when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Queries{q: tx, sb: s.sb}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		can_post BOOLEAN NOT NULL DEFAULT FALSE,
		can_edit_any BOOLEAN NOT NULL DEFAULT FALSE,
		can_edit_own BOOLEAN NOT NULL DEFAULT FALSE,
		can_edit_users BOOLEAN NOT NULL DEFAULT FALSE,
		can_create_users BOOLEAN NOT NULL DEFAULT FALSE,
		can_delete_users BOOLEAN NOT NULL DEFAULT FALSE,
		can_edit_homepage BOOLEAN NOT NULL DEFAULT FALSE,
		can_review_submissions BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		author_id TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		excerpt TEXT NOT NULL DEFAULT '',
		main_image TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT 'story',
		published_at TIMESTAMP NOT NULL,
		is_primary BOOLEAN NOT NULL DEFAULT FALSE,
		is_secondary_primary_1 BOOLEAN NOT NULL DEFAULT FALSE,
		is_secondary_primary_2 BOOLEAN NOT NULL DEFAULT FALSE,
		is_secondary_primary_3 BOOLEAN NOT NULL DEFAULT FALSE,
		is_secondary_primary_4 BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_author ON articles(author_id)`,
	`CREATE TABLE IF NOT EXISTS site_settings (
		id INTEGER PRIMARY KEY,
		is_christmas BOOLEAN NOT NULL DEFAULT FALSE,
		is_halloween BOOLEAN NOT NULL DEFAULT FALSE
	)`,
}

// placementColumns are the flags that at most one article may hold at a time.
func placementColumns() []string {
	cols := []string{"is_primary"}
	for n := 1; n <= models.SecondarySlots; n++ {
		cols = append(cols, SlotColumn(n))
	}
	return cols
}

// slotIndexName names the partial unique index guarding a placement column.
func slotIndexName(col string) string {
	if col == "is_primary" {
		return "articles_primary_slot"
	}
	return "articles_" + strings.TrimPrefix(col, "is_") + "_slot"
}

// Migrate creates the schema if it does not exist yet. Rows that share a
// placement flag keep it only on the most recently updated one, then a
// partial unique index per flag keeps it that way.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	for _, col := range placementColumns() {
		dedupe := fmt.Sprintf(`UPDATE articles SET %[1]s = FALSE WHERE %[1]s AND id <> (
			SELECT id FROM articles WHERE %[1]s ORDER BY updated_at DESC, id LIMIT 1)`, col)
		if _, err := s.db.ExecContext(ctx, dedupe); err != nil {
			return fmt.Errorf("migrate: clear duplicate %s: %w", col, err)
		}
		index := fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON articles(%s) WHERE %s`,
			slotIndexName(col), col, col)
		if _, err := s.db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isSlotViolation tells a placement index violation from a slug or e-mail one.
func isSlotViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return strings.HasSuffix(pqErr.Constraint, "_slot")
	}
	msg := err.Error()
	return strings.Contains(msg, "is_primary") || strings.Contains(msg, "is_secondary_primary") ||
		strings.Contains(msg, "_slot")
}

func (q *Queries) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	res, err := q.q.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		if isSlotViolation(err) {
			return nil, fmt.Errorf("%w: %v", ErrSlotConflict, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return res, err
}

func (q *Queries) query(ctx context.Context, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return q.q.QueryContext(ctx, query, args...)
}

func (q *Queries) queryRow(ctx context.Context, b sq.Sqlizer) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return q.q.QueryRowContext(ctx, query, args...), nil
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
