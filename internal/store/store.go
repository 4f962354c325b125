// Package store is the ledger's transactional persistence layer over SQLite.
//
// Every read and write goes through a Tx bound to a single company, so no
// statement can run without a tenant scope.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3" // migrate driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/cleared-dev/taxledger/internal/apperr"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrStaleStatus is returned when a compare-and-set status update finds
	// the row in a different status than expected.
	ErrStaleStatus = errors.New("status changed concurrently")

	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("unique constraint conflict")
)

const (
	dateFormat = "2006-01-02"
	timeFormat = time.RFC3339Nano
)

// Store wraps the SQLite database holding every company's ledger.
type Store struct {
	db   *sql.DB
	path string

	// Now is the clock used for created/posted/voided timestamps.
	Now func() time.Time
}

// Open migrates the database at path to the latest schema and opens it.
// Writers take the database lock when their transaction begins, so
// concurrent atomic units are serialized rather than interleaved.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database dir: %w", err)
	}

	if err := migrateUp(path); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Store{
		db:   db,
		path: path,
		Now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func migrateUp(path string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite3://"+path)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// RunAtomic runs fn inside one transaction scoped to companyID. Either every
// write fn makes is committed, or none is: an error or panic rolls back.
func (s *Store) RunAtomic(ctx context.Context, companyID string, fn func(*Tx) error) error {
	if companyID == "" {
		return apperr.ErrMissingCompany
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	tx := &Tx{tx: sqlTx, ctx: ctx, companyID: companyID, now: s.Now()}
	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("%v (rollback failed: %w)", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// View runs fn inside a read-only unit scoped to companyID. Anything fn
// writes is discarded.
func (s *Store) View(ctx context.Context, companyID string, fn func(*Tx) error) error {
	if companyID == "" {
		return apperr.ErrMissingCompany
	}

	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("beginning read transaction: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	return fn(&Tx{tx: sqlTx, ctx: ctx, companyID: companyID, now: s.Now()})
}

// Tx is one atomic unit of work bound to a company.
type Tx struct {
	tx        *sql.Tx
	ctx       context.Context
	companyID string
	now       time.Time
}

// CompanyID returns the company every statement of this unit is scoped to.
func (t *Tx) CompanyID() string {
	return t.companyID
}

// Now returns the timestamp shared by every write of this unit.
func (t *Tx) Now() time.Time {
	return t.now
}

func (t *Tx) exec(query string, args ...any) (sql.Result, error) {
	res, err := t.tx.ExecContext(t.ctx, query, args...)
	if err != nil && isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return res, err
}

func (t *Tx) query(query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(t.ctx, query, args...)
}

func (t *Tx) queryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(t.ctx, query, args...)
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func formatDate(d time.Time) string {
	return d.Format(dateFormat)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateFormat, s)
}

func nullDate(d time.Time) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(d), Valid: true}
}

func nullTime(ts time.Time) sql.NullString {
	if ts.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: ts.UTC().Format(timeFormat), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func scanDate(ns sql.NullString) (time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return time.Time{}, nil
	}
	return parseDate(ns.String)
}

func scanTime(ns sql.NullString) (time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeFormat, ns.String)
}
