package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"NewsPipeline/internal/ports"
)

// Dialect names the SQL flavour a SQLStore speaks.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SQLStore persists the pipeline state in Postgres or SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
}

var _ ports.Store = (*SQLStore)(nil)

// Open connects to the database for the driver name used in configuration.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var (
		sqlDriver string
		dialect   Dialect
	)
	switch driver {
	case "postgres":
		sqlDriver, dialect = "postgres", DialectPostgres
	case "sqlite":
		sqlDriver, dialect = "sqlite3", DialectSQLite
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dialect == DialectSQLite {
		// SQLite serializes writers; one connection avoids SQLITE_BUSY between our own goroutines.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewSQLStore(db, dialect), nil
}

// NewSQLStore wires an already opened sql.DB.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	var format sq.PlaceholderFormat = sq.Question
	if dialect == DialectPostgres {
		format = sq.Dollar
	}
	return &SQLStore{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(format),
	}
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate creates the schema when it does not exist yet.
func (s *SQLStore) Migrate(ctx context.Context) error {
	statements := schemaSQLite
	if s.dialect == DialectPostgres {
		statements = schemaPostgres
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.db.ExecContext(ctx, query, args...)
}

func (s *SQLStore) query(ctx context.Context, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.db.QueryContext(ctx, query, args...)
}

func (s *SQLStore) queryRow(ctx context.Context, b sq.Sqlizer) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.db.QueryRowContext(ctx, query, args...), nil
}

func (s *SQLStore) insertReturningID(ctx context.Context, b sq.InsertBuilder) (int64, error) {
	row, err := s.queryRow(ctx, b.Suffix("RETURNING id"))
	if err != nil {
		return 0, err
	}
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func affected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}

func encodeList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func decodeList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func encodeMap(values map[string]string) string {
	if len(values) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func decodeMap(raw string) map[string]string {
	if raw == "" || raw == "{}" {
		return nil
	}
	out := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
