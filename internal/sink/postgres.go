package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultBatchSize is the number of records buffered before a COPY.
const DefaultBatchSize = 1000

// LineColumn holds the rendered line next to the per-variable columns.
const LineColumn = "line"

// DBTX is the subset of *pgxpool.Pool and pgx.Tx the Postgres sink needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// PostgresSink bulk-loads records into a table with one text column per
// target variable plus LineColumn.
type PostgresSink struct {
	db        DBTX
	pool      *pgxpool.Pool
	table     pgx.Identifier
	columns   []string
	batch     [][]any
	batchSize int
	written   int64
	closed    bool
}

// NewPostgresSink creates a sink over an existing connection. columns are
// the target variable names; repeated names get a numeric suffix.
func NewPostgresSink(db DBTX, table string, columns []string) (*PostgresSink, error) {
	if table == "" {
		return nil, fmt.Errorf("postgres sink: table name is empty")
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("postgres sink: no columns")
	}

	return &PostgresSink{
		db:        db,
		table:     pgx.Identifier(strings.Split(table, ".")),
		columns:   ColumnNames(columns),
		batchSize: DefaultBatchSize,
	}, nil
}

// OpenPostgres connects to databaseURL, verifies the connection and ensures
// the destination table exists. The sink owns the pool and closes it.
func OpenPostgres(ctx context.Context, databaseURL, table string, columns []string) (*PostgresSink, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s, err := NewPostgresSink(pool, table, columns)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.pool = pool

	if err := s.EnsureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// ColumnNames returns LineColumn followed by names, with repeats renamed
// name_2, name_3 and so on.
func ColumnNames(names []string) []string {
	seen := map[string]int{LineColumn: 1}
	out := []string{LineColumn}
	for _, n := range names {
		seen[n]++
		if seen[n] > 1 {
			n = fmt.Sprintf("%s_%d", n, seen[n])
		}
		out = append(out, n)
	}
	return out
}

// Columns returns the destination column names in COPY order.
func (s *PostgresSink) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// CreateTableSQL returns the statement EnsureTable runs.
func (s *PostgresSink) CreateTableSQL() string {
	defs := make([]string, len(s.columns))
	for i, c := range s.columns {
		defs[i] = pgx.Identifier{c}.Sanitize() + " text"
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", s.table.Sanitize(), strings.Join(defs, ", "))
}

// EnsureTable creates the destination table when it is missing.
func (s *PostgresSink) EnsureTable(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, s.CreateTableSQL()); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table.Sanitize(), err)
	}
	return nil
}

// Write buffers rec and copies the batch once it is full. Missing values
// are stored as NULL; extra values are dropped.
func (s *PostgresSink) Write(ctx context.Context, rec Record) error {
	if s.closed {
		return ErrClosed
	}

	row := make([]any, len(s.columns))
	row[0] = rec.Line
	for i := 1; i < len(row); i++ {
		if i-1 < len(rec.Values) {
			row[i] = rec.Values[i-1]
		}
	}
	s.batch = append(s.batch, row)

	if len(s.batch) >= s.batchSize {
		return s.flush(ctx)
	}
	return nil
}

func (s *PostgresSink) flush(ctx context.Context) error {
	if len(s.batch) == 0 {
		return nil
	}

	n, err := s.db.CopyFrom(ctx, s.table, s.columns, pgx.CopyFromRows(s.batch))
	if err != nil {
		return fmt.Errorf("failed to copy %d rows into %s: %w", len(s.batch), s.table.Sanitize(), err)
	}
	s.written += n
	s.batch = s.batch[:0]
	return nil
}

// Close copies any buffered records and releases an owned pool.
func (s *PostgresSink) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.flush(ctx)
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

// Written returns the number of rows the database acknowledged.
func (s *PostgresSink) Written() int64 {
	return s.written
}
