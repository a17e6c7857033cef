package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects SQL flavour and driver
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// MaxInsertRows caps the rows sent in one INSERT statement
const MaxInsertRows = 1000

// driverName maps a dialect to its database/sql driver
func (d Dialect) driverName() (string, error) {
	switch d {
	case DialectPostgres:
		return "pgx", nil
	case DialectSQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("store: unsupported dialect %q", d)
	}
}

// dialector wraps an open pool in the matching gorm dialector
func (d Dialect) dialector(db *sql.DB) gorm.Dialector {
	if d == DialectPostgres {
		return postgres.New(postgres.Config{Conn: db})
	}
	return sqlite.New(sqlite.Config{DriverName: "sqlite", Conn: db})
}

// Config holds connection settings
type Config struct {
	Dialect         Dialect
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// Logger receives slow-query and error logs; nil discards them
	Logger *zap.Logger
}

// SQLStore implements Store on gorm
type SQLStore struct {
	db *gorm.DB
}

var _ Store = (*SQLStore)(nil)

// Open connects and verifies the database
func Open(ctx context.Context, cfg Config) (*SQLStore, error) {
	driver, err := cfg.Dialect.driverName()
	if err != nil {
		return nil, err
	}

	pool, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Dialect == DialectSQLite {
		// One connection keeps in-memory databases shared and serializes writers
		pool.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			pool.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			pool.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}
	if cfg.ConnMaxLifetime > 0 {
		pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db, err := gorm.Open(cfg.Dialect.dialector(pool), &gorm.Config{
		Logger:                 newGormLogger(cfg.Logger),
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &SQLStore{db: db}, nil
}

func newGormLogger(logger *zap.Logger) gormlogger.Interface {
	if logger == nil {
		return gormlogger.Discard
	}
	return gormlogger.New(zap.NewStdLog(logger.Named("store")), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
	})
}

// Ping checks connectivity
func (s *SQLStore) Ping(ctx context.Context) error {
	pool, err := s.db.DB()
	if err != nil {
		return err
	}
	return translate(pool.PingContext(ctx))
}

// Close releases the pool
func (s *SQLStore) Close() error {
	pool, err := s.db.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

// Select returns every row matching q
func (s *SQLStore) Select(ctx context.Context, q *Query) ([]Row, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	var found []map[string]any
	if err := s.read(ctx, q).Find(&found).Error; err != nil {
		return nil, translate(err)
	}

	rows := make([]Row, len(found))
	for i, m := range found {
		rows[i] = Row(m)
	}
	return rows, nil
}

// Get returns the first row matching q or ErrNoRows
func (s *SQLStore) Get(ctx context.Context, q *Query) (Row, error) {
	limited := *q
	limited.Limit = 1

	rows, err := s.Select(ctx, &limited)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows[0], nil
}

// Count returns the exact number of rows matching q's filters
func (s *SQLStore) Count(ctx context.Context, q *Query) (int64, error) {
	if err := q.validate(); err != nil {
		return 0, err
	}

	var n int64
	if err := s.filtered(ctx, q).Count(&n).Error; err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// Insert writes a single row
func (s *SQLStore) Insert(ctx context.Context, table string, row Row) error {
	_, err := s.InsertMany(ctx, table, []Row{row})
	return err
}

// InsertMany writes rows and returns the rows affected. Up to MaxInsertRows
// rows go out as a single statement.
func (s *SQLStore) InsertMany(ctx context.Context, table string, rows []Row) (int64, error) {
	if err := validIdentifier(table); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	values := make([]map[string]any, len(rows))
	for i, row := range rows {
		encoded, err := encodeRow(row)
		if err != nil {
			return 0, err
		}
		values[i] = encoded
	}

	res := s.db.WithContext(ctx).Table(table).CreateInBatches(values, MaxInsertRows)
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}

// Update sets values on every row matching q's filters
func (s *SQLStore) Update(ctx context.Context, q *Query, values Row) (int64, error) {
	if err := q.validate(); err != nil {
		return 0, err
	}
	if len(q.Filters) == 0 {
		return 0, errors.New("store: update requires at least one filter")
	}
	if len(values) == 0 {
		return 0, errors.New("store: update requires values")
	}

	encoded, err := encodeRow(values)
	if err != nil {
		return 0, err
	}

	res := s.filtered(ctx, q).Updates(encoded)
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}

// Delete removes every row matching q's filters
func (s *SQLStore) Delete(ctx context.Context, q *Query) (int64, error) {
	if err := q.validate(); err != nil {
		return 0, err
	}
	if len(q.Filters) == 0 {
		return 0, errors.New("store: delete requires at least one filter")
	}

	res := s.filtered(ctx, q).Delete(map[string]any{})
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}

// Exec runs raw DDL or maintenance statements
func (s *SQLStore) Exec(ctx context.Context, statement string) error {
	return translate(s.db.WithContext(ctx).Exec(statement).Error)
}

// filtered scopes a session to q's table and filters
func (s *SQLStore) filtered(ctx context.Context, q *Query) *gorm.DB {
	tx := s.db.WithContext(ctx).Table(q.Table)
	if len(q.Filters) > 0 {
		tx = tx.Clauses(clause.Where{Exprs: conditions(q.Filters)})
	}
	return tx
}

// read adds q's columns, ordering and range to the filtered session
func (s *SQLStore) read(ctx context.Context, q *Query) *gorm.DB {
	tx := s.filtered(ctx, q)
	if len(q.Columns) > 0 {
		tx = tx.Select(q.Columns)
	}
	for _, o := range q.Orders {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: o.Desc})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	return tx
}

func conditions(filters []Filter) []clause.Expression {
	exprs := make([]clause.Expression, 0, len(filters))
	for _, f := range filters {
		col := clause.Column{Name: f.Column}
		switch f.Op {
		case OpEq:
			exprs = append(exprs, clause.Eq{Column: col, Value: f.Value})
		case OpNeq:
			exprs = append(exprs, clause.Neq{Column: col, Value: f.Value})
		case OpGt:
			exprs = append(exprs, clause.Gt{Column: col, Value: f.Value})
		case OpGte:
			exprs = append(exprs, clause.Gte{Column: col, Value: f.Value})
		case OpLt:
			exprs = append(exprs, clause.Lt{Column: col, Value: f.Value})
		case OpLte:
			exprs = append(exprs, clause.Lte{Column: col, Value: f.Value})
		case OpIn:
			values, _ := f.Value.([]any)
			exprs = append(exprs, clause.IN{Column: col, Values: values})
		}
	}
	return exprs
}

// encodeRow validates column names and stores maps and slices as JSON text
func encodeRow(row Row) (map[string]any, error) {
	out := make(map[string]any, len(row))
	for column, v := range row {
		if err := validIdentifier(column); err != nil {
			return nil, err
		}

		switch v := v.(type) {
		case map[string]any:
			encoded, err := jsonText(v, v == nil)
			if err != nil {
				return nil, fmt.Errorf("store: column %s: %w", column, err)
			}
			out[column] = encoded
		case []any:
			encoded, err := jsonText(v, v == nil)
			if err != nil {
				return nil, fmt.Errorf("store: column %s: %w", column, err)
			}
			out[column] = encoded
		case json.RawMessage:
			if v == nil {
				out[column] = nil
				continue
			}
			out[column] = string(v)
		default:
			out[column] = v
		}
	}
	return out, nil
}

func jsonText(v any, null bool) (any, error) {
	if null {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
