package options

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/vmihailenco/msgpack/v5"
)

// Supported SQL drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type optionRow struct {
	bun.BaseModel `bun:"table:feedcache_options"`

	Name  string `bun:"name,pk"`
	Value []byte `bun:"value"`
}

// SQL stores options in a two column table through bun.
type SQL struct {
	db *bun.DB
}

// OpenSQL opens the database for driver ("sqlite" or "postgres") and
// creates the options table when missing.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQL, error) {
	var db *bun.DB
	switch driver {
	case DriverSQLite:
		sqldb, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		// a single connection keeps ":memory:" databases shared
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DriverPostgres:
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, fmt.Errorf("unsupported options driver %q", driver)
	}

	s := &SQL{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQL wraps an existing bun database. The options table must exist.
func NewSQL(db *bun.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*optionRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("creating options table: %w", err)
	}
	return nil
}

func (s *SQL) Load(ctx context.Context, name string, dest any) (bool, error) {
	row := new(optionRow)
	err := s.db.NewSelect().
		Model(row).
		Where("name = ?", name).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading option %s: %w", name, err)
	}
	if err := msgpack.Unmarshal(row.Value, dest); err != nil {
		return false, fmt.Errorf("decoding option %s: %w", name, err)
	}
	return true, nil
}

func (s *SQL) Save(ctx context.Context, name string, value any) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding option %s: %w", name, err)
	}
	row := &optionRow{Name: name, Value: data}
	_, err = s.db.NewInsert().
		Model(row).
		On("CONFLICT (name) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("saving option %s: %w", name, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQL) Close() error {
	return s.db.Close()
}
