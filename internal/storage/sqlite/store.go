package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/questbot/internal/logger"
	"github.com/julianstephens/questbot/internal/migration"
	"github.com/julianstephens/questbot/internal/storage"
	"github.com/julianstephens/questbot/internal/storage/sqlstore"
	"github.com/julianstephens/questbot/migrations"
)

// connParams turn on cascading deletes and make every transaction take the
// write lock up front, so concurrent read-modify-write cannot deadlock.
const connParams = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"

type Store struct {
	*sqlstore.Store
	path   string
	closed bool
}

func NewStore(path string) *Store {
	return &Store{
		path: path,
	}
}

func (s *Store) open() error {
	db, err := sql.Open("sqlite", s.path+connParams)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.Store = sqlstore.New(db, migration.DialectSQLite)
	s.closed = false
	return nil
}

func (s *Store) Init(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if s.Store == nil || s.closed {
		if err := s.open(); err != nil {
			return err
		}
	}

	if err := s.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) error {
	if s.Store != nil && !s.closed {
		return nil
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("storage not initialized, run 'questbot init' first")
	}

	if err := s.open(); err != nil {
		return err
	}

	r, err := s.runner()
	if err != nil {
		return err
	}
	return r.ValidateVersion(ctx)
}

// Close releases the database. Operations after Close fail with
// ErrStorage until Init or Load reopens it.
func (s *Store) Close() error {
	if s.Store != nil && s.DB != nil && !s.closed {
		s.closed = true
		return s.DB.Close()
	}
	return nil
}

func (s *Store) runner() (*migration.Runner, error) {
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite migrations: %w", err)
	}
	return migration.NewRunner(s.DB, subFS, migration.DialectSQLite), nil
}

// Migrate applies pending schema migrations
func (s *Store) Migrate(ctx context.Context) error {
	r, err := s.runner()
	if err != nil {
		return err
	}
	_, err = r.ApplyMigrations(ctx, func(msg string) {
		logger.Info(msg, "backend", "sqlite")
	})
	return err
}

// SchemaVersion reports the applied and the latest known schema versions
func (s *Store) SchemaVersion(ctx context.Context) (current, latest int, err error) {
	r, err := s.runner()
	if err != nil {
		return 0, 0, err
	}
	if current, err = r.GetCurrentVersion(ctx); err != nil {
		return 0, 0, err
	}
	latest, err = r.GetLatestVersion()
	return current, latest, err
}

func (s *Store) GetConfigPath() string {
	return s.path
}

var (
	_ storage.Provider = (*Store)(nil)
	_ storage.Migrator = (*Store)(nil)
)
