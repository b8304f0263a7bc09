package storage

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Storage owns the SQLite connection and the repositories built on it.
type Storage struct {
	db     *sqlx.DB
	logger *zap.Logger

	Posts     PostRepository
	Comments  CommentRepository
	Settings  SettingsRepository
	Blacklist BlacklistRepository
	Favorites FavoriteRepository
}

// Open opens (creating if needed) the SQLite file at dbPath and applies all
// pending migrations in order. Running against a fully migrated database is a
// no-op; running against a partially migrated one completes the gap.
func Open(dbPath string, logger *zap.Logger) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	s := &Storage{db: db, logger: logger}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Database ready", zap.String("path", dbPath))

	s.Posts = NewPostRepository(db, logger)
	s.Comments = NewCommentRepository(db, logger)
	s.Settings = NewSettingsRepository(db, logger)
	s.Blacklist = NewBlacklistRepository(db, logger)
	s.Favorites = NewFavoriteRepository(db, logger)
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for tests.
func (s *Storage) DB() *sqlx.DB {
	return s.db
}

// Repair re-applies pending migrations. Callers hitting a "no such column"
// query failure may invoke this once and retry the request.
func (s *Storage) Repair() error {
	s.logger.Warn("Schema repair requested, re-running migrations")
	return s.migrateUp()
}

// IsSchemaError reports whether err looks like schema drift (a missing column
// or table) rather than a regular query failure.
func IsSchemaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such column") || strings.Contains(msg, "no such table")
}

func (s *Storage) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	driver, err := sqlitemigrate.WithInstance(s.db.DB, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("failed to prepare migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
