package storage

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// NoticeKey is the settings key holding the public notice banner.
const NoticeKey = "notice"

// SettingsRepository is a single mutable key-value row store.
type SettingsRepository interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

type settingsRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewSettingsRepository creates a SettingsRepository backed by SQLite.
func NewSettingsRepository(db *sqlx.DB, logger *zap.Logger) SettingsRepository {
	return &settingsRepository{db: db, logger: logger}
}

func (r *settingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.Get(&value, `SELECT value FROM settings WHERE key = ?`, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (r *settingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
