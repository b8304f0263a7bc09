package storage

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// BlacklistRepository tracks submitter identities whose future submissions are
// silently dropped. Blocking is not retroactive.
type BlacklistRepository interface {
	Block(userID int64, reason string) error
	IsBlocked(userID int64) (bool, error)
}

type blacklistRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewBlacklistRepository creates a BlacklistRepository backed by SQLite.
func NewBlacklistRepository(db *sqlx.DB, logger *zap.Logger) BlacklistRepository {
	return &blacklistRepository{db: db, logger: logger}
}

func (r *blacklistRepository) Block(userID int64, reason string) error {
	_, err := r.db.Exec(`
		INSERT INTO blacklist (user_id, reason) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET reason = excluded.reason
	`, userID, reason)
	if err != nil {
		return err
	}
	r.logger.Info("User blacklisted", zap.Int64("user_id", userID))
	return nil
}

func (r *blacklistRepository) IsBlocked(userID int64) (bool, error) {
	var blocked bool
	err := r.db.Get(&blocked, `SELECT EXISTS(SELECT 1 FROM blacklist WHERE user_id = ?)`, userID)
	return blocked, err
}
