package storage

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// FavoriteRepository tracks per-viewer favorites and per-viewer hidden posts.
// Viewer identities are client-supplied and not verified.
type FavoriteRepository interface {
	// Toggle flips the favorite mark and reports whether the post is now a
	// favorite for the viewer.
	Toggle(viewerID string, postID int64) (bool, error)
	ListByViewer(viewerID string) ([]Favorite, error)
	Hide(viewerID string, postID int64) error
}

type favoriteRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewFavoriteRepository creates a FavoriteRepository backed by SQLite.
func NewFavoriteRepository(db *sqlx.DB, logger *zap.Logger) FavoriteRepository {
	return &favoriteRepository{db: db, logger: logger}
}

func (r *favoriteRepository) Toggle(viewerID string, postID int64) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM favorites WHERE viewer_id = ? AND post_id = ?`, viewerID, postID)
	if err != nil {
		return false, err
	}
	if removed, _ := res.RowsAffected(); removed > 0 {
		return false, nil
	}
	_, err = r.db.Exec(`INSERT INTO favorites (viewer_id, post_id) VALUES (?, ?)`, viewerID, postID)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *favoriteRepository) ListByViewer(viewerID string) ([]Favorite, error) {
	var favorites []Favorite
	err := r.db.Select(&favorites, `SELECT * FROM favorites WHERE viewer_id = ? ORDER BY created_at DESC`, viewerID)
	return favorites, err
}

func (r *favoriteRepository) Hide(viewerID string, postID int64) error {
	_, err := r.db.Exec(`INSERT OR IGNORE INTO hidden (viewer_id, post_id) VALUES (?, ?)`, viewerID, postID)
	return err
}
