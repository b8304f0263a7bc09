package storage

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// CommentRepository stores and retrieves comments.
type CommentRepository interface {
	Add(c *Comment) (int64, error)
	ListByPost(postID int64) ([]Comment, error)
	ListByAuthor(authorID string, limit int) ([]Comment, error)
	Delete(id int64) (int64, error)
}

type commentRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewCommentRepository creates a CommentRepository backed by SQLite.
func NewCommentRepository(db *sqlx.DB, logger *zap.Logger) CommentRepository {
	return &commentRepository{db: db, logger: logger}
}

func (r *commentRepository) Add(c *Comment) (int64, error) {
	var id int64
	err := r.db.QueryRow(`
		INSERT INTO comments (post_id, author_id, author_name, content, reply_to)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`, c.PostID, c.AuthorID, c.AuthorName, c.Content, c.ReplyTo).Scan(&id)
	if err != nil {
		return 0, err
	}
	c.ID = id
	return id, nil
}

func (r *commentRepository) ListByPost(postID int64) ([]Comment, error) {
	var comments []Comment
	err := r.db.Select(&comments, `SELECT * FROM comments WHERE post_id = ? ORDER BY created_at ASC, id ASC`, postID)
	return comments, err
}

func (r *commentRepository) ListByAuthor(authorID string, limit int) ([]Comment, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var comments []Comment
	err := r.db.Select(&comments, `SELECT * FROM comments WHERE author_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, authorID, limit)
	return comments, err
}

func (r *commentRepository) Delete(id int64) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
