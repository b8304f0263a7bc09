package storage

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// PostRepository covers ingestion upserts, moderation transitions and the
// public read paths over the posts table.
type PostRepository interface {
	// Upsert inserts a post or, on (tg_msg_id, chat_id) conflict, overwrites
	// the mutable content/media fields while preserving counters, moderation
	// state and provenance. Returns the row id.
	Upsert(p *Post) (int64, error)
	// UpdateByMessage applies an edited-message event strictly by external
	// message id. Empty media arguments keep the stored media untouched.
	// Returns the number of rows updated (0 if the post is unknown).
	UpdateByMessage(tgMsgID int, chatID int64, content, tags, filePath, fileType, thumbPath string) (int64, error)
	Get(id int64) (*Post, error)
	GetByMessage(tgMsgID int, chatID int64) (*Post, error)
	// Album returns every row sharing the grouping id, lowest id first.
	Album(groupID string) ([]Post, error)
	GroupExists(groupID string) (bool, error)
	// ListApproved returns one representative row per logical post (albums are
	// collapsed to their lowest-id member), filtered by an optional content
	// substring and an optional viewer whose hidden posts are excluded.
	ListApproved(q, viewerID string, page, pageSize int) ([]Post, int64, error)
	ApprovePost(id int64) (int64, error)
	ApproveGroup(groupID string) (int64, error)
	// DeletePost removes the post and its dependent comments, favorites and
	// hidden marks. Returns the number of post rows removed.
	DeletePost(id int64) (int64, error)
	DeleteGroup(groupID string) (int64, error)
	DeleteByMessage(tgMsgID int, chatID int64) (int64, error)
	IncrementLikes(id int64) (int64, error)
	IncrementViews(id int64) (int64, error)
	SetAdminNote(id int64, note string) (int64, error)
	// SetContent replaces the description text and its derived tags.
	SetContent(id int64, content, tags string) (int64, error)
	// ChannelMessageIDs lists the distinct external message ids stored for an
	// origin chat, newest first. Used by the origin sweep.
	ChannelMessageIDs(chatID int64) ([]int, error)
	LatestMessageID(chatID int64) (int, error)
}

type postRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPostRepository creates a PostRepository backed by SQLite.
func NewPostRepository(db *sqlx.DB, logger *zap.Logger) PostRepository {
	return &postRepository{db: db, logger: logger}
}

func (r *postRepository) Upsert(p *Post) (int64, error) {
	var id int64
	err := r.db.QueryRow(`
		INSERT INTO posts (tg_msg_id, chat_id, media_group_id, content, tags,
			file_path, file_type, thumb_path, is_approved, submitter_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tg_msg_id, chat_id) DO UPDATE SET
			content = excluded.content,
			tags = excluded.tags,
			file_path = excluded.file_path,
			file_type = excluded.file_type,
			thumb_path = excluded.thumb_path,
			media_group_id = excluded.media_group_id
		RETURNING id
	`, p.TgMsgID, p.ChatID, p.MediaGroupID, p.Content, p.Tags,
		p.FilePath, p.FileType, p.ThumbPath, p.IsApproved, p.SubmitterID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert post (msg %d, chat %d): %w", p.TgMsgID, p.ChatID, err)
	}
	p.ID = id
	return id, nil
}

func (r *postRepository) UpdateByMessage(tgMsgID int, chatID int64, content, tags, filePath, fileType, thumbPath string) (int64, error) {
	res, err := r.db.Exec(`
		UPDATE posts SET
			content = ?,
			tags = ?,
			file_path = CASE WHEN ? = '' THEN file_path ELSE ? END,
			file_type = CASE WHEN ? = '' THEN file_type ELSE ? END,
			thumb_path = CASE WHEN ? = '' THEN thumb_path ELSE ? END
		WHERE tg_msg_id = ? AND chat_id = ?
	`, content, tags, filePath, filePath, fileType, fileType, thumbPath, thumbPath, tgMsgID, chatID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *postRepository) Get(id int64) (*Post, error) {
	var p Post
	err := r.db.Get(&p, `SELECT * FROM posts WHERE id = ?`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *postRepository) GetByMessage(tgMsgID int, chatID int64) (*Post, error) {
	var p Post
	err := r.db.Get(&p, `SELECT * FROM posts WHERE tg_msg_id = ? AND chat_id = ?`, tgMsgID, chatID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *postRepository) Album(groupID string) ([]Post, error) {
	var posts []Post
	err := r.db.Select(&posts, `SELECT * FROM posts WHERE media_group_id = ? ORDER BY id ASC`, groupID)
	return posts, err
}

func (r *postRepository) GroupExists(groupID string) (bool, error) {
	var exists bool
	err := r.db.Get(&exists, `SELECT EXISTS(SELECT 1 FROM posts WHERE media_group_id = ?)`, groupID)
	return exists, err
}

func (r *postRepository) ListApproved(q, viewerID string, page, pageSize int) ([]Post, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	filter := `
		p.is_approved = 1
		AND (p.media_group_id IS NULL OR p.id = (
			SELECT MIN(p2.id) FROM posts p2
			WHERE p2.media_group_id = p.media_group_id AND p2.is_approved = 1))
		AND (? = '' OR p.content LIKE '%' || ? || '%')
		AND (? = '' OR p.id NOT IN (SELECT post_id FROM hidden WHERE viewer_id = ?))
	`

	var total int64
	err := r.db.Get(&total, `SELECT COUNT(*) FROM posts p WHERE `+filter,
		q, q, viewerID, viewerID)
	if err != nil {
		return nil, 0, err
	}

	var posts []Post
	err = r.db.Select(&posts, `
		SELECT p.* FROM posts p WHERE `+filter+`
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ? OFFSET ?
	`, q, q, viewerID, viewerID, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *postRepository) ApprovePost(id int64) (int64, error) {
	res, err := r.db.Exec(`UPDATE posts SET is_approved = 1 WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *postRepository) ApproveGroup(groupID string) (int64, error) {
	res, err := r.db.Exec(`UPDATE posts SET is_approved = 1 WHERE media_group_id = ?`, groupID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *postRepository) DeletePost(id int64) (int64, error) {
	return r.deleteWhere(`id = ?`, id)
}

func (r *postRepository) DeleteGroup(groupID string) (int64, error) {
	return r.deleteWhere(`media_group_id = ?`, groupID)
}

func (r *postRepository) DeleteByMessage(tgMsgID int, chatID int64) (int64, error) {
	return r.deleteWhere(`tg_msg_id = ? AND chat_id = ?`, tgMsgID, chatID)
}

// deleteWhere removes matching posts and their dependents in one transaction.
func (r *postRepository) deleteWhere(cond string, args ...interface{}) (int64, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var ids []int64
	if err := tx.Select(&ids, `SELECT id FROM posts WHERE `+cond, args...); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, tx.Commit()
	}

	query, inArgs, err := sqlx.In(`DELETE FROM comments WHERE post_id IN (?)`, ids)
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(query, inArgs...); err != nil {
		return 0, err
	}
	query, inArgs, _ = sqlx.In(`DELETE FROM favorites WHERE post_id IN (?)`, ids)
	if _, err := tx.Exec(query, inArgs...); err != nil {
		return 0, err
	}
	query, inArgs, _ = sqlx.In(`DELETE FROM hidden WHERE post_id IN (?)`, ids)
	if _, err := tx.Exec(query, inArgs...); err != nil {
		return 0, err
	}

	res, err := tx.Exec(`DELETE FROM posts WHERE `+cond, args...)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return affected, tx.Commit()
}

func (r *postRepository) IncrementLikes(id int64) (int64, error) {
	res, err := r.db.Exec(`UPDATE posts SET likes = likes + 1 WHERE id = ? AND is_approved = 1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *postRepository) IncrementViews(id int64) (int64, error) {
	res, err := r.db.Exec(`UPDATE posts SET views = views + 1 WHERE id = ? AND is_approved = 1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *postRepository) SetAdminNote(id int64, note string) (int64, error) {
	res, err := r.db.Exec(`UPDATE posts SET admin_note = ? WHERE id = ?`, note, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *postRepository) SetContent(id int64, content, tags string) (int64, error) {
	res, err := r.db.Exec(`UPDATE posts SET content = ?, tags = ? WHERE id = ?`, content, tags, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *postRepository) ChannelMessageIDs(chatID int64) ([]int, error) {
	var ids []int
	err := r.db.Select(&ids, `SELECT DISTINCT tg_msg_id FROM posts WHERE chat_id = ? ORDER BY tg_msg_id DESC`, chatID)
	return ids, err
}

func (r *postRepository) LatestMessageID(chatID int64) (int, error) {
	var id sql.NullInt64
	err := r.db.Get(&id, `SELECT MAX(tg_msg_id) FROM posts WHERE chat_id = ?`, chatID)
	if err != nil {
		return 0, err
	}
	return int(id.Int64), nil
}
