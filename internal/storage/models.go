package storage

import "time"

// Post is one stored row. Rows sharing a non-empty MediaGroupID belong to the
// same logical album; the row with the lowest id is the listing representative.
type Post struct {
	ID           int64     `db:"id" json:"id"`
	TgMsgID      int       `db:"tg_msg_id" json:"tg_msg_id"`
	ChatID       int64     `db:"chat_id" json:"chat_id"`
	MediaGroupID *string   `db:"media_group_id" json:"media_group_id,omitempty"`
	Content      string    `db:"content" json:"content"`
	Tags         string    `db:"tags" json:"tags"`
	FilePath     string    `db:"file_path" json:"file_path"`
	FileType     string    `db:"file_type" json:"file_type"`
	ThumbPath    string    `db:"thumb_path" json:"thumb_path"`
	IsApproved   bool      `db:"is_approved" json:"is_approved"`
	SubmitterID  *int64    `db:"submitter_id" json:"submitter_id,omitempty"`
	AdminNote    string    `db:"admin_note" json:"admin_note"`
	Likes        int64     `db:"likes" json:"likes"`
	Views        int64     `db:"views" json:"views"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Comment belongs to one post. No FK constraint is enforced, so a comment can
// outlive its post if the post is deleted outside the cascade paths.
type Comment struct {
	ID         int64     `db:"id" json:"id"`
	PostID     int64     `db:"post_id" json:"post_id"`
	AuthorID   string    `db:"author_id" json:"author_id"`
	AuthorName string    `db:"author_name" json:"author_name"`
	Content    string    `db:"content" json:"content"`
	ReplyTo    *int64    `db:"reply_to" json:"reply_to,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// BlacklistEntry is a blocked submitter identity.
type BlacklistEntry struct {
	UserID    int64     `db:"user_id" json:"user_id"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Favorite links a viewer identity to a post.
type Favorite struct {
	ViewerID  string    `db:"viewer_id" json:"viewer_id"`
	PostID    int64     `db:"post_id" json:"post_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
