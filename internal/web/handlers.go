package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/mymmrac/telego"
	"go.uber.org/zap"

	"tgallery/internal/ingest"
	"tgallery/internal/storage"
)

// handleWebhook receives one provider update. The response is always 200: a
// non-2xx would make the provider redeliver the same update in a loop, so
// internal failures are logged and reported instead.
func (s *Server) handleWebhook(c *gin.Context) {
	defer c.Status(http.StatusOK)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.logger.Warn("Failed to read webhook body", zap.Error(err))
		return
	}
	var update telego.Update
	if err := json.Unmarshal(body, &update); err != nil {
		s.logger.Warn("Failed to decode webhook update", zap.Error(err))
		return
	}

	if err := s.dispatcher.Dispatch(c.Request.Context(), update); err != nil {
		s.logger.Error("Webhook dispatch failed",
			zap.Int("update_id", update.UpdateID), zap.Error(err))
		sentry.CaptureException(err)
	}
}

func (s *Server) handleListPosts(c *gin.Context) {
	q := c.Query("q")
	viewerID := c.Query("viewer")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	var (
		posts []storage.Post
		total int64
	)
	err := s.withRepair(func() error {
		var err error
		posts, total, err = s.store.Posts.ListApproved(q, viewerID, page, pageSize)
		return err
	})
	if err != nil {
		s.internalError(c, "Failed to list posts", err)
		return
	}

	notice, err := s.store.Settings.Get(storage.NoticeKey)
	if err != nil {
		s.logger.Warn("Failed to read notice banner", zap.Error(err))
	}

	if posts == nil {
		posts = []storage.Post{}
	}
	c.JSON(http.StatusOK, gin.H{
		"posts":  posts,
		"total":  total,
		"page":   page,
		"notice": notice,
	})
}

// handleGetPost returns one approved post with its album siblings and
// comments, bumping the view counter.
func (s *Server) handleGetPost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var post *storage.Post
	err := s.withRepair(func() error {
		var err error
		post, err = s.store.Posts.Get(id)
		return err
	})
	if err != nil {
		s.internalError(c, "Failed to load post", err)
		return
	}
	if post == nil || !post.IsApproved {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}

	if _, err := s.store.Posts.IncrementViews(post.ID); err != nil {
		s.logger.Warn("Failed to bump views", zap.Int64("post_id", post.ID), zap.Error(err))
	} else {
		post.Views++
	}

	album := []storage.Post{}
	if post.MediaGroupID != nil {
		rows, err := s.store.Posts.Album(*post.MediaGroupID)
		if err != nil {
			s.internalError(c, "Failed to load album", err)
			return
		}
		for _, row := range rows {
			if row.IsApproved {
				album = append(album, row)
			}
		}
	}

	comments, err := s.store.Comments.ListByPost(post.ID)
	if err != nil {
		s.internalError(c, "Failed to load comments", err)
		return
	}
	if comments == nil {
		comments = []storage.Comment{}
	}

	c.JSON(http.StatusOK, gin.H{
		"post":     post,
		"album":    album,
		"comments": comments,
	})
}

type commentRequest struct {
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	Content    string `json:"content"`
	ReplyTo    *int64 `json:"reply_to"`
}

func (s *Server) handleAddComment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" || req.AuthorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "author_id and content are required"})
		return
	}

	if !s.commentLimiter.Allow(identity(c, req.AuthorID)) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many comments, slow down"})
		return
	}

	post, err := s.store.Posts.Get(id)
	if err != nil {
		s.internalError(c, "Failed to load post", err)
		return
	}
	if post == nil || !post.IsApproved {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}

	comment := &storage.Comment{
		PostID:     id,
		AuthorID:   req.AuthorID,
		AuthorName: req.AuthorName,
		Content:    req.Content,
		ReplyTo:    req.ReplyTo,
	}
	if _, err := s.store.Comments.Add(comment); err != nil {
		s.internalError(c, "Failed to store comment", err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (s *Server) handleLike(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if !s.likeLimiter.Allow(identity(c, c.Query("viewer"))) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many likes, slow down"})
		return
	}

	affected, err := s.store.Posts.IncrementLikes(id)
	if err != nil {
		s.internalError(c, "Failed to like post", err)
		return
	}
	if affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}

	post, err := s.store.Posts.Get(id)
	if err != nil || post == nil {
		c.JSON(http.StatusOK, gin.H{"liked": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": true, "likes": post.Likes})
}

func (s *Server) handleFavorite(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	viewerID := c.Query("viewer")
	if viewerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "viewer is required"})
		return
	}

	post, err := s.store.Posts.Get(id)
	if err != nil {
		s.internalError(c, "Failed to load post", err)
		return
	}
	if post == nil || !post.IsApproved {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}

	favorite, err := s.store.Favorites.Toggle(viewerID, id)
	if err != nil {
		s.internalError(c, "Failed to toggle favorite", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorite": favorite})
}

// handleHide marks a post hidden for one viewer. Hiding is per-viewer and does
// not affect the post itself.
func (s *Server) handleHide(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	viewerID := c.Query("viewer")
	if viewerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "viewer is required"})
		return
	}

	if err := s.store.Favorites.Hide(viewerID, id); err != nil {
		s.internalError(c, "Failed to hide post", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleFavoritesList(c *gin.Context) {
	viewerID := c.Param("viewer")

	favorites, err := s.store.Favorites.ListByViewer(viewerID)
	if err != nil {
		s.internalError(c, "Failed to list favorites", err)
		return
	}

	posts := make([]storage.Post, 0, len(favorites))
	for _, fav := range favorites {
		post, err := s.store.Posts.Get(fav.PostID)
		if err != nil {
			s.internalError(c, "Failed to load favorite post", err)
			return
		}
		if post != nil && post.IsApproved {
			posts = append(posts, *post)
		}
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (s *Server) handleActivity(c *gin.Context) {
	viewerID := c.Param("viewer")

	comments, err := s.store.Comments.ListByAuthor(viewerID, 50)
	if err != nil {
		s.internalError(c, "Failed to list comments", err)
		return
	}
	if comments == nil {
		comments = []storage.Comment{}
	}
	favorites, err := s.store.Favorites.ListByViewer(viewerID)
	if err != nil {
		s.internalError(c, "Failed to list favorites", err)
		return
	}
	if favorites == nil {
		favorites = []storage.Favorite{}
	}

	c.JSON(http.StatusOK, gin.H{
		"comments":  comments,
		"favorites": favorites,
	})
}

type descriptionRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSetDescription(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req descriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	var affected int64
	err := s.withRepair(func() error {
		var err error
		affected, err = s.store.Posts.SetContent(id, req.Content, ingest.TagString(req.Content))
		return err
	})
	if err != nil {
		s.internalError(c, "Failed to update description", err)
		return
	}
	if affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

func (s *Server) handleDeletePost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	affected, err := s.store.Posts.DeletePost(id)
	if err != nil {
		s.internalError(c, "Failed to delete post", err)
		return
	}
	if affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": affected})
}

func (s *Server) handleDeleteComment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	affected, err := s.store.Comments.Delete(id)
	if err != nil {
		s.internalError(c, "Failed to delete comment", err)
		return
	}
	if affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.logger.Error(msg, zap.String("path", c.Request.URL.Path), zap.Error(err))
	sentry.CaptureException(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
