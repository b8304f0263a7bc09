package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tgallery/internal/storage"
)

const testAdminKey = "test-admin-key"

type fakeDispatcher struct {
	updates []telego.Update
	err     error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, update telego.Update) error {
	f.updates = append(f.updates, update)
	return f.err
}

func newTestServer(t *testing.T) (*Server, *storage.Storage, *fakeDispatcher) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	dispatcher := &fakeDispatcher{}
	s, err := NewServer(Deps{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
		AdminKey:   testAdminKey,
		UploadDir:  t.TempDir(),
	})
	require.NoError(t, err)
	return s, store, dispatcher
}

func seedApprovedPost(t *testing.T, store *storage.Storage, msgID int, content string) int64 {
	t.Helper()
	id, err := store.Posts.Upsert(&storage.Post{
		TgMsgID:    msgID,
		ChatID:     -100500,
		Content:    content,
		IsApproved: true,
	})
	require.NoError(t, err)
	return id
}

func doJSON(s *Server, method, path string, body interface{}, header map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestWebhook_AlwaysRespondsOK(t *testing.T) {
	s, _, dispatcher := newTestServer(t)

	w := doJSON(s, http.MethodPost, "/webhook", map[string]interface{}{
		"update_id": 1,
		"message": map[string]interface{}{
			"message_id": 5,
			"date":       0,
			"chat":       map[string]interface{}{"id": 555, "type": "private"},
			"text":       "hi",
		},
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, dispatcher.updates, 1)
	assert.Equal(t, 1, dispatcher.updates[0].UpdateID)

	// Garbage still answers 200 so the provider does not redeliver forever.
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString("not json"))
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Internal failures are swallowed too.
	dispatcher.err = assert.AnError
	w = doJSON(s, http.MethodPost, "/webhook", map[string]interface{}{"update_id": 2}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListPosts_OnlyApprovedWithNotice(t *testing.T) {
	s, store, _ := newTestServer(t)

	seedApprovedPost(t, store, 1, "cat picture")
	_, err := store.Posts.Upsert(&storage.Post{TgMsgID: 2, ChatID: -100500, Content: "pending"})
	require.NoError(t, err)
	require.NoError(t, store.Settings.Set(storage.NoticeKey, "maintenance tonight"))

	w := doJSON(s, http.MethodGet, "/api/posts", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Posts  []storage.Post `json:"posts"`
		Total  int64          `json:"total"`
		Notice string         `json:"notice"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Total)
	require.Len(t, resp.Posts, 1)
	assert.Equal(t, "cat picture", resp.Posts[0].Content)
	assert.Equal(t, "maintenance tonight", resp.Notice)
}

func TestGetPost_BumpsViewsAndIncludesComments(t *testing.T) {
	s, store, _ := newTestServer(t)

	id := seedApprovedPost(t, store, 1, "hello")
	_, err := store.Comments.Add(&storage.Comment{PostID: id, AuthorID: "a1", AuthorName: "A", Content: "nice"})
	require.NoError(t, err)

	w := doJSON(s, http.MethodGet, fmt.Sprintf("/api/posts/%d", id), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Post     storage.Post      `json:"post"`
		Comments []storage.Comment `json:"comments"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Post.Views)
	require.Len(t, resp.Comments, 1)
	assert.Equal(t, "nice", resp.Comments[0].Content)
}

func TestGetPost_PendingIsNotFound(t *testing.T) {
	s, store, _ := newTestServer(t)

	id, err := store.Posts.Upsert(&storage.Post{TgMsgID: 1, ChatID: -100500, Content: "pending"})
	require.NoError(t, err)

	w := doJSON(s, http.MethodGet, fmt.Sprintf("/api/posts/%d", id), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddComment_ValidationAndRateLimit(t *testing.T) {
	s, store, _ := newTestServer(t)
	id := seedApprovedPost(t, store, 1, "hello")
	path := fmt.Sprintf("/api/posts/%d/comments", id)

	w := doJSON(s, http.MethodPost, path, map[string]string{"author_id": "a1"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "empty content is rejected")

	for i := 0; i < commentLimit; i++ {
		w = doJSON(s, http.MethodPost, path, map[string]string{
			"author_id": "a1", "author_name": "A", "content": fmt.Sprintf("comment %d", i),
		}, nil)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w = doJSON(s, http.MethodPost, path, map[string]string{
		"author_id": "a1", "author_name": "A", "content": "one too many",
	}, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Another identity still gets through.
	w = doJSON(s, http.MethodPost, path, map[string]string{
		"author_id": "a2", "author_name": "B", "content": "fresh identity",
	}, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	comments, err := store.Comments.ListByPost(id)
	require.NoError(t, err)
	assert.Len(t, comments, commentLimit+1, "rejected comments leave no row")
}

func TestLike_CountsAndRateLimits(t *testing.T) {
	s, store, _ := newTestServer(t)
	id := seedApprovedPost(t, store, 1, "hello")
	path := fmt.Sprintf("/api/posts/%d/like?viewer=v1", id)

	for i := 0; i < likeLimit; i++ {
		w := doJSON(s, http.MethodPost, path, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := doJSON(s, http.MethodPost, path, nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	post, err := store.Posts.Get(id)
	require.NoError(t, err)
	assert.Equal(t, int64(likeLimit), post.Likes)
}

func TestLike_UnknownPostIsNotFound(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := doJSON(s, http.MethodPost, "/api/posts/999/like?viewer=v1", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFavorite_ToggleRoundTrip(t *testing.T) {
	s, store, _ := newTestServer(t)
	id := seedApprovedPost(t, store, 1, "hello")
	path := fmt.Sprintf("/api/posts/%d/favorite?viewer=v1", id)

	w := doJSON(s, http.MethodPost, path, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"favorite": true}`, w.Body.String())

	w = doJSON(s, http.MethodPost, path, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"favorite": false}`, w.Body.String())

	w = doJSON(s, http.MethodPost, fmt.Sprintf("/api/posts/%d/favorite", id), nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "viewer identity is required")
}

func TestHide_RemovesFromViewerListing(t *testing.T) {
	s, store, _ := newTestServer(t)
	id := seedApprovedPost(t, store, 1, "hidden for v1")
	seedApprovedPost(t, store, 2, "still visible")

	w := doJSON(s, http.MethodPost, fmt.Sprintf("/api/posts/%d/hide?viewer=v1", id), nil, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(s, http.MethodGet, "/api/posts?viewer=v1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Total)
}

func TestActivity_ListsCommentsAndFavorites(t *testing.T) {
	s, store, _ := newTestServer(t)
	id := seedApprovedPost(t, store, 1, "hello")

	_, err := store.Comments.Add(&storage.Comment{PostID: id, AuthorID: "v1", AuthorName: "V", Content: "mine"})
	require.NoError(t, err)
	_, err = store.Favorites.Toggle("v1", id)
	require.NoError(t, err)

	w := doJSON(s, http.MethodGet, "/api/users/v1/activity", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Comments  []storage.Comment  `json:"comments"`
		Favorites []storage.Favorite `json:"favorites"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Comments, 1)
	assert.Len(t, resp.Favorites, 1)
}

func TestAdmin_RequiresExactKey(t *testing.T) {
	s, store, _ := newTestServer(t)
	id := seedApprovedPost(t, store, 1, "protected")
	path := fmt.Sprintf("/api/admin/posts/%d", id)

	w := doJSON(s, http.MethodDelete, path, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(s, http.MethodDelete, path, nil, map[string]string{"X-Admin-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	post, err := store.Posts.Get(id)
	require.NoError(t, err)
	require.NotNil(t, post, "failed auth must not change state")

	w = doJSON(s, http.MethodDelete, path, nil, map[string]string{"X-Admin-Key": testAdminKey})
	assert.Equal(t, http.StatusOK, w.Code)

	post, err = store.Posts.Get(id)
	require.NoError(t, err)
	assert.Nil(t, post)
}

func TestAdmin_SetDescription(t *testing.T) {
	s, store, _ := newTestServer(t)
	id := seedApprovedPost(t, store, 1, "old text")
	path := fmt.Sprintf("/api/admin/posts/%d/description", id)
	auth := map[string]string{"X-Admin-Key": testAdminKey}

	w := doJSON(s, http.MethodPut, path, map[string]string{"content": ""}, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(s, http.MethodPut, path, map[string]string{"content": "new text #art"}, auth)
	require.Equal(t, http.StatusOK, w.Code)

	post, err := store.Posts.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "new text #art", post.Content)
	assert.Equal(t, "art", post.Tags)
}

func TestAdmin_DeleteComment(t *testing.T) {
	s, store, _ := newTestServer(t)
	id := seedApprovedPost(t, store, 1, "hello")
	commentID, err := store.Comments.Add(&storage.Comment{PostID: id, AuthorID: "a1", AuthorName: "A", Content: "rude"})
	require.NoError(t, err)

	w := doJSON(s, http.MethodDelete, fmt.Sprintf("/api/admin/comments/%d", commentID), nil,
		map[string]string{"X-Admin-Key": testAdminKey})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(s, http.MethodDelete, fmt.Sprintf("/api/admin/comments/%d", commentID), nil,
		map[string]string{"X-Admin-Key": testAdminKey})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
