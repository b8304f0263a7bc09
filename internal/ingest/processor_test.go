package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tgallery/internal/media"
	"tgallery/internal/storage"
)

type fakeFetcher struct {
	result *media.Result
}

func (f *fakeFetcher) Fetch(_ context.Context, _ *telego.Message) *media.Result {
	return f.result
}

type fakeNotifier struct {
	reviews       []storage.Post
	confirmations int
}

func (f *fakeNotifier) NotifyReview(_ context.Context, post *storage.Post, _ *telego.Message) {
	f.reviews = append(f.reviews, *post)
}

func (f *fakeNotifier) ConfirmReceived(_ context.Context, _ *telego.Message) {
	f.confirmations++
}

func newTestProcessor(t *testing.T) (*Processor, *storage.Storage, *fakeNotifier) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	notifier := &fakeNotifier{}
	p, err := NewProcessor(store.Posts, store.Blacklist, &fakeFetcher{}, notifier, testChannelID)
	require.NoError(t, err)
	return p, store, notifier
}

func submission(msgID int, userID int64, text string) telego.Message {
	return telego.Message{
		MessageID: msgID,
		Chat:      telego.Chat{ID: userID, Type: telego.ChatTypePrivate},
		From:      &telego.User{ID: userID, FirstName: "Sam"},
		Text:      text,
	}
}

func TestProcessChannelPost_AutoApproved(t *testing.T) {
	p, store, notifier := newTestProcessor(t)

	msg := telego.Message{
		MessageID: 10,
		Chat:      telego.Chat{ID: testChannelID, Type: telego.ChatTypeChannel},
		Text:      "official post #news",
	}
	require.NoError(t, p.ProcessChannelPost(context.Background(), msg))

	stored, err := store.Posts.GetByMessage(10, testChannelID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsApproved)
	assert.Nil(t, stored.SubmitterID)
	assert.Equal(t, "news", stored.Tags)
	assert.Empty(t, notifier.reviews, "channel posts bypass review")
}

func TestProcessSubmission_PendingAndNotified(t *testing.T) {
	p, store, notifier := newTestProcessor(t)

	require.NoError(t, p.ProcessSubmission(context.Background(), submission(1, 555, "my meme")))

	stored, err := store.Posts.GetByMessage(1, 555)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsApproved)
	require.NotNil(t, stored.SubmitterID)
	assert.Equal(t, int64(555), *stored.SubmitterID)

	require.Len(t, notifier.reviews, 1)
	assert.Equal(t, 1, notifier.confirmations)
}

func TestProcessSubmission_AlbumNotifiesOnce(t *testing.T) {
	p, store, notifier := newTestProcessor(t)

	first := submission(1, 555, "album caption")
	first.MediaGroupID = "g1"
	second := submission(2, 555, "")
	second.MediaGroupID = "g1"
	second.Caption = "part two"

	require.NoError(t, p.ProcessSubmission(context.Background(), first))
	require.NoError(t, p.ProcessSubmission(context.Background(), second))

	album, err := store.Posts.Album("g1")
	require.NoError(t, err)
	assert.Len(t, album, 2)

	assert.Len(t, notifier.reviews, 1, "only the first album part triggers review")
	assert.Equal(t, 1, notifier.confirmations)
}

func TestProcessSubmission_BlacklistedSilentlyDropped(t *testing.T) {
	p, store, notifier := newTestProcessor(t)

	require.NoError(t, store.Blacklist.Block(555, "spam"))
	require.NoError(t, p.ProcessSubmission(context.Background(), submission(1, 555, "spam")))

	stored, err := store.Posts.GetByMessage(1, 555)
	require.NoError(t, err)
	assert.Nil(t, stored, "blocked submissions leave no row")
	assert.Empty(t, notifier.reviews)
	assert.Equal(t, 0, notifier.confirmations, "no feedback reveals the block")
}

func TestProcessSubmission_EmptyContentDropped(t *testing.T) {
	p, store, notifier := newTestProcessor(t)

	require.NoError(t, p.ProcessSubmission(context.Background(), submission(1, 555, "")))

	stored, err := store.Posts.GetByMessage(1, 555)
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.Empty(t, notifier.reviews)
}

func TestProcessSubmission_WithoutSenderFails(t *testing.T) {
	p, _, _ := newTestProcessor(t)

	msg := submission(1, 555, "x")
	msg.From = nil
	assert.Error(t, p.ProcessSubmission(context.Background(), msg))
}

func TestProcessEdit_UpdatesContentKeepsState(t *testing.T) {
	p, store, _ := newTestProcessor(t)

	msg := telego.Message{
		MessageID: 10,
		Chat:      telego.Chat{ID: testChannelID, Type: telego.ChatTypeChannel},
		Text:      "original #old",
	}
	require.NoError(t, p.ProcessChannelPost(context.Background(), msg))
	stored, err := store.Posts.GetByMessage(10, testChannelID)
	require.NoError(t, err)
	_, err = store.Posts.IncrementLikes(stored.ID)
	require.NoError(t, err)

	msg.Text = "edited #new"
	require.NoError(t, p.ProcessEdit(context.Background(), msg))

	stored, err = store.Posts.GetByMessage(10, testChannelID)
	require.NoError(t, err)
	assert.Equal(t, "edited #new", stored.Content)
	assert.Equal(t, "new", stored.Tags)
	assert.True(t, stored.IsApproved)
	assert.Equal(t, int64(1), stored.Likes, "edits leave counters alone")
}

func TestProcessEdit_UnknownMessageIsNoop(t *testing.T) {
	p, _, _ := newTestProcessor(t)

	msg := telego.Message{
		MessageID: 999,
		Chat:      telego.Chat{ID: testChannelID, Type: telego.ChatTypeChannel},
		Text:      "never stored",
	}
	assert.NoError(t, p.ProcessEdit(context.Background(), msg))
}
