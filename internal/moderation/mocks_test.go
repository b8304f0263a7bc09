package moderation

import (
	"context"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/mock"

	"tgallery/internal/storage"
)

// MockBot is a mock implementing the telegoapi.BotAPI interface
type MockBot struct {
	mock.Mock
}

func (m *MockBot) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SendPhoto(ctx context.Context, params *telego.SendPhotoParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SendVideo(ctx context.Context, params *telego.SendVideoParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockBot) AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockBot) EditMessageCaption(ctx context.Context, params *telego.EditMessageCaptionParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) DeleteMessage(ctx context.Context, params *telego.DeleteMessageParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockBot) ForwardMessage(ctx context.Context, params *telego.ForwardMessageParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error) {
	args := m.Called(ctx, params)
	if member, ok := args.Get(0).(telego.ChatMember); ok {
		return member, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) GetFile(ctx context.Context, params *telego.GetFileParams) (*telego.File, error) {
	args := m.Called(ctx, params)
	if file, ok := args.Get(0).(*telego.File); ok {
		return file, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) FileDownloadURL(filepath string) string {
	args := m.Called(filepath)
	return args.String(0)
}

// MockAdminChecker is a mock for auth.AdminCheckerInterface
type MockAdminChecker struct {
	mock.Mock
}

func (m *MockAdminChecker) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

// MockPostRepository is a mock for storage.PostRepository
type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) Upsert(p *storage.Post) (int64, error) {
	args := m.Called(p)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPostRepository) UpdateByMessage(tgMsgID int, chatID int64, content, tags, filePath, fileType, thumbPath string) (int64, error) {
	args := m.Called(tgMsgID, chatID, content, tags, filePath, fileType, thumbPath)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPostRepository) Get(id int64) (*storage.Post, error) {
	args := m.Called(id)
	if post, ok := args.Get(0).(*storage.Post); ok {
		return post, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPostRepository) GetByMessage(tgMsgID int, chatID int64) (*storage.Post, error) {
	args := m.Called(tgMsgID, chatID)
	if post, ok := args.Get(0).(*storage.Post); ok {
		return post, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPostRepository) Album(groupID string) ([]storage.Post, error) {
	args := m.Called(groupID)
	if posts, ok := args.Get(0).([]storage.Post); ok {
		return posts, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPostRepository) GroupExists(groupID string) (bool, error) {
	args := m.Called(groupID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPostRepository) ListApproved(q, viewerID string, page, pageSize int) ([]storage.Post, int64, error) {
	args := m.Called(q, viewerID, page, pageSize)
	if posts, ok := args.Get(0).([]storage.Post); ok {
		return posts, args.Get(1).(int64), args.Error(2)
	}
	return nil, args.Get(1).(int64), args.Error(2)
}

func (m *MockPostRepository) ApprovePost(id int64) (int64, error) {
	args := m.Called(id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPostRepository) ApproveGroup(groupID string) (int64, error) {
	args := m.Called(groupID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPostRepository) DeletePost(id int64) (int64, error) {
	args := m.Called(id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPostRepository) DeleteGroup(groupID string) (int64, error) {
	args := m.Called(groupID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPostRepository) DeleteByMessage(tgMsgID int, chatID int64) (int64, error) {
	args := m.Called(tgMsgID, chatID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPostRepository) IncrementLikes(id int64) (int64, error) {
	args := m.Called(id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPostRepository) IncrementViews(id int64) (int64, error) {
	args := m.Called(id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPostRepository) SetAdminNote(id int64, note string) (int64, error) {
	args := m.Called(id, note)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPostRepository) SetContent(id int64, content, tags string) (int64, error) {
	args := m.Called(id, content, tags)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPostRepository) ChannelMessageIDs(chatID int64) ([]int, error) {
	args := m.Called(chatID)
	if ids, ok := args.Get(0).([]int); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPostRepository) LatestMessageID(chatID int64) (int, error) {
	args := m.Called(chatID)
	return args.Int(0), args.Error(1)
}

// MockSettingsRepository is a mock for storage.SettingsRepository
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) Get(key string) (string, error) {
	args := m.Called(key)
	return args.String(0), args.Error(1)
}

func (m *MockSettingsRepository) Set(key, value string) error {
	args := m.Called(key, value)
	return args.Error(0)
}

// MockBlacklistRepository is a mock for storage.BlacklistRepository
type MockBlacklistRepository struct {
	mock.Mock
}

func (m *MockBlacklistRepository) Block(userID int64, reason string) error {
	args := m.Called(userID, reason)
	return args.Error(0)
}

func (m *MockBlacklistRepository) IsBlocked(userID int64) (bool, error) {
	args := m.Called(userID)
	return args.Bool(0), args.Error(1)
}
