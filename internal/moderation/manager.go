package moderation

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/ratelimit"

	"tgallery/internal/auth"
	"tgallery/internal/ingest"
	"tgallery/internal/locales"
	"tgallery/internal/storage"
	"tgallery/pkg/telegoapi"
)

// seenTokenTTL bounds the in-memory replay guard for review callbacks.
const seenTokenTTL = 24 * time.Hour

// ChannelIngestor re-ingests origin-channel content during a history resync.
type ChannelIngestor interface {
	ProcessChannelPost(ctx context.Context, msg telego.Message) error
}

// Manager owns the moderation workflow: review notifications to the admin
// chat, approve/reject callbacks, submitter outcome messages and the
// administrative commands.
type Manager struct {
	bot          telegoapi.BotAPI
	posts        storage.PostRepository
	settings     storage.SettingsRepository
	blacklist    storage.BlacklistRepository
	adminChecker auth.AdminCheckerInterface
	ingestor     ChannelIngestor

	channelID      int64
	adminChatID    int64
	resyncPageSize int

	// Paces outbound Telegram sends so notification bursts stay inside the
	// Bot API limits.
	limiter ratelimit.Limiter

	// Replay guard for review callbacks. Approve is naturally idempotent;
	// reject is not, so a replayed token must not touch rows again.
	seenTokens map[string]time.Time
	muSeen     sync.Mutex
}

// Deps holds the dependencies required by the Manager.
type Deps struct {
	Bot            telegoapi.BotAPI
	Posts          storage.PostRepository
	Settings       storage.SettingsRepository
	Blacklist      storage.BlacklistRepository
	AdminChecker   auth.AdminCheckerInterface
	ChannelID      int64
	AdminChatID    int64
	ResyncPageSize int
}

// NewManager creates a moderation manager from its dependencies.
func NewManager(deps Deps) (*Manager, error) {
	if deps.Bot == nil {
		return nil, fmt.Errorf("bot instance cannot be nil")
	}
	if deps.Posts == nil || deps.Settings == nil || deps.Blacklist == nil {
		return nil, fmt.Errorf("repositories cannot be nil")
	}
	if deps.AdminChecker == nil {
		return nil, fmt.Errorf("admin checker cannot be nil")
	}
	if deps.ChannelID == 0 || deps.AdminChatID == 0 {
		return nil, fmt.Errorf("channel and admin chat IDs are required")
	}
	if deps.ResyncPageSize <= 0 {
		deps.ResyncPageSize = 50
	}
	return &Manager{
		bot:            deps.Bot,
		posts:          deps.Posts,
		settings:       deps.Settings,
		blacklist:      deps.Blacklist,
		adminChecker:   deps.AdminChecker,
		channelID:      deps.ChannelID,
		adminChatID:    deps.AdminChatID,
		resyncPageSize: deps.ResyncPageSize,
		limiter:        ratelimit.New(20),
		seenTokens:     make(map[string]time.Time),
	}, nil
}

// SetIngestor wires the resync path. Set after construction because the
// processor and the manager reference each other.
func (m *Manager) SetIngestor(ing ChannelIngestor) {
	m.ingestor = ing
}

// NotifyReview sends the pending submission to the admin chat with
// approve/reject controls. Albums are targeted by grouping id so one decision
// covers every row; single posts are targeted by row id.
func (m *Manager) NotifyReview(ctx context.Context, post *storage.Post, msg *telego.Message) {
	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())

	name := ""
	userID := int64(0)
	if msg.From != nil {
		name = msg.From.FirstName
		if msg.From.Username != "" {
			name = name + " @" + msg.From.Username
		}
		userID = msg.From.ID
	}
	caption := locales.GetMessage(localizer, "MsgReviewCaption", map[string]interface{}{
		"Name":    name,
		"UserID":  userID,
		"Caption": post.Content,
	}, nil)

	var target string
	if post.MediaGroupID != nil {
		target = "g:" + *post.MediaGroupID
	} else {
		target = "p:" + strconv.FormatInt(post.ID, 10)
	}
	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("✅ Approve").WithCallbackData(ingest.ReviewCallbackPrefix+target+":approve"),
			tu.InlineKeyboardButton("❌ Reject").WithCallbackData(ingest.ReviewCallbackPrefix+target+":reject"),
		),
	)

	m.limiter.Take()
	var err error
	switch {
	case len(msg.Photo) > 0:
		photo := msg.Photo[len(msg.Photo)-1]
		params := tu.Photo(tu.ID(m.adminChatID), telego.InputFile{FileID: photo.FileID}).
			WithCaption(caption).WithReplyMarkup(keyboard)
		_, err = m.bot.SendPhoto(ctx, params)
	case msg.Video != nil:
		params := tu.Video(tu.ID(m.adminChatID), telego.InputFile{FileID: msg.Video.FileID}).
			WithCaption(caption).WithReplyMarkup(keyboard)
		_, err = m.bot.SendVideo(ctx, params)
	default:
		params := tu.Message(tu.ID(m.adminChatID), caption).WithReplyMarkup(keyboard)
		_, err = m.bot.SendMessage(ctx, params)
	}
	if err != nil {
		// Best effort: the post stays pending and can still be acted on later.
		log.Printf("[Moderation Post:%d] Failed to send review notification: %v", post.ID, err)
		sentry.CaptureException(err)
	}
}

// ConfirmReceived tells the submitter their content entered the review queue.
func (m *Manager) ConfirmReceived(ctx context.Context, msg *telego.Message) {
	lang := locales.GetDefaultLanguageTag().String()
	if msg.From != nil && msg.From.LanguageCode != "" {
		lang = msg.From.LanguageCode
	}
	localizer := locales.NewLocalizer(lang)
	text := locales.GetMessage(localizer, "MsgSubmissionReceived", nil, nil)

	m.limiter.Take()
	if _, err := m.bot.SendMessage(ctx, tu.Message(tu.ID(msg.Chat.ID), text)); err != nil {
		log.Printf("[Moderation Chat:%d] Failed to send submission confirmation: %v", msg.Chat.ID, err)
	}
}

// HandleCallback processes a review decision callback. The decision is
// applied set-based to a single post or to every row of an album. A replayed
// token is answered and otherwise ignored.
func (m *Manager) HandleCallback(ctx context.Context, query telego.CallbackQuery) error {
	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())

	parts := strings.Split(query.Data, ":")
	if len(parts) != 4 || parts[0]+":" != ingest.ReviewCallbackPrefix {
		log.Printf("[Callback] Invalid data format: %s", query.Data)
		_ = m.answerCallback(ctx, query.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil), true)
		return fmt.Errorf("invalid callback data format")
	}
	kind, target, action := parts[1], parts[2], parts[3]

	isAdmin, err := m.adminChecker.IsAdmin(ctx, query.From.ID)
	if err != nil {
		log.Printf("[Callback User:%d] Admin check failed: %v", query.From.ID, err)
		_ = m.answerCallback(ctx, query.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil), true)
		return err
	}
	if !isAdmin {
		log.Printf("[Callback User:%d] Non-admin review attempt ignored", query.From.ID)
		_ = m.answerCallback(ctx, query.ID, locales.GetMessage(localizer, "MsgErrorRequiresAdmin", nil, nil), true)
		return nil
	}

	if m.alreadyProcessed(query.Data) {
		_ = m.answerCallback(ctx, query.ID, locales.GetMessage(localizer, "MsgReviewAlreadyProcessed", nil, nil), false)
		return nil
	}

	// Resolve the submitter before any delete so the outcome can still be
	// delivered after a rejection.
	submitterID := m.resolveSubmitter(kind, target)

	switch action {
	case "approve":
		if err := m.applyApprove(kind, target); err != nil {
			_ = m.answerCallback(ctx, query.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil), true)
			return err
		}
		m.markProcessed(query.Data)
		_ = m.answerCallback(ctx, query.ID, locales.GetMessage(localizer, "MsgCallbackApproved", nil, nil), false)
		m.stampReviewMessage(ctx, query, locales.GetMessage(localizer, "MsgReviewApprovedSuffix", nil, nil))
		m.notifySubmitter(ctx, submitterID, "MsgSubmissionApproved")
	case "reject":
		affected, err := m.applyReject(kind, target)
		if err != nil {
			_ = m.answerCallback(ctx, query.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil), true)
			return err
		}
		m.markProcessed(query.Data)
		_ = m.answerCallback(ctx, query.ID, locales.GetMessage(localizer, "MsgCallbackRejected", nil, nil), false)
		m.stampReviewMessage(ctx, query, locales.GetMessage(localizer, "MsgReviewRejectedSuffix", nil, nil))
		if affected > 0 {
			m.notifySubmitter(ctx, submitterID, "MsgSubmissionRejected")
		}
	default:
		log.Printf("[Callback] Unknown action: %s", action)
		_ = m.answerCallback(ctx, query.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil), true)
		return fmt.Errorf("unknown review action: %s", action)
	}
	return nil
}

// applyApprove flips every row matching the target to approved. Repeating the
// flip is idempotent by nature of being set-based.
func (m *Manager) applyApprove(kind, target string) error {
	switch kind {
	case "p":
		id, err := strconv.ParseInt(target, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid post id in callback: %w", err)
		}
		_, err = m.posts.ApprovePost(id)
		return err
	case "g":
		_, err := m.posts.ApproveGroup(target)
		return err
	}
	return fmt.Errorf("unknown callback target kind: %s", kind)
}

// applyReject hard-deletes every row matching the target plus dependents. A
// reject on an already-deleted target affects zero rows and stays silent.
func (m *Manager) applyReject(kind, target string) (int64, error) {
	switch kind {
	case "p":
		id, err := strconv.ParseInt(target, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid post id in callback: %w", err)
		}
		return m.posts.DeletePost(id)
	case "g":
		return m.posts.DeleteGroup(target)
	}
	return 0, fmt.Errorf("unknown callback target kind: %s", kind)
}

func (m *Manager) resolveSubmitter(kind, target string) *int64 {
	var post *storage.Post
	switch kind {
	case "p":
		if id, err := strconv.ParseInt(target, 10, 64); err == nil {
			post, _ = m.posts.Get(id)
		}
	case "g":
		if album, err := m.posts.Album(target); err == nil && len(album) > 0 {
			post = &album[0]
		}
	}
	if post == nil {
		return nil
	}
	return post.SubmitterID
}

// notifySubmitter sends the review outcome to the submitting identity.
// Failures are swallowed.
func (m *Manager) notifySubmitter(ctx context.Context, submitterID *int64, msgID string) {
	if submitterID == nil {
		return
	}
	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
	text := locales.GetMessage(localizer, msgID, nil, nil)

	m.limiter.Take()
	if _, err := m.bot.SendMessage(ctx, tu.Message(tu.ID(*submitterID), text)); err != nil {
		log.Printf("[Moderation User:%d] Failed to notify submitter: %v", *submitterID, err)
	}
}

// stampReviewMessage appends the outcome to the review message caption so the
// admin chat keeps a visible record. Best effort.
func (m *Manager) stampReviewMessage(ctx context.Context, query telego.CallbackQuery, suffix string) {
	msg, ok := query.Message.(*telego.Message)
	if !ok || msg == nil {
		return
	}
	if msg.Caption != "" {
		_, err := m.bot.EditMessageCaption(ctx, &telego.EditMessageCaptionParams{
			ChatID:    tu.ID(msg.Chat.ID),
			MessageID: msg.MessageID,
			Caption:   msg.Caption + suffix,
		})
		if err != nil {
			log.Printf("[Moderation Msg:%d] Failed to stamp review caption: %v", msg.MessageID, err)
		}
		return
	}
	// Text-only review message: send the outcome as a reply instead.
	m.limiter.Take()
	if _, err := m.bot.SendMessage(ctx, tu.Message(tu.ID(msg.Chat.ID), strings.TrimSpace(suffix))); err != nil {
		log.Printf("[Moderation Msg:%d] Failed to send review outcome: %v", msg.MessageID, err)
	}
}

func (m *Manager) answerCallback(ctx context.Context, queryID, text string, showAlert bool) error {
	err := m.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: queryID,
		Text:            text,
		ShowAlert:       showAlert,
	})
	if err != nil {
		log.Printf("[Callback:%s] Failed to answer callback query: %v", queryID, err)
	}
	return err
}

func (m *Manager) alreadyProcessed(token string) bool {
	m.muSeen.Lock()
	defer m.muSeen.Unlock()
	cutoff := time.Now().Add(-seenTokenTTL)
	for t, at := range m.seenTokens {
		if at.Before(cutoff) {
			delete(m.seenTokens, t)
		}
	}
	_, seen := m.seenTokens[token]
	return seen
}

func (m *Manager) markProcessed(token string) {
	m.muSeen.Lock()
	defer m.muSeen.Unlock()
	m.seenTokens[token] = time.Now()
}
