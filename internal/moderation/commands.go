package moderation

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nicksnyder/go-i18n/v2/i18n"

	"tgallery/internal/locales"
	"tgallery/internal/storage"
)

// HandleCommand dispatches a slash command. /start and /help are open to
// everyone; everything else requires channel-admin status.
func (m *Manager) HandleCommand(ctx context.Context, msg telego.Message, command, args string) error {
	lang := locales.GetDefaultLanguageTag().String()
	if msg.From != nil && msg.From.LanguageCode != "" {
		lang = msg.From.LanguageCode
	}
	localizer := locales.NewLocalizer(lang)

	switch command {
	case "start":
		return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgStart", nil, nil))
	case "help":
		return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgHelp", nil, nil))
	}

	if msg.From == nil {
		return nil
	}
	isAdmin, err := m.adminChecker.IsAdmin(ctx, msg.From.ID)
	if err != nil {
		log.Printf("[Cmd:%s User:%d] Admin check failed: %v", command, msg.From.ID, err)
		return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil))
	}
	if !isAdmin {
		log.Printf("[Cmd:%s User:%d] Non-admin attempted admin command", command, msg.From.ID)
		return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgErrorRequiresAdmin", nil, nil))
	}

	switch command {
	case "notice":
		return m.handleNotice(ctx, msg, args, localizer)
	case "annotate":
		return m.handleAnnotate(ctx, msg, args, localizer)
	case "delete":
		return m.handleDelete(ctx, msg, args, localizer)
	case "block":
		return m.handleBlock(ctx, msg, args, localizer)
	case "resync":
		return m.handleResync(ctx, msg, args, localizer)
	}
	log.Printf("[Cmd:%s User:%d] Unknown command ignored", command, msg.From.ID)
	return nil
}

// handleNotice updates the global notice banner shown on the gallery.
func (m *Manager) handleNotice(ctx context.Context, msg telego.Message, args string, localizer *i18n.Localizer) error {
	if err := m.settings.Set(storage.NoticeKey, args); err != nil {
		log.Printf("[Cmd:notice] Failed to update notice: %v", err)
		return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil))
	}
	return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgNoticeUpdated", nil, nil))
}

// handleAnnotate sets a free-text admin annotation on one post:
// /annotate <post_id> <text>
func (m *Manager) handleAnnotate(ctx context.Context, msg telego.Message, args string, localizer *i18n.Localizer) error {
	fields := strings.SplitN(args, " ", 2)
	if len(fields) != 2 {
		return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil))
	}
	postID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil))
	}
	if _, err := m.posts.SetAdminNote(postID, strings.TrimSpace(fields[1])); err != nil {
		log.Printf("[Cmd:annotate Post:%d] Failed to set annotation: %v", postID, err)
		return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil))
	}
	return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgAnnotationSet",
		map[string]interface{}{"PostID": postID}, nil))
}

// handleDelete hard-deletes a post, its dependents and (best effort) its
// origin channel message: /delete <post_id>
func (m *Manager) handleDelete(ctx context.Context, msg telego.Message, args string, localizer *i18n.Localizer) error {
	postID, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil))
	}

	post, err := m.posts.Get(postID)
	if err != nil {
		log.Printf("[Cmd:delete Post:%d] Lookup failed: %v", postID, err)
		return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil))
	}
	if post == nil {
		return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil))
	}

	if _, err := m.posts.DeletePost(postID); err != nil {
		log.Printf("[Cmd:delete Post:%d] Delete failed: %v", postID, err)
		return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil))
	}
	if post.ChatID == m.channelID {
		err := m.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
			ChatID:    tu.ID(m.channelID),
			MessageID: post.TgMsgID,
		})
		if err != nil {
			log.Printf("[Cmd:delete Post:%d] Failed to delete channel message %d: %v", postID, post.TgMsgID, err)
		}
	}
	return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgPostDeleted",
		map[string]interface{}{"PostID": postID}, nil))
}

// handleBlock blacklists a submitter identity: /block <user_id>
// Blocking does not retroactively hide already-approved content.
func (m *Manager) handleBlock(ctx context.Context, msg telego.Message, args string, localizer *i18n.Localizer) error {
	userID, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil))
	}
	if err := m.blacklist.Block(userID, "blocked via admin command"); err != nil {
		log.Printf("[Cmd:block User:%d] Block failed: %v", userID, err)
		return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil))
	}
	return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgUserBlocked",
		map[string]interface{}{"UserID": userID}, nil))
}

// handleResync re-fetches recent origin-channel messages and upserts them:
// /resync [n]. The Bot API has no history call, so each candidate message id
// is probed with a silent forward into the admin chat; the returned content
// is re-ingested and the probe message removed.
func (m *Manager) handleResync(ctx context.Context, msg telego.Message, args string, localizer *i18n.Localizer) error {
	if m.ingestor == nil {
		return fmt.Errorf("resync ingestor is not wired")
	}

	pageSize := m.resyncPageSize
	if args != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(args)); err == nil && n > 0 {
			pageSize = n
		}
	}
	if pageSize > 200 {
		pageSize = 200
	}

	_ = m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgResyncStarted",
		map[string]interface{}{"Count": pageSize}, nil))

	synced, skipped := m.resync(ctx, pageSize)

	return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgResyncFinished",
		map[string]interface{}{"Synced": synced, "Skipped": skipped}, nil))
}

// resync walks a window of message ids around the newest known one: pageSize
// ids above it (messages missed while the webhook was down) and pageSize
// below (edits to already-stored ones).
func (m *Manager) resync(ctx context.Context, pageSize int) (synced, skipped int) {
	latest, err := m.posts.LatestMessageID(m.channelID)
	if err != nil {
		log.Printf("[Resync] Failed to read latest message id: %v", err)
		return 0, 0
	}
	if latest == 0 {
		latest = pageSize
	}

	for id := latest + pageSize; id > latest-pageSize && id > 0; id-- {
		original, ok := m.probeMessage(ctx, id)
		if !ok {
			skipped++
			continue
		}
		if err := m.ingestor.ProcessChannelPost(ctx, *original); err != nil {
			log.Printf("[Resync Msg:%d] Re-ingest failed: %v", id, err)
			skipped++
			continue
		}
		synced++
	}
	log.Printf("[Resync] Finished: %d synced, %d skipped", synced, skipped)
	return synced, skipped
}

// probeMessage forwards one channel message into the admin chat to read its
// content, then deletes the probe. Returns a message shaped as the original
// channel post (original chat and message id restored from the forward
// origin).
func (m *Manager) probeMessage(ctx context.Context, messageID int) (*telego.Message, bool) {
	m.limiter.Take()
	fwd, err := m.bot.ForwardMessage(ctx, &telego.ForwardMessageParams{
		ChatID:              tu.ID(m.adminChatID),
		FromChatID:          tu.ID(m.channelID),
		MessageID:           messageID,
		DisableNotification: true,
	})
	if err != nil {
		return nil, false
	}

	defer func() {
		delErr := m.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
			ChatID:    tu.ID(m.adminChatID),
			MessageID: fwd.MessageID,
		})
		if delErr != nil {
			log.Printf("[Resync Msg:%d] Failed to delete probe message: %v", messageID, delErr)
		}
	}()

	original := *fwd
	original.MessageID = messageID
	original.Chat = telego.Chat{ID: m.channelID, Type: telego.ChatTypeChannel}
	original.MediaGroupID = "" // forwards lose grouping; treat as single rows
	return &original, true
}

func (m *Manager) reply(ctx context.Context, chatID int64, text string) error {
	m.limiter.Take()
	_, err := m.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	if err != nil {
		log.Printf("[Moderation Chat:%d] Failed to send reply: %v", chatID, err)
	}
	return err
}
