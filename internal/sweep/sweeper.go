// Package sweep reconciles the local mirror with the origin channel: posts
// whose channel message has vanished are removed locally.
package sweep

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"tgallery/internal/storage"
	"tgallery/pkg/telegoapi"
)

// Sweeper probes every stored origin message with a silent forward into the
// admin chat. The Bot API has no existence check, so a failed forward with the
// provider's "not found" error is the signal that the origin message is gone.
type Sweeper struct {
	bot         telegoapi.BotAPI
	posts       storage.PostRepository
	channelID   int64
	adminChatID int64
	limiter     ratelimit.Limiter
	logger      *zap.Logger
}

// NewSweeper wires the sweeper. Every dependency is required.
func NewSweeper(bot telegoapi.BotAPI, posts storage.PostRepository, channelID, adminChatID int64, logger *zap.Logger) (*Sweeper, error) {
	if bot == nil || posts == nil || logger == nil {
		return nil, fmt.Errorf("sweeper dependencies cannot be nil")
	}
	if channelID == 0 || adminChatID == 0 {
		return nil, fmt.Errorf("sweeper chat IDs cannot be zero")
	}
	return &Sweeper{
		bot:         bot,
		posts:       posts,
		channelID:   channelID,
		adminChatID: adminChatID,
		limiter:     ratelimit.New(20),
		logger:      logger,
	}, nil
}

// Run performs one full sweep over the stored origin message ids. Probe
// failures other than "not found" are skipped; only a definite "not found"
// removes local rows. Returns how many messages were removed.
func (s *Sweeper) Run(ctx context.Context) (removed int, err error) {
	ids, err := s.posts.ChannelMessageIDs(s.channelID)
	if err != nil {
		return 0, fmt.Errorf("failed to list origin message ids: %w", err)
	}
	s.logger.Info("Origin sweep started", zap.Int("candidates", len(ids)))

	for _, id := range ids {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		switch s.probe(ctx, id) {
		case probeVanished:
			affected, delErr := s.posts.DeleteByMessage(id, s.channelID)
			if delErr != nil {
				s.logger.Error("Failed to remove vanished post",
					zap.Int("message_id", id), zap.Error(delErr))
				continue
			}
			s.logger.Info("Removed vanished origin message",
				zap.Int("message_id", id), zap.Int64("rows", affected))
			removed++
		case probeAlive, probeUnknown:
		}
	}

	s.logger.Info("Origin sweep finished", zap.Int("removed", removed))
	return removed, nil
}

type probeResult int

const (
	probeAlive probeResult = iota
	probeVanished
	probeUnknown
)

func (s *Sweeper) probe(ctx context.Context, messageID int) probeResult {
	s.limiter.Take()
	fwd, err := s.bot.ForwardMessage(ctx, &telego.ForwardMessageParams{
		ChatID:              tu.ID(s.adminChatID),
		FromChatID:          tu.ID(s.channelID),
		MessageID:           messageID,
		DisableNotification: true,
	})
	if err != nil {
		if isMessageGone(err) {
			return probeVanished
		}
		s.logger.Warn("Probe failed, keeping post",
			zap.Int("message_id", messageID), zap.Error(err))
		return probeUnknown
	}

	delErr := s.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    tu.ID(s.adminChatID),
		MessageID: fwd.MessageID,
	})
	if delErr != nil {
		s.logger.Warn("Failed to delete probe message",
			zap.Int("message_id", messageID), zap.Error(delErr))
	}
	return probeAlive
}

// isMessageGone matches the provider errors returned when the forwarded
// message no longer exists.
func isMessageGone(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "message to forward not found") ||
		strings.Contains(msg, "message not found") ||
		strings.Contains(msg, "message_id_invalid")
}
