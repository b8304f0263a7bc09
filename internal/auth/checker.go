package auth

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mymmrac/telego"

	"tgallery/pkg/telegoapi"
)

// AdminCheckerInterface is implemented by AdminChecker and by test mocks.
type AdminCheckerInterface interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// AdminChecker checks user admin status against the origin channel. Only
// channel administrators may act on moderation callbacks and bot commands.
type AdminChecker struct {
	bot             telegoapi.BotAPI
	targetChannelID int64
}

// NewAdminChecker creates an AdminChecker.
// It requires a non-nil bot instance and a non-zero target channel ID.
func NewAdminChecker(bot telegoapi.BotAPI, channelID int64) (*AdminChecker, error) {
	if bot == nil {
		return nil, fmt.Errorf("bot instance cannot be nil")
	}
	if channelID == 0 {
		return nil, fmt.Errorf("target channel ID cannot be zero")
	}
	return &AdminChecker{
		bot:             bot,
		targetChannelID: channelID,
	}, nil
}

// IsAdmin reports whether the user is an administrator or the creator of the
// target channel.
func (ac *AdminChecker) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	member, err := ac.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: telego.ChatID{ID: ac.targetChannelID},
		UserID: userID,
	})
	if err != nil {
		// A user not found in the channel is simply not an admin.
		// API errors (network, permissions) should be returned.
		if strings.Contains(strings.ToLower(err.Error()), "user not found") {
			return false, nil
		}
		log.Printf("[AdminCheck User:%d Channel:%d] Error checking chat member: %v. Assuming non-admin.", userID, ac.targetChannelID, err)
		return false, fmt.Errorf("failed to get chat member info: %w", err)
	}

	status := member.MemberStatus()
	return status == telego.MemberStatusCreator || status == telego.MemberStatusAdministrator, nil
}
