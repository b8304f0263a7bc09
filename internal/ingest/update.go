package ingest

import (
	"regexp"
	"strings"

	"github.com/mymmrac/telego"
)

// Event is the decoded form of an inbound webhook update. Decoding happens
// once at ingress; downstream code dispatches on the concrete type instead of
// re-probing loosely typed payload fields.
type Event interface {
	isEvent()
}

// ChannelPost is a new post published in the origin channel. Auto-approved.
type ChannelPost struct {
	Message telego.Message
}

// UserSubmission is a message sent to the bot by a regular user. Starts
// pending and goes through moderation.
type UserSubmission struct {
	Message telego.Message
}

// EditedMessage is an edit of an already-delivered message, matched to the
// stored row strictly by external message id.
type EditedMessage struct {
	Message telego.Message
}

// ModerationCallback is an inline-keyboard decision from a reviewer.
type ModerationCallback struct {
	Query telego.CallbackQuery
}

// AdminCommand is a slash command sent to the bot.
type AdminCommand struct {
	Message telego.Message
	Command string
	Args    string
}

// Ignored is anything the pipeline has no use for.
type Ignored struct {
	Reason string
}

func (ChannelPost) isEvent()        {}
func (UserSubmission) isEvent()     {}
func (EditedMessage) isEvent()      {}
func (ModerationCallback) isEvent() {}
func (AdminCommand) isEvent()       {}
func (Ignored) isEvent()            {}

// ReviewCallbackPrefix marks callback data produced by the moderation review
// keyboard.
const ReviewCallbackPrefix = "review:"

// DecodeUpdate classifies a raw update. channelID is the origin channel whose
// posts are mirrored; posts from any other channel are ignored.
func DecodeUpdate(update telego.Update, channelID int64) Event {
	switch {
	case update.CallbackQuery != nil:
		if strings.HasPrefix(update.CallbackQuery.Data, ReviewCallbackPrefix) {
			return ModerationCallback{Query: *update.CallbackQuery}
		}
		return Ignored{Reason: "unknown callback"}

	case update.ChannelPost != nil:
		if update.ChannelPost.Chat.ID != channelID {
			return Ignored{Reason: "foreign channel"}
		}
		return ChannelPost{Message: *update.ChannelPost}

	case update.EditedChannelPost != nil:
		if update.EditedChannelPost.Chat.ID != channelID {
			return Ignored{Reason: "foreign channel"}
		}
		return EditedMessage{Message: *update.EditedChannelPost}

	case update.EditedMessage != nil:
		return EditedMessage{Message: *update.EditedMessage}

	case update.Message != nil:
		msg := *update.Message
		if cmd, args, ok := parseCommand(msg.Text); ok {
			return AdminCommand{Message: msg, Command: cmd, Args: args}
		}
		if msg.From == nil {
			return Ignored{Reason: "message without sender"}
		}
		return UserSubmission{Message: msg}
	}
	return Ignored{Reason: "unsupported update type"}
}

// parseCommand splits "/cmd@bot arg arg" into ("cmd", "arg arg", true).
func parseCommand(text string) (cmd, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	fields := strings.SplitN(text, " ", 2)
	cmd = strings.TrimPrefix(fields[0], "/")
	if at := strings.Index(cmd, "@"); at >= 0 {
		cmd = cmd[:at]
	}
	if cmd == "" {
		return "", "", false
	}
	if len(fields) == 2 {
		args = strings.TrimSpace(fields[1])
	}
	return cmd, args, true
}

var hashtagRe = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// ExtractHashtags returns the hashtag words (without '#') found in text, in
// order of appearance, without duplicates.
func ExtractHashtags(text string) []string {
	matches := hashtagRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		tags = append(tags, m[1])
	}
	return tags
}

// TagString is the comma-joined storage form of extracted hashtags.
func TagString(text string) string {
	return strings.Join(ExtractHashtags(text), ",")
}
