package ingest

import (
	"context"
	"fmt"
	"log"

	"github.com/mymmrac/telego"
)

// Moderator handles the update kinds that belong to the moderation workflow.
// Implemented by the moderation manager.
type Moderator interface {
	HandleCallback(ctx context.Context, query telego.CallbackQuery) error
	HandleCommand(ctx context.Context, msg telego.Message, command, args string) error
}

// Dispatcher routes decoded webhook updates to the processor or the moderator.
type Dispatcher struct {
	processor *Processor
	moderator Moderator
	channelID int64
}

// NewDispatcher wires the update router.
func NewDispatcher(processor *Processor, moderator Moderator, channelID int64) (*Dispatcher, error) {
	if processor == nil || moderator == nil {
		return nil, fmt.Errorf("dispatcher dependencies cannot be nil")
	}
	if channelID == 0 {
		return nil, fmt.Errorf("channel ID cannot be zero")
	}
	return &Dispatcher{processor: processor, moderator: moderator, channelID: channelID}, nil
}

// Dispatch decodes one update and runs the matching pipeline stage.
func (d *Dispatcher) Dispatch(ctx context.Context, update telego.Update) error {
	switch ev := DecodeUpdate(update, d.channelID).(type) {
	case ChannelPost:
		return d.processor.ProcessChannelPost(ctx, ev.Message)
	case UserSubmission:
		return d.processor.ProcessSubmission(ctx, ev.Message)
	case EditedMessage:
		return d.processor.ProcessEdit(ctx, ev.Message)
	case ModerationCallback:
		return d.moderator.HandleCallback(ctx, ev.Query)
	case AdminCommand:
		return d.moderator.HandleCommand(ctx, ev.Message, ev.Command, ev.Args)
	case Ignored:
		log.Printf("[Dispatch] Update %d ignored: %s", update.UpdateID, ev.Reason)
		return nil
	}
	return nil
}
