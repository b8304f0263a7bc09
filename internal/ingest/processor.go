package ingest

import (
	"context"
	"fmt"
	"log"

	"github.com/mymmrac/telego"

	"tgallery/internal/media"
	"tgallery/internal/storage"
)

// ReviewNotifier receives ingestion outcomes that need messaging side
// effects: a pending submission to announce to reviewers, or a confirmation
// to the submitter. Implemented by the moderation manager.
type ReviewNotifier interface {
	NotifyReview(ctx context.Context, post *storage.Post, msg *telego.Message)
	ConfirmReceived(ctx context.Context, msg *telego.Message)
}

// MediaFetcher caches message attachments locally. Implemented by
// media.Fetcher.
type MediaFetcher interface {
	Fetch(ctx context.Context, msg *telego.Message) *media.Result
}

// Processor is the post upsert engine. It turns decoded ingestion events into
// row writes: dedup by (external message id, origin identity), album
// aggregation by grouping id, blacklist gating and moderation routing.
type Processor struct {
	posts     storage.PostRepository
	blacklist storage.BlacklistRepository
	fetcher   MediaFetcher
	notifier  ReviewNotifier
	channelID int64
}

// NewProcessor wires the upsert engine. Every dependency is required.
func NewProcessor(
	posts storage.PostRepository,
	blacklist storage.BlacklistRepository,
	fetcher MediaFetcher,
	notifier ReviewNotifier,
	channelID int64,
) (*Processor, error) {
	if posts == nil || blacklist == nil || fetcher == nil || notifier == nil {
		return nil, fmt.Errorf("processor dependencies cannot be nil")
	}
	if channelID == 0 {
		return nil, fmt.Errorf("channel ID cannot be zero")
	}
	return &Processor{
		posts:     posts,
		blacklist: blacklist,
		fetcher:   fetcher,
		notifier:  notifier,
		channelID: channelID,
	}, nil
}

// ProcessChannelPost ingests an official channel post. Channel origin is
// auto-approved and never notifies reviewers.
func (p *Processor) ProcessChannelPost(ctx context.Context, msg telego.Message) error {
	_, _, err := p.ingest(ctx, &msg, nil)
	return err
}

// ProcessSubmission ingests a user-submitted post. Blocked identities are
// silently dropped. The first message of an album triggers exactly one
// moderation notification; later parts only add rows.
func (p *Processor) ProcessSubmission(ctx context.Context, msg telego.Message) error {
	if msg.From == nil {
		return fmt.Errorf("submission without sender")
	}
	userID := msg.From.ID

	blocked, err := p.blacklist.IsBlocked(userID)
	if err != nil {
		log.Printf("[Ingest User:%d] Blacklist check failed: %v", userID, err)
		return err
	}
	if blocked {
		log.Printf("[Ingest User:%d] Submission dropped: blacklisted", userID)
		return nil
	}

	if msg.Text == "" && msg.Caption == "" && len(msg.Photo) == 0 && msg.Video == nil {
		log.Printf("[Ingest User:%d] Submission dropped: no usable content", userID)
		return nil
	}

	post, knownGroup, err := p.ingest(ctx, &msg, &userID)
	if err != nil {
		return err
	}
	if knownGroup {
		// Additional image of an already-known album: no second notification.
		return nil
	}
	p.notifier.NotifyReview(ctx, post, &msg)
	p.notifier.ConfirmReceived(ctx, &msg)
	return nil
}

// ProcessEdit applies an edited-message event. The stored row is located
// strictly by external message id; approval state and counters are untouched.
// Editing a message that was never stored is a no-op.
func (p *Processor) ProcessEdit(ctx context.Context, msg telego.Message) error {
	content := messageContent(&msg)

	var filePath, fileType, thumbPath string
	if res := p.fetcher.Fetch(ctx, &msg); res != nil {
		filePath, fileType, thumbPath = res.FilePath, res.FileType, res.ThumbPath
	}

	affected, err := p.posts.UpdateByMessage(msg.MessageID, msg.Chat.ID,
		content, TagString(content), filePath, fileType, thumbPath)
	if err != nil {
		return fmt.Errorf("failed to apply edit for message %d: %w", msg.MessageID, err)
	}
	if affected == 0 {
		log.Printf("[Ingest Msg:%d] Edit for unknown message, ignoring", msg.MessageID)
	}
	return nil
}

// ingest writes one row. submitterID nil means official channel origin
// (auto-approved); non-nil means pending user submission. knownGroup reports
// whether the row joined an album that already had rows.
func (p *Processor) ingest(ctx context.Context, msg *telego.Message, submitterID *int64) (post *storage.Post, knownGroup bool, err error) {
	var groupID *string
	if msg.MediaGroupID != "" {
		gid := msg.MediaGroupID
		groupID = &gid
		knownGroup, err = p.posts.GroupExists(gid)
		if err != nil {
			return nil, false, err
		}
	}

	content := messageContent(msg)

	var filePath, fileType, thumbPath string
	if res := p.fetcher.Fetch(ctx, msg); res != nil {
		filePath, fileType, thumbPath = res.FilePath, res.FileType, res.ThumbPath
	}

	post = &storage.Post{
		TgMsgID:      msg.MessageID,
		ChatID:       msg.Chat.ID,
		MediaGroupID: groupID,
		Content:      content,
		Tags:         TagString(content),
		FilePath:     filePath,
		FileType:     fileType,
		ThumbPath:    thumbPath,
		IsApproved:   submitterID == nil,
		SubmitterID:  submitterID,
	}
	if _, err := p.posts.Upsert(post); err != nil {
		return nil, false, err
	}
	log.Printf("[Ingest Msg:%d Chat:%d] Stored post %d (approved=%t, group=%v)",
		msg.MessageID, msg.Chat.ID, post.ID, post.IsApproved, msg.MediaGroupID != "")
	return post, knownGroup, nil
}

func messageContent(msg *telego.Message) string {
	if msg.Caption != "" {
		return msg.Caption
	}
	return msg.Text
}
