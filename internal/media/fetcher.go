package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/mymmrac/telego"
	"go.uber.org/zap"

	"tgallery/pkg/telegoapi"
)

const (
	downloadTimeout  = 30 * time.Second
	thumbnailTimeout = 20 * time.Second
	copyChunkSize    = 256 << 10
	thumbnailWidth   = 480
)

// Result holds the locally servable names of a fetched attachment. Paths are
// file names relative to the upload directory.
type Result struct {
	FilePath  string
	FileType  string
	ThumbPath string
}

// Fetcher downloads message attachments into a local cache keyed by the
// remote file's unique id. Downloads are at-most-once per unique id.
type Fetcher struct {
	bot       telegoapi.BotAPI
	client    *http.Client
	uploadDir string
	ffmpeg    string
	logger    *zap.Logger
}

// NewFetcher creates a Fetcher writing into uploadDir, creating it if needed.
func NewFetcher(bot telegoapi.BotAPI, uploadDir string, logger *zap.Logger) (*Fetcher, error) {
	if bot == nil {
		return nil, fmt.Errorf("bot instance cannot be nil")
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Fetcher{
		bot:       bot,
		client:    &http.Client{Timeout: downloadTimeout},
		uploadDir: uploadDir,
		ffmpeg:    "ffmpeg",
		logger:    logger,
	}, nil
}

// Fetch resolves the primary attachment of a message (largest photo variant or
// the video), downloads it into the cache and, for videos, derives a
// still-frame thumbnail. Any network or decode failure is logged and yields a
// nil result so ingestion can continue without media.
func (f *Fetcher) Fetch(ctx context.Context, msg *telego.Message) *Result {
	fileID, uniqueID, fileType := pickAttachment(msg)
	if fileID == "" {
		return nil
	}

	ext := ".jpg"
	if fileType == "video" {
		ext = ".mp4"
	}
	filename := uniqueID + ext
	localPath := filepath.Join(f.uploadDir, filename)

	if _, err := os.Stat(localPath); os.IsNotExist(err) {
		if err := f.download(ctx, fileID, localPath); err != nil {
			f.logger.Warn("Media download failed",
				zap.String("file_id", fileID), zap.Error(err))
			return nil
		}
	}

	res := &Result{FilePath: filename, FileType: fileType}
	if fileType == "video" {
		res.ThumbPath = f.thumbnail(ctx, localPath, uniqueID)
	}
	return res
}

// pickAttachment returns the remote file id, unique id and inferred type of
// the message's primary attachment, or empty strings for text-only messages.
func pickAttachment(msg *telego.Message) (fileID, uniqueID, fileType string) {
	if len(msg.Photo) > 0 {
		best := msg.Photo[0]
		for _, p := range msg.Photo {
			if p.FileSize > best.FileSize {
				best = p
			}
		}
		return best.FileID, best.FileUniqueID, "image"
	}
	if msg.Video != nil {
		return msg.Video.FileID, msg.Video.FileUniqueID, "video"
	}
	return "", "", ""
}

// download resolves the temporary provider URL and streams the bytes to disk
// in fixed-size chunks. The file is written to a temp name first so a partial
// download is never mistaken for a cached entry.
func (f *Fetcher) download(ctx context.Context, fileID, localPath string) error {
	file, err := f.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return fmt.Errorf("failed to resolve file: %w", err)
	}

	url := f.bot.FileDownloadURL(file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected download status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(f.uploadDir, ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	buf := make([]byte, copyChunkSize)
	if _, err := io.CopyBuffer(tmp, resp.Body, buf); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), localPath)
}

// thumbnail extracts a still frame from a downloaded video: first at the
// 1-second mark, falling back to the first frame. Returns the thumbnail file
// name or "" when no frame could be decoded (non-fatal).
func (f *Fetcher) thumbnail(ctx context.Context, videoPath, uniqueID string) string {
	thumbName := "thumb_" + uniqueID + ".jpg"
	thumbPath := filepath.Join(f.uploadDir, thumbName)
	if _, err := os.Stat(thumbPath); err == nil {
		return thumbName
	}

	scale := fmt.Sprintf("scale=%d:-2", thumbnailWidth)
	attempts := [][]string{
		{"-y", "-ss", "1", "-i", videoPath, "-frames:v", "1", "-vf", scale, thumbPath},
		{"-y", "-i", videoPath, "-frames:v", "1", "-vf", scale, thumbPath},
	}
	for _, args := range attempts {
		cmdCtx, cancel := context.WithTimeout(ctx, thumbnailTimeout)
		err := exec.CommandContext(cmdCtx, f.ffmpeg, args...).Run()
		cancel()
		if err == nil {
			if _, statErr := os.Stat(thumbPath); statErr == nil {
				return thumbName
			}
			continue
		}
		f.logger.Debug("Thumbnail attempt failed",
			zap.String("video", videoPath), zap.Error(err))
	}
	f.logger.Warn("No thumbnail produced", zap.String("video", videoPath))
	return ""
}
