package bot

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"storebot/internal/service"

	"github.com/bwmarrin/discordgo"
	"github.com/go-resty/resty/v2"
)

// Downloader fetches stock files uploaded as command attachments
type Downloader struct {
	client  *resty.Client
	maxSize int
}

// NewDownloader creates a downloader that rejects files above maxSize bytes
func NewDownloader(maxSize int, timeout time.Duration) *Downloader {
	return &Downloader{
		client:  resty.New().SetTimeout(timeout).SetRetryCount(2),
		maxSize: maxSize,
	}
}

// FetchText downloads a .txt attachment
func (d *Downloader) FetchText(ctx context.Context, att *discordgo.MessageAttachment) ([]byte, error) {
	if !strings.EqualFold(path.Ext(att.Filename), ".txt") {
		return nil, fmt.Errorf("%w: %s", errInvalidFileFormat, att.Filename)
	}
	if att.Size > d.maxSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", service.ErrFileTooLarge, att.Size, d.maxSize)
	}

	resp, err := d.client.R().SetContext(ctx).Get(att.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download attachment: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to download attachment: status %d", resp.StatusCode())
	}

	body := resp.Body()
	if len(body) > d.maxSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", service.ErrFileTooLarge, len(body), d.maxSize)
	}
	return body, nil
}
