package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"storebot/internal/models"
	"storebot/internal/util"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// StockLister returns every product with its available count
type StockLister interface {
	Overview(ctx context.Context) ([]models.ProductStock, error)
}

type boardSession interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Board keeps the stock overview message of the live stock channel current
type Board struct {
	session   boardSession
	stock     StockLister
	channelID string
	botUserID func() string
	now       func() time.Time
	logger    *zap.Logger

	mu        sync.Mutex
	messageID string
}

// NewBoard creates a stock board for channelID. botUserID identifies the
// bot's own messages so that an existing board is reused after a restart.
func NewBoard(session boardSession, stock StockLister, channelID string, botUserID func() string) *Board {
	return &Board{
		session:   session,
		stock:     stock,
		channelID: channelID,
		botUserID: botUserID,
		now:       time.Now,
		logger:    util.Named("board"),
	}
}

// Refresh re-renders the board, creating the message when it is missing
func (b *Board) Refresh(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "Board.Refresh")
	defer span.End()

	products, err := b.stock.Overview(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stock overview: %w", err)
	}
	embed := stockBoardEmbed(products, b.now())

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.messageID == "" {
		b.messageID = b.findExisting(ctx)
	}

	if b.messageID != "" {
		embeds := []*discordgo.MessageEmbed{embed}
		components := shopButtons()
		_, err := b.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
			ID:         b.messageID,
			Channel:    b.channelID,
			Embeds:     &embeds,
			Components: &components,
		}, discordgo.WithContext(ctx))
		if err == nil {
			return nil
		}
		if !isNotFound(err) {
			return fmt.Errorf("failed to edit stock board: %w", err)
		}
		b.logger.Warn("Stock board message gone, recreating", zap.String("message_id", b.messageID))
		b.messageID = ""
	}

	msg, err := b.session.ChannelMessageSendComplex(b.channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: shopButtons(),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send stock board: %w", err)
	}
	b.messageID = msg.ID
	b.logger.Info("Stock board created", zap.String("channel_id", b.channelID), zap.String("message_id", msg.ID))
	return nil
}

// findExisting returns the newest board message the bot already posted
func (b *Board) findExisting(ctx context.Context) string {
	if b.botUserID == nil {
		return ""
	}
	selfID := b.botUserID()
	if selfID == "" {
		return ""
	}

	msgs, err := b.session.ChannelMessages(b.channelID, 50, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		b.logger.Warn("Failed to scan stock channel", zap.Error(err))
		return ""
	}
	for _, m := range msgs {
		if m.Author != nil && m.Author.ID == selfID && len(m.Embeds) > 0 && m.Embeds[0].Title == stockBoardTitle {
			return m.ID
		}
	}
	return ""
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}
