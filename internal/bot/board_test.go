package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"storebot/internal/models"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBoardSession struct {
	history []*discordgo.Message
	sent    []*discordgo.MessageSend
	edits   []*discordgo.MessageEdit
	editErr error
	nextID  int
}

func (f *fakeBoardSession) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	return f.history, nil
}

func (f *fakeBoardSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, data)
	f.nextID++
	return &discordgo.Message{ID: fmt.Sprintf("m%d", f.nextID), ChannelID: channelID}, nil
}

func (f *fakeBoardSession) ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.edits = append(f.edits, m)
	if f.editErr != nil {
		err := f.editErr
		f.editErr = nil
		return nil, err
	}
	return &discordgo.Message{ID: m.ID}, nil
}

type staticStock struct {
	products []models.ProductStock
	err      error
}

func (s *staticStock) Overview(ctx context.Context) ([]models.ProductStock, error) {
	return s.products, s.err
}

func testProducts() []models.ProductStock {
	return []models.ProductStock{
		{Product: models.Product{Code: "DL1", Name: "Diamond Lock", Price: 100}, Available: 3},
	}
}

func TestBoardCreatesThenEdits(t *testing.T) {
	session := &fakeBoardSession{}
	board := NewBoard(session, &staticStock{products: testProducts()}, "c1", func() string { return "bot" })
	board.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	ctx := context.Background()

	require.NoError(t, board.Refresh(ctx))
	require.Len(t, session.sent, 1)
	require.Len(t, session.sent[0].Embeds, 1)
	assert.Equal(t, stockBoardTitle, session.sent[0].Embeds[0].Title)
	assert.Contains(t, session.sent[0].Embeds[0].Fields[0].Value, "📦 Stock: `3`")
	assert.NotEmpty(t, session.sent[0].Components)

	require.NoError(t, board.Refresh(ctx))
	assert.Len(t, session.sent, 1)
	require.Len(t, session.edits, 1)
	assert.Equal(t, "m1", session.edits[0].ID)
	assert.Equal(t, "c1", session.edits[0].Channel)
}

func TestBoardReusesExistingMessage(t *testing.T) {
	session := &fakeBoardSession{history: []*discordgo.Message{
		{ID: "old-user", Author: &discordgo.User{ID: "someone"}, Embeds: []*discordgo.MessageEmbed{{Title: stockBoardTitle}}},
		{ID: "old-bot", Author: &discordgo.User{ID: "bot"}, Embeds: []*discordgo.MessageEmbed{{Title: stockBoardTitle}}},
	}}
	board := NewBoard(session, &staticStock{products: testProducts()}, "c1", func() string { return "bot" })

	require.NoError(t, board.Refresh(context.Background()))
	assert.Empty(t, session.sent)
	require.Len(t, session.edits, 1)
	assert.Equal(t, "old-bot", session.edits[0].ID)
}

func TestBoardRecreatesDeletedMessage(t *testing.T) {
	session := &fakeBoardSession{}
	board := NewBoard(session, &staticStock{products: testProducts()}, "c1", nil)
	ctx := context.Background()

	require.NoError(t, board.Refresh(ctx))
	session.editErr = &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound, Status: "404 Not Found"}}

	require.NoError(t, board.Refresh(ctx))
	assert.Len(t, session.sent, 2)

	require.NoError(t, board.Refresh(ctx))
	require.Len(t, session.edits, 2)
	assert.Equal(t, "m2", session.edits[1].ID)
}

func TestBoardPropagatesErrors(t *testing.T) {
	session := &fakeBoardSession{}
	board := NewBoard(session, &staticStock{err: errors.New("db down")}, "c1", nil)
	assert.Error(t, board.Refresh(context.Background()))
	assert.Empty(t, session.sent)

	board = NewBoard(session, &staticStock{products: testProducts()}, "c1", nil)
	require.NoError(t, board.Refresh(context.Background()))
	session.editErr = &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden, Status: "403 Forbidden"}}
	assert.Error(t, board.Refresh(context.Background()))
	assert.Len(t, session.sent, 1)
}
