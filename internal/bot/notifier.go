package bot

import (
	"context"
	"fmt"

	"storebot/internal/models"

	"github.com/bwmarrin/discordgo"
)

type embedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts purchase and donation logs to their channels. An empty
// channel ID disables that log.
type Notifier struct {
	session           embedSender
	purchaseChannelID string
	donationChannelID string
}

// NewNotifier creates a log channel notifier
func NewNotifier(session embedSender, purchaseChannelID, donationChannelID string) *Notifier {
	return &Notifier{
		session:           session,
		purchaseChannelID: purchaseChannelID,
		donationChannelID: donationChannelID,
	}
}

// NotifyPurchase posts a purchase log entry
func (n *Notifier) NotifyPurchase(ctx context.Context, event *models.PurchaseCompletedEvent) error {
	if n.purchaseChannelID == "" {
		return nil
	}
	if _, err := n.session.ChannelMessageSendEmbed(n.purchaseChannelID, purchaseLogEmbed(event), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to post purchase log: %w", err)
	}
	return nil
}

// NotifyDonation posts a donation log entry
func (n *Notifier) NotifyDonation(ctx context.Context, event *models.DonationReceivedEvent) error {
	if n.donationChannelID == "" {
		return nil
	}
	if _, err := n.session.ChannelMessageSendEmbed(n.donationChannelID, donationLogEmbed(event), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to post donation log: %w", err)
	}
	return nil
}
