package bot

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"storebot/internal/models"
	"storebot/internal/service"

	"github.com/bwmarrin/discordgo"
)

const (
	colorSuccess = 0x2ecc71
	colorError   = 0xe74c3c
	colorInfo    = 0x3498db
	colorWarning = 0xf1c40f

	// Discord rejects embeds with more fields than this
	maxEmbedFields = 25

	stockBoardTitle = "🏪 Store Stock Status"
)

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func stockBoardEmbed(products []models.ProductStock, now time.Time) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:     stockBoardTitle,
		Color:     colorInfo,
		Timestamp: timestamp(now),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Last Update: %s UTC", now.UTC().Format("2006-01-02 15:04:05")),
		},
	}

	if len(products) == 0 {
		embed.Description = "No products available."
		return embed
	}

	for i, p := range products {
		if i == maxEmbedFields-1 && len(products) > maxEmbedFields {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:  "…",
				Value: fmt.Sprintf("and %d more products, use /stock", len(products)-i),
			})
			break
		}

		value := fmt.Sprintf("💎 Code: `%s`\n📦 Stock: `%d`\n💰 Price: `%s`\n",
			p.Code, p.Available, models.FormatWL(p.Price))
		if desc := p.DescriptionText(); desc != "" {
			value += fmt.Sprintf("📝 Info: %s\n", desc)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("🔸 %s 🔸", p.Name),
			Value: value,
		})
	}
	return embed
}

func balanceEmbed(growID string, bal models.Balance) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "💰 Balance Information",
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "GrowID", Value: fmt.Sprintf("`%s`", growID)},
			{Name: "Balance", Value: bal.Format()},
			{Name: "Total", Value: models.FormatWL(bal.TotalWLs())},
		},
	}
}

func growIDEmbed(growID string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🔍 GrowID Information",
		Description: fmt.Sprintf("Your registered GrowID: `%s`", growID),
		Color:       colorInfo,
	}
}

func worldEmbed(info *models.WorldInfo) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "🌍 World Information",
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "World", Value: fmt.Sprintf("`%s`", info.World), Inline: true},
			{Name: "Owner", Value: fmt.Sprintf("`%s`", info.Owner), Inline: true},
			{Name: "Bot", Value: fmt.Sprintf("`%s`", info.Bot), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Updated " + timestamp(info.UpdatedAt)},
	}
}

func purchaseEmbed(res *service.PurchaseResult, delivered bool) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "✅ Purchase Successful",
		Color: colorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Product", Value: fmt.Sprintf("`%s`", res.Product.Name), Inline: true},
			{Name: "Quantity", Value: fmt.Sprintf("%d", len(res.Contents)), Inline: true},
			{Name: "Total Price", Value: models.FormatWL(res.TotalPrice), Inline: true},
			{Name: "New Balance", Value: models.FormatWL(res.NewBalance)},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Transaction #%d", res.Transaction.ID)},
	}
	if delivered {
		embed.Description = "Check your DMs for the items."
	} else {
		embed.Description = "Could not DM you, your items are attached below."
	}
	return embed
}

func itemsFile(res *service.PurchaseResult) *discordgo.File {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Product: %s (%s)\n", res.Product.Name, res.Product.Code)
	fmt.Fprintf(&buf, "Transaction: #%d\n", res.Transaction.ID)
	fmt.Fprintf(&buf, "Total: %s\n\n", models.FormatWL(res.TotalPrice))
	for _, content := range res.Contents {
		buf.WriteString(content)
		buf.WriteByte('\n')
	}
	return &discordgo.File{
		Name:        fmt.Sprintf("%s_%d.txt", strings.ToLower(res.Product.Code), res.Transaction.ID),
		ContentType: "text/plain",
		Reader:      &buf,
	}
}

func historyEmbed(growID string, trxs []models.Transaction) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("📜 Transaction History of %s", growID),
		Color: colorInfo,
	}
	if len(trxs) == 0 {
		embed.Description = "No transactions yet."
		return embed
	}

	for i, trx := range trxs {
		if i == maxEmbedFields {
			break
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: fmt.Sprintf("#%d %s · %s", trx.ID, trx.Type, trx.CreatedAt.UTC().Format("2006-01-02 15:04")),
			Value: fmt.Sprintf("%s\n%s → %s",
				trx.Details, models.FormatWL(trx.OldBalance), models.FormatWL(trx.NewBalance)),
		})
	}
	if len(trxs) > maxEmbedFields {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Showing %d of %d entries", maxEmbedFields, len(trxs)),
		}
	}
	return embed
}

func productEmbed(title string, p *models.Product) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: title,
		Color: colorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Code", Value: fmt.Sprintf("`%s`", p.Code), Inline: true},
			{Name: "Name", Value: p.Name, Inline: true},
			{Name: "Price", Value: models.FormatWL(p.Price), Inline: true},
		},
	}
	if desc := p.DescriptionText(); desc != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Description", Value: desc})
	}
	return embed
}

func batchEmbed(code string, res *service.BatchResult) *discordgo.MessageEmbed {
	color := colorSuccess
	if res.Added == 0 {
		color = colorWarning
	}
	return &discordgo.MessageEmbed{
		Title:       "📦 Stock Upload",
		Description: fmt.Sprintf("Product `%s`", code),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Added", Value: fmt.Sprintf("%d", res.Added), Inline: true},
			{Name: "Duplicates", Value: fmt.Sprintf("%d", res.Duplicates), Inline: true},
			{Name: "Invalid", Value: fmt.Sprintf("%d", res.Invalid), Inline: true},
		},
	}
}

func balanceChangeEmbed(title string, trx *models.Transaction) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: title,
		Color: colorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "GrowID", Value: fmt.Sprintf("`%s`", trx.GrowID), Inline: true},
			{Name: "Old Balance", Value: models.BalanceFromWLs(trx.OldBalance).Format(), Inline: true},
			{Name: "New Balance", Value: models.BalanceFromWLs(trx.NewBalance).Format(), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Transaction #%d", trx.ID)},
	}
}

func purchaseLogEmbed(event *models.PurchaseCompletedEvent) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:     "🛒 New Purchase",
		Color:     colorSuccess,
		Timestamp: timestamp(event.Timestamp),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "GrowID", Value: fmt.Sprintf("`%s`", event.GrowID), Inline: true},
			{Name: "Product", Value: fmt.Sprintf("%s (`%s`)", event.ProductName, event.ProductCode), Inline: true},
			{Name: "Quantity", Value: fmt.Sprintf("%d", event.Quantity), Inline: true},
			{Name: "Total Price", Value: models.FormatWL(event.TotalPrice), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Transaction #%d", event.TransactionID)},
	}
}

func donationLogEmbed(event *models.DonationReceivedEvent) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:     "💎 Donation Received",
		Color:     colorSuccess,
		Timestamp: timestamp(event.Timestamp),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "GrowID", Value: fmt.Sprintf("`%s`", event.GrowID), Inline: true},
			{Name: "Deposit", Value: event.Deposit.Format(), Inline: true},
			{Name: "Credited", Value: models.FormatWL(event.CreditedWL), Inline: true},
			{Name: "New Balance", Value: models.BalanceFromWLs(event.NewBalance).Format()},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Transaction #%d", event.TransactionID)},
	}
}

func errorEmbed(msg string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: msg, Color: colorError}
}
