package bot

import (
	"github.com/bwmarrin/discordgo"
)

// Component and modal custom IDs
const (
	buttonBuy       = "buy:1"
	buttonBalance   = "balance:1"
	buttonSetGrowID = "set_growid:1"
	buttonGrowID    = "check_growid:1"
	buttonWorld     = "world:1"

	modalBuy    = "buy_modal"
	modalGrowID = "growid_modal"

	inputCode     = "code"
	inputQuantity = "quantity"
	inputGrowID   = "growid"
)

func shopButtons() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Buy",
					Style:    discordgo.SuccessButton,
					CustomID: buttonBuy,
					Emoji:    &discordgo.ComponentEmoji{Name: "🛒"},
				},
				discordgo.Button{
					Label:    "Balance",
					Style:    discordgo.PrimaryButton,
					CustomID: buttonBalance,
					Emoji:    &discordgo.ComponentEmoji{Name: "💰"},
				},
				discordgo.Button{
					Label:    "Set GrowID",
					Style:    discordgo.SecondaryButton,
					CustomID: buttonSetGrowID,
					Emoji:    &discordgo.ComponentEmoji{Name: "📝"},
				},
				discordgo.Button{
					Label:    "Check GrowID",
					Style:    discordgo.SecondaryButton,
					CustomID: buttonGrowID,
					Emoji:    &discordgo.ComponentEmoji{Name: "🔍"},
				},
				discordgo.Button{
					Label:    "World",
					Style:    discordgo.SecondaryButton,
					CustomID: buttonWorld,
					Emoji:    &discordgo.ComponentEmoji{Name: "🌍"},
				},
			},
		},
	}
}

func buyModal() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: modalBuy,
		Title:    "Buy Product",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    inputCode,
					Label:       "Product Code",
					Style:       discordgo.TextInputShort,
					Placeholder: "Enter the product code",
					Required:    true,
					MinLength:   1,
					MaxLength:   32,
				},
			}},
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    inputQuantity,
					Label:       "Quantity",
					Style:       discordgo.TextInputShort,
					Placeholder: "How many?",
					Required:    true,
					MinLength:   1,
					MaxLength:   3,
				},
			}},
		},
	}
}

func growIDModal() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: modalGrowID,
		Title:    "Set GrowID",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    inputGrowID,
					Label:       "GrowID",
					Style:       discordgo.TextInputShort,
					Placeholder: "Enter your GrowID",
					Required:    true,
					MinLength:   3,
					MaxLength:   30,
				},
			}},
		},
	}
}

// modalValues flattens the text inputs of a submitted modal
func modalValues(components []discordgo.MessageComponent) map[string]interface{} {
	values := make(map[string]interface{})
	for _, c := range components {
		var inner []discordgo.MessageComponent
		switch row := c.(type) {
		case *discordgo.ActionsRow:
			inner = row.Components
		case discordgo.ActionsRow:
			inner = row.Components
		}
		for _, ic := range inner {
			switch input := ic.(type) {
			case *discordgo.TextInput:
				values[input.CustomID] = input.Value
			case discordgo.TextInput:
				values[input.CustomID] = input.Value
			}
		}
	}
	return values
}

// modalCommand maps a modal to the command it submits
func modalCommand(customID string) (string, bool) {
	switch customID {
	case modalBuy:
		return "buy", true
	case modalGrowID:
		return "setgrowid", true
	}
	return "", false
}

// buttonCommand maps a button that runs a command without input
func buttonCommand(customID string) (string, bool) {
	switch customID {
	case buttonBalance:
		return "balance", true
	case buttonGrowID:
		return "growid", true
	case buttonWorld:
		return "world", true
	}
	return "", false
}
