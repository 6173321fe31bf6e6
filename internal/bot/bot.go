package bot

import (
	"context"
	"fmt"
	"time"

	"storebot/config"
	"storebot/internal/util"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const interactionTimeout = 30 * time.Second

// Bot connects the command registry to a Discord gateway session
type Bot struct {
	session  *discordgo.Session
	cfg      config.DiscordConfig
	registry *Registry
	logger   *zap.Logger
}

// New creates a bot session. cooldowns may be nil.
func New(cfg config.DiscordConfig, cooldowns Cooldowns) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages

	return &Bot{
		session:  session,
		cfg:      cfg,
		registry: NewRegistry(cooldowns),
		logger:   util.Named("bot"),
	}, nil
}

// Registry returns the command registry served by the bot
func (b *Bot) Registry() *Registry {
	return b.registry
}

// Session returns the underlying Discord session
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// SelfID returns the bot's user ID once the gateway is ready
func (b *Bot) SelfID() string {
	if b.session.State == nil || b.session.State.User == nil {
		return ""
	}
	return b.session.State.User.ID
}

// Start opens the gateway and publishes the slash commands
func (b *Bot) Start() error {
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.Info("Discord session ready",
			zap.String("user", r.User.Username),
			zap.Int("guilds", len(r.Guilds)))
	})
	b.session.AddHandler(b.onInteraction)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	cmds := b.registry.ApplicationCommands()
	if _, err := b.session.ApplicationCommandBulkOverwrite(b.SelfID(), b.cfg.GuildID, cmds); err != nil {
		return fmt.Errorf("failed to register slash commands: %w", err)
	}
	b.logger.Info("Slash commands registered",
		zap.Int("count", len(cmds)),
		zap.String("guild_id", b.cfg.GuildID))
	return nil
}

// Stop closes the gateway connection
func (b *Bot) Stop() error {
	b.logger.Info("Stopping Discord session")
	return b.session.Close()
}

// SendDM implements DirectMessenger
func (b *Bot) SendDM(ctx context.Context, userID string, msg *discordgo.MessageSend) error {
	ch, err := b.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to open DM channel: %w", err)
	}
	if _, err := b.session.ChannelMessageSendComplex(ch.ID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send DM: %w", err)
	}
	return nil
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Interaction handler panicked", zap.Any("panic", r))
		}
	}()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.run(i.Interaction, commandInvocation(i.Interaction, b.cfg))

	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		switch data.CustomID {
		case buttonBuy:
			b.openModal(i.Interaction, buyModal())
		case buttonSetGrowID:
			b.openModal(i.Interaction, growIDModal())
		default:
			name, ok := buttonCommand(data.CustomID)
			if !ok {
				b.logger.Warn("Unknown button", zap.String("custom_id", data.CustomID))
				return
			}
			inv := baseInvocation(i.Interaction, b.cfg)
			inv.Command = name
			b.run(i.Interaction, inv)
		}

	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		name, ok := modalCommand(data.CustomID)
		if !ok {
			b.logger.Warn("Unknown modal", zap.String("custom_id", data.CustomID))
			return
		}
		inv := baseInvocation(i.Interaction, b.cfg)
		inv.Command = name
		inv.Options = modalValues(data.Components)
		b.run(i.Interaction, inv)
	}
}

func (b *Bot) openModal(i *discordgo.Interaction, data *discordgo.InteractionResponseData) {
	err := b.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: data,
	})
	if err != nil {
		b.logger.Error("Failed to open modal", zap.String("custom_id", data.CustomID), zap.Error(err))
	}
}

// run defers an ephemeral reply, dispatches the invocation and edits the
// reply with the result.
func (b *Bot) run(i *discordgo.Interaction, inv Invocation) {
	err := b.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		b.logger.Error("Failed to defer interaction", zap.String("command", inv.Command), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()
	ctx, span := util.StartSpan(ctx, "Bot."+inv.Command,
		attribute.String("discord.user_id", inv.UserID),
		attribute.Bool("discord.admin", inv.IsAdmin))

	resp, err := b.registry.Dispatch(ctx, inv)
	util.EndSpan(span, err)
	if _, editErr := b.session.InteractionResponseEdit(i, responseEdit(resp, err)); editErr != nil {
		b.logger.Error("Failed to send interaction reply", zap.String("command", inv.Command), zap.Error(editErr))
	}
}

func responseEdit(resp *Response, err error) *discordgo.WebhookEdit {
	if err != nil {
		embeds := []*discordgo.MessageEmbed{errorEmbed(userMessage(err))}
		return &discordgo.WebhookEdit{Embeds: &embeds}
	}
	if resp == nil {
		resp = &Response{Content: "✅ Done."}
	}

	edit := &discordgo.WebhookEdit{Files: resp.Files}
	if resp.Content != "" {
		content := resp.Content
		edit.Content = &content
	}
	if len(resp.Embeds) > 0 {
		embeds := resp.Embeds
		edit.Embeds = &embeds
	}
	return edit
}

func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func isAdmin(i *discordgo.Interaction, cfg config.DiscordConfig) bool {
	if user := interactionUser(i); user != nil && cfg.AdminID != "" && user.ID == cfg.AdminID {
		return true
	}
	if i.Member == nil {
		return false
	}
	if i.Member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	if cfg.AdminRoleID != "" {
		for _, role := range i.Member.Roles {
			if role == cfg.AdminRoleID {
				return true
			}
		}
	}
	return false
}

func baseInvocation(i *discordgo.Interaction, cfg config.DiscordConfig) Invocation {
	inv := Invocation{IsAdmin: isAdmin(i, cfg)}
	if user := interactionUser(i); user != nil {
		inv.UserID = user.ID
		inv.Username = user.Username
	}
	return inv
}

func commandInvocation(i *discordgo.Interaction, cfg config.DiscordConfig) Invocation {
	data := i.ApplicationCommandData()

	inv := baseInvocation(i, cfg)
	inv.Command = data.Name
	inv.Options = make(map[string]interface{}, len(data.Options))
	for _, opt := range data.Options {
		inv.Options[opt.Name] = opt.Value
	}
	if data.Resolved != nil {
		inv.Attachments = data.Resolved.Attachments
	}
	return inv
}
