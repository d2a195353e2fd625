// Package discord implements the notify.Notifier for Discord.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/avellora/caresync/internal/notify"
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts events to a Discord channel. Delivery uses the REST API
// only; no gateway connection is opened.
type Notifier struct {
	sess      session
	channelID string
}

// Opts holds parameters for creating a Discord Notifier.
type Opts struct {
	BotToken  string // Discord bot token
	ChannelID string // channel to post to
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// New creates a Discord Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel ID is required")
	}
	sess := opts.Session
	if sess == nil {
		dg, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		sess = dg
	}
	return &Notifier{sess: sess, channelID: opts.ChannelID}, nil
}

// Name identifies the platform.
func (n *Notifier) Name() string { return "discord" }

// Send posts the event as an embed.
func (n *Notifier) Send(ctx context.Context, ev notify.Event) error {
	_, err := n.sess.ChannelMessageSendEmbed(n.channelID, eventToEmbed(ev), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: send embed: %w", err)
	}
	return nil
}

// eventToEmbed converts an Event to a Discord Embed.
func eventToEmbed(ev notify.Event) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       ev.Title,
		Description: ev.Body,
	}
	color := ev.Color
	if color == "" {
		color = notify.SeverityColor(ev.Severity)
	}
	embed.Color = parseHexColor(color)
	for _, f := range ev.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}
	return embed
}

// parseHexColor converts a hex color string (e.g. "#36a64f") to an int.
func parseHexColor(hex string) int {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	var color int
	for _, c := range hex {
		color <<= 4
		switch {
		case c >= '0' && c <= '9':
			color |= int(c - '0')
		case c >= 'a' && c <= 'f':
			color |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			color |= int(c-'A') + 10
		}
	}
	return color
}
