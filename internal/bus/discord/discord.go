// Package discord is a minimal Discord transport adapter: it proves the
// bus's receive/send contract against the real gateway API. Per-guild
// mention gating, typing indicators, and pairing from the original
// multi-tenant channel are intentionally not reproduced here.
package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/nanobridge/orchestrator/internal/envelope"
)

// Adapter connects one Discord bot token to the bus.
type Adapter struct {
	session   *discordgo.Session
	botUserID string
	allowFrom map[string]bool
	publish   func(envelope.MessageEnvelope)
}

// New creates an Adapter from a bot token. allowFrom, if non-empty,
// restricts accepted senders to that set of Discord user IDs.
func New(token string, allowFrom []string) (*Adapter, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	allow := make(map[string]bool, len(allowFrom))
	for _, id := range allowFrom {
		allow[id] = true
	}
	return &Adapter{session: session, allowFrom: allow}, nil
}

func (a *Adapter) Name() string { return "discord" }

func (a *Adapter) isAllowed(senderID string) bool {
	return len(a.allowFrom) == 0 || a.allowFrom[senderID]
}

// Start opens the gateway connection and registers the message handler.
func (a *Adapter) Start(ctx context.Context, publish func(envelope.MessageEnvelope)) error {
	a.publish = publish
	a.session.AddHandler(a.handleMessage)

	if err := a.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	user, err := a.session.User("@me")
	if err != nil {
		a.session.Close()
		return fmt.Errorf("discord: fetch bot identity: %w", err)
	}
	a.botUserID = user.ID
	slog.Info("discord adapter started", "username", user.Username, "id", user.ID)
	return nil
}

// Stop closes the gateway connection.
func (a *Adapter) Stop(ctx context.Context) error {
	return a.session.Close()
}

func (a *Adapter) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == a.botUserID || m.Content == "" {
		return
	}
	if !a.isAllowed(m.Author.ID) {
		return
	}
	env := envelope.New("discord", m.ChannelID, m.Content, envelope.SenderUser)
	env.SenderID = m.Author.ID
	a.publish(env)
}

// Send delivers an outbound envelope as a plain text message to the channel.
func (a *Adapter) Send(ctx context.Context, env envelope.MessageEnvelope) error {
	if _, err := a.session.ChannelMessageSend(env.ChatID, env.Content); err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}
