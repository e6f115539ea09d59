// Package telegram is a minimal Telegram transport adapter: it proves the
// bus's receive/send contract against the real Bot API via long polling.
// Group policies, streaming previews, and voice transcription from the
// original multi-tenant channel are intentionally not reproduced here —
// out of scope per the messaging/routing/scheduling spine this repo builds.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nanobridge/orchestrator/internal/envelope"
)

// Adapter connects one Telegram bot token to the bus.
type Adapter struct {
	bot       *telego.Bot
	allowFrom map[string]bool
	pollDone  chan struct{}
}

// New creates an Adapter from a bot token. allowFrom, if non-empty,
// restricts accepted senders to that set of Telegram user IDs.
func New(token string, allowFrom []string) (*Adapter, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	allow := make(map[string]bool, len(allowFrom))
	for _, id := range allowFrom {
		allow[id] = true
	}
	return &Adapter{bot: bot, allowFrom: allow}, nil
}

func (a *Adapter) Name() string { return "telegram" }

func (a *Adapter) isAllowed(senderID string) bool {
	return len(a.allowFrom) == 0 || a.allowFrom[senderID]
}

// Start begins long-polling for updates, publishing each accepted message
// as an inbound envelope via publish. Returns once polling is established;
// the receive loop itself runs in a background goroutine until ctx is done.
func (a *Adapter) Start(ctx context.Context, publish func(envelope.MessageEnvelope)) error {
	updates, err := a.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("telegram: start long polling: %w", err)
	}
	a.pollDone = make(chan struct{})

	go func() {
		defer close(a.pollDone)
		for update := range updates {
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			senderID := ""
			if update.Message.From != nil {
				senderID = fmt.Sprintf("%d", update.Message.From.ID)
			}
			if !a.isAllowed(senderID) {
				continue
			}
			chatID := fmt.Sprintf("%d", update.Message.Chat.ID)
			env := envelope.New("telegram", chatID, update.Message.Text, envelope.SenderUser)
			env.SenderID = senderID
			publish(env)
		}
	}()

	slog.Info("telegram adapter started", "username", a.bot.Username())
	return nil
}

// Stop cancels polling; callers are expected to have already canceled the
// context passed to Start, so this just waits for the receive loop to exit.
func (a *Adapter) Stop(ctx context.Context) error {
	if a.pollDone == nil {
		return nil
	}
	select {
	case <-a.pollDone:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Send delivers an outbound envelope as a plain text message, chunked to
// Telegram's 4096-character limit.
func (a *Adapter) Send(ctx context.Context, env envelope.MessageEnvelope) error {
	const maxLen = 4096
	chatIDObj := tu.ID(parseChatID(env.ChatID))
	text := env.Content
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			chunk = chunk[:maxLen]
		}
		text = text[len(chunk):]
		if _, err := a.bot.SendMessage(ctx, tu.Message(chatIDObj, chunk)); err != nil {
			return fmt.Errorf("telegram: send message: %w", err)
		}
	}
	return nil
}

func parseChatID(s string) int64 {
	var id int64
	_, _ = fmt.Sscanf(s, "%d", &id)
	return id
}
