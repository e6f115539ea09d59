// Package bus connects transport adapters (Telegram, Discord, ...) to the
// room broker: adapters publish received messages as envelopes and register
// themselves as the sender the Bus calls back into to deliver a reply.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nanobridge/orchestrator/internal/envelope"
)

// InternalChannels never receive outbound dispatch — they represent
// synthetic sessions (cron runs, subagent delegation) with no transport.
var InternalChannels = map[string]bool{
	"cli":      true,
	"system":   true,
	"subagent": true,
}

// IsInternalChannel reports whether name is a synthetic, transport-less channel.
func IsInternalChannel(name string) bool { return InternalChannels[name] }

// Sender delivers one outbound envelope to its origin transport.
type Sender interface {
	Name() string
	Send(ctx context.Context, env envelope.MessageEnvelope) error
}

// Receiver turns whatever arrives from a transport into envelopes and
// forwards them to a Bus via Publish. Transports call this themselves from
// their own polling/webhook loop; Receiver exists only to name the shape.
type Receiver interface {
	Start(ctx context.Context, publish func(envelope.MessageEnvelope)) error
	Stop(ctx context.Context) error
}

// Bus is the minimal inbound/outbound message router between transport
// adapters and the room broker. It does not itself queue or retry;
// RouteFunc plugs in the broker.Manager's RouteMessage.
type Bus struct {
	mu      sync.RWMutex
	senders map[string]Sender

	// RouteFunc hands an inbound envelope to the broker manager. Set once at
	// construction; nil drops every inbound message (used in tests).
	RouteFunc func(ctx context.Context, env envelope.MessageEnvelope) bool

	limiter *perSenderLimiter
}

// New builds a Bus. route is typically (*broker.Manager).RouteMessage.
func New(route func(ctx context.Context, env envelope.MessageEnvelope) bool) *Bus {
	return &Bus{senders: make(map[string]Sender), RouteFunc: route}
}

// SetRateLimit bounds inbound messages to rpm per minute, per
// (channel, chat_id) pair — the per-user throttle Gateway.RateLimitRPM
// configures. rpm <= 0 disables limiting (the zero value, so a Bus
// with no SetRateLimit call never throttles).
func (b *Bus) SetRateLimit(rpm int) {
	if rpm <= 0 {
		b.limiter = nil
		return
	}
	b.limiter = newPerSenderLimiter(rpm)
}

// Register associates a Sender with its channel name, so SendOutbound can
// find it later. Safe to call before or after the sender starts receiving.
func (b *Bus) Register(s Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.senders[s.Name()] = s
}

// PublishInbound hands env to the broker. Returns false if nothing was
// configured to accept it (no RouteFunc, or the broker rejected it), or
// if the sender has exceeded its configured rate limit.
func (b *Bus) PublishInbound(ctx context.Context, env envelope.MessageEnvelope) bool {
	if b.RouteFunc == nil {
		return false
	}
	if b.limiter != nil && !b.limiter.Allow(env.Channel, env.ChatID) {
		slog.Warn("bus: dropping inbound message, rate limit exceeded",
			"channel", env.Channel, "chat_id", env.ChatID)
		return false
	}
	return b.RouteFunc(ctx, env)
}

// SendOutbound delivers env to the Sender registered for env.Channel.
// Internal channels are silently dropped; an unknown channel is an error.
func (b *Bus) SendOutbound(ctx context.Context, env envelope.MessageEnvelope) error {
	if IsInternalChannel(env.Channel) {
		return nil
	}
	b.mu.RLock()
	s, ok := b.senders[env.Channel]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("bus: no sender registered for channel %q", env.Channel)
	}
	if err := s.Send(ctx, env); err != nil {
		slog.Error("bus: outbound send failed", "channel", env.Channel, "chat_id", env.ChatID, "error", err)
		return err
	}
	return nil
}
