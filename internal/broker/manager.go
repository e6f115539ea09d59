package broker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"golang.org/x/sync/errgroup"

	"github.com/nanobridge/orchestrator/internal/envelope"
)

// HandlerFactory builds the per-room Handler used to process that room's
// messages, typically binding a fresh agent loop instance to roomID.
type HandlerFactory func(roomID string) Handler

// Manager routes inbound envelopes to the broker for their room,
// creating brokers on demand. A room's broker is never torn down once
// created; rooms that go idle just stop receiving work.
type Manager struct {
	mu             sync.Mutex
	brokers        map[string]*RoomBroker
	handlerFactory HandlerFactory
	brokerCfg      Config

	sweepCancel context.CancelFunc
}

// NewManager builds a Manager. brokerCfg.QueueDir is the base directory;
// each room gets its own WAL/cursor file pair inside it.
func NewManager(handlerFactory HandlerFactory, brokerCfg Config) *Manager {
	return &Manager{
		brokers:        make(map[string]*RoomBroker),
		handlerFactory: handlerFactory,
		brokerCfg:      brokerCfg,
	}
}

// RouteMessage enqueues env onto the broker for env.RoomID, creating and
// starting that broker first if this is its first message. Returns false
// if env has no room or its broker rejected the message (queue full).
func (m *Manager) RouteMessage(ctx context.Context, env envelope.MessageEnvelope) bool {
	roomID := env.RoomID
	if roomID == "" {
		return false
	}

	b, err := m.brokerFor(ctx, roomID)
	if err != nil {
		return false
	}
	return b.Enqueue(ctx, env)
}

func (m *Manager) brokerFor(ctx context.Context, roomID string) (*RoomBroker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.brokers[roomID]; ok {
		return b, nil
	}

	b, err := New(roomID, m.handlerFactory(roomID), m.brokerCfg)
	if err != nil {
		return nil, fmt.Errorf("broker manager: create broker for room %q: %w", roomID, err)
	}
	if err := b.Start(ctx); err != nil {
		return nil, fmt.Errorf("broker manager: start broker for room %q: %w", roomID, err)
	}
	m.brokers[roomID] = b
	return b, nil
}

// GetBroker returns the broker for roomID, if one has been created.
func (m *Manager) GetBroker(roomID string) (*RoomBroker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.brokers[roomID]
	return b, ok
}

// StopAll stops every broker concurrently (each Stop drains its own
// goroutine, so there's no reason to wait on them one at a time) and
// waits for all of them to finish. Stopped brokers stay registered, so a
// RouteMessage after StopAll hands the message to a stopped broker
// whose processing loop has exited.
func (m *Manager) StopAll() {
	m.StopMaintenance()

	m.mu.Lock()
	brokers := make([]*RoomBroker, 0, len(m.brokers))
	for _, b := range m.brokers {
		brokers = append(brokers, b)
	}
	m.mu.Unlock()

	var g errgroup.Group
	for _, b := range brokers {
		b := b
		g.Go(func() error {
			b.Stop()
			return nil
		})
	}
	_ = g.Wait()
}

// GetStats returns a snapshot of every known room's counters, keyed by
// room id.
func (m *Manager) GetStats() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Stats, len(m.brokers))
	for roomID, b := range m.brokers {
		out[roomID] = b.GetStats()
	}
	return out
}

// RoomIDs returns every room with an active broker, sorted.
func (m *Manager) RoomIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.brokers))
	for id := range m.brokers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StartMaintenance runs sweep on a goroutine every time cronExpr is due,
// checked once a minute. It is independent of any room's own processing
// and never removes a broker; it exists purely to let an operator flush
// stats, log idle rooms, or otherwise observe broker health on a cron
// schedule rather than a fixed interval.
func (m *Manager) StartMaintenance(ctx context.Context, cronExpr string, sweep func(stats map[string]Stats)) error {
	g := gronx.New()
	if !g.IsValid(cronExpr) {
		return fmt.Errorf("broker manager: invalid maintenance cron expression %q", cronExpr)
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	if m.sweepCancel != nil {
		m.mu.Unlock()
		cancel()
		return fmt.Errorf("broker manager: maintenance already running")
	}
	m.sweepCancel = cancel
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				due, err := g.IsDue(cronExpr)
				if err != nil || !due {
					continue
				}
				sweep(m.GetStats())
			}
		}
	}()
	return nil
}

// StopMaintenance cancels a running maintenance sweep, if any.
func (m *Manager) StopMaintenance() {
	m.mu.Lock()
	cancel := m.sweepCancel
	m.sweepCancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
