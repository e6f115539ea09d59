package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nanobridge/orchestrator/internal/envelope"
)

func testManager(t *testing.T, handler Handler) *Manager {
	t.Helper()
	cfg := DefaultConfig(t.TempDir())
	cfg.MaxQueueSize = 4
	cfg.EnqueueTimeout = 200 * time.Millisecond
	return NewManager(func(roomID string) Handler { return handler }, cfg)
}

func TestManagerRouteMessageCreatesBrokerOnDemand(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	handler := func(ctx context.Context, env envelope.MessageEnvelope) error {
		mu.Lock()
		seen = append(seen, env.RoomID)
		mu.Unlock()
		return nil
	}

	m := testManager(t, handler)
	defer m.StopAll()

	env := envelope.New("test", "chat", "hi", envelope.SenderUser)
	env.RoomID = "room-x"
	if !m.RouteMessage(context.Background(), env) {
		t.Fatal("expected route to succeed")
	}

	if _, ok := m.GetBroker("room-x"); !ok {
		t.Fatal("expected a broker to have been created for room-x")
	}
	waitForCondition(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0] == "room-x"
	})
}

func TestManagerRouteMessageRejectsMissingRoomID(t *testing.T) {
	m := testManager(t, func(ctx context.Context, env envelope.MessageEnvelope) error { return nil })
	defer m.StopAll()

	env := envelope.New("test", "chat", "hi", envelope.SenderUser)
	if m.RouteMessage(context.Background(), env) {
		t.Fatal("expected route without room id to fail")
	}
}

func TestManagerReusesExistingBrokerAcrossMessages(t *testing.T) {
	m := testManager(t, func(ctx context.Context, env envelope.MessageEnvelope) error { return nil })
	defer m.StopAll()

	env := envelope.New("test", "chat", "hi", envelope.SenderUser)
	env.RoomID = "room-y"
	m.RouteMessage(context.Background(), env)
	m.RouteMessage(context.Background(), env)

	if len(m.RoomIDs()) != 1 {
		t.Fatalf("expected exactly one broker across two messages to the same room, got %v", m.RoomIDs())
	}
}

func TestManagerGetStatsCoversEveryRoom(t *testing.T) {
	m := testManager(t, func(ctx context.Context, env envelope.MessageEnvelope) error { return nil })
	defer m.StopAll()

	for _, room := range []string{"room-1", "room-2"} {
		env := envelope.New("test", "chat", "hi", envelope.SenderUser)
		env.RoomID = room
		m.RouteMessage(context.Background(), env)
	}

	stats := m.GetStats()
	if len(stats) != 2 {
		t.Fatalf("expected stats for 2 rooms, got %d", len(stats))
	}
}

func TestManagerStartMaintenanceRejectsInvalidCron(t *testing.T) {
	m := testManager(t, func(ctx context.Context, env envelope.MessageEnvelope) error { return nil })
	defer m.StopAll()

	if err := m.StartMaintenance(context.Background(), "not a cron expression", func(map[string]Stats) {}); err == nil {
		t.Fatal("expected an invalid cron expression to be rejected")
	}
}

func TestManagerStartMaintenanceRefusesDoubleStart(t *testing.T) {
	m := testManager(t, func(ctx context.Context, env envelope.MessageEnvelope) error { return nil })
	defer m.StopAll()

	if err := m.StartMaintenance(context.Background(), "* * * * *", func(map[string]Stats) {}); err != nil {
		t.Fatalf("unexpected error starting maintenance: %v", err)
	}
	if err := m.StartMaintenance(context.Background(), "* * * * *", func(map[string]Stats) {}); err == nil {
		t.Fatal("expected a second StartMaintenance call to be rejected")
	}
	m.StopMaintenance()
}
