package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nanobridge/orchestrator/internal/envelope"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig(t.TempDir())
	cfg.MaxQueueSize = 4
	cfg.EnqueueTimeout = 200 * time.Millisecond
	cfg.HighPriorityTimeout = 500 * time.Millisecond
	return cfg
}

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestRoomBrokerProcessesMessageInOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []string

	handler := func(ctx context.Context, env envelope.MessageEnvelope) error {
		mu.Lock()
		seen = append(seen, env.Content)
		mu.Unlock()
		return nil
	}

	b, err := New("room-a", handler, testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Stop()

	for _, content := range []string{"first", "second", "third"} {
		env := envelope.New("test", "chat", content, envelope.SenderUser)
		if !b.Enqueue(context.Background(), env) {
			t.Fatalf("expected enqueue to succeed for %q", content)
		}
	}

	waitForCondition(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if seen[i] != w {
			t.Fatalf("expected FIFO order %v, got %v", want, seen)
		}
	}
}

func TestRoomBrokerHigherPriorityProcessesFirst(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	release := make(chan struct{})
	first := true

	handler := func(ctx context.Context, env envelope.MessageEnvelope) error {
		mu.Lock()
		if first {
			first = false
			mu.Unlock()
			<-release // hold the first message so the other two queue up behind it
		} else {
			mu.Unlock()
		}
		mu.Lock()
		seen = append(seen, env.Content)
		mu.Unlock()
		return nil
	}

	b, err := New("room-b", handler, testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Stop()

	blocker := envelope.New("test", "chat", "blocker", envelope.SenderUser)
	blocker.Priority = envelope.PriorityUser
	b.Enqueue(context.Background(), blocker)
	waitForCondition(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return !first
	})

	low := envelope.New("test", "chat", "low-priority", envelope.SenderUser)
	low.Priority = envelope.PriorityUser
	high := envelope.New("test", "chat", "high-priority", envelope.SenderSystem)
	high.Priority = envelope.PrioritySystem

	b.Enqueue(context.Background(), low)
	b.Enqueue(context.Background(), high)
	close(release)

	waitForCondition(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	if seen[1] != "high-priority" || seen[2] != "low-priority" {
		t.Fatalf("expected high-priority before low-priority, got %v", seen)
	}
}

func TestRoomBrokerDropsWhenQueueFull(t *testing.T) {
	blockHandler := make(chan struct{})
	handler := func(ctx context.Context, env envelope.MessageEnvelope) error {
		<-blockHandler
		return nil
	}

	cfg := testConfig(t)
	cfg.MaxQueueSize = 1
	cfg.EnqueueTimeout = 50 * time.Millisecond
	cfg.HighPriorityTimeout = 0

	b, err := New("room-c", handler, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		close(blockHandler)
		b.Stop()
	}()

	first := envelope.New("test", "chat", "one", envelope.SenderUser)
	if !b.Enqueue(context.Background(), first) {
		t.Fatal("expected first enqueue to succeed")
	}
	// Wait for the processing goroutine to dequeue (and thus free the
	// only queue slot) before relying on that slot for the second message.
	waitForCondition(t, time.Second, func() bool { return b.QueueDepth() == 0 })

	second := envelope.New("test", "chat", "two", envelope.SenderUser)
	if !b.Enqueue(context.Background(), second) {
		t.Fatal("expected second enqueue to succeed and occupy the only free slot")
	}

	third := envelope.New("test", "chat", "three", envelope.SenderUser)
	if b.Enqueue(context.Background(), third) {
		t.Fatal("expected third enqueue to be dropped once the queue is full")
	}
	if b.dropped.Load() != 1 {
		t.Fatalf("expected exactly 1 dropped message, got %d", b.dropped.Load())
	}
}

func TestRoomBrokerReplaysPendingAfterRestart(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)

	blockFirst := make(chan struct{})
	handlerA := func(ctx context.Context, env envelope.MessageEnvelope) error {
		<-blockFirst // never release, simulating a crash mid-process
		return nil
	}

	b1, err := New("room-d", handlerA, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b1.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	env := envelope.New("test", "chat", "orphaned", envelope.SenderUser)
	if !b1.Enqueue(context.Background(), env) {
		t.Fatal("expected enqueue to succeed")
	}
	waitForCondition(t, time.Second, func() bool { return b1.QueueDepth() == 0 })
	// Message is claimed by the handler goroutine but never marked processed:
	// the cursor file was never advanced, so it's still "pending" on disk.

	var mu sync.Mutex
	var replayedContent string
	handlerB := func(ctx context.Context, env envelope.MessageEnvelope) error {
		mu.Lock()
		replayedContent = env.Content
		mu.Unlock()
		return nil
	}

	b2, err := New("room-d", handlerB, cfg)
	if err != nil {
		t.Fatalf("New (restart): %v", err)
	}
	if err := b2.Start(context.Background()); err != nil {
		t.Fatalf("Start (restart): %v", err)
	}
	defer b2.Stop()

	waitForCondition(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return replayedContent == "orphaned"
	})
	if b2.replayed.Load() != 1 {
		t.Fatalf("expected 1 replayed message, got %d", b2.replayed.Load())
	}
}

func TestRoomBrokerGetStatsReflectsCounters(t *testing.T) {
	handler := func(ctx context.Context, env envelope.MessageEnvelope) error { return nil }
	b, err := New("room-e", handler, testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Stop()

	env := envelope.New("test", "chat", "hi", envelope.SenderUser)
	b.Enqueue(context.Background(), env)

	waitForCondition(t, time.Second, func() bool { return b.GetStats().Processed == 1 })
	stats := b.GetStats()
	if !stats.Running {
		t.Fatal("expected running=true")
	}
	if stats.Received != 1 {
		t.Fatalf("expected 1 received, got %d", stats.Received)
	}
}
