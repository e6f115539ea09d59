// Package broker gives every room its own FIFO-within-priority message
// queue, so rooms process independently of each other while messages
// inside a single room are never reordered.
package broker

import (
	"container/heap"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nanobridge/orchestrator/internal/envelope"
)

var tracer = otel.Tracer("orchestrator/broker")

// Handler processes one envelope that has been dequeued for a room. It is
// invoked with at most one in-flight call per room at a time.
type Handler func(ctx context.Context, env envelope.MessageEnvelope) error

// Stats is a point-in-time snapshot of a broker's counters.
type Stats struct {
	QueueDepth int   `json:"queue_depth"`
	Running    bool  `json:"running"`
	Received   int64 `json:"received"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
	Replayed   int64 `json:"replayed"`
}

// Config tunes a RoomBroker's capacity and enqueue timeouts.
type Config struct {
	MaxQueueSize        int
	EnqueueTimeout      time.Duration // 0 means enqueue blocks indefinitely
	HighPriorityTimeout time.Duration // applied instead of EnqueueTimeout when priority<=1; 0 disables the override
	QueueDir            string
}

// DefaultConfig mirrors the defaults used throughout the retrieval pack's
// broker: a 1000-message queue, 1s enqueue timeout, 3s floor for
// high-priority (system) messages.
func DefaultConfig(queueDir string) Config {
	return Config{
		MaxQueueSize:        1000,
		EnqueueTimeout:      time.Second,
		HighPriorityTimeout: 3 * time.Second,
		QueueDir:            queueDir,
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func safeFilename(roomID string) string {
	s := unsafeFilenameChars.ReplaceAllString(roomID, "_")
	if s == "" {
		return "_"
	}
	return s
}

// logRecord is one line of a room's write-ahead log.
type logRecord struct {
	Seq        int64                    `json:"seq"`
	Priority   int                      `json:"priority"`
	ReceivedAt time.Time                `json:"received_at"`
	Envelope   envelope.MessageEnvelope `json:"message"`
}

// RoomBroker is a single room's durable, priority-ordered message queue.
// Enqueue appends to a WAL before admitting a message to the in-memory
// queue, so a crash between enqueue and processing loses nothing: Start
// replays whatever the cursor file says is still unprocessed.
type RoomBroker struct {
	roomID  string
	handler Handler
	cfg     Config

	logPath    string
	cursorPath string
	logMu      sync.Mutex

	mu     sync.Mutex
	pq     priorityQueue
	seq    atomic.Int64
	sem    chan struct{}
	notify chan struct{}

	running  atomic.Bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	claimant string

	received atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
	replayed  atomic.Int64
}

// New creates a broker for roomID. Callers must call Start before
// Enqueue will make progress (Enqueue itself works beforehand, it just
// won't be drained until Start runs).
func New(roomID string, handler Handler, cfg Config) (*RoomBroker, error) {
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 1000
	}
	if cfg.QueueDir == "" {
		return nil, fmt.Errorf("broker: queue dir required for room %q", roomID)
	}
	if err := os.MkdirAll(cfg.QueueDir, 0o755); err != nil {
		return nil, fmt.Errorf("broker: mkdir queue dir: %w", err)
	}

	safe := safeFilename(roomID)
	b := &RoomBroker{
		roomID:     roomID,
		handler:    handler,
		cfg:        cfg,
		logPath:    filepath.Join(cfg.QueueDir, safe+".jsonl"),
		cursorPath: filepath.Join(cfg.QueueDir, safe+".cursor"),
		sem:        make(chan struct{}, cfg.MaxQueueSize),
		notify:     make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		claimant:   "unknown",
	}
	return b, nil
}

// SetClaimant names the worker identity recorded against claimed
// messages (typically the bot name of the room's agent loop).
func (b *RoomBroker) SetClaimant(name string) {
	if name == "" {
		name = "unknown"
	}
	b.mu.Lock()
	b.claimant = name
	b.mu.Unlock()
}

func (b *RoomBroker) RoomID() string { return b.roomID }

// Start replays any WAL backlog and launches the processing goroutine.
func (b *RoomBroker) Start(ctx context.Context) error {
	if err := b.replayPending(ctx); err != nil {
		return fmt.Errorf("broker: replay room %q: %w", b.roomID, err)
	}
	b.running.Store(true)
	go b.processLoop(ctx)
	return nil
}

// Stop signals the processing goroutine to exit and waits for it.
func (b *RoomBroker) Stop() {
	if !b.running.CompareAndSwap(true, false) {
		return
	}
	close(b.stopCh)
	<-b.doneCh
}

func (b *RoomBroker) IsRunning() bool { return b.running.Load() }

func (b *RoomBroker) QueueDepth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pq)
}

func (b *RoomBroker) GetStats() Stats {
	return Stats{
		QueueDepth: b.QueueDepth(),
		Running:    b.IsRunning(),
		Received:   b.received.Load(),
		Processed:  b.processed.Load(),
		Failed:     b.failed.Load(),
		Dropped:    b.dropped.Load(),
		Replayed:   b.replayed.Load(),
	}
}

func resolvePriority(env envelope.MessageEnvelope) int {
	priority := env.Priority
	if raw, ok := env.Metadata["priority"]; ok {
		if v, err := strconv.Atoi(raw); err == nil {
			priority = v
		}
	}
	return priority
}

// Enqueue appends env to the WAL and admits it to the in-memory queue,
// applying a longer timeout for high-priority (system) messages. It
// returns false, dropping the message, if the queue is full past the
// applicable timeout.
func (b *RoomBroker) Enqueue(ctx context.Context, env envelope.MessageEnvelope) bool {
	priority := resolvePriority(env)

	timeout := b.cfg.EnqueueTimeout
	if priority <= envelope.PrioritySystem+1 && b.cfg.HighPriorityTimeout > timeout {
		timeout = b.cfg.HighPriorityTimeout
	}

	if !b.acquireSlot(ctx, timeout) {
		b.dropped.Add(1)
		return false
	}

	seq := b.seq.Add(1)
	item := &queueItem{Seq: seq, Priority: priority, ReceivedAt: time.Now(), Envelope: env}

	if err := b.appendToLog(item); err != nil {
		<-b.sem
		b.dropped.Add(1)
		return false
	}

	b.mu.Lock()
	heap.Push(&b.pq, item)
	b.mu.Unlock()

	b.received.Add(1)
	select {
	case b.notify <- struct{}{}:
	default:
	}
	return true
}

func (b *RoomBroker) acquireSlot(ctx context.Context, timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case b.sem <- struct{}{}:
			return true
		case <-ctx.Done():
			return false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case b.sem <- struct{}{}:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (b *RoomBroker) processLoop(ctx context.Context) {
	defer close(b.doneCh)
	for {
		item, ok := b.popNext()
		if !ok {
			select {
			case <-b.stopCh:
				return
			case <-b.notify:
				continue
			case <-time.After(time.Second):
				continue
			}
		}
		b.processItem(ctx, item)
		select {
		case <-b.stopCh:
			return
		default:
		}
	}
}

// popNext removes the next item from the queue and releases its
// semaphore slot, mirroring asyncio.Queue.get(): capacity tracks what's
// waiting in the queue, not what's still being processed downstream.
func (b *RoomBroker) popNext() (*queueItem, bool) {
	b.mu.Lock()
	if len(b.pq) == 0 {
		b.mu.Unlock()
		return nil, false
	}
	item := heap.Pop(&b.pq).(*queueItem)
	b.mu.Unlock()
	<-b.sem
	return item, true
}

func (b *RoomBroker) processItem(ctx context.Context, item *queueItem) {
	now := time.Now()
	item.ClaimedAt = &now

	b.mu.Lock()
	claimant := b.claimant
	b.mu.Unlock()

	spanCtx, span := tracer.Start(ctx, "broker.process_message")
	span.SetAttributes(
		attribute.String("room.id", b.roomID),
		attribute.Int64("message.seq", item.Seq),
		attribute.Int("message.priority", item.Priority),
		attribute.String("worker.claimant", claimant),
	)

	err := b.handler(spanCtx, item.Envelope)
	if err != nil {
		b.failed.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		b.processed.Add(1)
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	b.writeCursor(item.Seq)
}

func (b *RoomBroker) appendToLog(item *queueItem) error {
	rec := logRecord{Seq: item.Seq, Priority: item.Priority, ReceivedAt: item.ReceivedAt, Envelope: item.Envelope}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	b.logMu.Lock()
	defer b.logMu.Unlock()
	f, err := os.OpenFile(b.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(data, '\n'))
	return err
}

func (b *RoomBroker) readCursor() int64 {
	data, err := os.ReadFile(b.cursorPath)
	if err != nil {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (b *RoomBroker) writeCursor(seq int64) {
	_ = os.WriteFile(b.cursorPath, []byte(strconv.FormatInt(seq, 10)), 0o644)
}

// replayPending loads any WAL entries past the cursor back into the
// in-memory queue, then compacts the WAL down to just those entries so
// it doesn't grow without bound across restarts.
func (b *RoomBroker) replayPending(ctx context.Context) error {
	b.logMu.Lock()
	data, err := os.ReadFile(b.logPath)
	b.logMu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	lastSeq := b.readCursor()
	var pending []*queueItem
	maxSeq := lastSeq

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var rec logRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if rec.Seq <= lastSeq {
			continue
		}
		pending = append(pending, &queueItem{Seq: rec.Seq, Priority: rec.Priority, ReceivedAt: rec.ReceivedAt, Envelope: rec.Envelope})
		if rec.Seq > maxSeq {
			maxSeq = rec.Seq
		}
	}

	if len(pending) == 0 {
		return nil
	}

	b.mu.Lock()
	for _, item := range pending {
		select {
		case b.sem <- struct{}{}:
			heap.Push(&b.pq, item)
			b.replayed.Add(1)
		default:
			// queue is already at capacity; leave the rest for a later restart
		}
	}
	b.mu.Unlock()

	if cur := b.seq.Load(); maxSeq > cur {
		b.seq.Store(maxSeq)
	}
	return b.rewriteLog(pending)
}

func (b *RoomBroker) rewriteLog(pending []*queueItem) error {
	b.logMu.Lock()
	defer b.logMu.Unlock()

	tmp, err := os.CreateTemp(b.cfg.QueueDir, "wal-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	for _, item := range pending {
		rec := logRecord{Seq: item.Seq, Priority: item.Priority, ReceivedAt: item.ReceivedAt, Envelope: item.Envelope}
		data, err := json.Marshal(rec)
		if err != nil {
			tmp.Close()
			return err
		}
		if _, err := tmp.Write(append(data, '\n')); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, b.logPath); err != nil {
		return err
	}
	cleanup = false
	return nil
}
