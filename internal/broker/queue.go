package broker

import (
	"container/heap"
	"time"

	"github.com/nanobridge/orchestrator/internal/envelope"
)

// queueItem is one envelope waiting in a room's priority queue. Lower
// Priority values run first; Seq breaks ties so same-priority messages
// stay FIFO.
type queueItem struct {
	Seq        int64
	Priority   int
	ReceivedAt time.Time
	ClaimedAt  *time.Time
	Envelope   envelope.MessageEnvelope
}

// priorityQueue implements container/heap.Interface over queueItems.
type priorityQueue []*queueItem

func (q priorityQueue) Len() int { return len(q) }

func (q priorityQueue) Less(i, j int) bool {
	if q[i].Priority != q[j].Priority {
		return q[i].Priority < q[j].Priority
	}
	return q[i].Seq < q[j].Seq
}

func (q priorityQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *priorityQueue) Push(x any) {
	*q = append(*q, x.(*queueItem))
}

func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

var _ heap.Interface = (*priorityQueue)(nil)
