package transport

import "sync"

const outboundQueueCapacity = 64

type queuedMessage struct {
	msg      outboundEnvelope
	critical bool // init/error messages are never dropped
}

// outboundQueue is a bounded FIFO of pending outbound messages. When full,
// the oldest non-critical message is dropped; critical (init/error)
// messages are always enqueued.
type outboundQueue struct {
	mu    sync.Mutex
	items []queuedMessage
	wake  chan struct{}
}

func newOutboundQueue() *outboundQueue {
	return &outboundQueue{wake: make(chan struct{}, 1)}
}

func (q *outboundQueue) enqueue(msg outboundEnvelope, critical bool) {
	q.mu.Lock()
	if !critical && len(q.items) >= outboundQueueCapacity {
		for i, it := range q.items {
			if !it.critical {
				q.items = append(q.items[:i], q.items[i+1:]...)
				break
			}
		}
	}
	q.items = append(q.items, queuedMessage{msg: msg, critical: critical})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// drain pops one pending message, if any.
func (q *outboundQueue) drain() (outboundEnvelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return outboundEnvelope{}, false
	}
	msg := q.items[0].msg
	q.items = q.items[1:]
	return msg, true
}

// discard drops every pending message (session cleanup).
func (q *outboundQueue) discard() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}
