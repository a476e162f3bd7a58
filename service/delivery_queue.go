package service

import (
	"context"
	"sync"

	"github.com/layer-3/walletlink/core"
	"github.com/layer-3/walletlink/ports"
	"github.com/rs/zerolog/log"
)

// DeliveryQueue serializes outbound chat messages through a single sender.
//
// Delivery is at most once: a message whose send fails is logged and dropped,
// so one broken chat cannot stall messages for everybody else.
type DeliveryQueue struct {
	sender ports.Sender

	mu      sync.Mutex
	pending []core.Message

	wake chan struct{}
	done chan struct{}
}

// NewDeliveryQueue creates the queue and starts draining it until ctx is done
func NewDeliveryQueue(ctx context.Context, sender ports.Sender) *DeliveryQueue {
	q := &DeliveryQueue{
		sender: sender,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go q.drain(ctx)
	return q
}

// Enqueue appends msg to the tail of the queue. It never blocks.
func (q *DeliveryQueue) Enqueue(msg core.Message) {
	q.mu.Lock()
	q.pending = append(q.pending, msg)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of messages waiting to be sent
func (q *DeliveryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Done is closed once the drain loop has stopped
func (q *DeliveryQueue) Done() <-chan struct{} {
	return q.done
}

func (q *DeliveryQueue) next() (core.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return core.Message{}, false
	}
	msg := q.pending[0]
	q.pending[0] = core.Message{}
	q.pending = q.pending[1:]
	return msg, true
}

func (q *DeliveryQueue) drain(ctx context.Context) {
	defer close(q.done)

	for {
		msg, ok := q.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}

		if ctx.Err() != nil {
			return
		}
		q.deliver(ctx, msg)
	}
}

func (q *DeliveryQueue) deliver(ctx context.Context, msg core.Message) {
	Guard("delivery", func() {
		if err := q.sender.Send(ctx, msg); err != nil {
			log.Error().Err(err).Int64("chat_id", msg.ChatID).Bool("photo", msg.IsPhoto()).Msg("Failed to deliver message")
		}
	})
}
