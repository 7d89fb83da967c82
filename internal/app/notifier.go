/**
 * @description
 * This file implements the best-effort notification side channel as a
 * bounded in-process dispatcher. Notifications are queued after the
 * authoritative outcome is already decided and persisted; a full queue drops
 * the message and a failed publish is logged, so the side channel can never
 * fail or reverse a transfer.
 */

package app

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lumenbank/transaction-service/internal/domain"
	"github.com/lumenbank/transaction-service/pkg/rabbitmq"
)

// Dispatcher queues notifications and publishes them to the event exchange
// from a single worker goroutine.
type Dispatcher struct {
	publisher rabbitmq.Publisher
	exchange  string
	timeout   time.Duration
	queue     chan domain.Notification
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a dispatcher with a bounded queue and starts its
// worker.
func NewDispatcher(publisher rabbitmq.Publisher, exchange string, queueSize int, timeout time.Duration) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	d := &Dispatcher{
		publisher: publisher,
		exchange:  exchange,
		timeout:   timeout,
		queue:     make(chan domain.Notification, queueSize),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Notify enqueues a notification without blocking. If the queue is full or
// the dispatcher is already closed the notification is dropped and logged;
// delivery is best-effort.
func (d *Dispatcher) Notify(n domain.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		log.Printf("level=warn component=notifier msg=\"dispatcher closed; notification dropped\" user_id=%s type=%s", n.UserID, n.Type)
		return
	}
	select {
	case d.queue <- n:
	default:
		log.Printf("level=warn component=notifier msg=\"queue full; notification dropped\" user_id=%s type=%s", n.UserID, n.Type)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for n := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.publisher.Publish(ctx, d.exchange, routingKeyFor(n.Type), rabbitmq.NotificationEvent{
			UserID:    n.UserID,
			Type:      string(n.Type),
			Title:     n.Title,
			Message:   n.Message,
			Timestamp: time.Now().UTC(),
		})
		cancel()
		if err != nil {
			log.Printf("level=warn component=notifier msg=\"notification publish failed\" user_id=%s type=%s err=%v", n.UserID, n.Type, err)
		}
	}
}

// Close stops accepting notifications and drains the queue.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	d.wg.Wait()
}

func routingKeyFor(t domain.NotificationType) string {
	return "notification." + strings.ToLower(string(t))
}
