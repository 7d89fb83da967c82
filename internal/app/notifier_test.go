package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lumenbank/transaction-service/internal/domain"
	"github.com/lumenbank/transaction-service/pkg/rabbitmq"
)

// capturingPublisher records published events behind a mutex.
type capturingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

type publishedEvent struct {
	exchange   string
	routingKey string
	event      rabbitmq.NotificationEvent
}

func (p *capturingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	event, ok := body.(rabbitmq.NotificationEvent)
	if !ok {
		return errors.New("unexpected payload type")
	}
	p.events = append(p.events, publishedEvent{exchange: exchange, routingKey: routingKey, event: event})
	return nil
}

func (p *capturingPublisher) Close() {}

func (p *capturingPublisher) all() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedEvent, len(p.events))
	copy(out, p.events)
	return out
}

func TestDispatcherPublishesWithRoutingKey(t *testing.T) {
	publisher := &capturingPublisher{}
	dispatcher := NewDispatcher(publisher, "bank.events", 8, time.Second)

	userID := uuid.New()
	dispatcher.Notify(domain.Notification{
		UserID:  userID,
		Type:    domain.NotifyFraudAlert,
		Title:   "Transfer held for review",
		Message: "flagged",
	})
	dispatcher.Close()

	events := publisher.all()
	if len(events) != 1 {
		t.Fatalf("expected one published event, got %d", len(events))
	}
	got := events[0]
	if got.exchange != "bank.events" {
		t.Fatalf("expected exchange bank.events, got %s", got.exchange)
	}
	if got.routingKey != "notification.fraud_alert" {
		t.Fatalf("expected routing key notification.fraud_alert, got %s", got.routingKey)
	}
	if got.event.UserID != userID || got.event.Type != "FRAUD_ALERT" {
		t.Fatalf("unexpected event payload: %+v", got.event)
	}
}

func TestDispatcherPublishFailureIsSwallowed(t *testing.T) {
	publisher := &capturingPublisher{err: errors.New("channel closed")}
	dispatcher := NewDispatcher(publisher, "bank.events", 8, time.Second)

	dispatcher.Notify(domain.Notification{
		UserID: uuid.New(),
		Type:   domain.NotifyTransaction,
	})
	// Close drains the queue; a failed publish must not panic or block.
	dispatcher.Close()
}

func TestDispatcherNotifyAfterCloseDrops(t *testing.T) {
	publisher := &capturingPublisher{}
	dispatcher := NewDispatcher(publisher, "bank.events", 8, time.Second)
	dispatcher.Close()

	// A late notification is dropped, never a panic on the closed queue.
	dispatcher.Notify(domain.Notification{
		UserID: uuid.New(),
		Type:   domain.NotifySystem,
	})

	if got := publisher.all(); len(got) != 0 {
		t.Fatalf("expected nothing published after close, got %d events", len(got))
	}
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	// A publisher that blocks until released, so the queue backs up.
	release := make(chan struct{})
	publisher := &blockingPublisher{release: release}
	dispatcher := NewDispatcher(publisher, "bank.events", 1, time.Second)

	// First notification occupies the worker, second fills the queue,
	// third must be dropped without blocking.
	for i := 0; i < 3; i++ {
		done := make(chan struct{})
		go func() {
			dispatcher.Notify(domain.Notification{UserID: uuid.New(), Type: domain.NotifySystem})
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Notify blocked; it must always return immediately")
		}
	}

	close(release)
	dispatcher.Close()

	if got := publisher.count(); got > 2 {
		t.Fatalf("expected at most two deliveries with a full queue, got %d", got)
	}
}

type blockingPublisher struct {
	mu       sync.Mutex
	n        int
	release  chan struct{}
	released bool
}

func (p *blockingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	released := p.released
	p.mu.Unlock()
	if !released {
		<-p.release
		p.mu.Lock()
		p.released = true
		p.mu.Unlock()
	}
	p.mu.Lock()
	p.n++
	p.mu.Unlock()
	return nil
}

func (p *blockingPublisher) Close() {}

func (p *blockingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}
