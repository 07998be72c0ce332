package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/splitledger/internal/metrics"
)

var (
	// ErrQueueFull is returned when a batch is dropped.
	ErrQueueFull = errors.New("notify: queue full")

	// ErrClosed is returned for batches sent after Shutdown.
	ErrClosed = errors.New("notify: dispatcher closed")
)

const sendTimeout = 10 * time.Second

type batch struct {
	notifications map[string]Payload
}

// Dispatcher queues notification batches and delivers them from a single
// background goroutine. SendNotifications never blocks.
type Dispatcher struct {
	sender  Sender
	metrics *metrics.Metrics
	queue   chan batch
	wg      sync.WaitGroup

	// mu guards closed; senders hold it shared while enqueueing so nothing
	// lands in the queue after the drain.
	mu     sync.RWMutex
	closed bool

	ctx     context.Context
	cancel  context.CancelFunc
}

// NewDispatcher creates a dispatcher that holds at most bufferSize pending
// batches. Call Start before use and Shutdown to drain.
func NewDispatcher(sender Sender, bufferSize int, m *metrics.Metrics) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sender:  sender,
		metrics: m,
		queue:   make(chan batch, bufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the delivery goroutine.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-d.ctx.Done():
				slog.Info("Draining notifications before shutdown", "remaining", len(d.queue))
				for len(d.queue) > 0 {
					d.deliver(context.Background(), <-d.queue)
				}
				return
			case b := <-d.queue:
				d.deliver(d.ctx, b)
			}
		}
	}()
}

// SendNotifications enqueues a batch. A full queue drops the batch, and a
// dispatcher that was shut down returns ErrClosed.
func (d *Dispatcher) SendNotifications(_ context.Context, notifications map[string]Payload) error {
	if len(notifications) == 0 {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- batch{notifications: notifications}:
		return nil
	default:
		slog.Warn("Notification queue full, dropping batch", "recipients", len(notifications))
		d.metrics.NotificationDropped()
		return ErrQueueFull
	}
}

// Shutdown stops the dispatcher after delivering everything queued.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, b batch) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := d.sender.SendNotifications(ctx, b.notifications); err != nil {
		slog.Error("Failed to send notifications", "error", err, "recipients", len(b.notifications))
		return
	}
	d.metrics.NotificationSent()
}
