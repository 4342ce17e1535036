package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishfund/internal/metrics"
)

// Queue hands notifications to a background worker so that request
// handlers never wait on delivery. A full queue drops the notification.
type Queue struct {
	next   Dispatcher
	ch     chan Notification
	logger *logrus.Logger
}

// NewQueue creates a queue of the given capacity in front of next
func NewQueue(next Dispatcher, size int, logger *logrus.Logger) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		next:   next,
		ch:     make(chan Notification, size),
		logger: logger,
	}
}

// Dispatch enqueues n and never blocks
func (q *Queue) Dispatch(_ context.Context, n Notification) error {
	select {
	case q.ch <- n:
	default:
		metrics.NotificationFailures.WithLabelValues("queue").Inc()
		q.logger.WithFields(logrus.Fields{
			"user_id": n.UserID,
			"type":    n.Type,
		}).Warn("Notification queue full, dropping notification")
	}
	return nil
}

// Run delivers queued notifications until the context is cancelled, then
// drains whatever is still buffered. It blocks, so it should be launched
// in a separate goroutine.
func (q *Queue) Run(ctx context.Context) {
	q.logger.Info("Notification worker started")

	for {
		select {
		case <-ctx.Done():
			q.drain()
			q.logger.Info("Notification worker stopped")
			return
		case n := <-q.ch:
			q.deliver(ctx, n)
		}
	}
}

func (q *Queue) drain() {
	for {
		select {
		case n := <-q.ch:
			q.deliver(context.Background(), n)
		default:
			return
		}
	}
}

func (q *Queue) deliver(ctx context.Context, n Notification) {
	if err := q.next.Dispatch(ctx, n); err != nil {
		metrics.NotificationFailures.WithLabelValues("dispatch").Inc()
		q.logger.WithFields(logrus.Fields{
			"user_id": n.UserID,
			"type":    n.Type,
		}).WithError(err).Error("Failed to deliver notification")
	}
}
