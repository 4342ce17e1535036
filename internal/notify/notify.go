// Package notify delivers user-facing notifications about funding events.
// Delivery is best effort: callers log failures and carry on.
package notify

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Notification types emitted by the ledger and reservations
const (
	TypeItemFundedOwner       = "item.funded.owner"
	TypeItemFundedResponsible = "item.funded.responsible"
	TypeItemRefunded          = "item.refunded"
	TypeItemReserved          = "item.reserved"
)

// Notification is a message addressed to one registered user
type Notification struct {
	UserID int64          `json:"user_id"`
	Type   string         `json:"type"`
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Link   string         `json:"link,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// Dispatcher delivers a notification over one channel
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// LogDispatcher writes every notification to the log
type LogDispatcher struct {
	logger *logrus.Logger
}

// NewLogDispatcher creates a dispatcher that only logs
func NewLogDispatcher(logger *logrus.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(_ context.Context, n Notification) error {
	d.logger.WithFields(logrus.Fields{
		"user_id": n.UserID,
		"type":    n.Type,
		"link":    n.Link,
	}).Info(n.Title)
	return nil
}

// Fanout delivers to every dispatcher and collects their failures
type Fanout []Dispatcher

func (f Fanout) Dispatch(ctx context.Context, n Notification) error {
	var result *multierror.Error
	for _, d := range f {
		if err := d.Dispatch(ctx, n); err != nil {
			result = multierror.Append(result, fmt.Errorf("%T: %w", d, err))
		}
	}
	return result.ErrorOrNil()
}
