package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/repository/memory"
	"github.com/Kerhoff/wishfund/pkg/logger"
)

type recorder struct {
	mu   sync.Mutex
	got  []Notification
	err  error
	done chan struct{}
}

func (r *recorder) Dispatch(_ context.Context, n Notification) error {
	r.mu.Lock()
	r.got = append(r.got, n)
	r.mu.Unlock()
	if r.done != nil {
		r.done <- struct{}{}
	}
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func TestFanout_DeliversToAllAndCollectsErrors(t *testing.T) {
	ok := &recorder{}
	failing := &recorder{err: errors.New("smtp down")}
	fan := Fanout{failing, ok}

	err := fan.Dispatch(context.Background(), Notification{UserID: 1, Type: TypeItemFundedOwner})
	if err == nil || !strings.Contains(err.Error(), "smtp down") {
		t.Fatalf("Dispatch() error = %v, want aggregated failure", err)
	}
	if ok.count() != 1 || failing.count() != 1 {
		t.Errorf("deliveries = %d/%d, want 1/1", ok.count(), failing.count())
	}
}

func TestFanout_NoErrors(t *testing.T) {
	fan := Fanout{&recorder{}, NewLogDispatcher(logger.Discard())}
	if err := fan.Dispatch(context.Background(), Notification{UserID: 1}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
}

func TestTelegramDispatcher(t *testing.T) {
	store := memory.New()
	chatID := int64(555)
	linked := store.AddUser(models.User{Username: "anna", TelegramID: &chatID})
	unlinked := store.AddUser(models.User{Username: "boris"})

	tests := []struct {
		name     string
		userID   int64
		wantSent int
	}{
		{name: "linked user", userID: linked.ID, wantSent: 1},
		{name: "user without telegram", userID: unlinked.ID, wantSent: 0},
		{name: "unknown user", userID: 999, wantSent: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			d := NewTelegramDispatcher(sender, store.Users(), "https://wish.example/")

			err := d.Dispatch(context.Background(), Notification{
				UserID: tt.userID,
				Type:   TypeItemFundedOwner,
				Title:  "Gift fully funded",
				Body:   `"Bike" is fully funded.`,
				Link:   "/wishlist/bday",
			})
			if err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			if len(sender.sent) != tt.wantSent {
				t.Fatalf("sent %d messages, want %d", len(sender.sent), tt.wantSent)
			}
			if tt.wantSent == 0 {
				return
			}
			msg := sender.sent[0]
			if msg.ChatID != chatID {
				t.Errorf("ChatID = %d, want %d", msg.ChatID, chatID)
			}
			if !strings.Contains(msg.Text, "https://wish.example/wishlist/bday") {
				t.Errorf("Text = %q, want absolute link", msg.Text)
			}
		})
	}
}

func TestTelegramDispatcher_SendFailure(t *testing.T) {
	store := memory.New()
	chatID := int64(1)
	u := store.AddUser(models.User{Username: "anna", TelegramID: &chatID})
	d := NewTelegramDispatcher(&fakeSender{err: errors.New("blocked")}, store.Users(), "")

	if err := d.Dispatch(context.Background(), Notification{UserID: u.ID, Title: "t"}); err == nil {
		t.Fatal("expected send failure to be reported")
	}
}

func TestQueue_DeliversInBackground(t *testing.T) {
	rec := &recorder{done: make(chan struct{}, 2)}
	q := NewQueue(rec, 4, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	for i := 0; i < 2; i++ {
		if err := q.Dispatch(context.Background(), Notification{UserID: int64(i)}); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
	}

	for i := 0; i < 2; i++ {
		select {
		case <-rec.done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}
}

func TestQueue_DropsWhenFull(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(rec, 1, logger.Discard())

	_ = q.Dispatch(context.Background(), Notification{UserID: 1})
	if err := q.Dispatch(context.Background(), Notification{UserID: 2}); err != nil {
		t.Fatalf("Dispatch() on a full queue error = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q.Run(ctx)

	if rec.count() != 1 {
		t.Errorf("delivered %d, want 1", rec.count())
	}
}
