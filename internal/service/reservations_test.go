package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/notify"
)

func TestReserve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item("bike", "300", models.PriorityMedium)

	mode, err := f.svc.Reserve(ctx, item.ID, models.Registered(f.donor.ID, ""))
	if err != nil || mode != ReservationCreated {
		t.Fatalf("Reserve() = %q, %v, want reserved", mode, err)
	}
	mode, err = f.svc.Reserve(ctx, item.ID, models.Registered(f.donor.ID, "other name"))
	if err != nil || mode != ReservationAlreadyHeld {
		t.Fatalf("second Reserve() = %q, %v, want already_reserved", mode, err)
	}
	if _, err := f.svc.Reserve(ctx, item.ID, models.Anonymous("Ann")); !errors.Is(err, ErrConflict) {
		t.Fatalf("Reserve() by another giver error = %v, want ErrConflict", err)
	}

	notes := f.notes.ofType(notify.TypeItemReserved)
	if len(notes) != 1 || notes[0].UserID != f.owner.ID || notes[0].Body != `Someone reserved "bike"` {
		t.Errorf("reserved notifications = %+v, want one for the owner", notes)
	}
	if got := f.events.ofType("reservation.updated"); len(got) != 1 {
		t.Errorf("reservation.updated events = %d, want 1", len(got))
	}

	view, err := f.svc.GetWishlist(ctx, "bday", f.donor.ID)
	if err != nil {
		t.Fatalf("GetWishlist() error = %v", err)
	}
	if !view.Items[0].IsReserved || !view.Items[0].IsReservedByMe {
		t.Errorf("item view = %+v, want reserved by viewer", view.Items[0])
	}
	view, _ = f.svc.GetWishlist(ctx, "bday", f.owner.ID)
	if !view.Items[0].IsReserved || view.Items[0].IsReservedByMe {
		t.Errorf("owner item view = %+v, want reserved by somebody else", view.Items[0])
	}
}

func TestReserve_OwnerIsNotNotified(t *testing.T) {
	f := newFixture(t)
	item := f.item("bike", "300", models.PriorityMedium)

	if _, err := f.svc.Reserve(context.Background(), item.ID, models.Registered(f.owner.ID, "")); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if got := f.notes.ofType(notify.TypeItemReserved); len(got) != 0 {
		t.Errorf("reserved notifications = %d, want 0", len(got))
	}
}

func TestReserve_AnonymousAliasMatchesIgnoringCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item("bike", "300", models.PriorityMedium)

	if _, err := f.svc.Reserve(ctx, item.ID, models.Anonymous("Ann")); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if mode, err := f.svc.Reserve(ctx, item.ID, models.Anonymous(" ann ")); err != nil || mode != ReservationAlreadyHeld {
		t.Fatalf("Reserve() again = %q, %v, want already_reserved", mode, err)
	}
	if _, err := f.svc.Reserve(ctx, item.ID, models.Registered(f.donor.ID, "Ann")); !errors.Is(err, ErrConflict) {
		t.Fatalf("Reserve() by registered Ann error = %v, want ErrConflict", err)
	}
}

func TestReserve_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	removed := f.store.AddItem(models.WishlistItem{WishlistID: f.list.ID, Title: "gone", Status: models.ItemStatusRemoved})

	if _, err := f.svc.Reserve(ctx, 9999, models.Anonymous("Ann")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Reserve(unknown) error = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.Reserve(ctx, removed.ID, models.Anonymous("Ann")); !errors.Is(err, ErrConflict) {
		t.Errorf("Reserve(removed) error = %v, want ErrConflict", err)
	}
	if _, err := f.svc.Reserve(ctx, removed.ID, models.Registered(9999, "")); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Reserve() by unknown user error = %v, want ErrUnauthorized", err)
	}
}

func TestUnreserve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item("bike", "300", models.PriorityMedium)

	if mode, err := f.svc.Unreserve(ctx, item.ID, models.Anonymous("Ann")); err != nil || mode != ReservationAlreadyReleased {
		t.Fatalf("Unreserve() without reservation = %q, %v, want already_unreserved", mode, err)
	}
	if _, err := f.svc.Reserve(ctx, item.ID, models.Anonymous("Ann")); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}

	tests := []struct {
		name  string
		actor models.Contributor
	}{
		{"other alias", models.Anonymous("Bob")},
		{"no alias", models.Anonymous("")},
		{"registered user", models.Registered(f.donor.ID, "Ann")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Unreserve(ctx, item.ID, tt.actor); !errors.Is(err, ErrForbidden) {
				t.Fatalf("Unreserve() error = %v, want ErrForbidden", err)
			}
		})
	}

	if mode, err := f.svc.Unreserve(ctx, item.ID, models.Anonymous("ANN")); err != nil || mode != ReservationReleased {
		t.Fatalf("Unreserve() = %q, %v, want unreserved", mode, err)
	}
	got, _ := f.store.Wishlists().GetItem(ctx, item.ID)
	if got.Reservation != nil {
		t.Errorf("Reservation = %+v, want nil", got.Reservation)
	}
	if _, err := f.svc.Reserve(ctx, item.ID, models.Registered(f.donor.ID, "")); err != nil {
		t.Errorf("Reserve() after release error = %v", err)
	}
}
