package models

import (
	"strings"
	"time"
)

// Reservation marks an item as claimed by one giver. A reserved item can
// still be funded; the reservation only tells other visitors someone is
// on it.
type Reservation struct {
	ID        int64       `json:"id" db:"id"`
	ItemID    int64       `json:"item_id" db:"item_id"`
	Reserver  Contributor `json:"-"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// HeldBy reports whether the reservation belongs to actor. Registered
// users match by id, anonymous ones by alias ignoring case.
func (r *Reservation) HeldBy(actor Contributor) bool {
	if actor.IsRegistered() {
		return r.Reserver.IsRegistered() && r.Reserver.UserID == actor.UserID
	}
	return !r.Reserver.IsRegistered() && strings.EqualFold(r.Reserver.Alias, actor.Alias)
}
