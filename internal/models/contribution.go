package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GuestAlias is recorded when nobody supplied a name
const GuestAlias = "guest"

// ContributorKind distinguishes registered users from anonymous aliases
type ContributorKind int

const (
	ContributorAnonymous ContributorKind = iota
	ContributorRegistered
)

// Contributor identifies who pledged. Exactly one of UserID (registered)
// or a bare Alias (anonymous) carries identity.
type Contributor struct {
	Kind   ContributorKind
	UserID int64
	Alias  string
}

// Registered builds a contributor for an authenticated user
func Registered(userID int64, alias string) Contributor {
	return Contributor{Kind: ContributorRegistered, UserID: userID, Alias: strings.TrimSpace(alias)}
}

// Anonymous builds a contributor known only by a free-text alias
func Anonymous(alias string) Contributor {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		alias = GuestAlias
	}
	return Contributor{Kind: ContributorAnonymous, Alias: alias}
}

// IsRegistered reports whether the contributor is an authenticated user
func (c Contributor) IsRegistered() bool {
	return c.Kind == ContributorRegistered
}

// UserIDPtr returns the user id for persistence, nil for anonymous ones
func (c Contributor) UserIDPtr() *int64 {
	if !c.IsRegistered() {
		return nil
	}
	id := c.UserID
	return &id
}

// ContributorFromRow rebuilds the variant from stored columns
func ContributorFromRow(userID *int64, alias string) Contributor {
	if userID != nil {
		return Registered(*userID, alias)
	}
	return Anonymous(alias)
}

// Contribution is an immutable pledge toward one item
type Contribution struct {
	ID          int64           `json:"id" db:"id"`
	ItemID      int64           `json:"item_id" db:"item_id"`
	Contributor Contributor     `json:"-"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}
