package models

import "time"

// User represents a registered account. Registration itself lives in
// another service; this is the read model the ledger needs.
type User struct {
	ID          int64     `json:"id" db:"id"`
	Username    string    `json:"username" db:"username"`
	DisplayName string    `json:"display_name" db:"display_name"`
	TelegramID  *int64    `json:"telegram_id,omitempty" db:"telegram_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Alias returns the name recorded on contributions made by the user
func (u *User) Alias() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Username != "" {
		return u.Username
	}
	return GuestAlias
}
