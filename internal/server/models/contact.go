package models

import "time"

// Contact is a single address-book entry owned by a user.
type Contact struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"-"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Birthday  time.Time `json:"birthday"`
	ExtraInfo string    `json:"extra_info,omitempty"`
}
