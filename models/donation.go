package models

import "time"

// Donation = a donor funded part of a bounty. Immutable once created;
// corrections are refund Payments, never edits.
type Donation struct {
	ID       string  `gorm:"primaryKey;type:uuid" json:"id"`
	BountyID string  `gorm:"index;not null" json:"bounty_id"`
	DonorID  string  `gorm:"index;not null" json:"donor_id"` // external user id
	Amount   float64 `gorm:"not null" json:"amount"`
	Message  string  `json:"message,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
