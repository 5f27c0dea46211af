package models

// PaymentType indicates what a settlement record settles.
type PaymentType string

const (
	PaymentTypeDonation  PaymentType = "donation"
	PaymentTypeMilestone PaymentType = "milestone"
	PaymentTypeRefund    PaymentType = "refund"
)

// PaymentStatus follows a single settlement event. Completed and Failed are
// terminal; corrections are new records, not edits.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment records a single settlement event against the ledger.
type Payment struct {
	ID          string  `gorm:"primaryKey;type:uuid" json:"id"`
	BountyID    string  `gorm:"index;not null" json:"bounty_id"`
	MilestoneID *string `gorm:"index" json:"milestone_id,omitempty"`

	SenderID   string  `gorm:"index;not null" json:"sender_id"`
	ReceiverID *string `gorm:"index" json:"receiver_id,omitempty"`

	Amount      float64       `gorm:"not null" json:"amount"`
	PaymentType PaymentType   `gorm:"type:varchar(16);not null" json:"payment_type"`
	Status      PaymentStatus `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`

	// External ledger transaction identifier.
	TransactionID string `json:"transaction_id,omitempty"`

	Timestamps
}

// EscrowStatus mirrors the state of the ledger-side escrow contract.
type EscrowStatus string

const (
	EscrowStatusActive   EscrowStatus = "active"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
)

// Escrow is the local mirror of a bounty's ledger escrow contract,
// one-to-one with the bounty. Created at approval time.
type Escrow struct {
	ID         string       `gorm:"primaryKey;type:uuid" json:"id"`
	BountyID   string       `gorm:"uniqueIndex;not null" json:"bounty_id"`
	ContractID string       `gorm:"index;not null" json:"contract_id"`
	Amount     float64      `gorm:"not null" json:"amount"`
	Status     EscrowStatus `gorm:"type:varchar(16);not null;default:'active'" json:"status"`

	Timestamps
}
