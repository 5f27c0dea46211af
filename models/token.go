package models

// TokenTransactionType classifies entries in the append-only token log.
type TokenTransactionType string

const (
	TokenTxReward   TokenTransactionType = "reward"
	TokenTxTransfer TokenTransactionType = "transfer"
	TokenTxBurn     TokenTransactionType = "burn"
)

// ConversionStatus for token-to-fiat conversions.
type ConversionStatus string

const (
	ConversionStatusPending   ConversionStatus = "pending"
	ConversionStatusCompleted ConversionStatus = "completed"
	ConversionStatusFailed    ConversionStatus = "failed"
)

// Token holds one user's HAKI balance. The balance is a cached aggregate:
// it must always equal the signed sum of the user's TokenTransaction log.
// Divergence is a consistency failure, detected by the reconciliation job
// and never silently corrected.
type Token struct {
	ID             string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string  `gorm:"uniqueIndex;not null" json:"external_user_id"`
	Balance        float64 `gorm:"not null;default:0" json:"balance"`

	Timestamps
}

// TokenTransaction is the append-only audit trail behind Token balances.
// Reward credits; Burn and Transfer debit the owning user.
type TokenTransaction struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	TokenID string `gorm:"index;not null" json:"token_id"`

	Amount          float64              `gorm:"not null" json:"amount"`
	TransactionType TokenTransactionType `gorm:"type:varchar(16);not null" json:"transaction_type"`

	SenderID   *string `gorm:"index" json:"sender_id,omitempty"`
	ReceiverID *string `gorm:"index" json:"receiver_id,omitempty"`
	BountyID   *string `gorm:"index" json:"bounty_id,omitempty"`

	// External ledger transaction identifier (mint/burn tx).
	TransactionID string `json:"transaction_id,omitempty"`

	Timestamps
}

// TokenConversion records a HAKI → USD exit from the token economy.
type TokenConversion struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"index;not null" json:"external_user_id"`

	TokenAmount    float64 `gorm:"not null" json:"token_amount"`
	USDAmount      float64 `gorm:"not null" json:"usd_amount"`
	ConversionRate float64 `gorm:"not null" json:"conversion_rate"`

	Status        ConversionStatus `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	TransactionID string           `json:"transaction_id,omitempty"`

	Timestamps
}
