package models

// WithdrawalStatus progresses Pending → Processing → Completed | Failed.
type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusFailed     WithdrawalStatus = "failed"
)

// WithdrawalMethod selects the payout rail.
type WithdrawalMethod string

const (
	WithdrawalMethodBank   WithdrawalMethod = "bank"
	WithdrawalMethodCrypto WithdrawalMethod = "crypto"
)

// Withdrawal is a user-initiated request to exit earned funds.
// No local debit happens at request time: available balance is always
// derived from payment/withdrawal history, never a mutated counter.
type Withdrawal struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"index;not null" json:"external_user_id"`

	Amount float64          `gorm:"not null" json:"amount"`
	Method WithdrawalMethod `gorm:"type:varchar(16);not null" json:"method"`
	Status WithdrawalStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`

	// Bank method details
	BankName          *string `json:"bank_name,omitempty"`
	BankAccountNumber *string `json:"bank_account_number,omitempty"`
	BankRoutingNumber *string `json:"bank_routing_number,omitempty"`

	// Crypto method details
	CryptoAddress *string `json:"crypto_address,omitempty"`
	CryptoNetwork *string `json:"crypto_network,omitempty"`

	TransactionID string `json:"transaction_id,omitempty"`

	Timestamps
}
