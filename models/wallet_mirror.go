// models/wallet_mirror.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// WalletMirror mirrors wallet linkage data from the ledger bridge.
// Local read path for "which ledger account belongs to which user";
// eventually reconciled by the ledger sync worker.
// Table name: wallet_mirror
type WalletMirror struct {
	ID              string    `gorm:"primaryKey;type:uuid;not null" json:"id"`
	ExternalUserID  string    `gorm:"type:uuid;not null;index" json:"external_user_id"`
	Network         string    `gorm:"type:varchar(64);not null;index" json:"network"`
	LedgerAccountID string    `gorm:"type:varchar(128);not null;uniqueIndex" json:"ledger_account_id"` // Primary lookup key
	IsVerified      bool      `gorm:"not null" json:"is_verified"`
	IsActive        bool      `gorm:"not null" json:"is_active"`
	LastSyncedAt    time.Time `gorm:"not null" json:"last_synced_at"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null" json:"updated_at"`

	DeletedAt gorm.DeletedAt `gorm:"index"`
}
