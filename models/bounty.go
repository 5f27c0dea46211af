package models

import (
	"time"

	"gorm.io/gorm"
)

// BountyStatus tracks the escrow-backed lifecycle of a bounty.
type BountyStatus string

const (
	BountyStatusPending   BountyStatus = "pending"
	BountyStatusActive    BountyStatus = "active"
	BountyStatusClaimed   BountyStatus = "claimed"
	BountyStatusCompleted BountyStatus = "completed"
	BountyStatusRejected  BountyStatus = "rejected"
	BountyStatusCancelled BountyStatus = "cancelled"
)

// MilestoneStatus tracks a milestone from creation to payment release.
type MilestoneStatus string

const (
	MilestoneStatusPending    MilestoneStatus = "pending"
	MilestoneStatusInProgress MilestoneStatus = "in_progress"
	MilestoneStatusCompleted  MilestoneStatus = "completed"
	MilestoneStatusReleased   MilestoneStatus = "released"
	MilestoneStatusRejected   MilestoneStatus = "rejected"
)

// Bounty is a funded legal case posted by an NGO. Funds settle against the
// on-ledger escrow contract created at admin approval time.
type Bounty struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Title       string `gorm:"not null" json:"title"`
	Slug        string `gorm:"index" json:"slug"`
	Description string `gorm:"type:text" json:"description"`
	Category    string `json:"category,omitempty"`
	Location    string `json:"location,omitempty"`

	NGOID    string  `gorm:"index;not null" json:"ngo_id"`            // owning NGO (external user id)
	LawyerID *string `gorm:"index" json:"lawyer_id,omitempty"`        // assigned lawyer, set on claim

	FundingGoal    float64 `gorm:"not null" json:"funding_goal"`
	CurrentFunding float64 `gorm:"default:0" json:"current_funding"` // monotonically non-decreasing

	Status     BountyStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	AdminNotes string       `gorm:"type:text" json:"admin_notes,omitempty"`

	// On-ledger escrow contract id, set when the escrow is created at approval.
	ContractID *string `json:"contract_id,omitempty"`

	Milestones []Milestone `gorm:"foreignKey:BountyID" json:"milestones,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Milestone is one ordered slice of a bounty's funding goal.
// Sequence is the explicit release order; milestones release strictly in
// Sequence order regardless of creation or retrieval order.
type Milestone struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	BountyID    string `gorm:"index;not null" json:"bounty_id"`
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Sequence    int    `gorm:"not null;index:idx_milestone_bounty_seq" json:"sequence"`
	Amount      float64 `gorm:"not null" json:"amount"`

	Status MilestoneStatus `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`

	CompletionNotes string  `gorm:"type:text" json:"completion_notes,omitempty"`
	EvidenceURL     *string `json:"evidence_url,omitempty"`
	ApprovalNotes   string  `gorm:"type:text" json:"approval_notes,omitempty"`

	// Ledger transaction id of the release payment, set when Released.
	TransactionID *string `json:"transaction_id,omitempty"`

	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Timestamps
}
