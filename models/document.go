package models

import (
	"time"

	"gorm.io/gorm"
)

// BountyDocument is a case file attached to a bounty (statements, court
// filings, evidence bundles). Files live in R2; only the URL is stored.
type BountyDocument struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	BountyID   string `gorm:"index;not null" json:"bounty_id"`
	UploadedBy string `gorm:"index;not null" json:"uploaded_by"`
	Title      string `gorm:"not null" json:"title"`
	FileURL    string `gorm:"type:text;not null" json:"file_url"`
	FileHash   string `json:"file_hash,omitempty"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Review = feedback left on a completed bounty (NGO on lawyer, or donor on NGO).
type Review struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	BountyID   string `gorm:"index;not null" json:"bounty_id"`
	ReviewerID string `gorm:"index;not null" json:"reviewer_id"`
	Rating     int    `gorm:"not null" json:"rating"` // 1-5
	Comment    string `gorm:"type:text" json:"comment,omitempty"`

	Timestamps
}
