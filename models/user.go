package models

import (
	"time"

	"gorm.io/gorm"
)

// UserRole mirrors the role assigned by the accounts service.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleNGO    UserRole = "ngo"
	RoleLawyer UserRole = "lawyer"
	RoleDonor  UserRole = "donor"
)

// VerificationStatus for lawyer profiles
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// User is a local snapshot of account data needed by the bounty platform.
// Owned and managed solely by this service; populated via sync worker from
// the accounts service. Identity per request still comes from the Gateway.
type User struct {
	ID             string   `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string   `gorm:"uniqueIndex;not null" json:"external_user_id"` // accounts service UUID
	Username       string   `gorm:"index;not null" json:"username"`
	Email          string   `json:"email,omitempty"`
	Role           UserRole `gorm:"type:varchar(16);not null;default:'donor'" json:"role"`
	Organization   *string  `json:"organization,omitempty"`
	Location       *string  `json:"location,omitempty"`
	WalletAddress  *string  `json:"wallet_address,omitempty"`
	IsVerified     bool     `json:"is_verified" gorm:"default:false"`

	LastSeen *time.Time `json:"last_seen,omitempty"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// LawyerProfile holds verification state for lawyer accounts.
// Only verified lawyers may claim bounties.
type LawyerProfile struct {
	ID                 string             `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID     string             `gorm:"uniqueIndex;not null" json:"external_user_id"`
	LawSocietyNumber   string             `gorm:"not null" json:"law_society_number"`
	Jurisdiction       string             `json:"jurisdiction"`
	Specialization     string             `json:"specialization,omitempty"`
	YearsOfExperience  int                `json:"years_of_experience" gorm:"default:0"`
	VerificationStatus VerificationStatus `gorm:"type:varchar(10);not null;default:'pending'" json:"verification_status"`
	VerificationNotes  string             `gorm:"type:text" json:"verification_notes,omitempty"`
	IDDocumentURL      *string            `json:"id_document_url,omitempty"`
	CertificateURL     *string            `json:"certificate_url,omitempty"`

	Timestamps
}

// NGOProfile holds registration details for NGO accounts.
type NGOProfile struct {
	ID                 string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID     string  `gorm:"uniqueIndex;not null" json:"external_user_id"`
	RegistrationNumber string  `gorm:"not null" json:"registration_number"`
	Website            *string `json:"website,omitempty"`
	YearEstablished    *int    `json:"year_established,omitempty"`
	RegistrationDocURL *string `json:"registration_doc_url,omitempty"`

	Timestamps
}

// DonorProfile carries the donor's aggregate giving total. The aggregate is
// updated in the same transaction as each donation write.
type DonorProfile struct {
	ID             string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string  `gorm:"uniqueIndex;not null" json:"external_user_id"`
	TotalDonated   float64 `json:"total_donated" gorm:"default:0"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
