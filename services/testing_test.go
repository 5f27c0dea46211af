package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Haki-Chain/Haki-Chain/models"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a fresh in-memory database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.LawyerProfile{},
		&models.NGOProfile{},
		&models.DonorProfile{},
		&models.Bounty{},
		&models.Milestone{},
		&models.Donation{},
		&models.Payment{},
		&models.Escrow{},
		&models.Token{},
		&models.TokenTransaction{},
		&models.TokenConversion{},
		&models.Withdrawal{},
		&models.WalletMirror{},
		&models.BountyDocument{},
		&models.Review{},
	))
	return db
}

// fakeLedger is an in-memory LedgerService double. Each operation can be
// forced to fail, and every call is counted.
type fakeLedger struct {
	failCreateEscrow bool
	failRelease      bool
	failMint         bool
	failConvert      bool
	failWithdraw     bool

	createEscrowCalls int
	releaseCalls      int
	mintCalls         int
	convertCalls      int
	withdrawCalls     int
}

func (f *fakeLedger) CreateEscrow(bountyID, ownerID string, totalAmount float64, milestones []EscrowMilestone) (string, error) {
	f.createEscrowCalls++
	if f.failCreateEscrow {
		return "", errors.New("ledger unavailable")
	}
	return fmt.Sprintf("contract-%s", bountyID), nil
}

func (f *fakeLedger) ReleaseMilestonePayment(contractID, milestoneID, payeeID string) (string, error) {
	f.releaseCalls++
	if f.failRelease {
		return "", errors.New("ledger unavailable")
	}
	return fmt.Sprintf("tx-release-%d", f.releaseCalls), nil
}

func (f *fakeLedger) MintTokens(recipientID string, amount float64, reason string) (string, error) {
	f.mintCalls++
	if f.failMint {
		return "", errors.New("ledger unavailable")
	}
	return fmt.Sprintf("tx-mint-%d", f.mintCalls), nil
}

func (f *fakeLedger) ConvertTokensToUSD(userID string, tokenAmount, rate float64) (string, error) {
	f.convertCalls++
	if f.failConvert {
		return "", errors.New("ledger unavailable")
	}
	return fmt.Sprintf("tx-convert-%d", f.convertCalls), nil
}

func (f *fakeLedger) ProcessWithdrawal(userID string, amount float64, method string, details map[string]string) (string, error) {
	f.withdrawCalls++
	if f.failWithdraw {
		return "", errors.New("ledger unavailable")
	}
	return fmt.Sprintf("tx-withdraw-%d", f.withdrawCalls), nil
}

// seedVerifiedLawyer inserts a verified lawyer profile so claims pass the
// verification gate.
func seedVerifiedLawyer(t *testing.T, db *gorm.DB, userID string) {
	t.Helper()
	require.NoError(t, db.Create(&models.LawyerProfile{
		ID:                 "profile-" + userID,
		ExternalUserID:     userID,
		LawSocietyNumber:   "LSN-001",
		Jurisdiction:       "Nairobi",
		VerificationStatus: models.VerificationVerified,
	}).Error)
}

var (
	adminActor  = Actor{ID: "admin-1", Roles: []string{"admin"}}
	ngoActor    = Actor{ID: "ngo-1", Roles: []string{"ngo"}}
	lawyerActor = Actor{ID: "lawyer-1", Roles: []string{"lawyer"}}
	donorActor  = Actor{ID: "donor-1", Roles: []string{"donor"}}
)
