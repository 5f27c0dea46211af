package services

import (
	"testing"

	"github.com/Haki-Chain/Haki-Chain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestBounty(t *testing.T, s *BountyService) *models.Bounty {
	t.Helper()
	bounty, err := s.CreateBounty(ngoActor, "Land Rights Case", "Eviction defense for informal settlement residents", "land_rights", "Nairobi", 1000, []MilestoneInput{
		{Title: "Case filing", Description: "File the case", Amount: 600},
		{Title: "Court representation", Description: "Represent in court", Amount: 400},
	})
	require.NoError(t, err)
	return bounty
}

func TestCreateBountyValidation(t *testing.T) {
	db := setupTestDB(t)
	s := NewBountyService(db, &fakeLedger{})

	_, err := s.CreateBounty(donorActor, "Case", "", "", "", 100, []MilestoneInput{{Title: "m", Amount: 100}})
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)

	_, err = s.CreateBounty(ngoActor, "", "", "", "", 100, []MilestoneInput{{Title: "m", Amount: 100}})
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)

	// Milestone amounts must sum to the funding goal
	_, err = s.CreateBounty(ngoActor, "Case", "", "", "", 1000, []MilestoneInput{
		{Title: "m1", Amount: 600},
		{Title: "m2", Amount: 300},
	})
	require.ErrorAs(t, err, &valErr)

	bounty := createTestBounty(t, s)
	assert.Equal(t, models.BountyStatusPending, bounty.Status)
	assert.Equal(t, "land-rights-case", bounty.Slug)
	require.Len(t, bounty.Milestones, 2)
	assert.Equal(t, 1, bounty.Milestones[0].Sequence)
	assert.Equal(t, 2, bounty.Milestones[1].Sequence)
}

func TestBountyLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ledger := &fakeLedger{}
	s := NewBountyService(db, ledger)
	seedVerifiedLawyer(t, db, lawyerActor.ID)

	bounty := createTestBounty(t, s)

	// Approval creates the escrow contract and activates the bounty
	bounty, err := s.Approve(bounty.ID, adminActor, "looks good")
	require.NoError(t, err)
	assert.Equal(t, models.BountyStatusActive, bounty.Status)
	require.NotNil(t, bounty.ContractID)
	assert.Equal(t, 1, ledger.createEscrowCalls)

	var escrow models.Escrow
	require.NoError(t, db.First(&escrow, "bounty_id = ?", bounty.ID).Error)
	assert.Equal(t, models.EscrowStatusActive, escrow.Status)
	assert.Equal(t, 1000.0, escrow.Amount)

	// Donations accumulate on the funding counter
	_, err = s.Donate(bounty.ID, donorActor, 250, "keep going")
	require.NoError(t, err)
	_, err = s.Donate(bounty.ID, donorActor, 750, "")
	require.NoError(t, err)

	require.NoError(t, db.First(bounty, "id = ?", bounty.ID).Error)
	assert.Equal(t, 1000.0, bounty.CurrentFunding)

	var donor models.DonorProfile
	require.NoError(t, db.First(&donor, "external_user_id = ?", donorActor.ID).Error)
	assert.Equal(t, 1000.0, donor.TotalDonated)

	// Claiming assigns the lawyer and starts the first milestone
	bounty, err = s.Claim(bounty.ID, lawyerActor)
	require.NoError(t, err)
	assert.Equal(t, models.BountyStatusClaimed, bounty.Status)
	require.NotNil(t, bounty.LawyerID)
	assert.Equal(t, lawyerActor.ID, *bounty.LawyerID)
	require.Len(t, bounty.Milestones, 2)
	assert.Equal(t, models.MilestoneStatusInProgress, bounty.Milestones[0].Status)
	assert.Equal(t, models.MilestoneStatusPending, bounty.Milestones[1].Status)

	// First milestone: complete, then NGO approves and the payment settles
	first := bounty.Milestones[0]
	_, err = s.CompleteMilestone(first.ID, lawyerActor, "case filed", nil)
	require.NoError(t, err)

	result, err := s.ApproveMilestone(first.ID, ngoActor, "confirmed filing")
	require.NoError(t, err)
	assert.Equal(t, models.MilestoneStatusReleased, result.Milestone.Status)
	require.NotNil(t, result.Payment)
	assert.Equal(t, 600.0, result.Payment.Amount)
	assert.Equal(t, models.PaymentStatusCompleted, result.Payment.Status)
	assert.False(t, result.BountyCompleted)

	// Approval advanced the next milestone in sequence
	require.NoError(t, db.First(bounty, "id = ?", bounty.ID).Error)
	assert.Equal(t, models.BountyStatusClaimed, bounty.Status)
	var second models.Milestone
	require.NoError(t, db.Where("bounty_id = ? AND sequence = ?", bounty.ID, 2).First(&second).Error)
	assert.Equal(t, models.MilestoneStatusInProgress, second.Status)

	// Second milestone closes the bounty and mints the 5% reward
	_, err = s.CompleteMilestone(second.ID, lawyerActor, "case won", nil)
	require.NoError(t, err)
	result, err = s.ApproveMilestone(second.ID, ngoActor, "")
	require.NoError(t, err)
	assert.True(t, result.BountyCompleted)
	assert.Equal(t, 50.0, result.RewardMinted)
	assert.Empty(t, result.RewardError)
	assert.Equal(t, 1, ledger.mintCalls)

	require.NoError(t, db.First(bounty, "id = ?", bounty.ID).Error)
	assert.Equal(t, models.BountyStatusCompleted, bounty.Status)
	require.NoError(t, db.First(&escrow, "bounty_id = ?", bounty.ID).Error)
	assert.Equal(t, models.EscrowStatusReleased, escrow.Status)

	// The lawyer's token balance matches the signed transaction log
	ts := NewTokenService(db, ledger)
	cached, logged, consistent, err := ts.CheckBalanceConsistency(lawyerActor.ID)
	require.NoError(t, err)
	assert.True(t, consistent)
	assert.Equal(t, 50.0, cached)
	assert.Equal(t, 50.0, logged)
}

func TestApproveRequiresAdminAndPendingState(t *testing.T) {
	db := setupTestDB(t)
	ledger := &fakeLedger{}
	s := NewBountyService(db, ledger)

	bounty := createTestBounty(t, s)

	_, err := s.Approve(bounty.ID, ngoActor, "")
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)

	_, err = s.Approve(bounty.ID, adminActor, "")
	require.NoError(t, err)

	// Second approval fails the precondition; no second escrow is created
	_, err = s.Approve(bounty.ID, adminActor, "")
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, 1, ledger.createEscrowCalls)

	var escrowCount int64
	require.NoError(t, db.Model(&models.Escrow{}).Where("bounty_id = ?", bounty.ID).Count(&escrowCount).Error)
	assert.Equal(t, int64(1), escrowCount)
}

func TestApproveLedgerFailureLeavesBountyUntouched(t *testing.T) {
	db := setupTestDB(t)
	ledger := &fakeLedger{failCreateEscrow: true}
	s := NewBountyService(db, ledger)

	bounty := createTestBounty(t, s)

	_, err := s.Approve(bounty.ID, adminActor, "")
	var setErr *SettlementError
	require.ErrorAs(t, err, &setErr)
	assert.Equal(t, "create_escrow", setErr.Op)

	require.NoError(t, db.First(bounty, "id = ?", bounty.ID).Error)
	assert.Equal(t, models.BountyStatusPending, bounty.Status)
	assert.Nil(t, bounty.ContractID)

	// The rolled-back attempt left no escrow mirror row behind
	var escrowCount int64
	require.NoError(t, db.Model(&models.Escrow{}).Where("bounty_id = ?", bounty.ID).Count(&escrowCount).Error)
	assert.Zero(t, escrowCount)

	// Retry succeeds once the ledger recovers
	ledger.failCreateEscrow = false
	bounty, err = s.Approve(bounty.ID, adminActor, "")
	require.NoError(t, err)
	assert.Equal(t, models.BountyStatusActive, bounty.Status)
}

func TestRejectIsTerminal(t *testing.T) {
	db := setupTestDB(t)
	ledger := &fakeLedger{}
	s := NewBountyService(db, ledger)

	bounty := createTestBounty(t, s)

	bounty, err := s.Reject(bounty.ID, adminActor, "incomplete documentation")
	require.NoError(t, err)
	assert.Equal(t, models.BountyStatusRejected, bounty.Status)
	assert.Equal(t, "incomplete documentation", bounty.AdminNotes)
	assert.Equal(t, 0, ledger.createEscrowCalls)

	_, err = s.Approve(bounty.ID, adminActor, "")
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
}

func TestClaimRequiresVerifiedLawyer(t *testing.T) {
	db := setupTestDB(t)
	s := NewBountyService(db, &fakeLedger{})

	bounty := createTestBounty(t, s)
	_, err := s.Approve(bounty.ID, adminActor, "")
	require.NoError(t, err)

	// No profile at all
	_, err = s.Claim(bounty.ID, lawyerActor)
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)

	// Pending verification is not enough
	require.NoError(t, db.Create(&models.LawyerProfile{
		ID:                 "profile-pending",
		ExternalUserID:     lawyerActor.ID,
		LawSocietyNumber:   "LSN-002",
		VerificationStatus: models.VerificationPending,
	}).Error)
	_, err = s.Claim(bounty.ID, lawyerActor)
	require.ErrorAs(t, err, &authErr)

	require.NoError(t, db.Model(&models.LawyerProfile{}).
		Where("external_user_id = ?", lawyerActor.ID).
		Update("verification_status", models.VerificationVerified).Error)
	claimed, err := s.Claim(bounty.ID, lawyerActor)
	require.NoError(t, err)
	assert.Equal(t, models.BountyStatusClaimed, claimed.Status)

	// Already-claimed bounty cannot be claimed again
	other := Actor{ID: "lawyer-2", Roles: []string{"lawyer"}}
	seedVerifiedLawyer(t, db, other.ID)
	_, err = s.Claim(bounty.ID, other)
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
}

func TestDonateStateRules(t *testing.T) {
	db := setupTestDB(t)
	s := NewBountyService(db, &fakeLedger{})

	bounty := createTestBounty(t, s)

	// Pending bounty accepts no donations
	_, err := s.Donate(bounty.ID, donorActor, 100, "")
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)

	_, err = s.Donate(bounty.ID, donorActor, 0, "")
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)

	_, err = s.Approve(bounty.ID, adminActor, "")
	require.NoError(t, err)
	donation, err := s.Donate(bounty.ID, donorActor, 100, "good cause")
	require.NoError(t, err)
	assert.Equal(t, 100.0, donation.Amount)

	// Funding may exceed the goal; donations are never rejected for overflow
	_, err = s.Donate(bounty.ID, donorActor, 5000, "")
	require.NoError(t, err)
	require.NoError(t, db.First(bounty, "id = ?", bounty.ID).Error)
	assert.Equal(t, 5100.0, bounty.CurrentFunding)
}

func TestCompleteMilestoneAuthorization(t *testing.T) {
	db := setupTestDB(t)
	s := NewBountyService(db, &fakeLedger{})
	seedVerifiedLawyer(t, db, lawyerActor.ID)

	bounty := createTestBounty(t, s)
	_, err := s.Approve(bounty.ID, adminActor, "")
	require.NoError(t, err)
	bounty, err = s.Claim(bounty.ID, lawyerActor)
	require.NoError(t, err)
	first := bounty.Milestones[0]

	// Only the assigned lawyer may report completion
	other := Actor{ID: "lawyer-2", Roles: []string{"lawyer"}}
	_, err = s.CompleteMilestone(first.ID, other, "done", nil)
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)

	// The second milestone is still pending, not in progress
	second := bounty.Milestones[1]
	_, err = s.CompleteMilestone(second.ID, lawyerActor, "done", nil)
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)

	evidence := "https://files.example.com/evidence/filing.pdf"
	milestone, err := s.CompleteMilestone(first.ID, lawyerActor, "case filed", &evidence)
	require.NoError(t, err)
	assert.Equal(t, models.MilestoneStatusCompleted, milestone.Status)
	require.NotNil(t, milestone.EvidenceURL)
	assert.Equal(t, evidence, *milestone.EvidenceURL)
	require.NotNil(t, milestone.CompletedAt)
}

func TestApproveMilestoneLedgerFailureIsRetryable(t *testing.T) {
	db := setupTestDB(t)
	ledger := &fakeLedger{}
	s := NewBountyService(db, ledger)
	seedVerifiedLawyer(t, db, lawyerActor.ID)

	bounty := createTestBounty(t, s)
	_, err := s.Approve(bounty.ID, adminActor, "")
	require.NoError(t, err)
	bounty, err = s.Claim(bounty.ID, lawyerActor)
	require.NoError(t, err)
	first := bounty.Milestones[0]
	_, err = s.CompleteMilestone(first.ID, lawyerActor, "case filed", nil)
	require.NoError(t, err)

	// Ledger failure: milestone stays Completed, a Failed payment records
	// the attempt, and the operation can be retried
	ledger.failRelease = true
	_, err = s.ApproveMilestone(first.ID, ngoActor, "")
	var setErr *SettlementError
	require.ErrorAs(t, err, &setErr)
	assert.Equal(t, "release_milestone_payment", setErr.Op)

	// The claimed transition rolled back entirely
	var milestone models.Milestone
	require.NoError(t, db.First(&milestone, "id = ?", first.ID).Error)
	assert.Equal(t, models.MilestoneStatusCompleted, milestone.Status)
	assert.Nil(t, milestone.TransactionID)

	var failedCount int64
	require.NoError(t, db.Model(&models.Payment{}).
		Where("milestone_id = ? AND status = ?", first.ID, models.PaymentStatusFailed).
		Count(&failedCount).Error)
	assert.Equal(t, int64(1), failedCount)

	ledger.failRelease = false
	result, err := s.ApproveMilestone(first.ID, ngoActor, "")
	require.NoError(t, err)
	assert.Equal(t, models.MilestoneStatusReleased, result.Milestone.Status)

	// Exactly one Completed payment exists for the milestone
	var completedCount int64
	require.NoError(t, db.Model(&models.Payment{}).
		Where("milestone_id = ? AND status = ?", first.ID, models.PaymentStatusCompleted).
		Count(&completedCount).Error)
	assert.Equal(t, int64(1), completedCount)

	// Re-approving a released milestone fails without another ledger call
	releases := ledger.releaseCalls
	_, err = s.ApproveMilestone(first.ID, ngoActor, "")
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, releases, ledger.releaseCalls)
}

func TestApproveMilestoneAuthorizationAndOrder(t *testing.T) {
	db := setupTestDB(t)
	s := NewBountyService(db, &fakeLedger{})
	seedVerifiedLawyer(t, db, lawyerActor.ID)

	bounty := createTestBounty(t, s)
	_, err := s.Approve(bounty.ID, adminActor, "")
	require.NoError(t, err)
	bounty, err = s.Claim(bounty.ID, lawyerActor)
	require.NoError(t, err)
	first := bounty.Milestones[0]
	second := bounty.Milestones[1]

	_, err = s.CompleteMilestone(first.ID, lawyerActor, "done", nil)
	require.NoError(t, err)

	// Only the owning NGO can approve
	otherNGO := Actor{ID: "ngo-2", Roles: []string{"ngo"}}
	_, err = s.ApproveMilestone(first.ID, otherNGO, "")
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)

	// The second milestone cannot be approved before it is completed
	_, err = s.ApproveMilestone(second.ID, ngoActor, "")
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
}

func TestRewardMintFailureKeepsBountyCompleted(t *testing.T) {
	db := setupTestDB(t)
	ledger := &fakeLedger{failMint: true}
	s := NewBountyService(db, ledger)
	seedVerifiedLawyer(t, db, lawyerActor.ID)

	bounty := createTestBounty(t, s)
	_, err := s.Approve(bounty.ID, adminActor, "")
	require.NoError(t, err)
	bounty, err = s.Claim(bounty.ID, lawyerActor)
	require.NoError(t, err)

	for _, m := range bounty.Milestones {
		_, err = s.CompleteMilestone(m.ID, lawyerActor, "done", nil)
		require.NoError(t, err)
		result, err := s.ApproveMilestone(m.ID, ngoActor, "")
		require.NoError(t, err)
		if result.BountyCompleted {
			assert.NotEmpty(t, result.RewardError)
			assert.Zero(t, result.RewardMinted)
		}
	}

	require.NoError(t, db.First(bounty, "id = ?", bounty.ID).Error)
	assert.Equal(t, models.BountyStatusCompleted, bounty.Status)

	// No token credit and no reward log entry: the balance invariant holds
	ts := NewTokenService(db, ledger)
	cached, logged, consistent, err := ts.CheckBalanceConsistency(lawyerActor.ID)
	require.NoError(t, err)
	assert.True(t, consistent)
	assert.Zero(t, cached)
	assert.Zero(t, logged)
}
