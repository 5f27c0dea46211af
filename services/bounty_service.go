// services/bounty_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/Haki-Chain/Haki-Chain/models"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// RewardRate: share of the funding goal minted to the lawyer as HAKI tokens
// when every milestone of a bounty has been released.
const RewardRate = 0.05

type BountyService struct {
	DB     *gorm.DB
	Ledger LedgerService
}

func NewBountyService(db *gorm.DB, ledger LedgerService) *BountyService {
	return &BountyService{DB: db, Ledger: ledger}
}

// MilestoneInput describes one milestone at bounty creation time.
type MilestoneInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Amount      float64    `json:"amount"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// CreateBounty creates a Pending bounty with its ordered milestone sequence.
// Milestone amounts must sum to the funding goal.
func (s *BountyService) CreateBounty(actor Actor, title, description, category, location string, fundingGoal float64, milestones []MilestoneInput) (*models.Bounty, error) {
	if !actor.HasRole(models.RoleNGO) {
		return nil, NewAuthorizationError("only NGOs can create bounties")
	}
	if title == "" {
		return nil, NewValidationError("title is required")
	}
	if fundingGoal <= 0 {
		return nil, NewValidationError("funding goal must be positive")
	}
	if len(milestones) == 0 {
		return nil, NewValidationError("at least one milestone is required")
	}
	var total float64
	for i, m := range milestones {
		if m.Amount <= 0 {
			return nil, NewValidationError("milestone %d amount must be positive", i+1)
		}
		total += m.Amount
	}
	if math.Abs(total-fundingGoal) > 0.01 {
		return nil, NewValidationError("milestone amounts ($%.2f) must sum to the funding goal ($%.2f)", total, fundingGoal)
	}

	bounty := &models.Bounty{
		ID:          uuid.NewString(),
		Title:       title,
		Slug:        slug.Make(title),
		Description: description,
		Category:    category,
		Location:    location,
		NGOID:       actor.ID,
		FundingGoal: fundingGoal,
		Status:      models.BountyStatusPending,
	}
	for i, m := range milestones {
		bounty.Milestones = append(bounty.Milestones, models.Milestone{
			ID:          uuid.NewString(),
			BountyID:    bounty.ID,
			Title:       m.Title,
			Description: m.Description,
			Sequence:    i + 1,
			Amount:      m.Amount,
			Status:      models.MilestoneStatusPending,
			DueDate:     m.DueDate,
		})
	}

	if err := s.DB.Create(bounty).Error; err != nil {
		return nil, err
	}
	return bounty, nil
}

// Approve transitions Pending → Active. The transition claim and the ledger
// escrow creation run in one transaction, so the bounty is left untouched if
// the ledger call fails.
func (s *BountyService) Approve(bountyID string, actor Actor, notes string) (*models.Bounty, error) {
	if err := canApproveBounty(actor); err != nil {
		return nil, err
	}

	bounty, err := s.getBountyWithMilestones(bountyID)
	if err != nil {
		return nil, err
	}
	if bounty.Status != models.BountyStatusPending {
		return nil, NewInvalidStateError("only pending bounties can be approved (current: %s)", bounty.Status)
	}

	escrowMilestones := make([]EscrowMilestone, 0, len(bounty.Milestones))
	for _, m := range bounty.Milestones {
		escrowMilestones = append(escrowMilestones, EscrowMilestone{
			ID:          m.ID,
			Amount:      m.Amount,
			Description: m.Description,
		})
	}

	var contractID string
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// Claim the transition before the ledger call. The guarded update
		// holds the row write lock for the rest of the transaction, so a
		// concurrent approval queues here, then fails the status check
		// instead of creating a second escrow.
		res := tx.Model(&models.Bounty{}).
			Where("id = ? AND status = ?", bounty.ID, models.BountyStatusPending).
			Updates(map[string]interface{}{
				"status":      models.BountyStatusActive,
				"admin_notes": notes,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return NewInvalidStateError("bounty %s was updated concurrently", bounty.ID)
		}

		var ledgerErr error
		contractID, ledgerErr = s.Ledger.CreateEscrow(bounty.ID, bounty.NGOID, bounty.FundingGoal, escrowMilestones)
		recordLedgerCall("create_escrow", ledgerErr)
		if ledgerErr != nil {
			// Rolls back the claimed transition; the bounty stays Pending.
			return asSettlementError("create_escrow", ledgerErr)
		}

		if err := tx.Model(&models.Bounty{}).
			Where("id = ?", bounty.ID).
			Update("contract_id", contractID).Error; err != nil {
			return err
		}

		escrow := models.Escrow{
			ID:         uuid.NewString(),
			BountyID:   bounty.ID,
			ContractID: contractID,
			Amount:     bounty.FundingGoal,
			Status:     models.EscrowStatusActive,
		}
		return tx.Create(&escrow).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Bounty %s approved, escrow contract %s", bounty.ID, contractID)
	return s.getBountyWithMilestones(bountyID)
}

// Reject transitions Pending → Rejected. Terminal, no ledger interaction.
func (s *BountyService) Reject(bountyID string, actor Actor, notes string) (*models.Bounty, error) {
	if err := canRejectBounty(actor); err != nil {
		return nil, err
	}

	bounty, err := s.getBounty(bountyID)
	if err != nil {
		return nil, err
	}
	if bounty.Status != models.BountyStatusPending {
		return nil, NewInvalidStateError("only pending bounties can be rejected (current: %s)", bounty.Status)
	}

	res := s.DB.Model(&models.Bounty{}).
		Where("id = ? AND status = ?", bounty.ID, models.BountyStatusPending).
		Updates(map[string]interface{}{
			"status":      models.BountyStatusRejected,
			"admin_notes": notes,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, NewInvalidStateError("bounty %s was updated concurrently", bounty.ID)
	}
	return s.getBounty(bountyID)
}

// Claim assigns a verified lawyer to an Active bounty and moves the first
// milestone in sequence order to InProgress.
func (s *BountyService) Claim(bountyID string, actor Actor) (*models.Bounty, error) {
	if err := canClaimBounty(s.DB, actor); err != nil {
		return nil, err
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var bounty models.Bounty
		if err := tx.First(&bounty, "id = ?", bountyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NewValidationError("bounty not found")
			}
			return err
		}
		if bounty.Status != models.BountyStatusActive {
			return NewInvalidStateError("only active bounties can be claimed (current: %s)", bounty.Status)
		}

		res := tx.Model(&models.Bounty{}).
			Where("id = ? AND status = ?", bountyID, models.BountyStatusActive).
			Updates(map[string]interface{}{
				"status":    models.BountyStatusClaimed,
				"lawyer_id": actor.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return NewInvalidStateError("bounty %s was claimed concurrently", bountyID)
		}

		var first models.Milestone
		if err := tx.Where("bounty_id = ?", bountyID).
			Order("sequence ASC").
			First(&first).Error; err != nil {
			return err
		}
		return tx.Model(&models.Milestone{}).
			Where("id = ? AND status = ?", first.ID, models.MilestoneStatusPending).
			Update("status", models.MilestoneStatusInProgress).Error
	})
	if err != nil {
		return nil, err
	}
	return s.getBountyWithMilestones(bountyID)
}

// Donate records an immutable donation against an Active or Claimed bounty.
// Pure bookkeeping: pooled funds settle against the escrow at approval time,
// so there is no ledger interaction here. The bounty funding counter and the
// donor aggregate are updated in the same transaction as the donation write.
func (s *BountyService) Donate(bountyID string, actor Actor, amount float64, message string) (*models.Donation, error) {
	if amount <= 0 {
		return nil, NewValidationError("donation amount must be positive")
	}

	donation := &models.Donation{
		ID:       uuid.NewString(),
		BountyID: bountyID,
		DonorID:  actor.ID,
		Amount:   amount,
		Message:  message,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var bounty models.Bounty
		if err := tx.First(&bounty, "id = ?", bountyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NewValidationError("bounty not found")
			}
			return err
		}
		if bounty.Status != models.BountyStatusActive && bounty.Status != models.BountyStatusClaimed {
			return NewInvalidStateError("can only donate to active or claimed bounties (current: %s)", bounty.Status)
		}

		if err := tx.Create(donation).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Bounty{}).
			Where("id = ? AND status IN ?", bountyID, []models.BountyStatus{models.BountyStatusActive, models.BountyStatusClaimed}).
			Update("current_funding", gorm.Expr("current_funding + ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return NewInvalidStateError("bounty %s changed state during donation", bountyID)
		}

		// Donor aggregate moves with the donation, or not at all.
		var donor models.DonorProfile
		err := tx.Where("external_user_id = ?", actor.ID).First(&donor).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			donor = models.DonorProfile{
				ID:             uuid.NewString(),
				ExternalUserID: actor.ID,
				TotalDonated:   amount,
			}
			return tx.Create(&donor).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&donor).
			Update("total_donated", gorm.Expr("total_donated + ?", amount)).Error
	})
	if err != nil {
		return nil, err
	}
	return donation, nil
}

// CompleteMilestone is the lawyer-reported completion of the in-progress
// milestone. No funds move until the NGO approves.
func (s *BountyService) CompleteMilestone(milestoneID string, actor Actor, notes string, evidenceURL *string) (*models.Milestone, error) {
	milestone, bounty, err := s.getMilestoneWithBounty(milestoneID)
	if err != nil {
		return nil, err
	}
	if err := canCompleteMilestone(bounty, actor); err != nil {
		return nil, err
	}
	if milestone.Status != models.MilestoneStatusInProgress {
		return nil, NewInvalidStateError("only in-progress milestones can be completed (current: %s)", milestone.Status)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":           models.MilestoneStatusCompleted,
		"completion_notes": notes,
		"completed_at":     now,
	}
	if evidenceURL != nil {
		updates["evidence_url"] = *evidenceURL
	}

	res := s.DB.Model(&models.Milestone{}).
		Where("id = ? AND status = ?", milestoneID, models.MilestoneStatusInProgress).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, NewInvalidStateError("milestone %s was updated concurrently", milestoneID)
	}

	var out models.Milestone
	if err := s.DB.First(&out, "id = ?", milestoneID).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// ApproveMilestoneResult reports what the approval settled.
type ApproveMilestoneResult struct {
	Milestone       *models.Milestone `json:"milestone"`
	Payment         *models.Payment   `json:"payment"`
	BountyCompleted bool              `json:"bounty_completed"`
	RewardMinted    float64           `json:"reward_minted,omitempty"`
	// RewardError reports a failed reward mint after bounty completion.
	// The completed bounty state is not rolled back.
	RewardError string `json:"reward_error,omitempty"`
}

// ApproveMilestone is the NGO's approval of a completed milestone: release
// the payment on the ledger, record the settlement, then either advance the
// next milestone in sequence order or complete the bounty and mint the
// lawyer's reward. Safe to retry per milestone id — a milestone already
// Released fails the precondition and cannot be double-paid.
func (s *BountyService) ApproveMilestone(milestoneID string, actor Actor, notes string) (*ApproveMilestoneResult, error) {
	milestone, bounty, err := s.getMilestoneWithBounty(milestoneID)
	if err != nil {
		return nil, err
	}
	if err := canApproveMilestone(bounty, actor); err != nil {
		return nil, err
	}
	if milestone.Status != models.MilestoneStatusCompleted {
		return nil, NewInvalidStateError("only completed milestones can be approved (current: %s)", milestone.Status)
	}
	if bounty.ContractID == nil {
		return nil, NewInvalidStateError("bounty %s has no escrow contract", bounty.ID)
	}
	if bounty.LawyerID == nil {
		return nil, NewInvalidStateError("bounty %s has no assigned lawyer", bounty.ID)
	}
	lawyerID := *bounty.LawyerID

	result := &ApproveMilestoneResult{}
	var txID string

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// Claim the transition before the ledger call: concurrent approvals
		// of the same milestone queue on the row lock, so at most one ever
		// asks the ledger to release.
		res := tx.Model(&models.Milestone{}).
			Where("id = ? AND status = ?", milestone.ID, models.MilestoneStatusCompleted).
			Updates(map[string]interface{}{
				"status":         models.MilestoneStatusReleased,
				"approval_notes": notes,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return NewInvalidStateError("milestone %s was approved concurrently", milestone.ID)
		}

		var ledgerErr error
		txID, ledgerErr = s.Ledger.ReleaseMilestonePayment(*bounty.ContractID, milestone.ID, lawyerID)
		recordLedgerCall("release_milestone_payment", ledgerErr)
		if ledgerErr != nil {
			// Rolls back the claim; the milestone stays Completed and the
			// operation can be retried.
			return asSettlementError("release_milestone_payment", ledgerErr)
		}

		if err := tx.Model(&models.Milestone{}).
			Where("id = ?", milestone.ID).
			Update("transaction_id", txID).Error; err != nil {
			return err
		}

		payment := models.Payment{
			ID:            uuid.NewString(),
			BountyID:      bounty.ID,
			MilestoneID:   &milestone.ID,
			SenderID:      bounty.NGOID,
			ReceiverID:    &lawyerID,
			Amount:        milestone.Amount,
			PaymentType:   models.PaymentTypeMilestone,
			Status:        models.PaymentStatusCompleted,
			TransactionID: txID,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		result.Payment = &payment

		// Release order is the stored sequence, never retrieval order.
		var remaining []models.Milestone
		if err := tx.Where("bounty_id = ? AND status <> ?", bounty.ID, models.MilestoneStatusReleased).
			Order("sequence ASC").
			Find(&remaining).Error; err != nil {
			return err
		}

		if len(remaining) == 0 {
			res := tx.Model(&models.Bounty{}).
				Where("id = ? AND status = ?", bounty.ID, models.BountyStatusClaimed).
				Update("status", models.BountyStatusCompleted)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return NewInvalidStateError("bounty %s changed state during completion", bounty.ID)
			}
			if err := tx.Model(&models.Escrow{}).
				Where("bounty_id = ?", bounty.ID).
				Update("status", models.EscrowStatusReleased).Error; err != nil {
				return err
			}
			result.BountyCompleted = true
			return nil
		}

		// Advance the next milestone strictly after the just-released one.
		var next *models.Milestone
		for i := range remaining {
			if remaining[i].Sequence > milestone.Sequence {
				next = &remaining[i]
				break
			}
		}
		if next != nil && next.Status == models.MilestoneStatusPending {
			if err := tx.Model(&models.Milestone{}).
				Where("id = ? AND status = ?", next.ID, models.MilestoneStatusPending).
				Update("status", models.MilestoneStatusInProgress).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var se *SettlementError
		if errors.As(err, &se) && se.Op == "release_milestone_payment" {
			// The failed settlement still leaves an audit record, written
			// after the rollback so it survives it.
			failed := models.Payment{
				ID:          uuid.NewString(),
				BountyID:    bounty.ID,
				MilestoneID: &milestone.ID,
				SenderID:    bounty.NGOID,
				ReceiverID:  &lawyerID,
				Amount:      milestone.Amount,
				PaymentType: models.PaymentTypeMilestone,
				Status:      models.PaymentStatusFailed,
			}
			if dbErr := s.DB.Create(&failed).Error; dbErr != nil {
				log.Printf("❌ Failed to record failed payment for milestone %s: %v", milestone.ID, dbErr)
			}
		}
		return nil, err
	}

	// Reward minting is a decoupled failure domain: the bounty stays
	// completed even if the mint fails.
	if result.BountyCompleted {
		reward := bounty.FundingGoal * RewardRate
		reason := fmt.Sprintf("Completed bounty: %s", bounty.Title)
		mintTxID, mintErr := s.Ledger.MintTokens(lawyerID, reward, reason)
		recordLedgerCall("mint_tokens", mintErr)
		if mintErr != nil {
			log.Printf("❌ Reward mint failed for bounty %s (lawyer %s): %v", bounty.ID, lawyerID, mintErr)
			result.RewardError = asSettlementError("mint_tokens", mintErr).Error()
		} else {
			if err := s.creditReward(lawyerID, bounty.ID, reward, mintTxID); err != nil {
				log.Printf("❌ Failed to record reward for bounty %s: %v", bounty.ID, err)
				result.RewardError = err.Error()
			} else {
				result.RewardMinted = reward
			}
		}
	}

	var out models.Milestone
	if err := s.DB.First(&out, "id = ?", milestoneID).Error; err != nil {
		return nil, err
	}
	result.Milestone = &out
	return result, nil
}

// creditReward credits the lawyer's token balance and appends the matching
// Reward entry to the transaction log, atomically.
func (s *BountyService) creditReward(lawyerID, bountyID string, amount float64, txID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var token models.Token
		err := tx.Where("external_user_id = ?", lawyerID).First(&token).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			token = models.Token{
				ID:             uuid.NewString(),
				ExternalUserID: lawyerID,
				Balance:        0,
			}
			if err := tx.Create(&token).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := tx.Model(&models.Token{}).
			Where("id = ?", token.ID).
			Update("balance", gorm.Expr("balance + ?", amount)).Error; err != nil {
			return err
		}

		entry := models.TokenTransaction{
			ID:              uuid.NewString(),
			TokenID:         token.ID,
			Amount:          amount,
			TransactionType: models.TokenTxReward,
			ReceiverID:      &lawyerID,
			BountyID:        &bountyID,
			TransactionID:   txID,
		}
		return tx.Create(&entry).Error
	})
}

func (s *BountyService) getBounty(id string) (*models.Bounty, error) {
	var bounty models.Bounty
	if err := s.DB.First(&bounty, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidationError("bounty not found")
		}
		return nil, err
	}
	return &bounty, nil
}

func (s *BountyService) getBountyWithMilestones(id string) (*models.Bounty, error) {
	var bounty models.Bounty
	err := s.DB.Preload("Milestones", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence ASC")
	}).First(&bounty, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidationError("bounty not found")
		}
		return nil, err
	}
	return &bounty, nil
}

func (s *BountyService) getMilestoneWithBounty(id string) (*models.Milestone, *models.Bounty, error) {
	var milestone models.Milestone
	if err := s.DB.First(&milestone, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, NewValidationError("milestone not found")
		}
		return nil, nil, err
	}
	var bounty models.Bounty
	if err := s.DB.First(&bounty, "id = ?", milestone.BountyID).Error; err != nil {
		return nil, nil, err
	}
	return &milestone, &bounty, nil
}

// asSettlementError keeps already-typed settlement errors intact and wraps
// anything else the ledger client returned.
func asSettlementError(op string, err error) error {
	var se *SettlementError
	if errors.As(err, &se) {
		return err
	}
	return NewSettlementError(op, "unexpected ledger failure", err)
}
