// services/actor.go
package services

import (
	"errors"

	"github.com/Haki-Chain/Haki-Chain/models"
	"gorm.io/gorm"
)

// Actor is the caller identity forwarded by the Gateway
// (X-User-ID / X-User-Roles headers).
type Actor struct {
	ID    string
	Roles []string
}

func (a Actor) HasRole(role models.UserRole) bool {
	for _, r := range a.Roles {
		if r == string(role) {
			return true
		}
	}
	return false
}

// Capability checks. Each state-machine operation evaluates exactly one of
// these at the top and fails with a typed AuthorizationError; no permission
// logic lives anywhere else.

func canApproveBounty(actor Actor) error {
	if !actor.HasRole(models.RoleAdmin) {
		return NewAuthorizationError("only admins can approve bounties")
	}
	return nil
}

func canRejectBounty(actor Actor) error {
	if !actor.HasRole(models.RoleAdmin) {
		return NewAuthorizationError("only admins can reject bounties")
	}
	return nil
}

// canClaimBounty requires the lawyer role plus a verified lawyer profile.
func canClaimBounty(db *gorm.DB, actor Actor) error {
	if !actor.HasRole(models.RoleLawyer) {
		return NewAuthorizationError("only lawyers can claim bounties")
	}
	var profile models.LawyerProfile
	if err := db.Where("external_user_id = ?", actor.ID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NewAuthorizationError("lawyer profile not found")
		}
		return err
	}
	if profile.VerificationStatus != models.VerificationVerified {
		return NewAuthorizationError("only verified lawyers can claim bounties")
	}
	return nil
}

func canCompleteMilestone(bounty *models.Bounty, actor Actor) error {
	if bounty.LawyerID == nil || *bounty.LawyerID != actor.ID {
		return NewAuthorizationError("only the assigned lawyer can complete milestones")
	}
	return nil
}

func canApproveMilestone(bounty *models.Bounty, actor Actor) error {
	if bounty.NGOID != actor.ID {
		return NewAuthorizationError("only the owning NGO can approve milestones")
	}
	return nil
}
