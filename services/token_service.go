// services/token_service.go
package services

import (
	"errors"
	"log"
	"time"

	"github.com/Haki-Chain/Haki-Chain/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversionRate: USD paid out per HAKI token. Fixed platform constant.
const ConversionRate = 0.32

type TokenService struct {
	DB     *gorm.DB
	Ledger LedgerService
}

func NewTokenService(db *gorm.DB, ledger LedgerService) *TokenService {
	return &TokenService{DB: db, Ledger: ledger}
}

// Balance returns the user's cached HAKI balance, creating the zero-balance
// row on first read.
func (s *TokenService) Balance(userID string) (float64, error) {
	token, err := s.ensureToken(s.DB, userID)
	if err != nil {
		return 0, err
	}
	return token.Balance, nil
}

// CheckBalanceConsistency compares the cached balance against the signed sum
// of the user's transaction log (rewards credit, burns and transfers debit).
// Divergence is reported, never silently corrected.
func (s *TokenService) CheckBalanceConsistency(userID string) (cached, logged float64, consistent bool, err error) {
	var token models.Token
	if err := s.DB.Where("external_user_id = ?", userID).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, true, nil
		}
		return 0, 0, false, err
	}

	logged, err = s.signedLogSum(token.ID)
	if err != nil {
		return 0, 0, false, err
	}
	return token.Balance, logged, token.Balance == logged, nil
}

func (s *TokenService) signedLogSum(tokenID string) (float64, error) {
	var entries []models.TokenTransaction
	if err := s.DB.Where("token_id = ?", tokenID).Find(&entries).Error; err != nil {
		return 0, err
	}
	var sum float64
	for _, e := range entries {
		switch e.TransactionType {
		case models.TokenTxReward:
			sum += e.Amount
		case models.TokenTxBurn, models.TokenTxTransfer:
			sum -= e.Amount
		}
	}
	return sum, nil
}

// ReconcileBalances sweeps every token row and reports divergence between
// cached balances and their transaction logs. Run periodically by the
// scheduler; divergences are counted in metrics and logged, not repaired.
func (s *TokenService) ReconcileBalances() (diverged int, err error) {
	var tokens []models.Token
	if err := s.DB.Find(&tokens).Error; err != nil {
		return 0, err
	}
	for _, token := range tokens {
		logged, err := s.signedLogSum(token.ID)
		if err != nil {
			return diverged, err
		}
		if token.Balance != logged {
			diverged++
			balanceDivergenceTotal.Inc()
			log.Printf("❌ Token balance divergence for user %s: cached=%.2f log=%.2f", token.ExternalUserID, token.Balance, logged)
		}
	}
	return diverged, nil
}

// Convert burns tokens for USD at the fixed platform rate. On ledger failure
// nothing is mutated; on success the debit, the Burn log entry and the
// conversion record commit together.
func (s *TokenService) Convert(userID string, tokenAmount float64) (*models.TokenConversion, error) {
	if tokenAmount <= 0 {
		return nil, NewValidationError("token amount must be positive")
	}

	token, err := s.ensureToken(s.DB, userID)
	if err != nil {
		return nil, err
	}
	if tokenAmount > token.Balance {
		return nil, NewValidationError("insufficient token balance (have %.2f, need %.2f)", token.Balance, tokenAmount)
	}

	var conversion *models.TokenConversion
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// Debit before the ledger call: the guarded update serializes
		// concurrent conversions on the token row (and keeps the balance
		// non-negative); a ledger failure rolls the debit back.
		res := tx.Model(&models.Token{}).
			Where("id = ? AND balance >= ?", token.ID, tokenAmount).
			Update("balance", gorm.Expr("balance - ?", tokenAmount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return NewInvalidStateError("token balance changed concurrently for user %s", userID)
		}

		txID, ledgerErr := s.Ledger.ConvertTokensToUSD(userID, tokenAmount, ConversionRate)
		recordLedgerCall("convert_tokens_to_usd", ledgerErr)
		if ledgerErr != nil {
			return asSettlementError("convert_tokens_to_usd", ledgerErr)
		}

		entry := models.TokenTransaction{
			ID:              uuid.NewString(),
			TokenID:         token.ID,
			Amount:          tokenAmount,
			TransactionType: models.TokenTxBurn,
			SenderID:        &userID,
			TransactionID:   txID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		conversion = &models.TokenConversion{
			ID:             uuid.NewString(),
			ExternalUserID: userID,
			TokenAmount:    tokenAmount,
			USDAmount:      tokenAmount * ConversionRate,
			ConversionRate: ConversionRate,
			Status:         models.ConversionStatusCompleted,
			TransactionID:  txID,
		}
		return tx.Create(conversion).Error
	})
	if err != nil {
		return nil, err
	}
	return conversion, nil
}

// WithdrawalDetails carries method-specific payout fields.
type WithdrawalDetails struct {
	BankName          string `json:"bank_name,omitempty"`
	BankAccountNumber string `json:"account_number,omitempty"`
	BankRoutingNumber string `json:"routing_number,omitempty"`
	CryptoAddress     string `json:"address,omitempty"`
	CryptoNetwork     string `json:"network,omitempty"`
}

// AvailableBalance derives what the user can withdraw: completed incoming
// payments minus every non-failed withdrawal. A failed withdrawal restores
// its amount to availability; nothing is double-counted because no counter
// is mutated anywhere.
func (s *TokenService) AvailableBalance(userID string) (float64, error) {
	return availableBalance(s.DB, userID)
}

func availableBalance(db *gorm.DB, userID string) (float64, error) {
	var paymentsTotal float64
	err := db.Model(&models.Payment{}).
		Where("receiver_id = ? AND status = ?", userID, models.PaymentStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&paymentsTotal).Error
	if err != nil {
		return 0, err
	}

	var withdrawalsTotal float64
	err = db.Model(&models.Withdrawal{}).
		Where("external_user_id = ? AND status <> ?", userID, models.WithdrawalStatusFailed).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&withdrawalsTotal).Error
	if err != nil {
		return 0, err
	}

	return paymentsTotal - withdrawalsTotal, nil
}

// Withdraw requests a payout of earned funds. The ledger processes the
// withdrawal; locally only the Processing record is created — no debit
// happens at request time.
func (s *TokenService) Withdraw(userID string, amount float64, method models.WithdrawalMethod, details WithdrawalDetails) (*models.Withdrawal, error) {
	if amount <= 0 {
		return nil, NewValidationError("withdrawal amount must be positive")
	}

	methodDetails := map[string]string{}
	switch method {
	case models.WithdrawalMethodBank:
		if details.BankName == "" || details.BankAccountNumber == "" || details.BankRoutingNumber == "" {
			return nil, NewValidationError("bank withdrawals require bank_name, account_number and routing_number")
		}
		methodDetails["bank_name"] = details.BankName
		methodDetails["account_number"] = details.BankAccountNumber
		methodDetails["routing_number"] = details.BankRoutingNumber
	case models.WithdrawalMethodCrypto:
		if details.CryptoAddress == "" || details.CryptoNetwork == "" {
			return nil, NewValidationError("crypto withdrawals require address and network")
		}
		methodDetails["address"] = details.CryptoAddress
		methodDetails["network"] = details.CryptoNetwork
	default:
		return nil, NewValidationError("unsupported withdrawal method: %s", method)
	}

	var withdrawal *models.Withdrawal
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Concurrent withdrawals for the same user serialize on the token
		// row write, so the balance check below always sees any winner's
		// committed Processing row.
		token, err := s.ensureToken(tx, userID)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Token{}).
			Where("id = ?", token.ID).
			Update("updated_at", time.Now()).Error; err != nil {
			return err
		}

		available, err := availableBalance(tx, userID)
		if err != nil {
			return err
		}
		if amount > available {
			return NewValidationError("insufficient balance for withdrawal (available $%.2f, requested $%.2f)", available, amount)
		}

		txID, ledgerErr := s.Ledger.ProcessWithdrawal(userID, amount, string(method), methodDetails)
		recordLedgerCall("process_withdrawal", ledgerErr)
		if ledgerErr != nil {
			return asSettlementError("process_withdrawal", ledgerErr)
		}

		withdrawal = &models.Withdrawal{
			ID:             uuid.NewString(),
			ExternalUserID: userID,
			Amount:         amount,
			Method:         method,
			Status:         models.WithdrawalStatusProcessing,
			TransactionID:  txID,
		}
		switch method {
		case models.WithdrawalMethodBank:
			withdrawal.BankName = &details.BankName
			withdrawal.BankAccountNumber = &details.BankAccountNumber
			withdrawal.BankRoutingNumber = &details.BankRoutingNumber
		case models.WithdrawalMethodCrypto:
			withdrawal.CryptoAddress = &details.CryptoAddress
			withdrawal.CryptoNetwork = &details.CryptoNetwork
		}
		return tx.Create(withdrawal).Error
	})
	if err != nil {
		return nil, err
	}
	return withdrawal, nil
}

func (s *TokenService) ensureToken(db *gorm.DB, userID string) (*models.Token, error) {
	var token models.Token
	err := db.Where("external_user_id = ?", userID).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		token = models.Token{
			ID:             uuid.NewString(),
			ExternalUserID: userID,
			Balance:        0,
		}
		if err := db.Create(&token).Error; err != nil {
			return nil, err
		}
		return &token, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}
