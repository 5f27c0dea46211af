package services

import (
	"testing"

	"github.com/Haki-Chain/Haki-Chain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedReward(t *testing.T, s *TokenService, userID string, amount float64, txID string) {
	t.Helper()
	token, err := s.ensureToken(s.DB, userID)
	require.NoError(t, err)
	require.NoError(t, s.DB.Model(token).
		Update("balance", token.Balance+amount).Error)
	require.NoError(t, s.DB.Create(&models.TokenTransaction{
		ID:              "ttx-" + txID,
		TokenID:         token.ID,
		Amount:          amount,
		TransactionType: models.TokenTxReward,
		ReceiverID:      &userID,
		TransactionID:   txID,
	}).Error)
}

func TestBalanceCreatesZeroRow(t *testing.T) {
	db := setupTestDB(t)
	s := NewTokenService(db, &fakeLedger{})

	balance, err := s.Balance("user-1")
	require.NoError(t, err)
	assert.Zero(t, balance)

	var count int64
	require.NoError(t, db.Model(&models.Token{}).Where("external_user_id = ?", "user-1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCheckBalanceConsistency(t *testing.T) {
	db := setupTestDB(t)
	s := NewTokenService(db, &fakeLedger{})

	// No token row at all is trivially consistent
	_, _, consistent, err := s.CheckBalanceConsistency("missing-user")
	require.NoError(t, err)
	assert.True(t, consistent)

	seedReward(t, s, "user-1", 50, "tx-1")
	cached, logged, consistent, err := s.CheckBalanceConsistency("user-1")
	require.NoError(t, err)
	assert.True(t, consistent)
	assert.Equal(t, 50.0, cached)
	assert.Equal(t, 50.0, logged)

	// Tamper with the cached balance behind the log's back
	require.NoError(t, db.Model(&models.Token{}).
		Where("external_user_id = ?", "user-1").
		Update("balance", 75).Error)
	cached, logged, consistent, err = s.CheckBalanceConsistency("user-1")
	require.NoError(t, err)
	assert.False(t, consistent)
	assert.Equal(t, 75.0, cached)
	assert.Equal(t, 50.0, logged)

	diverged, err := s.ReconcileBalances()
	require.NoError(t, err)
	assert.Equal(t, 1, diverged)
}

func TestConvert(t *testing.T) {
	db := setupTestDB(t)
	ledger := &fakeLedger{}
	s := NewTokenService(db, ledger)
	seedReward(t, s, "user-1", 100, "tx-1")

	_, err := s.Convert("user-1", 0)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)

	_, err = s.Convert("user-1", 150)
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, 0, ledger.convertCalls)

	conversion, err := s.Convert("user-1", 100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, conversion.TokenAmount)
	assert.Equal(t, 32.0, conversion.USDAmount)
	assert.Equal(t, ConversionRate, conversion.ConversionRate)
	assert.Equal(t, models.ConversionStatusCompleted, conversion.Status)

	// The debit and the Burn entry keep the log in step with the balance
	cached, logged, consistent, err := s.CheckBalanceConsistency("user-1")
	require.NoError(t, err)
	assert.True(t, consistent)
	assert.Zero(t, cached)
	assert.Zero(t, logged)
}

func TestConvertLedgerFailureMutatesNothing(t *testing.T) {
	db := setupTestDB(t)
	ledger := &fakeLedger{failConvert: true}
	s := NewTokenService(db, ledger)
	seedReward(t, s, "user-1", 100, "tx-1")

	_, err := s.Convert("user-1", 40)
	var setErr *SettlementError
	require.ErrorAs(t, err, &setErr)
	assert.Equal(t, "convert_tokens_to_usd", setErr.Op)

	balance, err := s.Balance("user-1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, balance)

	var conversions int64
	require.NoError(t, db.Model(&models.TokenConversion{}).Count(&conversions).Error)
	assert.Zero(t, conversions)
	var burns int64
	require.NoError(t, db.Model(&models.TokenTransaction{}).
		Where("transaction_type = ?", models.TokenTxBurn).Count(&burns).Error)
	assert.Zero(t, burns)
}

func seedCompletedPayment(t *testing.T, db *gorm.DB, receiverID string, amount float64, txID string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Payment{
		ID:            "pay-" + txID,
		BountyID:      "bounty-1",
		SenderID:      "ngo-1",
		ReceiverID:    &receiverID,
		Amount:        amount,
		PaymentType:   models.PaymentTypeMilestone,
		Status:        models.PaymentStatusCompleted,
		TransactionID: txID,
	}).Error)
}

func TestAvailableBalance(t *testing.T) {
	db := setupTestDB(t)
	s := NewTokenService(db, &fakeLedger{})

	available, err := s.AvailableBalance("user-1")
	require.NoError(t, err)
	assert.Zero(t, available)

	seedCompletedPayment(t, db, "user-1", 600, "tx-1")
	seedCompletedPayment(t, db, "user-1", 400, "tx-2")

	// Pending and failed payments never count
	pending := "user-1"
	require.NoError(t, db.Create(&models.Payment{
		ID:          "pay-pending",
		BountyID:    "bounty-1",
		SenderID:    "ngo-1",
		ReceiverID:  &pending,
		Amount:      999,
		PaymentType: models.PaymentTypeMilestone,
		Status:      models.PaymentStatusPending,
	}).Error)

	available, err = s.AvailableBalance("user-1")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, available)
}

func TestWithdraw(t *testing.T) {
	db := setupTestDB(t)
	ledger := &fakeLedger{}
	s := NewTokenService(db, ledger)
	seedCompletedPayment(t, db, "user-1", 1000, "tx-1")

	bank := WithdrawalDetails{BankName: "Equity Bank", BankAccountNumber: "0123456789", BankRoutingNumber: "068000"}

	_, err := s.Withdraw("user-1", 0, models.WithdrawalMethodBank, bank)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)

	// Missing method details fail before any ledger call
	_, err = s.Withdraw("user-1", 100, models.WithdrawalMethodBank, WithdrawalDetails{BankName: "Equity Bank"})
	require.ErrorAs(t, err, &valErr)
	_, err = s.Withdraw("user-1", 100, models.WithdrawalMethodCrypto, WithdrawalDetails{CryptoAddress: "0xabc"})
	require.ErrorAs(t, err, &valErr)
	_, err = s.Withdraw("user-1", 100, "paypal", WithdrawalDetails{})
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, 0, ledger.withdrawCalls)

	_, err = s.Withdraw("user-1", 2000, models.WithdrawalMethodBank, bank)
	require.ErrorAs(t, err, &valErr)

	withdrawal, err := s.Withdraw("user-1", 600, models.WithdrawalMethodBank, bank)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusProcessing, withdrawal.Status)
	require.NotNil(t, withdrawal.BankName)
	assert.Equal(t, "Equity Bank", *withdrawal.BankName)

	// The processing withdrawal already reserves its amount
	available, err := s.AvailableBalance("user-1")
	require.NoError(t, err)
	assert.Equal(t, 400.0, available)

	// The over-limit request never reaches the ledger
	calls := ledger.withdrawCalls
	_, err = s.Withdraw("user-1", 600, models.WithdrawalMethodBank, bank)
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, calls, ledger.withdrawCalls)

	// A failed withdrawal restores its amount to availability
	require.NoError(t, db.Model(&models.Withdrawal{}).
		Where("id = ?", withdrawal.ID).
		Update("status", models.WithdrawalStatusFailed).Error)
	available, err = s.AvailableBalance("user-1")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, available)
}

func TestWithdrawLedgerFailureMutatesNothing(t *testing.T) {
	db := setupTestDB(t)
	ledger := &fakeLedger{failWithdraw: true}
	s := NewTokenService(db, ledger)
	seedCompletedPayment(t, db, "user-1", 1000, "tx-1")

	_, err := s.Withdraw("user-1", 500, models.WithdrawalMethodCrypto, WithdrawalDetails{
		CryptoAddress: "0xabc",
		CryptoNetwork: "hedera",
	})
	var setErr *SettlementError
	require.ErrorAs(t, err, &setErr)
	assert.Equal(t, "process_withdrawal", setErr.Op)

	var count int64
	require.NoError(t, db.Model(&models.Withdrawal{}).Count(&count).Error)
	assert.Zero(t, count)

	available, err := s.AvailableBalance("user-1")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, available)
}
