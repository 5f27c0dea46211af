// services/ledger_client.go
package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// EscrowMilestone is the milestone shape sent to the ledger bridge when an
// escrow contract is created.
type EscrowMilestone struct {
	ID          string  `json:"id"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// LedgerService is the on-chain capability consumed by the settlement core.
// Each call is a blocking, single-attempt operation that returns a
// transaction (or contract) identifier, or fails with *SettlementError.
// Constructed once at startup and injected; tests substitute a fake.
type LedgerService interface {
	CreateEscrow(bountyID, ownerID string, totalAmount float64, milestones []EscrowMilestone) (string, error)
	ReleaseMilestonePayment(contractID, milestoneID, payeeID string) (string, error)
	MintTokens(recipientID string, amount float64, reason string) (string, error)
	ConvertTokensToUSD(userID string, tokenAmount, rate float64) (string, error)
	ProcessWithdrawal(userID string, amount float64, method string, details map[string]string) (string, error)
}

// HakiLedgerClient talks to the Haki ledger bridge service over HTTP.
type HakiLedgerClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHakiLedgerClient(baseURL, token string) *HakiLedgerClient {
	return &HakiLedgerClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type ledgerTxResponse struct {
	TransactionID string `json:"transaction_id"`
	ContractID    string `json:"contract_id"`
	Status        string `json:"status"`
	Error         string `json:"error"`
}

// post submits one ledger operation and decodes the bridge response.
func (c *HakiLedgerClient) post(op, path string, payload interface{}) (*ledgerTxResponse, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, NewSettlementError(op, "failed to encode request", err)
	}

	req, err := http.NewRequest("POST", fmt.Sprintf("%s%s", c.BaseURL, path), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, NewSettlementError(op, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, NewSettlementError(op, "bridge unreachable", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		log.Printf("LedgerBridge %s returned %d: %s", path, resp.StatusCode, string(body))
		return nil, NewSettlementError(op, fmt.Sprintf("bridge returned status %d", resp.StatusCode), nil)
	}

	var out ledgerTxResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, NewSettlementError(op, "failed to decode bridge response", err)
	}
	if out.Error != "" {
		return nil, NewSettlementError(op, out.Error, nil)
	}
	return &out, nil
}

func (c *HakiLedgerClient) CreateEscrow(bountyID, ownerID string, totalAmount float64, milestones []EscrowMilestone) (string, error) {
	resp, err := c.post("create_escrow", "/ledger/escrows", map[string]interface{}{
		"bounty_id":    bountyID,
		"owner_id":     ownerID,
		"total_amount": totalAmount,
		"milestones":   milestones,
	})
	if err != nil {
		return "", err
	}
	if resp.ContractID == "" {
		return "", NewSettlementError("create_escrow", "bridge returned no contract id", nil)
	}
	return resp.ContractID, nil
}

func (c *HakiLedgerClient) ReleaseMilestonePayment(contractID, milestoneID, payeeID string) (string, error) {
	resp, err := c.post("release_milestone_payment", "/ledger/escrows/release", map[string]interface{}{
		"contract_id":  contractID,
		"milestone_id": milestoneID,
		"payee_id":     payeeID,
	})
	if err != nil {
		return "", err
	}
	if resp.TransactionID == "" {
		return "", NewSettlementError("release_milestone_payment", "bridge returned no transaction id", nil)
	}
	return resp.TransactionID, nil
}

func (c *HakiLedgerClient) MintTokens(recipientID string, amount float64, reason string) (string, error) {
	resp, err := c.post("mint_tokens", "/ledger/tokens/mint", map[string]interface{}{
		"recipient_id": recipientID,
		"amount":       amount,
		"reason":       reason,
	})
	if err != nil {
		return "", err
	}
	return resp.TransactionID, nil
}

func (c *HakiLedgerClient) ConvertTokensToUSD(userID string, tokenAmount, rate float64) (string, error) {
	resp, err := c.post("convert_tokens_to_usd", "/ledger/tokens/convert", map[string]interface{}{
		"user_id":         userID,
		"token_amount":    tokenAmount,
		"conversion_rate": rate,
	})
	if err != nil {
		return "", err
	}
	return resp.TransactionID, nil
}

func (c *HakiLedgerClient) ProcessWithdrawal(userID string, amount float64, method string, details map[string]string) (string, error) {
	resp, err := c.post("process_withdrawal", "/ledger/withdrawals", map[string]interface{}{
		"user_id": userID,
		"amount":  amount,
		"method":  method,
		"details": details,
	})
	if err != nil {
		return "", err
	}
	return resp.TransactionID, nil
}
