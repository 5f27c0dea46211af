// workers/ledger_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/Haki-Chain/Haki-Chain/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerSyncClient reconciles local mirror state with the ledger bridge:
// wallet linkage into wallet_mirror, and pending withdrawal transaction
// statuses. It never touches bounty or milestone state.
type LedgerSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewLedgerSyncClient(db *gorm.DB) *LedgerSyncClient {
	baseURL := os.Getenv("LEDGER_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("LEDGER_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("HAKI_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("HAKI_SERVICE_TOKEN environment variable is required for ledger sync")
	}

	return &LedgerSyncClient{
		BaseURL: baseURL,
		Token:   token,
		DB:      db,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetChangedWallets fetches wallet linkage changes since the given time.
func (c *LedgerSyncClient) GetChangedWallets(ctx context.Context, since time.Time) ([]models.WalletMirror, error) {
	u, err := url.Parse(fmt.Sprintf("%s/ledger/wallets", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	q := u.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call ledger bridge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("ledger bridge returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Wallets []models.WalletMirror `json:"wallets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode ledger bridge response: %w", err)
	}
	return response.Wallets, nil
}

// GetTransactionStatus asks the bridge for the terminal status of a ledger
// transaction ("processing", "completed" or "failed").
func (c *LedgerSyncClient) GetTransactionStatus(ctx context.Context, transactionID string) (string, error) {
	u := fmt.Sprintf("%s/ledger/transactions/%s", c.BaseURL, url.PathEscape(transactionID))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call ledger bridge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ledger bridge returned status %d", resp.StatusCode)
	}

	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode transaction status: %w", err)
	}
	return out.Status, nil
}

// PollLedger runs the reconciliation loop: wallet mirror upserts plus
// withdrawal status advancement.
func PollLedger(ctx context.Context, client *LedgerSyncClient, pollInterval time.Duration) {
	log.Println("Starting ledger polling (wallet mirror + withdrawal statuses)...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Ledger polling stopped.")
			return
		case <-ticker.C:
			tickTime := time.Now().UTC()

			wallets, err := client.GetChangedWallets(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling wallets: %v", err)
			} else if len(wallets) > 0 {
				// Batch upsert keyed on the ledger account id.
				if err := client.DB.Clauses(
					clause.OnConflict{
						Columns: []clause.Column{{Name: "ledger_account_id"}},
						DoUpdates: clause.AssignmentColumns([]string{
							"external_user_id",
							"network",
							"is_verified",
							"is_active",
							"last_synced_at",
							"updated_at",
						}),
					},
				).Create(&wallets).Error; err != nil {
					log.Printf("❌ Failed to upsert %d wallet(s) into wallet_mirror: %v", len(wallets), err)
					// Do NOT advance lastSyncTime on failure — retry same window next tick
				} else {
					lastSyncTime = tickTime
					log.Printf("✅ Upserted %d wallet(s) into wallet_mirror table.", len(wallets))
				}
			} else {
				lastSyncTime = tickTime
			}

			if err := client.refreshWithdrawals(ctx); err != nil {
				log.Printf("❌ Error refreshing withdrawal statuses: %v", err)
			}
		}
	}
}

// refreshWithdrawals advances Processing withdrawals whose ledger
// transaction has reached a terminal state. The status update is guarded so
// a concurrent change loses cleanly.
func (c *LedgerSyncClient) refreshWithdrawals(ctx context.Context) error {
	var pending []models.Withdrawal
	if err := c.DB.Where("status = ? AND transaction_id <> ''", models.WithdrawalStatusProcessing).
		Find(&pending).Error; err != nil {
		return err
	}

	for _, wd := range pending {
		status, err := c.GetTransactionStatus(ctx, wd.TransactionID)
		if err != nil {
			log.Printf("⚠️ Could not fetch status for withdrawal %s (tx %s): %v", wd.ID, wd.TransactionID, err)
			continue
		}

		var next models.WithdrawalStatus
		switch status {
		case "completed":
			next = models.WithdrawalStatusCompleted
		case "failed":
			next = models.WithdrawalStatusFailed
		default:
			continue // still processing
		}

		res := c.DB.Model(&models.Withdrawal{}).
			Where("id = ? AND status = ?", wd.ID, models.WithdrawalStatusProcessing).
			Update("status", next)
		if res.Error != nil {
			log.Printf("⚠️ Failed to advance withdrawal %s to %s: %v", wd.ID, next, res.Error)
			continue
		}
		if res.RowsAffected > 0 {
			log.Printf("✅ Withdrawal %s advanced to %s", wd.ID, next)
		}
	}
	return nil
}
