// workers/user_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/Haki-Chain/Haki-Chain/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountFromSync matches the JSON response from the accounts service.
type AccountFromSync struct {
	ExternalID    string  `json:"external_id"`
	Username      string  `json:"username"`
	Email         string  `json:"email"`
	Role          string  `json:"role"`
	Organization  *string `json:"organization,omitempty"`
	Location      *string `json:"location,omitempty"`
	WalletAddress *string `json:"wallet_address,omitempty"`
	IsVerified    bool    `json:"is_verified"`

	// Present for lawyer accounts only.
	LawyerProfile *struct {
		LawSocietyNumber   string `json:"law_society_number"`
		Jurisdiction       string `json:"jurisdiction"`
		Specialization     string `json:"specialization"`
		YearsOfExperience  int    `json:"years_of_experience"`
		VerificationStatus string `json:"verification_status"`
	} `json:"lawyer_profile,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetAccountChangesResponse is the top-level structure of the accounts service response.
type GetAccountChangesResponse struct {
	Accounts []AccountFromSync `json:"accounts"`
}

// UserSyncWorker mirrors account and lawyer-profile data into the local
// users / lawyer_profiles tables. The state machine reads lawyer
// verification status from this mirror.
type UserSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/accounts"
	serviceToken string
	httpClient   *http.Client
}

func NewUserSyncWorker(db *gorm.DB, accountsServiceBaseURL, endpointPath, serviceToken string) *UserSyncWorker {
	return &UserSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      accountsServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *UserSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting User Sync Worker (accounts service → users)…")
	go w.run(ctx)
}

func (w *UserSyncWorker) run(ctx context.Context) {
	// Initial sync (backfill if needed) - sync from the beginning of time
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial user sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.getLastSyncTime()); err != nil {
				log.Printf("❌ User sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ User Sync Worker stopped")
			return
		}
	}
}

// getLastSyncTime finds the most recent UpdatedAt mirrored locally.
func (w *UserSyncWorker) getLastSyncTime() time.Time {
	var lastTime time.Time
	err := w.db.Raw("SELECT MAX(updated_at) FROM users WHERE deleted_at IS NULL").Scan(&lastTime).Error
	if err != nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return lastTime
}

// syncBatch fetches account changes and upserts the local mirror.
func (w *UserSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	sinceStr := since.UTC().Format(time.RFC3339)

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid accounts service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", sinceStr)
	endpointURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", endpointURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create sync request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request to accounts service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("accounts service non-200 response: %d — %s", resp.StatusCode, string(body))
	}

	var response GetAccountChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode accounts service response: %w", err)
	}

	if len(response.Accounts) == 0 {
		return nil
	}

	log.Printf("[SYNC] 📥 Processing %d account(s) from accounts service…", len(response.Accounts))

	var upsertCount, errorCount int
	for _, remote := range response.Accounts {
		localUser := models.User{
			ID:             uuid.NewString(),
			ExternalUserID: remote.ExternalID,
			Username:       remote.Username,
			Email:          remote.Email,
			Role:           models.UserRole(remote.Role),
			Organization:   remote.Organization,
			Location:       remote.Location,
			WalletAddress:  remote.WalletAddress,
			IsVerified:     remote.IsVerified,
			CreatedAt:      remote.CreatedAt,
			UpdatedAt:      remote.UpdatedAt,
		}

		if err := w.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username", "email", "role", "organization", "location",
				"wallet_address", "is_verified", "created_at", "updated_at",
			}),
		}).Create(&localUser).Error; err != nil {
			errorCount++
			log.Printf("[SYNC] ⚠️ Failed to upsert user (external_id=%q): %v", remote.ExternalID, err)
			continue
		}
		upsertCount++

		if remote.LawyerProfile != nil {
			profile := models.LawyerProfile{
				ID:                 uuid.NewString(),
				ExternalUserID:     remote.ExternalID,
				LawSocietyNumber:   remote.LawyerProfile.LawSocietyNumber,
				Jurisdiction:       remote.LawyerProfile.Jurisdiction,
				Specialization:     remote.LawyerProfile.Specialization,
				YearsOfExperience:  remote.LawyerProfile.YearsOfExperience,
				VerificationStatus: models.VerificationStatus(remote.LawyerProfile.VerificationStatus),
			}
			if err := w.db.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "external_user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"law_society_number", "jurisdiction", "specialization",
					"years_of_experience", "verification_status",
				}),
			}).Create(&profile).Error; err != nil {
				log.Printf("[SYNC] ⚠️ Failed to upsert lawyer profile (external_id=%q): %v", remote.ExternalID, err)
			}
		}
	}

	log.Printf("[SYNC] ✅ Synced %d account(s) (%d upserted, %d errors)", len(response.Accounts), upsertCount, errorCount)
	return nil
}
