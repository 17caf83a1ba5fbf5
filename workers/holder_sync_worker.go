package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"asset-curation-system/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HolderSyncClient pulls wallet-holding changes from the external holdings
// service and mirrors them into holder_mirror, the table the balance oracle
// reads. The mirror is eventually consistent; eligibility snapshots whatever
// the mirror holds at action time.
type HolderSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewHolderSyncClient(db *gorm.DB, baseURL, token string) *HolderSyncClient {
	return &HolderSyncClient{
		BaseURL: baseURL,
		Token:   token,
		DB:      db,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetChangedHoldings fetches every holding that changed since the given time.
func (c *HolderSyncClient) GetChangedHoldings(ctx context.Context, since time.Time) ([]models.HolderMirror, error) {
	since = since.UTC()

	u, err := url.Parse(fmt.Sprintf("%s/api/v1/public/holdings", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("since", since.Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call holdings service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("holdings service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Holdings []models.HolderMirror `json:"holdings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode holdings response: %w", err)
	}
	return response.Holdings, nil
}

// PollHolders keeps the mirror fresh. On upsert failure the sync window is
// not advanced, so the same batch is retried next tick.
func PollHolders(ctx context.Context, client *HolderSyncClient, pollInterval time.Duration) {
	log.Info("starting holder polling")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("holder polling stopped")
			return
		case <-ticker.C:
			tickTime := time.Now().UTC()

			holdings, err := client.GetChangedHoldings(ctx, lastSyncTime)
			if err != nil {
				log.WithError(err).Error("failed to poll holdings")
				continue
			}
			if len(holdings) == 0 {
				continue
			}

			// Bulk upsert in one statement; (wallet, token_mint) is the
			// conflict target.
			if err := client.DB.Clauses(
				clause.OnConflict{
					Columns: []clause.Column{{Name: "wallet"}, {Name: "token_mint"}},
					DoUpdates: clause.AssignmentColumns([]string{
						"raw_balance",
						"pct_of_supply",
						"last_balance_check_at",
						"updated_at",
					}),
				},
			).Create(&holdings).Error; err != nil {
				log.WithError(err).WithField("count", len(holdings)).Error("failed to upsert holder mirror")
				continue
			}

			lastSyncTime = tickTime
			log.WithField("count", len(holdings)).Info("holder mirror updated")
		}
	}
}
