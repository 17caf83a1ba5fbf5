package services

import (
	"context"
	"testing"
	"time"

	"asset-curation-system/config"
	"asset-curation-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// testEnv wires the full service graph over an in-memory database with a
// fixed test policy, so scenarios can assert exact karma amounts.
type testEnv struct {
	DB          *gorm.DB
	Cfg         *config.Config
	Karma       *KarmaService
	Eligibility *EligibilityService
	Feed        *FeedService
	Moderation  *ModerationService
	Submissions *SubmissionService
	Thresholds  *ThresholdService
	Admin       *AdminService
	Projects    *ProjectService
}

func testConfig() *config.Config {
	return &config.Config{
		BackedSupplyPct:     0.5,
		BackedVoterCount:    5,
		VerifiedSupplyPct:   2.0,
		VerifiedVoterCount:  20,
		HideSupplyPct:       0.5,
		HideReporterCount:   5,
		KarmaBaseSubmit:     20,
		KarmaBaseUpvote:     10,
		KarmaBaseReport:     10,
		KarmaImmediateShare: 0.25,
		EvalInterval:        time.Minute,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// One connection, one shared in-memory database; concurrent writers
	// serialize on the pool instead of surfacing busy errors.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.Migrate(db))

	cfg := testConfig()
	oracle := NewMirrorOracle(db)
	karma := NewKarmaService(db, cfg)
	eligibility := NewEligibilityService(db, oracle)
	feed := NewFeedService(db)
	moderation := NewModerationService(db, karma)
	submissions := NewSubmissionService(db, cfg, eligibility, karma, feed)
	thresholds := NewThresholdService(db, cfg, karma, feed, moderation)
	admin := NewAdminService(db, cfg, karma, feed, thresholds)
	projects := NewProjectService(db)

	return &testEnv{
		DB:          db,
		Cfg:         cfg,
		Karma:       karma,
		Eligibility: eligibility,
		Feed:        feed,
		Moderation:  moderation,
		Submissions: submissions,
		Thresholds:  thresholds,
		Admin:       admin,
		Projects:    projects,
	}
}

func (e *testEnv) createProject(t *testing.T) *models.Project {
	t.Helper()
	project, err := e.Projects.Create(context.Background(), "Test Token", "mint-"+uuid.NewString(), 1_000_000_000)
	require.NoError(t, err)
	return project
}

// setStake seeds the holder mirror so the oracle sees the wallet holding
// pctOfSupply percent of the project's token.
func (e *testEnv) setStake(t *testing.T, project *models.Project, wallet string, pctOfSupply float64) {
	t.Helper()
	row := models.HolderMirror{
		ID:                 uuid.NewString(),
		Wallet:             wallet,
		TokenMint:          project.TokenMint,
		RawBalance:         project.TotalSupply * pctOfSupply / 100,
		PctOfSupply:        pctOfSupply,
		LastBalanceCheckAt: time.Now(),
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
	require.NoError(t, e.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "wallet"}, {Name: "token_mint"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"raw_balance",
			"pct_of_supply",
			"last_balance_check_at",
			"updated_at",
		}),
	}).Create(&row).Error)
}

func (e *testEnv) submitSocial(t *testing.T, project *models.Project, wallet, handle string) *models.Asset {
	t.Helper()
	asset, err := e.Submissions.Submit(context.Background(), wallet, SubmitInput{
		ProjectID: project.ID,
		Type:      models.AssetTypeSocial,
		Social:    &models.SocialPayload{Platform: "x", Handle: handle},
	})
	require.NoError(t, err)
	return asset
}

func (e *testEnv) karmaTotal(t *testing.T, wallet, projectID string) float64 {
	t.Helper()
	var row models.WalletKarma
	err := e.DB.Where("wallet = ? AND project_id = ?", wallet, projectID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return 0
	}
	require.NoError(t, err)
	return row.TotalPoints
}

func (e *testEnv) reloadAsset(t *testing.T, id string) *models.Asset {
	t.Helper()
	var asset models.Asset
	require.NoError(t, e.DB.Where("id = ?", id).First(&asset).Error)
	return &asset
}
