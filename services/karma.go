package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"asset-curation-system/config"
	"asset-curation-system/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KarmaService is the single gate for every karma-affecting event. Each
// applied delta is an atomic increment on wallet_karmas.total_points paired
// with a KarmaEntry row, so the total always equals the sum of the entries
// and any credited amount can be reversed exactly by negating its record.
type KarmaService struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewKarmaService(db *gorm.DB, cfg *config.Config) *KarmaService {
	return &KarmaService{DB: db, Cfg: cfg}
}

// --- Karma magnitude policy ---

// fullKarma is the total payout (immediate + delayed) for an action by a
// wallet holding stakePct of supply. Monotonic in stake; the curve itself is
// policy, the monotonicity and the split are not.
func (s *KarmaService) fullKarma(base, stakePct float64) float64 {
	if stakePct < 0 {
		stakePct = 0
	}
	return base * (1 + math.Sqrt(stakePct))
}

// SubmitKarma returns (immediate, delayed) shares for a submission.
func (s *KarmaService) SubmitKarma(stakePct float64) (float64, float64) {
	return s.split(s.fullKarma(s.Cfg.KarmaBaseSubmit, stakePct))
}

// UpvoteKarma returns (immediate, delayed) shares for an upvote.
func (s *KarmaService) UpvoteKarma(stakePct float64) (float64, float64) {
	return s.split(s.fullKarma(s.Cfg.KarmaBaseUpvote, stakePct))
}

// ReportKarma returns the full payout for a report. Reports have no further
// tier after hidden, so both shares are paid together at resolution.
func (s *KarmaService) ReportKarma(stakePct float64) float64 {
	return s.fullKarma(s.Cfg.KarmaBaseReport, stakePct)
}

func (s *KarmaService) split(full float64) (immediate, delayed float64) {
	immediate = full * s.Cfg.KarmaImmediateShare
	return immediate, full - immediate
}

// --- Ledger operations ---

// ApplyDelta credits (or debits) a wallet's karma in a project and records
// the ledger entry. Returns the new total. assetID may be nil for
// administrative adjustments.
func (s *KarmaService) ApplyDelta(ctx context.Context, wallet, projectID string, delta float64, reason string, assetID *string) (float64, error) {
	var newTotal float64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		newTotal, err = s.ApplyDeltaTx(tx, wallet, projectID, delta, reason, assetID)
		return err
	})
	return newTotal, err
}

// ApplyDeltaTx is ApplyDelta inside a caller-owned transaction, so a
// transition and its payouts commit or roll back together.
func (s *KarmaService) ApplyDeltaTx(tx *gorm.DB, wallet, projectID string, delta float64, reason string, assetID *string) (float64, error) {
	if reason == "" {
		return 0, ErrEmptyReason
	}

	row, err := s.ensureKarmaRowTx(tx, wallet, projectID)
	if err != nil {
		return 0, err
	}

	// Atomic increment — never read-then-write, or concurrent actions by the
	// same wallet on different assets would lose updates.
	if err := tx.Model(&models.WalletKarma{}).
		Where("id = ?", row.ID).
		UpdateColumn("total_points", gorm.Expr("total_points + ?", delta)).Error; err != nil {
		return 0, fmt.Errorf("failed to apply karma delta: %w", err)
	}

	entry := models.KarmaEntry{
		ID:        uuid.NewString(),
		Wallet:    wallet,
		ProjectID: projectID,
		AssetID:   assetID,
		Delta:     delta,
		Reason:    reason,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return 0, fmt.Errorf("failed to record karma entry: %w", err)
	}

	var updated models.WalletKarma
	if err := tx.Where("id = ?", row.ID).First(&updated).Error; err != nil {
		return 0, err
	}
	return updated.TotalPoints, nil
}

// IncrementCounterTx bumps one of the activity counters (assets_added,
// upvotes_given, reports_given) atomically.
func (s *KarmaService) IncrementCounterTx(tx *gorm.DB, wallet, projectID, column string, by int) error {
	row, err := s.ensureKarmaRowTx(tx, wallet, projectID)
	if err != nil {
		return err
	}
	return tx.Model(&models.WalletKarma{}).
		Where("id = ?", row.ID).
		UpdateColumn(column, gorm.Expr(column+" + ?", by)).Error
}

// ensureKarmaRowTx lazily creates the (wallet, project) karma row. The unique
// index absorbs the create/create race; losers just fetch the winner's row.
func (s *KarmaService) ensureKarmaRowTx(tx *gorm.DB, wallet, projectID string) (*models.WalletKarma, error) {
	row := models.WalletKarma{
		ID:        uuid.NewString(),
		Wallet:    wallet,
		ProjectID: projectID,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet"}, {Name: "project_id"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to ensure karma row: %w", err)
	}
	var existing models.WalletKarma
	if err := tx.Where("wallet = ? AND project_id = ?", wallet, projectID).First(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

// GetKarma returns the karma row for a wallet in a project, with warnings.
func (s *KarmaService) GetKarma(ctx context.Context, wallet, projectID string) (*models.WalletKarma, error) {
	var row models.WalletKarma
	err := s.DB.WithContext(ctx).
		Preload("Warnings").
		Where("wallet = ? AND project_id = ?", wallet, projectID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// TopKarma lists the highest-karma wallets in a project.
func (s *KarmaService) TopKarma(ctx context.Context, projectID string, limit int) ([]models.WalletKarma, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var rows []models.WalletKarma
	err := s.DB.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("total_points DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// --- Reversal ---

// ReverseAllFor negates every karma amount still recorded against an asset:
// each vote's karma_earned and the submitter's paid total. Recorded amounts
// are zeroed in the same transaction, which makes the operation re-entrant —
// a retry after a partial failure only reverses what is still recorded.
// Deletion of the asset and its votes is the caller's job.
func (s *KarmaService) ReverseAllFor(ctx context.Context, assetID string) (float64, error) {
	var total float64
	err := withConflictRetry(func() error {
		total = 0
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			total, err = s.ReverseAllForTx(tx, assetID)
			return err
		})
	})
	return total, err
}

// ReverseAllForTx is ReverseAllFor inside a caller-owned transaction.
func (s *KarmaService) ReverseAllForTx(tx *gorm.DB, assetID string) (float64, error) {
	var asset models.Asset
	if err := lockForUpdate(tx).Where("id = ?", assetID).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	var votes []models.Vote
	if err := tx.Where("asset_id = ?", assetID).Find(&votes).Error; err != nil {
		return 0, err
	}

	var reversed float64
	for _, v := range votes {
		if v.KarmaEarned == 0 {
			continue
		}
		amount := v.KarmaEarned
		if _, err := s.ApplyDeltaTx(tx, v.VoterWallet, asset.ProjectID, -amount,
			fmt.Sprintf("reversal:%s:%s", v.Kind, assetID), &asset.ID); err != nil {
			return 0, err
		}
		if err := tx.Model(&models.Vote{}).Where("id = ?", v.ID).
			UpdateColumn("karma_earned", 0).Error; err != nil {
			return 0, err
		}
		reversed += amount
	}

	if asset.SubmitterKarmaPaid != 0 {
		amount := asset.SubmitterKarmaPaid
		if _, err := s.ApplyDeltaTx(tx, asset.SubmitterWallet, asset.ProjectID, -amount,
			fmt.Sprintf("reversal:submission:%s", assetID), &asset.ID); err != nil {
			return 0, err
		}
		if err := tx.Model(&models.Asset{}).Where("id = ?", assetID).
			UpdateColumn("submitter_karma_paid", 0).Error; err != nil {
			return 0, err
		}
		reversed += amount
	}

	log.WithFields(log.Fields{
		"asset_id": assetID,
		"reversed": reversed,
	}).Info("karma reversed for asset")
	return reversed, nil
}

// lockForUpdate applies a row-level lock where the dialect supports it.
// SQLite (tests) has no SELECT ... FOR UPDATE; its writes serialize on the
// database lock instead.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
