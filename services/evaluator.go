package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"asset-curation-system/config"
	"asset-curation-system/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ThresholdService runs the verification state machine. Each scan inspects
// every asset in {pending, backed} and applies at most one transition per
// pass of the inner loop; a single scan may cascade pending→backed→verified,
// firing each tier's side effects in order. Scans are idempotent and safe to
// overlap with live votes: every transition is a compare-and-set on status
// inside its own transaction.
type ThresholdService struct {
	DB         *gorm.DB
	Cfg        *config.Config
	Karma      *KarmaService
	Feed       *FeedService
	Moderation *ModerationService
}

func NewThresholdService(db *gorm.DB, cfg *config.Config, karma *KarmaService, feed *FeedService, mod *ModerationService) *ThresholdService {
	return &ThresholdService{DB: db, Cfg: cfg, Karma: karma, Feed: feed, Moderation: mod}
}

// EvaluateAll scans every non-terminal asset. Per-asset failures are logged
// and skipped; one bad asset never stalls the scan.
func (s *ThresholdService) EvaluateAll(ctx context.Context) {
	var ids []string
	if err := s.DB.WithContext(ctx).Model(&models.Asset{}).
		Where("status IN ?", []models.AssetStatus{models.AssetStatusPending, models.AssetStatusBacked}).
		Pluck("id", &ids).Error; err != nil {
		log.WithError(err).Error("evaluator scan query failed")
		return
	}
	for _, id := range ids {
		if err := s.EvaluateAsset(ctx, id); err != nil {
			log.WithError(err).WithField("asset_id", id).Error("asset evaluation failed")
		}
	}
}

// EvaluateAsset applies every transition the asset currently qualifies for,
// one tier at a time, hide checked first at each step.
func (s *ThresholdService) EvaluateAsset(ctx context.Context, assetID string) error {
	// pending→backed→verified is the longest possible cascade.
	for i := 0; i < 3; i++ {
		moved, err := s.evaluateOnce(ctx, assetID)
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}
	}
	return nil
}

// evaluateOnce performs at most one transition and reports whether it moved.
// The feed event for a transition goes out only after its transaction
// commits, so a rolled-back transition never leaves a stray event — and in a
// cascade, each tier's event fires in order before the next tier runs.
func (s *ThresholdService) evaluateOnce(ctx context.Context, assetID string) (bool, error) {
	var moved bool
	var after func()
	err := withConflictRetry(func() error {
		moved = false
		after = nil
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var asset models.Asset
			if err := lockForUpdate(tx).Where("id = ?", assetID).First(&asset).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil // deleted under us, nothing to do
				}
				return err
			}
			if asset.Status != models.AssetStatusPending && asset.Status != models.AssetStatusBacked {
				return nil
			}

			// Hide takes precedence over forward progress in the same pass.
			if gateMet(asset.ReportWeight, asset.ReportCount, s.Cfg.HideSupplyPct, s.Cfg.HideReporterCount) {
				if err := s.hideTx(tx, &asset); err != nil {
					return err
				}
				moved = true
				after = s.hiddenEvent(&asset)
				return nil
			}

			switch asset.Status {
			case models.AssetStatusPending:
				if gateMet(asset.UpvoteWeight, asset.UpvoteCount, s.Cfg.BackedSupplyPct, s.Cfg.BackedVoterCount) {
					if err := s.backTx(tx, &asset); err != nil {
						return err
					}
					moved = true
					after = s.backedEvent(&asset)
				}
			case models.AssetStatusBacked:
				if gateMet(asset.UpvoteWeight, asset.UpvoteCount, s.Cfg.VerifiedSupplyPct, s.Cfg.VerifiedVoterCount) {
					if err := s.verifyTx(tx, &asset); err != nil {
						return err
					}
					moved = true
					after = s.verifiedEvent(&asset)
				}
			}
			return nil
		})
	})
	if err == nil && after != nil {
		after()
	}
	return moved, err
}

func (s *ThresholdService) backedEvent(asset *models.Asset) func() {
	a := *asset
	return func() {
		s.Feed.Publish(a.ProjectID, models.FeedEventAssetBacked, &a.ID, a.SubmitterWallet,
			fmt.Sprintf("%s claim reached backed", a.Type))
	}
}

func (s *ThresholdService) verifiedEvent(asset *models.Asset) func() {
	a := *asset
	return func() {
		s.Feed.Publish(a.ProjectID, models.FeedEventAssetVerified, &a.ID, a.SubmitterWallet,
			fmt.Sprintf("%s claim verified", a.Type))
	}
}

func (s *ThresholdService) hiddenEvent(asset *models.Asset) func() {
	a := *asset
	return func() {
		s.Feed.Publish(a.ProjectID, models.FeedEventAssetHidden, &a.ID, a.SubmitterWallet,
			fmt.Sprintf("%s claim hidden by reports", a.Type))
	}
}

// gateMet is the stake-or-count OR-gate: either arm satisfies the transition.
func gateMet(weight float64, count int, supplyPct float64, voterCount int) bool {
	return weight >= supplyPct || count >= voterCount
}

// casStatus moves the asset's status with a conditional update; losing a race
// with another instance surfaces as ErrStoreConflict for the bounded retry.
func casStatus(tx *gorm.DB, assetID string, from, to models.AssetStatus, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&models.Asset{}).
		Where("id = ? AND status = ?", assetID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStoreConflict
	}
	return nil
}

// backTx: pending→backed. Status flip and a feed event, no karma movement.
func (s *ThresholdService) backTx(tx *gorm.DB, asset *models.Asset) error {
	if err := casStatus(tx, asset.ID, models.AssetStatusPending, models.AssetStatusBacked, nil); err != nil {
		return err
	}
	asset.Status = models.AssetStatusBacked
	log.WithField("asset_id", asset.ID).Info("asset backed")
	return nil
}

// verifyTx: →verified. Releases the delayed karma share to every upvoter
// (scaled by each voter's own stake snapshot) and to the submitter, bumps the
// submitter's assets-added counter, and copies the payload into the
// verified-assets collection. Shared verbatim by the evaluator and the admin
// ForceVerify path so both pay out identically.
func (s *ThresholdService) verifyTx(tx *gorm.DB, asset *models.Asset) error {
	now := time.Now()
	if err := casStatus(tx, asset.ID, asset.Status, models.AssetStatusVerified,
		map[string]interface{}{"verified_at": now}); err != nil {
		return err
	}

	var votes []models.Vote
	if err := tx.Where("asset_id = ? AND kind = ?", asset.ID, models.VoteKindUpvote).Find(&votes).Error; err != nil {
		return err
	}
	for _, v := range votes {
		_, delayed := s.Karma.UpvoteKarma(v.StakePct)
		if _, err := s.Karma.ApplyDeltaTx(tx, v.VoterWallet, asset.ProjectID, delayed,
			fmt.Sprintf("upvote:delayed:%s", asset.ID), &asset.ID); err != nil {
			return err
		}
		if err := tx.Model(&models.Vote{}).Where("id = ?", v.ID).
			UpdateColumn("karma_earned", gorm.Expr("karma_earned + ?", delayed)).Error; err != nil {
			return err
		}
	}

	_, delayed := s.Karma.SubmitKarma(asset.SubmitterStakePct)
	if _, err := s.Karma.ApplyDeltaTx(tx, asset.SubmitterWallet, asset.ProjectID, delayed,
		fmt.Sprintf("submit:delayed:%s", asset.ID), &asset.ID); err != nil {
		return err
	}
	if err := tx.Model(&models.Asset{}).Where("id = ?", asset.ID).
		UpdateColumn("submitter_karma_paid", gorm.Expr("submitter_karma_paid + ?", delayed)).Error; err != nil {
		return err
	}
	if err := s.Karma.IncrementCounterTx(tx, asset.SubmitterWallet, asset.ProjectID, "assets_added", 1); err != nil {
		return err
	}

	payload, err := marshalPayload(asset)
	if err != nil {
		return err
	}
	verified := models.VerifiedAsset{
		ID:         uuid.NewString(),
		ProjectID:  asset.ProjectID,
		AssetID:    asset.ID,
		Type:       asset.Type,
		Payload:    payload,
		VerifiedAt: now,
	}
	// Re-verification after an admin unhide must not duplicate the row.
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset_id"}},
		DoNothing: true,
	}).Create(&verified).Error; err != nil {
		return err
	}

	asset.Status = models.AssetStatusVerified
	log.WithFields(log.Fields{
		"asset_id": asset.ID,
		"upvoters": len(votes),
	}).Info("asset verified")
	return nil
}

// hideTx: {pending,backed}→hidden. Reverses the immediate karma already paid
// to every upvoter and to the submitter (who also picks up a warning), and
// pays reporters their full share — there is no further tier after hidden.
func (s *ThresholdService) hideTx(tx *gorm.DB, asset *models.Asset) error {
	now := time.Now()
	if err := casStatus(tx, asset.ID, asset.Status, models.AssetStatusHidden,
		map[string]interface{}{"hidden_at": now}); err != nil {
		return err
	}

	var votes []models.Vote
	if err := tx.Where("asset_id = ?", asset.ID).Find(&votes).Error; err != nil {
		return err
	}
	for _, v := range votes {
		switch v.Kind {
		case models.VoteKindUpvote:
			if v.KarmaEarned == 0 {
				continue
			}
			if _, err := s.Karma.ApplyDeltaTx(tx, v.VoterWallet, asset.ProjectID, -v.KarmaEarned,
				fmt.Sprintf("reversal:upvote:%s", asset.ID), &asset.ID); err != nil {
				return err
			}
			if err := tx.Model(&models.Vote{}).Where("id = ?", v.ID).
				UpdateColumn("karma_earned", 0).Error; err != nil {
				return err
			}
		case models.VoteKindReport:
			full := s.Karma.ReportKarma(v.StakePct)
			if _, err := s.Karma.ApplyDeltaTx(tx, v.VoterWallet, asset.ProjectID, full,
				fmt.Sprintf("report:resolved:%s", asset.ID), &asset.ID); err != nil {
				return err
			}
			if err := tx.Model(&models.Vote{}).Where("id = ?", v.ID).
				UpdateColumn("karma_earned", full).Error; err != nil {
				return err
			}
		}
	}

	if asset.SubmitterKarmaPaid != 0 {
		if _, err := s.Karma.ApplyDeltaTx(tx, asset.SubmitterWallet, asset.ProjectID, -asset.SubmitterKarmaPaid,
			fmt.Sprintf("reversal:submission:%s", asset.ID), &asset.ID); err != nil {
			return err
		}
		if err := tx.Model(&models.Asset{}).Where("id = ?", asset.ID).
			UpdateColumn("submitter_karma_paid", 0).Error; err != nil {
			return err
		}
	}
	if err := s.Moderation.warnTx(tx, asset.SubmitterWallet, asset.ProjectID,
		fmt.Sprintf("submitted claim %s was hidden by community reports", asset.ID)); err != nil {
		return err
	}

	asset.Status = models.AssetStatusHidden
	log.WithField("asset_id", asset.ID).Info("asset hidden")
	return nil
}
