package services

import (
	"context"
	"errors"
	"fmt"

	"asset-curation-system/config"
	"asset-curation-system/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AdminService is the privileged override path. It bypasses the threshold
// gates but never the karma accountant: every payout and reversal here runs
// through the exact same ledger code the evaluator uses, so equivalent
// outcomes pay equivalently.
type AdminService struct {
	DB         *gorm.DB
	Cfg        *config.Config
	Karma      *KarmaService
	Feed       *FeedService
	Thresholds *ThresholdService
}

func NewAdminService(db *gorm.DB, cfg *config.Config, karma *KarmaService, feed *FeedService, thresholds *ThresholdService) *AdminService {
	return &AdminService{DB: db, Cfg: cfg, Karma: karma, Feed: feed, Thresholds: thresholds}
}

// ForceVerify promotes an asset to verified regardless of thresholds,
// with the same side effects as the evaluator's backed→verified transition.
// Idempotent: re-invoking on an already-verified asset is a no-op, never a
// double payout. Hidden assets cannot be force-verified.
func (s *AdminService) ForceVerify(ctx context.Context, assetID string) error {
	var verified *models.Asset
	err := withConflictRetry(func() error {
		verified = nil
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var asset models.Asset
			if err := lockForUpdate(tx).Where("id = ?", assetID).First(&asset).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotFound
				}
				return err
			}
			switch asset.Status {
			case models.AssetStatusVerified:
				return nil // already done
			case models.AssetStatusHidden:
				return ErrInvalidTransition
			}
			if err := s.Thresholds.verifyTx(tx, &asset); err != nil {
				return err
			}
			verified = &asset
			return nil
		})
	})
	if err != nil {
		return err
	}
	if verified != nil {
		s.Feed.Publish(verified.ProjectID, models.FeedEventAssetVerified, &verified.ID,
			verified.SubmitterWallet, fmt.Sprintf("%s claim verified by moderator", verified.Type))
	}
	return nil
}

// ForceHide shunts a pending or backed asset to hidden with the same side
// effects as the evaluator's hide transition. Idempotent on already-hidden
// assets; verified assets can only be removed via ForceDelete.
func (s *AdminService) ForceHide(ctx context.Context, assetID string) error {
	var hidden *models.Asset
	err := withConflictRetry(func() error {
		hidden = nil
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var asset models.Asset
			if err := lockForUpdate(tx).Where("id = ?", assetID).First(&asset).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotFound
				}
				return err
			}
			switch asset.Status {
			case models.AssetStatusHidden:
				return nil
			case models.AssetStatusVerified:
				return ErrInvalidTransition
			}
			if err := s.Thresholds.hideTx(tx, &asset); err != nil {
				return err
			}
			hidden = &asset
			return nil
		})
	})
	if err != nil {
		return err
	}
	if hidden != nil {
		s.Feed.Publish(hidden.ProjectID, models.FeedEventAssetHidden, &hidden.ID,
			hidden.SubmitterWallet, fmt.Sprintf("%s claim hidden by moderator", hidden.Type))
	}
	return nil
}

// Unhide is the admin-only escape hatch for a wrongly hidden asset. It
// returns the asset to backed and unwinds the hide's karma effects through
// the ledger: upvoters and the submitter get their immediate share
// re-credited, reporters' payout is reversed. The submitter's warning stays
// on record.
func (s *AdminService) Unhide(ctx context.Context, assetID string) error {
	var unhidden *models.Asset
	err := withConflictRetry(func() error {
		unhidden = nil
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var asset models.Asset
			if err := lockForUpdate(tx).Where("id = ?", assetID).First(&asset).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotFound
				}
				return err
			}
			if asset.Status != models.AssetStatusHidden {
				return ErrInvalidTransition
			}
			if err := casStatus(tx, asset.ID, models.AssetStatusHidden, models.AssetStatusBacked,
				map[string]interface{}{"hidden_at": nil}); err != nil {
				return err
			}

			var votes []models.Vote
			if err := tx.Where("asset_id = ?", asset.ID).Find(&votes).Error; err != nil {
				return err
			}
			for _, v := range votes {
				switch v.Kind {
				case models.VoteKindUpvote:
					immediate, _ := s.Karma.UpvoteKarma(v.StakePct)
					if _, err := s.Karma.ApplyDeltaTx(tx, v.VoterWallet, asset.ProjectID, immediate,
						fmt.Sprintf("unhide:recredit:upvote:%s", asset.ID), &asset.ID); err != nil {
						return err
					}
					if err := tx.Model(&models.Vote{}).Where("id = ?", v.ID).
						UpdateColumn("karma_earned", immediate).Error; err != nil {
						return err
					}
				case models.VoteKindReport:
					if v.KarmaEarned == 0 {
						continue
					}
					if _, err := s.Karma.ApplyDeltaTx(tx, v.VoterWallet, asset.ProjectID, -v.KarmaEarned,
						fmt.Sprintf("unhide:reversal:report:%s", asset.ID), &asset.ID); err != nil {
						return err
					}
					if err := tx.Model(&models.Vote{}).Where("id = ?", v.ID).
						UpdateColumn("karma_earned", 0).Error; err != nil {
						return err
					}
				}
			}

			immediate, _ := s.Karma.SubmitKarma(asset.SubmitterStakePct)
			if _, err := s.Karma.ApplyDeltaTx(tx, asset.SubmitterWallet, asset.ProjectID, immediate,
				fmt.Sprintf("unhide:recredit:submission:%s", asset.ID), &asset.ID); err != nil {
				return err
			}
			if err := tx.Model(&models.Asset{}).Where("id = ?", asset.ID).
				UpdateColumn("submitter_karma_paid", immediate).Error; err != nil {
				return err
			}

			unhidden = &asset
			return nil
		})
	})
	if err != nil {
		return err
	}
	if unhidden != nil {
		s.Feed.Publish(unhidden.ProjectID, models.FeedEventAssetUnhidden, &unhidden.ID,
			unhidden.SubmitterWallet, fmt.Sprintf("%s claim restored by moderator", unhidden.Type))
	}
	return nil
}

// ForceDelete reverses all karma recorded against the asset, then removes the
// asset, its votes, and any feed events referencing it. The reversal runs
// first in the same transaction, so a failure anywhere leaves the ledger
// untouched and the whole operation retryable.
func (s *AdminService) ForceDelete(ctx context.Context, assetID string) error {
	var deleted *models.Asset
	err := withConflictRetry(func() error {
		deleted = nil
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var asset models.Asset
			if err := tx.Where("id = ?", assetID).First(&asset).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotFound
				}
				return err
			}
			deleted = &asset

			if _, err := s.Karma.ReverseAllForTx(tx, assetID); err != nil {
				return err
			}
			if err := tx.Where("asset_id = ?", assetID).Delete(&models.Vote{}).Error; err != nil {
				return err
			}
			if err := tx.Where("asset_id = ?", assetID).Delete(&models.FeedEvent{}).Error; err != nil {
				return err
			}
			if err := tx.Where("asset_id = ?", assetID).Delete(&models.VerifiedAsset{}).Error; err != nil {
				return err
			}
			// Hard delete, not a soft-delete tombstone: a force-deleted
			// claim must free its claim key for resubmission.
			if err := tx.Unscoped().Where("id = ?", assetID).Delete(&models.Asset{}).Error; err != nil {
				return err
			}
			log.WithField("asset_id", assetID).Info("asset deleted")
			return nil
		})
	})
	if err != nil {
		return err
	}
	// The asset row and its own events are gone, so this one carries no
	// asset reference.
	s.Feed.Publish(deleted.ProjectID, models.FeedEventAssetDeleted, nil,
		deleted.SubmitterWallet, fmt.Sprintf("%s claim removed by moderator", deleted.Type))
	return nil
}

// BulkForceVerify applies ForceVerify across a set. Items commit
// independently; one failure never aborts the rest.
func (s *AdminService) BulkForceVerify(ctx context.Context, assetIDs []string) ([]BatchItemResult, error) {
	return s.bulk(ctx, assetIDs, s.ForceVerify)
}

// BulkForceDelete applies ForceDelete across a set with the same
// partial-failure semantics.
func (s *AdminService) BulkForceDelete(ctx context.Context, assetIDs []string) ([]BatchItemResult, error) {
	return s.bulk(ctx, assetIDs, s.ForceDelete)
}

func (s *AdminService) bulk(ctx context.Context, assetIDs []string, op func(context.Context, string) error) ([]BatchItemResult, error) {
	results := make([]BatchItemResult, 0, len(assetIDs))
	failed := false
	for _, id := range assetIDs {
		r := BatchItemResult{AssetID: id, OK: true}
		if err := op(ctx, id); err != nil {
			r.OK = false
			r.Error = err.Error()
			failed = true
		}
		results = append(results, r)
	}
	if failed {
		return results, &PartialBatchFailureError{Results: results}
	}
	return results, nil
}

// AdjustKarma is the explicit, reason-justified administrative adjustment —
// itself a recorded ledger entry, never a direct overwrite of the total.
func (s *AdminService) AdjustKarma(ctx context.Context, wallet, projectID string, delta float64, reason string) (float64, error) {
	if reason == "" {
		return 0, ErrEmptyReason
	}
	return s.Karma.ApplyDelta(ctx, wallet, projectID, delta, "admin:"+reason, nil)
}
