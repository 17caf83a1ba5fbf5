package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"asset-curation-system/config"
	"asset-curation-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubmissionService is the vote/submission ledger: it records one vote or
// submission per (asset, wallet) pair and atomically folds vote weight into
// the asset's running totals.
type SubmissionService struct {
	DB          *gorm.DB
	Cfg         *config.Config
	Eligibility *EligibilityService
	Karma       *KarmaService
	Feed        *FeedService
}

func NewSubmissionService(db *gorm.DB, cfg *config.Config, elig *EligibilityService, karma *KarmaService, feed *FeedService) *SubmissionService {
	return &SubmissionService{DB: db, Cfg: cfg, Eligibility: elig, Karma: karma, Feed: feed}
}

// SubmitInput carries a new claim. Exactly one payload must match Type.
type SubmitInput struct {
	ProjectID string                  `json:"project_id"`
	Type      models.AssetType        `json:"type"`
	Social    *models.SocialPayload   `json:"social,omitempty"`
	Creative  *models.CreativePayload `json:"creative,omitempty"`
	Legal     *models.LegalPayload    `json:"legal,omitempty"`
}

// claimKey normalizes the identifying payload fields into the key used for
// DuplicateClaim detection: two submissions of the same account/work/filing
// collapse to the same key regardless of spelling noise.
func (in *SubmitInput) claimKey() (string, error) {
	switch in.Type {
	case models.AssetTypeSocial:
		if in.Social == nil || in.Social.Platform == "" || in.Social.Handle == "" {
			return "", fmt.Errorf("social payload requires platform and handle")
		}
		return "social:" + slug.Make(in.Social.Platform+" "+in.Social.Handle), nil
	case models.AssetTypeCreative:
		if in.Creative == nil || in.Creative.Kind == "" || in.Creative.Title == "" {
			return "", fmt.Errorf("creative payload requires kind and title")
		}
		return "creative:" + slug.Make(in.Creative.Kind+" "+in.Creative.Title), nil
	case models.AssetTypeLegal:
		if in.Legal == nil || in.Legal.Jurisdiction == "" || in.Legal.RegistrationNo == "" {
			return "", fmt.Errorf("legal payload requires jurisdiction and registration number")
		}
		return "legal:" + slug.Make(in.Legal.Jurisdiction+" "+in.Legal.RegistrationNo), nil
	default:
		return "", fmt.Errorf("unknown asset type %q", in.Type)
	}
}

// Submit creates a pending asset and immediately credits the submitter the
// immediate karma share. Fails with ErrDuplicateClaim when an equivalent
// claim already exists for the project in a non-hidden state.
func (s *SubmissionService) Submit(ctx context.Context, wallet string, in SubmitInput) (*models.Asset, error) {
	key, err := in.claimKey()
	if err != nil {
		return nil, err
	}

	stakePct, err := s.Eligibility.CheckEligibility(ctx, wallet, in.ProjectID)
	if err != nil {
		return nil, err
	}

	asset := &models.Asset{
		ID:                uuid.NewString(),
		ProjectID:         in.ProjectID,
		Type:              in.Type,
		ClaimKey:          key,
		SocialPayload:     in.Social,
		CreativePayload:   in.Creative,
		LegalPayload:      in.Legal,
		SubmitterWallet:   wallet,
		SubmitterStakePct: stakePct,
		Status:            models.AssetStatusPending,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Asset{}).
			Where("project_id = ? AND claim_key = ? AND status <> ?",
				in.ProjectID, key, models.AssetStatusHidden).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateClaim
		}

		immediate, _ := s.Karma.SubmitKarma(stakePct)
		asset.SubmitterKarmaPaid = immediate
		if err := tx.Create(asset).Error; err != nil {
			// The partial unique index on live (project_id, claim_key) rows
			// catches the racing submission the pre-check above cannot see.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateClaim
			}
			return err
		}
		_, err := s.Karma.ApplyDeltaTx(tx, wallet, in.ProjectID, immediate,
			fmt.Sprintf("submit:immediate:%s", asset.ID), &asset.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Feed.Publish(in.ProjectID, models.FeedEventAssetSubmitted, &asset.ID, wallet,
		fmt.Sprintf("new %s claim submitted", in.Type))

	log.WithFields(log.Fields{
		"asset_id": asset.ID,
		"project":  in.ProjectID,
		"wallet":   wallet,
		"type":     in.Type,
	}).Info("asset submitted")
	return asset, nil
}

// Vote records one wallet's upvote or report on an asset, folds its stake
// snapshot into the asset's running totals in the same transaction, and
// credits the upvoter's immediate karma share. Reports earn nothing until
// resolution.
func (s *SubmissionService) Vote(ctx context.Context, assetID, wallet string, kind models.VoteKind) (*models.Vote, error) {
	if kind != models.VoteKindUpvote && kind != models.VoteKindReport {
		return nil, fmt.Errorf("unknown vote kind %q", kind)
	}

	var asset models.Asset
	if err := s.DB.WithContext(ctx).Where("id = ?", assetID).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if asset.Status == models.AssetStatusVerified || asset.Status == models.AssetStatusHidden {
		return nil, ErrInvalidTransition
	}

	stakePct, err := s.Eligibility.CheckEligibility(ctx, wallet, asset.ProjectID)
	if err != nil {
		return nil, err
	}

	vote := &models.Vote{
		ID:          uuid.NewString(),
		AssetID:     assetID,
		VoterWallet: wallet,
		Kind:        kind,
		StakePct:    stakePct,
	}

	err = withConflictRetry(func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// Lock the asset row so the fold below is linearizable with any
			// concurrent status transition on the same asset.
			var locked models.Asset
			if err := lockForUpdate(tx).Where("id = ?", assetID).First(&locked).Error; err != nil {
				return err
			}
			if locked.Status == models.AssetStatusVerified || locked.Status == models.AssetStatusHidden {
				return ErrInvalidTransition
			}

			// The unique index on (asset_id, voter_wallet) makes double
			// voting structurally impossible; DoNothing + RowsAffected turns
			// the losing insert of a concurrent pair into a clean error.
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "asset_id"}, {Name: "voter_wallet"}},
				DoNothing: true,
			}).Create(vote)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrAlreadyVoted
			}

			// Atomic weight fold — an in-place increment, never a
			// read-modify-write from the caller.
			weightCol, countCol, counter := "upvote_weight", "upvote_count", "upvotes_given"
			if kind == models.VoteKindReport {
				weightCol, countCol, counter = "report_weight", "report_count", "reports_given"
			}
			if err := tx.Model(&models.Asset{}).
				Where("id = ?", assetID).
				UpdateColumns(map[string]interface{}{
					weightCol: gorm.Expr(weightCol+" + ?", stakePct),
					countCol:  gorm.Expr(countCol + " + 1"),
				}).Error; err != nil {
				return err
			}

			if err := s.Karma.IncrementCounterTx(tx, wallet, locked.ProjectID, counter, 1); err != nil {
				return err
			}

			if kind == models.VoteKindUpvote {
				immediate, _ := s.Karma.UpvoteKarma(stakePct)
				vote.KarmaEarned = immediate
				if err := tx.Model(&models.Vote{}).Where("id = ?", vote.ID).
					UpdateColumn("karma_earned", immediate).Error; err != nil {
					return err
				}
				if _, err := s.Karma.ApplyDeltaTx(tx, wallet, locked.ProjectID, immediate,
					fmt.Sprintf("upvote:immediate:%s", assetID), &locked.ID); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"asset_id": assetID,
		"wallet":   wallet,
		"kind":     kind,
	}).Info("vote recorded")
	return vote, nil
}

// GetAsset returns one asset with its votes.
func (s *SubmissionService) GetAsset(ctx context.Context, assetID string) (*models.Asset, error) {
	var asset models.Asset
	err := s.DB.WithContext(ctx).Preload("Votes").Where("id = ?", assetID).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// ListAssets returns a project's assets, optionally filtered by status.
func (s *SubmissionService) ListAssets(ctx context.Context, projectID string, status string, limit int) ([]models.Asset, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	query := s.DB.WithContext(ctx).Where("project_id = ?", projectID)
	if st := strings.ToLower(strings.TrimSpace(status)); st != "" && st != "all" {
		query = query.Where("status = ?", st)
	}
	var assets []models.Asset
	err := query.Order("created_at DESC").Limit(limit).Find(&assets).Error
	return assets, err
}

// ListVerified returns the project's verified-assets collection.
func (s *SubmissionService) ListVerified(ctx context.Context, projectID string) ([]models.VerifiedAsset, error) {
	var rows []models.VerifiedAsset
	err := s.DB.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("verified_at DESC").
		Find(&rows).Error
	return rows, err
}

// marshalPayload renders the asset's typed payload for the verified-assets
// collection.
func marshalPayload(a *models.Asset) (string, error) {
	var v interface{}
	switch a.Type {
	case models.AssetTypeSocial:
		v = a.SocialPayload
	case models.AssetTypeCreative:
		v = a.CreativePayload
	case models.AssetTypeLegal:
		v = a.LegalPayload
	}
	if v == nil {
		return "", fmt.Errorf("asset %s has no payload for type %s", a.ID, a.Type)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
