package services

import (
	"context"
	"errors"
	"time"

	"asset-curation-system/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// EligibilityService decides whether a wallet may act (vote or submit) in a
// project, and captures the stake snapshot every downstream weight and karma
// computation uses.
type EligibilityService struct {
	DB     *gorm.DB
	Oracle BalanceOracle
}

func NewEligibilityService(db *gorm.DB, oracle BalanceOracle) *EligibilityService {
	return &EligibilityService{DB: db, Oracle: oracle}
}

// CheckEligibility returns the wallet's current stake percentage of the
// project's supply, or ErrNoStake / ErrBanned / ErrNotFound. The returned
// snapshot is what gets embedded in the resulting Vote or Asset; later
// balance changes never retroactively alter it.
func (s *EligibilityService) CheckEligibility(ctx context.Context, wallet, projectID string) (float64, error) {
	var project models.Project
	if err := s.DB.WithContext(ctx).Where("id = ?", projectID).First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	// Ban check first: a banned whale is still banned.
	var karma models.WalletKarma
	err := s.DB.WithContext(ctx).
		Where("wallet = ? AND project_id = ?", wallet, projectID).
		First(&karma).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	if err == nil && banActive(&karma, time.Now()) {
		log.WithFields(log.Fields{
			"wallet":  wallet,
			"project": projectID,
		}).Info("action denied: wallet banned")
		return 0, ErrBanned
	}

	stake, err := s.Oracle.GetStake(ctx, wallet, project.TokenMint)
	if err != nil {
		return 0, err
	}
	if stake.PctOfSupply <= 0 {
		return 0, ErrNoStake
	}
	return stake.PctOfSupply, nil
}

// banActive reports whether the row carries an unexpired ban.
// BanExpiresAt == nil while banned means permanent.
func banActive(k *models.WalletKarma, now time.Time) bool {
	if !k.Banned {
		return false
	}
	if k.BanExpiresAt == nil {
		return true
	}
	return now.Before(*k.BanExpiresAt)
}
