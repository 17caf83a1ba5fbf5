package services

import (
	"context"
	"time"

	"asset-curation-system/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ModerationService manages warnings and time-boxed or permanent bans,
// keyed by (wallet, project). The eligibility gate consults this state on
// every action.
type ModerationService struct {
	DB    *gorm.DB
	Karma *KarmaService
}

func NewModerationService(db *gorm.DB, karma *KarmaService) *ModerationService {
	return &ModerationService{DB: db, Karma: karma}
}

// Warn records a strike against a wallet and bumps its warning counter.
func (s *ModerationService) Warn(ctx context.Context, wallet, projectID, reason string) error {
	if reason == "" {
		return ErrEmptyReason
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.warnTx(tx, wallet, projectID, reason)
	})
}

func (s *ModerationService) warnTx(tx *gorm.DB, wallet, projectID, reason string) error {
	row, err := s.Karma.ensureKarmaRowTx(tx, wallet, projectID)
	if err != nil {
		return err
	}
	warning := models.Warning{
		ID:            uuid.NewString(),
		WalletKarmaID: row.ID,
		Reason:        reason,
	}
	if err := tx.Create(&warning).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.WalletKarma{}).
		Where("id = ?", row.ID).
		UpdateColumn("warning_count", gorm.Expr("warning_count + 1")).Error; err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"wallet":  wallet,
		"project": projectID,
		"reason":  reason,
	}).Info("warning recorded")
	return nil
}

// ClearWarnings removes all warning records and zeroes the counter.
func (s *ModerationService) ClearWarnings(ctx context.Context, wallet, projectID, reason string) error {
	if reason == "" {
		return ErrEmptyReason
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.Karma.ensureKarmaRowTx(tx, wallet, projectID)
		if err != nil {
			return err
		}
		if err := tx.Where("wallet_karma_id = ?", row.ID).Delete(&models.Warning{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.WalletKarma{}).
			Where("id = ?", row.ID).
			UpdateColumn("warning_count", 0).Error
	})
}

// Ban blocks a wallet from voting and submitting. duration == 0 means
// permanent. A ban always appends a warning record too.
func (s *ModerationService) Ban(ctx context.Context, wallet, projectID string, duration time.Duration, reason string) error {
	if reason == "" {
		return ErrEmptyReason
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.Karma.ensureKarmaRowTx(tx, wallet, projectID)
		if err != nil {
			return err
		}
		now := time.Now()
		updates := map[string]interface{}{
			"banned":    true,
			"banned_at": now,
		}
		if duration > 0 {
			updates["ban_expires_at"] = now.Add(duration)
		} else {
			updates["ban_expires_at"] = nil
		}
		if err := tx.Model(&models.WalletKarma{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
			return err
		}
		return s.warnTx(tx, wallet, projectID, "banned: "+reason)
	})
}

// Unban clears the ban fields. Historical warning records stay.
func (s *ModerationService) Unban(ctx context.Context, wallet, projectID string) error {
	return s.DB.WithContext(ctx).
		Model(&models.WalletKarma{}).
		Where("wallet = ? AND project_id = ?", wallet, projectID).
		Updates(map[string]interface{}{
			"banned":         false,
			"banned_at":      nil,
			"ban_expires_at": nil,
		}).Error
}
