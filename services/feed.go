package services

import (
	"context"

	"asset-curation-system/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FeedService appends activity events. Appends are fire-and-forget: a failed
// append is logged and swallowed so it can never roll back the transition
// that produced it.
type FeedService struct {
	DB *gorm.DB
}

func NewFeedService(db *gorm.DB) *FeedService {
	return &FeedService{DB: db}
}

// Publish appends one event. Always returns; errors only get logged.
func (s *FeedService) Publish(projectID string, kind models.FeedEventKind, assetID *string, wallet, summary string) {
	event := models.FeedEvent{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Kind:      kind,
		AssetID:   assetID,
		Wallet:    wallet,
		Summary:   summary,
	}
	if err := s.DB.Create(&event).Error; err != nil {
		log.WithError(err).WithFields(log.Fields{
			"project": projectID,
			"kind":    kind,
		}).Warn("failed to append feed event")
	}
}

// Recent lists a project's latest events.
func (s *FeedService) Recent(ctx context.Context, projectID string, limit int) ([]models.FeedEvent, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	var events []models.FeedEvent
	err := s.DB.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
