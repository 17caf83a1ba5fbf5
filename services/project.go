package services

import (
	"context"
	"errors"
	"fmt"

	"asset-curation-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProjectService is the thin surface around Project rows.
type ProjectService struct {
	DB *gorm.DB
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{DB: db}
}

func (s *ProjectService) Create(ctx context.Context, name, tokenMint string, totalSupply float64) (*models.Project, error) {
	if name == "" || tokenMint == "" {
		return nil, fmt.Errorf("name and token mint are required")
	}
	project := &models.Project{
		ID:          uuid.NewString(),
		Name:        name,
		TokenMint:   tokenMint,
		TotalSupply: totalSupply,
	}
	if err := s.DB.WithContext(ctx).Create(project).Error; err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) Get(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (s *ProjectService) List(ctx context.Context, limit int) ([]models.Project, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var projects []models.Project
	err := s.DB.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&projects).Error
	return projects, err
}
