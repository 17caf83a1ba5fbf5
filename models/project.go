package models

import (
	"time"

	"gorm.io/gorm"
)

// Project is the token community whose assets are being curated.
type Project struct {
	ID   string `gorm:"primaryKey;type:uuid" json:"id"`
	Name string `gorm:"not null" json:"name"`

	// TokenMint is the on-chain identifier the balance oracle is queried with.
	TokenMint   string  `gorm:"type:varchar(128);not null;uniqueIndex" json:"token_mint"`
	TotalSupply float64 `gorm:"not null" json:"total_supply"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
