package models

import (
	"time"

	"gorm.io/gorm"
)

// HolderMirror mirrors wallet holdings from the external holdings service.
// It is the table behind the default balance oracle; the sync worker upserts
// into it on every poll. Table name: holder_mirror
type HolderMirror struct {
	ID        string `gorm:"primaryKey;type:uuid;not null" json:"id"`
	Wallet    string `gorm:"type:varchar(128);not null;uniqueIndex:idx_holder_wallet_mint" json:"wallet"`
	TokenMint string `gorm:"type:varchar(128);not null;uniqueIndex:idx_holder_wallet_mint" json:"token_mint"`

	RawBalance float64 `gorm:"not null" json:"raw_balance"`
	// PctOfSupply is precomputed by the holdings service against current
	// total supply.
	PctOfSupply float64 `gorm:"not null" json:"pct_of_supply"`

	LastBalanceCheckAt time.Time `gorm:"not null" json:"last_balance_check_at"`
	CreatedAt          time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time `gorm:"not null" json:"updated_at"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (HolderMirror) TableName() string {
	return "holder_mirror"
}
