package services

import (
	"context"
	"errors"
	"fmt"

	"asset-curation-system/models"

	"gorm.io/gorm"
)

// Stake is a wallet's holding of a token at the moment of the query.
type Stake struct {
	RawBalance  float64 `json:"raw_balance"`
	PctOfSupply float64 `json:"pct_of_supply"`
}

// BalanceOracle answers "how much of this token does this wallet hold right
// now". It is queried fresh at the moment of each action; the result is
// snapshotted into the Vote/Asset row and never re-queried retroactively.
type BalanceOracle interface {
	GetStake(ctx context.Context, wallet, tokenMint string) (Stake, error)
}

// MirrorOracle is the default oracle: it reads the holder_mirror table kept
// fresh by the holder sync worker. A wallet absent from the mirror simply
// holds nothing.
type MirrorOracle struct {
	DB *gorm.DB
}

func NewMirrorOracle(db *gorm.DB) *MirrorOracle {
	return &MirrorOracle{DB: db}
}

func (o *MirrorOracle) GetStake(ctx context.Context, wallet, tokenMint string) (Stake, error) {
	var row models.HolderMirror
	err := o.DB.WithContext(ctx).
		Where("wallet = ? AND token_mint = ?", wallet, tokenMint).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Stake{}, nil
	}
	if err != nil {
		return Stake{}, fmt.Errorf("failed to read holder mirror: %w", err)
	}
	return Stake{RawBalance: row.RawBalance, PctOfSupply: row.PctOfSupply}, nil
}
