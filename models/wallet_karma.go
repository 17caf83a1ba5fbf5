package models

import (
	"time"

	"gorm.io/gorm"
)

// WalletKarma is the per-(wallet, project) reputation record. Created lazily
// on a wallet's first action in a project.
//
// TotalPoints is never overwritten directly: every change goes through the
// karma accountant as an atomic increment paired with a KarmaEntry row, so
// the total always equals the sum of all entries (conservation).
type WalletKarma struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	Wallet    string `gorm:"type:varchar(128);not null;uniqueIndex:idx_karma_wallet_project" json:"wallet"`
	ProjectID string `gorm:"type:uuid;not null;uniqueIndex:idx_karma_wallet_project" json:"project_id"`

	TotalPoints float64 `gorm:"not null;default:0" json:"total_points"` // may go negative

	// Activity counters
	AssetsAdded  int `gorm:"not null;default:0" json:"assets_added"`
	UpvotesGiven int `gorm:"not null;default:0" json:"upvotes_given"`
	ReportsGiven int `gorm:"not null;default:0" json:"reports_given"`

	// Moderation state
	WarningCount int        `gorm:"not null;default:0" json:"warning_count"`
	Banned       bool       `gorm:"not null;default:false" json:"banned"`
	BannedAt     *time.Time `json:"banned_at,omitempty"`
	BanExpiresAt *time.Time `json:"ban_expires_at,omitempty"` // nil while banned = permanent

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Warnings []Warning `gorm:"foreignKey:WalletKarmaID" json:"warnings,omitempty"`
}

// Warning is one moderation strike against a wallet. Unban never removes
// these; they are the wallet's permanent record.
type Warning struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	WalletKarmaID string    `gorm:"type:uuid;not null;index" json:"wallet_karma_id"`
	Reason        string    `gorm:"type:text;not null" json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
}

// KarmaEntry is one applied karma delta: the transaction log behind the
// conservation invariant. Reversals are entries too, with negated amounts.
type KarmaEntry struct {
	ID        string  `gorm:"primaryKey;type:uuid" json:"id"`
	Wallet    string  `gorm:"type:varchar(128);not null;index:idx_karma_entries_wallet_project" json:"wallet"`
	ProjectID string  `gorm:"type:uuid;not null;index:idx_karma_entries_wallet_project" json:"project_id"`
	AssetID   *string `gorm:"type:uuid;index" json:"asset_id,omitempty"` // nil for admin adjustments
	Delta     float64 `gorm:"not null" json:"delta"`
	Reason    string  `gorm:"type:varchar(255);not null" json:"reason"`

	CreatedAt time.Time `json:"created_at"`
}
