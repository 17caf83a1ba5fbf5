package models

import "time"

// FeedEventKind tags what happened.
type FeedEventKind string

const (
	FeedEventAssetSubmitted FeedEventKind = "asset_submitted"
	FeedEventAssetBacked    FeedEventKind = "asset_backed"
	FeedEventAssetVerified  FeedEventKind = "asset_verified"
	FeedEventAssetHidden    FeedEventKind = "asset_hidden"
	FeedEventAssetUnhidden  FeedEventKind = "asset_unhidden"
	FeedEventAssetDeleted   FeedEventKind = "asset_deleted"
)

// FeedEvent is one append-only activity record. Appends are fire-and-forget:
// a failed append never rolls back the transition that produced it.
type FeedEvent struct {
	ID        string        `gorm:"primaryKey;type:uuid" json:"id"`
	ProjectID string        `gorm:"type:uuid;not null;index" json:"project_id"`
	Kind      FeedEventKind `gorm:"type:varchar(32);not null" json:"kind"`
	AssetID   *string       `gorm:"type:uuid;index" json:"asset_id,omitempty"`
	Wallet    string        `gorm:"type:varchar(128)" json:"wallet,omitempty"`
	Summary   string        `gorm:"type:text" json:"summary"`

	CreatedAt time.Time `json:"created_at"`
}
