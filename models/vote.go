package models

import "time"

// VoteKind distinguishes support from reports.
type VoteKind string

const (
	VoteKindUpvote VoteKind = "upvote"
	VoteKindReport VoteKind = "report"
)

// Vote is one wallet's weighted opinion on one asset.
//
// The composite unique index on (asset_id, voter_wallet) is the structural
// anti-double-voting guarantee: the pre-check in the submission ledger only
// gives a friendly error, the index is what holds under concurrent casts.
type Vote struct {
	ID          string   `gorm:"primaryKey;type:uuid" json:"id"`
	AssetID     string   `gorm:"type:uuid;not null;uniqueIndex:idx_votes_asset_wallet" json:"asset_id"`
	VoterWallet string   `gorm:"type:varchar(128);not null;uniqueIndex:idx_votes_asset_wallet" json:"voter_wallet"`
	Kind        VoteKind `gorm:"type:varchar(16);not null" json:"kind"`

	// StakePct is the voter's share of total supply at cast time. Fixed
	// forever; later balance changes never alter earned weight or karma.
	StakePct float64 `gorm:"not null" json:"stake_pct"`

	// KarmaEarned is the karma actually credited to the voter for this vote
	// so far (immediate share at cast, topped up at resolution). Reversal
	// negates this recorded amount rather than re-deriving it.
	KarmaEarned float64 `gorm:"not null;default:0" json:"karma_earned"`

	CreatedAt time.Time `json:"created_at"`
}
