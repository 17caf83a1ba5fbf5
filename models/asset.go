package models

import (
	"time"

	"gorm.io/gorm"
)

// AssetType is the closed set of claim kinds holders can submit.
type AssetType string

const (
	AssetTypeSocial   AssetType = "social"   // social accounts (X, Telegram, ...)
	AssetTypeCreative AssetType = "creative" // creative works (logo, anthem, ...)
	AssetTypeLegal    AssetType = "legal"    // legal registrations (trademark, LLC, ...)
)

func (t AssetType) Valid() bool {
	switch t {
	case AssetTypeSocial, AssetTypeCreative, AssetTypeLegal:
		return true
	}
	return false
}

// AssetStatus is the verification state machine state.
type AssetStatus string

const (
	AssetStatusPending  AssetStatus = "pending"
	AssetStatusBacked   AssetStatus = "backed"
	AssetStatusVerified AssetStatus = "verified"
	AssetStatusHidden   AssetStatus = "hidden"
)

// Asset is one claim about a project, moving through
// pending → backed → verified, or shunted to hidden by reports.
//
// The running weight/count columns are derived exclusively from the Vote rows
// and are only ever touched by the submission ledger's atomic fold — never by
// handlers or the evaluator directly.
type Asset struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	ProjectID string    `gorm:"type:uuid;not null;index" json:"project_id"`
	Type      AssetType `gorm:"type:varchar(16);not null" json:"type"`

	// ClaimKey is the normalized identifying payload (type + slug of the
	// identifying fields), used for DuplicateClaim detection.
	ClaimKey string `gorm:"type:varchar(255);not null;index" json:"-"`

	// Type-specific payload, exactly one of these is non-nil.
	SocialPayload   *SocialPayload   `gorm:"type:jsonb;serializer:json" json:"social_payload,omitempty"`
	CreativePayload *CreativePayload `gorm:"type:jsonb;serializer:json" json:"creative_payload,omitempty"`
	LegalPayload    *LegalPayload    `gorm:"type:jsonb;serializer:json" json:"legal_payload,omitempty"`

	SubmitterWallet   string  `gorm:"type:varchar(128);not null;index" json:"submitter_wallet"`
	SubmitterStakePct float64 `gorm:"not null" json:"submitter_stake_pct"` // snapshot at submission

	Status AssetStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`

	// Running vote totals (atomic fold only).
	UpvoteWeight  float64 `gorm:"not null;default:0" json:"upvote_weight"`
	UpvoteCount   int     `gorm:"not null;default:0" json:"upvote_count"`
	ReportWeight  float64 `gorm:"not null;default:0" json:"report_weight"`
	ReportCount   int     `gorm:"not null;default:0" json:"report_count"`

	// Karma already credited to the submitter for this asset. Recorded so
	// deletion/hide can reverse it exactly instead of re-deriving it.
	SubmitterKarmaPaid float64 `gorm:"not null;default:0" json:"submitter_karma_paid"`

	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	VerifiedAt *time.Time     `json:"verified_at,omitempty"`
	HiddenAt   *time.Time     `json:"hidden_at,omitempty"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	Votes []Vote `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE" json:"votes,omitempty"`
}

// SocialPayload identifies a social account claim.
type SocialPayload struct {
	Platform string `json:"platform"` // e.g. "x", "telegram", "discord"
	Handle   string `json:"handle"`
	URL      string `json:"url,omitempty"`
}

// CreativePayload identifies a creative-work claim.
type CreativePayload struct {
	Kind     string `json:"kind"` // e.g. "logo", "anthem", "mascot"
	Title    string `json:"title"`
	MediaURL string `json:"media_url,omitempty"`
}

// LegalPayload identifies a legal-registration claim.
type LegalPayload struct {
	Jurisdiction   string `json:"jurisdiction"`
	RegistryName   string `json:"registry_name"`
	RegistrationNo string `json:"registration_no"`
}

// VerifiedAsset is the per-project collection of payloads that reached
// verified status. Owned by the read side; rows are copied in by the
// verification transition.
type VerifiedAsset struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	ProjectID  string    `gorm:"type:uuid;not null;index" json:"project_id"`
	AssetID    string    `gorm:"type:uuid;not null;uniqueIndex" json:"asset_id"`
	Type       AssetType `gorm:"type:varchar(16);not null" json:"type"`
	Payload    string    `gorm:"type:jsonb" json:"payload"`
	VerifiedAt time.Time `gorm:"not null" json:"verified_at"`
	CreatedAt  time.Time `json:"created_at"`
}
