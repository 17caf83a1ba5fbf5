package models

import "gorm.io/gorm"

// Migrate runs the schema migration plus the constraints tag-driven
// migration cannot express.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Project{},
		&Asset{},
		&Vote{},
		&VerifiedAsset{},
		&WalletKarma{},
		&Warning{},
		&KarmaEntry{},
		&FeedEvent{},
		&HolderMirror{},
	); err != nil {
		return err
	}

	// One live claim per (project, claim_key). Hidden and deleted rows must
	// free the key for resubmission, so a plain unique index cannot serve;
	// the partial index makes the duplicate-claim check hold even when two
	// submissions race past the in-transaction pre-check.
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_assets_live_claim
		 ON assets (project_id, claim_key)
		 WHERE status <> 'hidden' AND deleted_at IS NULL`,
	).Error
}
