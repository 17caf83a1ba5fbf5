// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all settings for the service, including the curation policy
// values (threshold tiers, karma scaling). Policy values are deployment
// configuration, never hard-coded in the services.
type Config struct {
	// --- HTTP ---
	ListenAddr     string `envconfig:"LISTEN_ADDR" default:":5300"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	// Shared secret the gateway attaches to every forwarded request.
	ServiceToken string `envconfig:"CURATION_SERVICE_TOKEN" required:"true"`

	// --- Database ---
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// --- Holder sync (balance oracle mirror) ---
	HoldingsServiceURL string        `envconfig:"HOLDINGS_SERVICE_URL" required:"true"`
	HoldingsToken      string        `envconfig:"HOLDINGS_SERVICE_TOKEN" required:"true"`
	HolderSyncInterval time.Duration `envconfig:"HOLDER_SYNC_INTERVAL" default:"15s"`

	// --- Threshold evaluator ---
	EvalInterval time.Duration `envconfig:"EVAL_INTERVAL" default:"1m"`

	// --- Verification thresholds (two-tier OR-gate) ---
	// Each transition fires on EITHER the supply-percentage arm OR the
	// distinct-voter arm, whichever is crossed first.
	BackedSupplyPct    float64 `envconfig:"BACKED_SUPPLY_PCT" default:"0.5"`
	BackedVoterCount   int     `envconfig:"BACKED_VOTER_COUNT" default:"5"`
	VerifiedSupplyPct  float64 `envconfig:"VERIFIED_SUPPLY_PCT" default:"2.0"`
	VerifiedVoterCount int     `envconfig:"VERIFIED_VOTER_COUNT" default:"20"`
	HideSupplyPct      float64 `envconfig:"HIDE_SUPPLY_PCT" default:"0.5"`
	HideReporterCount  int     `envconfig:"HIDE_REPORTER_COUNT" default:"5"`

	// --- Karma policy ---
	KarmaBaseSubmit float64 `envconfig:"KARMA_BASE_SUBMIT" default:"20"`
	KarmaBaseUpvote float64 `envconfig:"KARMA_BASE_UPVOTE" default:"10"`
	KarmaBaseReport float64 `envconfig:"KARMA_BASE_REPORT" default:"10"`
	// Share of the full payout credited at action time; the remainder is
	// released at resolution (verification, or hide for reports).
	KarmaImmediateShare float64 `envconfig:"KARMA_IMMEDIATE_SHARE" default:"0.25"`

	// --- Logging ---
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if cfg.KarmaImmediateShare <= 0 || cfg.KarmaImmediateShare >= 1 {
		return nil, fmt.Errorf("KARMA_IMMEDIATE_SHARE must be in (0,1), got %v", cfg.KarmaImmediateShare)
	}
	return &cfg, nil
}
