package services

import (
	"errors"
	"fmt"
)

// Terminal user-facing errors. These are never retried.
var (
	ErrNoStake        = errors.New("wallet holds no stake in this project")
	ErrBanned         = errors.New("wallet is banned from this project")
	ErrAlreadyVoted   = errors.New("wallet has already voted on this asset")
	ErrDuplicateClaim = errors.New("an equivalent unresolved claim already exists")
	ErrNotFound       = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEmptyReason       = errors.New("a reason is required")
)

// ErrStoreConflict signals an optimistic-concurrency clash; callers inside
// the service layer retry it a bounded number of times before surfacing.
var ErrStoreConflict = errors.New("store conflict, retry")

// BatchItemResult is the per-item outcome of a bulk admin operation.
type BatchItemResult struct {
	AssetID string `json:"asset_id"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// PartialBatchFailureError reports a bulk operation where some items failed.
// The successful items stay committed; only the failures are listed here.
type PartialBatchFailureError struct {
	Results []BatchItemResult
}

func (e *PartialBatchFailureError) Error() string {
	failed := 0
	for _, r := range e.Results {
		if !r.OK {
			failed++
		}
	}
	return fmt.Sprintf("%d of %d batch items failed", failed, len(e.Results))
}

const maxConflictRetries = 3

// withConflictRetry runs fn, retrying on ErrStoreConflict up to the bound.
func withConflictRetry(fn func() error) error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		err = fn()
		if !errors.Is(err, ErrStoreConflict) {
			return err
		}
	}
	return err
}
