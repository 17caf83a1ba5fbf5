package services

import (
	"context"
	"math"
	"testing"

	"asset-curation-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fullShare is the complete payout curve: base·(1+√stake).
func fullShare(base, stakePct float64) float64 {
	return base * (1 + math.Sqrt(stakePct))
}

// Scenario B: five small upvoters clear the count arm of the backed gate even
// though their combined stake is far below the supply arm.
func TestEvaluateBackedByCountArm(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t)
	ctx := context.Background()
	env.setStake(t, project, "submitter", 1.0)

	asset := env.submitSocial(t, project, "submitter", "someproject")

	voters := []string{"v1", "v2", "v3", "v4", "v5"}
	for _, w := range voters {
		env.setStake(t, project, w, 0.06)
		_, err := env.Submissions.Vote(ctx, asset.ID, w, models.VoteKindUpvote)
		require.NoError(t, err)
	}
	// 5 × 0.06% = 0.3% of supply, under the 0.5% arm; the count arm carries.
	reloaded := env.reloadAsset(t, asset.ID)
	assert.Less(t, reloaded.UpvoteWeight, env.Cfg.BackedSupplyPct)

	env.Thresholds.EvaluateAll(ctx)
	assert.Equal(t, models.AssetStatusBacked, env.reloadAsset(t, asset.ID).Status)
}

func TestEvaluateBackedByStakeArm(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t)
	ctx := context.Background()
	env.setStake(t, project, "submitter", 1.0)
	env.setStake(t, project, "whale", 0.6)

	asset := env.submitSocial(t, project, "submitter", "someproject")
	_, err := env.Submissions.Vote(ctx, asset.ID, "whale", models.VoteKindUpvote)
	require.NoError(t, err)

	env.Thresholds.EvaluateAll(ctx)
	assert.Equal(t, models.AssetStatusBacked, env.reloadAsset(t, asset.ID).Status)
}

// A single scan cascades pending→backed→verified when the votes already clear
// both gates, and the verification payout releases every delayed share.
func TestEvaluateCascadeToVerified(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t)
	ctx := context.Background()
	env.setStake(t, project, "submitter", 1.0)

	asset := env.submitSocial(t, project, "submitter", "someproject")

	voters := []string{"w1", "w2", "w3", "w4"}
	for _, w := range voters {
		env.setStake(t, project, w, 0.6)
		_, err := env.Submissions.Vote(ctx, asset.ID, w, models.VoteKindUpvote)
		require.NoError(t, err)
	}
	// 4 × 0.6% = 2.4% clears the 2.0% verified arm in one pass.
	env.Thresholds.EvaluateAll(ctx)

	reloaded := env.reloadAsset(t, asset.ID)
	assert.Equal(t, models.AssetStatusVerified, reloaded.Status)
	require.NotNil(t, reloaded.VerifiedAt)

	// Every upvoter now holds their full share, not just the immediate slice.
	for _, w := range voters {
		assert.InDelta(t, fullShare(env.Cfg.KarmaBaseUpvote, 0.6),
			env.karmaTotal(t, w, project.ID), 1e-9, "voter %s", w)
	}
	assert.InDelta(t, fullShare(env.Cfg.KarmaBaseSubmit, 1.0),
		env.karmaTotal(t, "submitter", project.ID), 1e-9)
	assert.InDelta(t, fullShare(env.Cfg.KarmaBaseSubmit, 1.0), reloaded.SubmitterKarmaPaid, 1e-9)

	var karmaRow models.WalletKarma
	require.NoError(t, env.DB.Where("wallet = ? AND project_id = ?", "submitter", project.ID).First(&karmaRow).Error)
	assert.Equal(t, 1, karmaRow.AssetsAdded)

	var verifiedRows []models.VerifiedAsset
	require.NoError(t, env.DB.Where("asset_id = ?", asset.ID).Find(&verifiedRows).Error)
	require.Len(t, verifiedRows, 1)
	assert.Equal(t, project.ID, verifiedRows[0].ProjectID)
	assert.Contains(t, verifiedRows[0].Payload, "someproject")
}

// Scenario C: enough reports hide the asset, claw back the upvoters' and the
// submitter's immediate karma, pay the reporters in full, and warn the
// submitter.
func TestEvaluateHideReversesAndPaysReporters(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t)
	ctx := context.Background()
	env.setStake(t, project, "submitter", 1.0)
	env.setStake(t, project, "upvoter", 0.2)

	asset := env.submitSocial(t, project, "submitter", "fakeproject")
	_, err := env.Submissions.Vote(ctx, asset.ID, "upvoter", models.VoteKindUpvote)
	require.NoError(t, err)

	reporters := []string{"r1", "r2", "r3", "r4", "r5"}
	for _, w := range reporters {
		env.setStake(t, project, w, 0.05)
		_, err := env.Submissions.Vote(ctx, asset.ID, w, models.VoteKindReport)
		require.NoError(t, err)
	}

	env.Thresholds.EvaluateAll(ctx)

	reloaded := env.reloadAsset(t, asset.ID)
	assert.Equal(t, models.AssetStatusHidden, reloaded.Status)
	require.NotNil(t, reloaded.HiddenAt)
	assert.Zero(t, reloaded.SubmitterKarmaPaid)

	assert.InDelta(t, 0, env.karmaTotal(t, "upvoter", project.ID), 1e-9)
	assert.InDelta(t, 0, env.karmaTotal(t, "submitter", project.ID), 1e-9)
	for _, w := range reporters {
		assert.InDelta(t, fullShare(env.Cfg.KarmaBaseReport, 0.05),
			env.karmaTotal(t, w, project.ID), 1e-9, "reporter %s", w)
	}

	var upvote models.Vote
	require.NoError(t, env.DB.Where("asset_id = ? AND voter_wallet = ?", asset.ID, "upvoter").First(&upvote).Error)
	assert.Zero(t, upvote.KarmaEarned)

	var karmaRow models.WalletKarma
	require.NoError(t, env.DB.Where("wallet = ? AND project_id = ?", "submitter", project.ID).First(&karmaRow).Error)
	assert.Equal(t, 1, karmaRow.WarningCount)
}

// When an asset clears the verify gate and the hide gate in the same scan,
// hide wins.
func TestEvaluateHidePrecedesPromotion(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t)
	ctx := context.Background()
	env.setStake(t, project, "submitter", 1.0)
	env.setStake(t, project, "whale", 2.5)

	asset := env.submitSocial(t, project, "submitter", "someproject")
	_, err := env.Submissions.Vote(ctx, asset.ID, "whale", models.VoteKindUpvote)
	require.NoError(t, err)

	env.setStake(t, project, "reporterwhale", 0.8)
	_, err = env.Submissions.Vote(ctx, asset.ID, "reporterwhale", models.VoteKindReport)
	require.NoError(t, err)

	env.Thresholds.EvaluateAll(ctx)
	assert.Equal(t, models.AssetStatusHidden, env.reloadAsset(t, asset.ID).Status)
}

// Verified is terminal for the scanner: repeated scans neither demote the
// asset nor pay anyone twice.
func TestEvaluateRescanIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t)
	ctx := context.Background()
	env.setStake(t, project, "submitter", 1.0)
	env.setStake(t, project, "whale", 2.5)

	asset := env.submitSocial(t, project, "submitter", "someproject")
	_, err := env.Submissions.Vote(ctx, asset.ID, "whale", models.VoteKindUpvote)
	require.NoError(t, err)

	env.Thresholds.EvaluateAll(ctx)
	require.Equal(t, models.AssetStatusVerified, env.reloadAsset(t, asset.ID).Status)
	whaleTotal := env.karmaTotal(t, "whale", project.ID)
	submitterTotal := env.karmaTotal(t, "submitter", project.ID)

	env.Thresholds.EvaluateAll(ctx)
	env.Thresholds.EvaluateAll(ctx)

	assert.Equal(t, models.AssetStatusVerified, env.reloadAsset(t, asset.ID).Status)
	assert.InDelta(t, whaleTotal, env.karmaTotal(t, "whale", project.ID), 1e-9)
	assert.InDelta(t, submitterTotal, env.karmaTotal(t, "submitter", project.ID), 1e-9)

	var verifiedRows []models.VerifiedAsset
	require.NoError(t, env.DB.Where("asset_id = ?", asset.ID).Find(&verifiedRows).Error)
	assert.Len(t, verifiedRows, 1)
}

// An asset short of every gate is left exactly where it is.
func TestEvaluateBelowAllGates(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t)
	ctx := context.Background()
	env.setStake(t, project, "submitter", 1.0)
	env.setStake(t, project, "voter", 0.1)

	asset := env.submitSocial(t, project, "submitter", "someproject")
	_, err := env.Submissions.Vote(ctx, asset.ID, "voter", models.VoteKindUpvote)
	require.NoError(t, err)

	env.Thresholds.EvaluateAll(ctx)
	assert.Equal(t, models.AssetStatusPending, env.reloadAsset(t, asset.ID).Status)
}
