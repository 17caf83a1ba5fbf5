package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"asset-curation-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// immediateShare computes the expected immediate payout under the test
// policy: 25% of base·(1+√stake).
func immediateShare(base, stakePct float64) float64 {
	return 0.25 * base * (1 + math.Sqrt(stakePct))
}

// Scenario A: an asset with no votes stays pending, and the submitter holds
// exactly the immediate-share karma for their 2% stake.
func TestSubmitCreditsImmediateKarma(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t)
	env.setStake(t, project, "submitter", 2.0)

	asset := env.submitSocial(t, project, "submitter", "coolproject")

	assert.Equal(t, models.AssetStatusPending, asset.Status)
	assert.InDelta(t, 2.0, asset.SubmitterStakePct, 1e-9)

	want := immediateShare(env.Cfg.KarmaBaseSubmit, 2.0)
	assert.InDelta(t, want, env.karmaTotal(t, "submitter", project.ID), 1e-9)
	assert.InDelta(t, want, asset.SubmitterKarmaPaid, 1e-9)

	// No votes, no thresholds: the evaluator must not move it.
	env.Thresholds.EvaluateAll(context.Background())
	assert.Equal(t, models.AssetStatusPending, env.reloadAsset(t, asset.ID).Status)
}

func TestSubmitDuplicateClaim(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t)
	ctx := context.Background()
	env.setStake(t, project, "walletA", 1.0)
	env.setStake(t, project, "walletB", 1.0)

	env.submitSocial(t, project, "walletA", "CoolProject")

	// Same account, different spelling noise: the claim keys collapse.
	_, err := env.Submissions.Submit(ctx, "walletB", SubmitInput{
		ProjectID: project.ID,
		Type:      models.AssetTypeSocial,
		Social:    &models.SocialPayload{Platform: "X", Handle: "coolproject"},
	})
	assert.ErrorIs(t, err, ErrDuplicateClaim)
}

func TestSubmitAfterHideAllowed(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t)
	ctx := context.Background()
	env.setStake(t, project, "walletA", 1.0)
	env.setStake(t, project, "walletB", 1.0)

	asset := env.submitSocial(t, project, "walletA", "coolproject")
	require.NoError(t, env.Admin.ForceHide(ctx, asset.ID))

	// A hidden claim is resolved; the same account may be claimed again.
	_, err := env.Submissions.Submit(ctx, "walletB", SubmitInput{
		ProjectID: project.ID,
		Type:      models.AssetTypeSocial,
		Social:    &models.SocialPayload{Platform: "x", Handle: "coolproject"},
	})
	assert.NoError(t, err)
}

func TestSubmitRejectsBadPayload(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t)
	env.setStake(t, project, "walletA", 1.0)

	_, err := env.Submissions.Submit(context.Background(), "walletA", SubmitInput{
		ProjectID: project.ID,
		Type:      models.AssetTypeLegal,
		Legal:     &models.LegalPayload{Jurisdiction: "DE"}, // missing registration no
	})
	assert.Error(t, err)
}

func TestVoteFoldsWeightAndCreditsKarma(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t)
	ctx := context.Background()
	env.setStake(t, project, "submitter", 1.0)
	env.setStake(t, project, "voter1", 0.2)
	env.setStake(t, project, "voter2", 0.3)
	env.setStake(t, project, "reporter", 0.1)

	asset := env.submitSocial(t, project, "submitter", "someproject")

	_, err := env.Submissions.Vote(ctx, asset.ID, "voter1", models.VoteKindUpvote)
	require.NoError(t, err)
	_, err = env.Submissions.Vote(ctx, asset.ID, "voter2", models.VoteKindUpvote)
	require.NoError(t, err)
	_, err = env.Submissions.Vote(ctx, asset.ID, "reporter", models.VoteKindReport)
	require.NoError(t, err)

	reloaded := env.reloadAsset(t, asset.ID)
	assert.InDelta(t, 0.5, reloaded.UpvoteWeight, 1e-9)
	assert.Equal(t, 2, reloaded.UpvoteCount)
	assert.InDelta(t, 0.1, reloaded.ReportWeight, 1e-9)
	assert.Equal(t, 1, reloaded.ReportCount)

	// Upvoters earn the immediate share at cast time; reporters earn nothing
	// until resolution.
	assert.InDelta(t, immediateShare(env.Cfg.KarmaBaseUpvote, 0.2),
		env.karmaTotal(t, "voter1", project.ID), 1e-9)
	assert.InDelta(t, 0, env.karmaTotal(t, "reporter", project.ID), 1e-9)

	var karmaRow models.WalletKarma
	require.NoError(t, env.DB.Where("wallet = ? AND project_id = ?", "voter1", project.ID).First(&karmaRow).Error)
	assert.Equal(t, 1, karmaRow.UpvotesGiven)
}

// N concurrent casts from the same wallet: exactly one vote lands, the rest
// lose to the unique index and come back as AlreadyVoted.
func TestVoteConcurrentSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t)
	ctx := context.Background()
	env.setStake(t, project, "submitter", 1.0)
	env.setStake(t, project, "voter", 0.3)

	asset := env.submitSocial(t, project, "submitter", "someproject")

	const attempts = 8
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Submissions.Vote(ctx, asset.ID, "voter", models.VoteKindUpvote)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	won, lost := 0, 0
	for err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrAlreadyVoted):
			lost++
		default:
			t.Fatalf("unexpected vote error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, attempts-1, lost)

	var count int64
	require.NoError(t, env.DB.Model(&models.Vote{}).Where("asset_id = ?", asset.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	reloaded := env.reloadAsset(t, asset.ID)
	assert.Equal(t, 1, reloaded.UpvoteCount)
	assert.InDelta(t, 0.3, reloaded.UpvoteWeight, 1e-9)

	// Exactly one immediate credit landed.
	assert.InDelta(t, immediateShare(env.Cfg.KarmaBaseUpvote, 0.3),
		env.karmaTotal(t, "voter", project.ID), 1e-9)
}

// The live-claim unique index holds even for a writer that slips past the
// in-transaction duplicate pre-check, and a hidden claim frees the key.
func TestDuplicateClaimIndexBackstop(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t)
	ctx := context.Background()
	env.setStake(t, project, "walletA", 1.0)

	asset := env.submitSocial(t, project, "walletA", "coolproject")

	rival := models.Asset{
		ID:              uuid.NewString(),
		ProjectID:       project.ID,
		Type:            models.AssetTypeSocial,
		ClaimKey:        asset.ClaimKey,
		SocialPayload:   &models.SocialPayload{Platform: "x", Handle: "coolproject"},
		SubmitterWallet: "walletB",
		Status:          models.AssetStatusPending,
	}
	err := env.DB.Create(&rival).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	require.NoError(t, env.Admin.ForceHide(ctx, asset.ID))
	rival.ID = uuid.NewString()
	assert.NoError(t, env.DB.Create(&rival).Error)
}

func TestVoteAlreadyVoted(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t)
	ctx := context.Background()
	env.setStake(t, project, "submitter", 1.0)
	env.setStake(t, project, "voter", 0.5)

	asset := env.submitSocial(t, project, "submitter", "someproject")

	_, err := env.Submissions.Vote(ctx, asset.ID, "voter", models.VoteKindUpvote)
	require.NoError(t, err)

	// A second vote of any kind from the same wallet is rejected.
	_, err = env.Submissions.Vote(ctx, asset.ID, "voter", models.VoteKindReport)
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	var count int64
	require.NoError(t, env.DB.Model(&models.Vote{}).Where("asset_id = ?", asset.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

// Scenario E: a banned wallet gets a Banned error and leaves no trace.
func TestVoteBannedWallet(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t)
	ctx := context.Background()
	env.setStake(t, project, "submitter", 1.0)
	env.setStake(t, project, "badwallet", 0.5)

	asset := env.submitSocial(t, project, "submitter", "someproject")
	require.NoError(t, env.Moderation.Ban(ctx, "badwallet", project.ID, 0, "prior abuse"))

	_, err := env.Submissions.Vote(ctx, asset.ID, "badwallet", models.VoteKindUpvote)
	assert.ErrorIs(t, err, ErrBanned)

	var count int64
	require.NoError(t, env.DB.Model(&models.Vote{}).Where("asset_id = ?", asset.ID).Count(&count).Error)
	assert.EqualValues(t, 0, count)

	reloaded := env.reloadAsset(t, asset.ID)
	assert.Zero(t, reloaded.UpvoteWeight)
	assert.Zero(t, reloaded.UpvoteCount)
}

func TestVoteOnResolvedAsset(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t)
	ctx := context.Background()
	env.setStake(t, project, "submitter", 1.0)
	env.setStake(t, project, "voter", 0.5)

	asset := env.submitSocial(t, project, "submitter", "someproject")
	require.NoError(t, env.Admin.ForceVerify(ctx, asset.ID))

	_, err := env.Submissions.Vote(ctx, asset.ID, "voter", models.VoteKindUpvote)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestVoteStakeSnapshotIsFixed(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t)
	ctx := context.Background()
	env.setStake(t, project, "submitter", 1.0)
	env.setStake(t, project, "voter", 0.4)

	asset := env.submitSocial(t, project, "submitter", "someproject")
	vote, err := env.Submissions.Vote(ctx, asset.ID, "voter", models.VoteKindUpvote)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, vote.StakePct, 1e-9)

	// The wallet dumps its bag; the recorded snapshot must not move.
	env.setStake(t, project, "voter", 0.0)
	var stored models.Vote
	require.NoError(t, env.DB.Where("id = ?", vote.ID).First(&stored).Error)
	assert.InDelta(t, 0.4, stored.StakePct, 1e-9)

	reloaded := env.reloadAsset(t, asset.ID)
	assert.InDelta(t, 0.4, reloaded.UpvoteWeight, 1e-9)
}
