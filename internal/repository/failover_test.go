package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"trialdesk/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyFlowRepository fails every call while broken is set.
type flakyFlowRepository struct {
	inner  *MemoryFlowRepository
	broken bool
	calls  int
}

func (r *flakyFlowRepository) GetFlow(ctx context.Context, familyID string) (*models.FamilyPaymentFlow, error) {
	r.calls++
	if r.broken {
		return nil, errors.New("connection refused")
	}
	return r.inner.GetFlow(ctx, familyID)
}

func (r *flakyFlowRepository) SetFlow(ctx context.Context, flow *models.FamilyPaymentFlow) error {
	r.calls++
	if r.broken {
		return errors.New("connection refused")
	}
	return r.inner.SetFlow(ctx, flow)
}

func (r *flakyFlowRepository) ClearFlow(ctx context.Context, familyID string) error {
	r.calls++
	if r.broken {
		return errors.New("connection refused")
	}
	return r.inner.ClearFlow(ctx, familyID)
}

func newFailoverFixture() (*FailoverFlowRepository, *flakyFlowRepository, *MemoryFlowRepository) {
	primary := &flakyFlowRepository{inner: NewMemoryFlowRepository(time.Hour)}
	fallback := NewMemoryFlowRepository(time.Hour)
	logger := zerolog.Nop()
	return NewFailoverFlowRepository(primary, fallback, &logger), primary, fallback
}

func TestFailover_UsesPrimaryWhenHealthy(t *testing.T) {
	repo, primary, fallback := newFailoverFixture()
	ctx := context.Background()

	require.NoError(t, repo.SetFlow(ctx, testFlow("fam-1")))

	flow, err := primary.inner.GetFlow(ctx, "fam-1")
	require.NoError(t, err)
	assert.NotNil(t, flow, "write went to the primary")

	flow, err = fallback.GetFlow(ctx, "fam-1")
	require.NoError(t, err)
	assert.Nil(t, flow, "fallback untouched")
}

func TestFailover_FallsBackOnPrimaryError(t *testing.T) {
	repo, primary, fallback := newFailoverFixture()
	ctx := context.Background()
	primary.broken = true

	require.NoError(t, repo.SetFlow(ctx, testFlow("fam-1")))

	flow, err := fallback.GetFlow(ctx, "fam-1")
	require.NoError(t, err)
	require.NotNil(t, flow, "write landed in the fallback")

	// Subsequent reads serve from the fallback without touching the primary.
	callsBefore := primary.calls
	flow, err = repo.GetFlow(ctx, "fam-1")
	require.NoError(t, err)
	require.NotNil(t, flow)
	assert.Equal(t, callsBefore, primary.calls, "primary skipped while marked down")
}

func TestFailover_RetriesPrimaryAfterCooldown(t *testing.T) {
	repo, primary, _ := newFailoverFixture()
	ctx := context.Background()
	primary.broken = true

	require.NoError(t, repo.SetFlow(ctx, testFlow("fam-1")))
	require.True(t, repo.isDown.Load())

	// Age the failure beyond the retry window and heal the primary.
	repo.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())
	primary.broken = false

	_, err := repo.GetFlow(ctx, "fam-1")
	require.NoError(t, err)
	assert.False(t, repo.isDown.Load(), "primary recovered")
}

func TestFailover_ClearFlowFallsBack(t *testing.T) {
	repo, primary, fallback := newFailoverFixture()
	ctx := context.Background()

	primary.broken = true
	require.NoError(t, repo.SetFlow(ctx, testFlow("fam-1")))
	require.NoError(t, repo.ClearFlow(ctx, "fam-1"))

	flow, err := fallback.GetFlow(ctx, "fam-1")
	require.NoError(t, err)
	assert.Nil(t, flow)
}
