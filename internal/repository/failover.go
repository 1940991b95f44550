package repository

import (
	"context"
	"sync/atomic"
	"time"

	"trialdesk/internal/domain"
	"trialdesk/internal/models"

	"github.com/rs/zerolog"
)

// FailoverFlowRepository prefers the primary (redis) flow store and degrades
// to the in-memory fallback when the primary errors, retrying the primary
// after a minute.
type FailoverFlowRepository struct {
	primary   domain.FlowRepository
	fallback  domain.FlowRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nanos of last primary failure/retry
}

func NewFailoverFlowRepository(primary, fallback domain.FlowRepository, logger *zerolog.Logger) *FailoverFlowRepository {
	return &FailoverFlowRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverFlowRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary flow repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverFlowRepository) shouldRetryPrimary() bool {
	return r.isDown.Load() && time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute
}

func (r *FailoverFlowRepository) GetFlow(ctx context.Context, familyID string) (*models.FamilyPaymentFlow, error) {
	if !r.isDown.Load() {
		flow, err := r.primary.GetFlow(ctx, familyID)
		if err == nil {
			return flow, nil
		}
		r.markDown(err)
	}

	if r.shouldRetryPrimary() {
		flow, err := r.primary.GetFlow(ctx, familyID)
		if err == nil {
			r.isDown.Store(false)
			return flow, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.GetFlow(ctx, familyID)
}

func (r *FailoverFlowRepository) SetFlow(ctx context.Context, flow *models.FamilyPaymentFlow) error {
	if !r.isDown.Load() {
		err := r.primary.SetFlow(ctx, flow)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetFlow(ctx, flow)
}

func (r *FailoverFlowRepository) ClearFlow(ctx context.Context, familyID string) error {
	if !r.isDown.Load() {
		err := r.primary.ClearFlow(ctx, familyID)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.ClearFlow(ctx, familyID)
}
