package repository

import (
	"context"
	"sync"
	"time"

	"trialdesk/internal/models"
)

type flowEntry struct {
	flow      *models.FamilyPaymentFlow
	expiresAt time.Time
}

// MemoryFlowRepository keeps family payment flow state in process memory.
// Used standalone in tests and as the fallback behind redis.
type MemoryFlowRepository struct {
	flows sync.Map
	ttl   time.Duration
}

func NewMemoryFlowRepository(ttl time.Duration) *MemoryFlowRepository {
	if ttl <= 0 {
		ttl = models.DefaultFlowTTL
	}
	return &MemoryFlowRepository{ttl: ttl}
}

func (r *MemoryFlowRepository) GetFlow(ctx context.Context, familyID string) (*models.FamilyPaymentFlow, error) {
	val, ok := r.flows.Load(familyID)
	if !ok {
		return nil, nil
	}
	entry := val.(*flowEntry)
	if time.Now().After(entry.expiresAt) {
		r.flows.Delete(familyID)
		return nil, nil
	}
	return entry.flow, nil
}

func (r *MemoryFlowRepository) SetFlow(ctx context.Context, flow *models.FamilyPaymentFlow) error {
	r.flows.Store(flow.FamilyID, &flowEntry{
		flow:      flow,
		expiresAt: time.Now().Add(r.ttl),
	})
	return nil
}

func (r *MemoryFlowRepository) ClearFlow(ctx context.Context, familyID string) error {
	r.flows.Delete(familyID)
	return nil
}
