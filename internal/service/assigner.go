package service

import (
	"context"
	"sort"

	"trialdesk/internal/domain"
	"trialdesk/internal/models"

	"github.com/rs/zerolog"
)

// Assigner implements the round-robin fairness policy: among the teachers
// qualified for one slot group, prefer the one whose most recent assignment
// (any date, persisted) is oldest. Never-assigned teachers come first; ties
// break by teacher id ascending. Reading history from the store keeps the
// rotation intact across restarts and concurrent callers.
type Assigner struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewAssigner(repo domain.Repository, logger *zerolog.Logger) *Assigner {
	return &Assigner{repo: repo, logger: logger}
}

// Order returns the group's members sorted by assignment recency, the
// fairness order a booking attempt walks when reservations race. The first
// element is the round-robin pick.
func (a *Assigner) Order(ctx context.Context, group models.SlotGroup) ([]models.SlotCandidate, error) {
	if len(group.Members) == 0 {
		return nil, ErrEmptySlotGroup
	}

	ids := make([]int64, len(group.Members))
	for i, m := range group.Members {
		ids[i] = m.TeacherID
	}

	lastAssigned, err := a.repo.GetAssignmentTimes(ctx, ids)
	if err != nil {
		return nil, err
	}

	ordered := append([]models.SlotCandidate(nil), group.Members...)
	sort.SliceStable(ordered, func(i, j int) bool {
		ti := lastAssigned[ordered[i].TeacherID] // zero time if never assigned
		tj := lastAssigned[ordered[j].TeacherID]
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return ordered[i].TeacherID < ordered[j].TeacherID
	})

	return ordered, nil
}

// Pick returns the single round-robin choice for a group.
func (a *Assigner) Pick(ctx context.Context, group models.SlotGroup) (models.SlotCandidate, error) {
	ordered, err := a.Order(ctx, group)
	if err != nil {
		return models.SlotCandidate{}, err
	}
	return ordered[0], nil
}
