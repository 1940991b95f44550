package service

import (
	"context"
	"fmt"
	"time"

	"trialdesk/internal/domain"
	"trialdesk/internal/events"
	"trialdesk/internal/models"

	"github.com/rs/zerolog"
)

// FollowUpService schedules and completes contact reminders. Scheduling and
// completion both go through the lifecycle table first, so an illegal action
// never creates or consumes a follow-up.
type FollowUpService struct {
	repo      domain.Repository
	lifecycle *LifecycleService
	eventBus  domain.EventPublisher
	logger    *zerolog.Logger
}

func NewFollowUpService(repo domain.Repository, lifecycle *LifecycleService, eventBus domain.EventPublisher, logger *zerolog.Logger) *FollowUpService {
	return &FollowUpService{
		repo:      repo,
		lifecycle: lifecycle,
		eventBus:  eventBus,
		logger:    logger,
	}
}

// Schedule creates a follow-up for a booking and moves it to follow-up
// status. For family bookings the whole group moves together.
func (s *FollowUpService) Schedule(ctx context.Context, bookingID int64, at time.Time, reason, notes, changedBy string) (*models.FollowUp, error) {
	if !validReason(reason) {
		return nil, fmt.Errorf("unknown follow-up reason: %q", reason)
	}

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	payload := TransitionPayload{ChangedBy: changedBy}
	if booking.IsFamily() {
		_, err = s.lifecycle.AttemptFamilyTransition(ctx, booking.FamilyGroupID, EventSalesSchedulesFollowUp, payload)
	} else {
		_, err = s.lifecycle.AttemptTransition(ctx, bookingID, EventSalesSchedulesFollowUp, payload)
	}
	if err != nil {
		return nil, err
	}

	fu := &models.FollowUp{
		BookingID:     bookingID,
		FamilyGroupID: booking.FamilyGroupID,
		ScheduledAt:   at,
		Reason:        reason,
		Notes:         notes,
	}
	if err := s.repo.CreateFollowUp(ctx, fu); err != nil {
		return nil, err
	}

	s.publish(events.EventFollowUpScheduled, fu, changedBy)
	return fu, nil
}

// Reschedule moves a pending follow-up without touching the status.
func (s *FollowUpService) Reschedule(ctx context.Context, followUpID int64, at time.Time) error {
	return s.repo.RescheduleFollowUp(ctx, followUpID, at)
}

// Complete finishes a follow-up exactly once. The outcome drives the
// lifecycle: "ready" moves to awaiting-payment, "not-interested" to dropped.
// The store-level completed guard runs first, so a double completion never
// produces a second transition.
func (s *FollowUpService) Complete(ctx context.Context, followUpID int64, outcome, notes, changedBy string) (string, error) {
	if outcome != models.FollowUpOutcomeReady && outcome != models.FollowUpOutcomeNotInterested {
		return "", fmt.Errorf("%w: %q", ErrUnknownOutcome, outcome)
	}

	fu, err := s.repo.GetFollowUp(ctx, followUpID)
	if err != nil {
		return "", err
	}

	if err := s.repo.CompleteFollowUp(ctx, followUpID, outcome, notes); err != nil {
		return "", err
	}

	payload := TransitionPayload{Outcome: outcome, ChangedBy: changedBy}
	var next string
	if fu.FamilyGroupID != "" {
		next, err = s.lifecycle.AttemptFamilyTransition(ctx, fu.FamilyGroupID, EventSalesCompletesFollowUp, payload)
	} else {
		next, err = s.lifecycle.AttemptTransition(ctx, fu.BookingID, EventSalesCompletesFollowUp, payload)
	}
	if err != nil {
		return "", err
	}

	fu.Outcome = outcome
	fu.Completed = true
	s.publish(events.EventFollowUpCompleted, fu, changedBy)
	return next, nil
}

// Due lists incomplete follow-ups due by now, for the reminder view.
func (s *FollowUpService) Due(ctx context.Context, now time.Time) ([]models.FollowUp, error) {
	return s.repo.GetPendingFollowUps(ctx, now)
}

func validReason(reason string) bool {
	switch reason {
	case models.FollowUpReasonNoAnswer, models.FollowUpReasonCallLater,
		models.FollowUpReasonConsidering, models.FollowUpReasonPaymentPending:
		return true
	}
	return false
}

func (s *FollowUpService) publish(eventType string, fu *models.FollowUp, changedBy string) {
	if s.eventBus == nil {
		return
	}
	payload := map[string]any{
		"follow_up_id":    fu.ID,
		"booking_id":      fu.BookingID,
		"family_group_id": fu.FamilyGroupID,
		"scheduled_at":    fu.ScheduledAt,
		"reason":          fu.Reason,
		"outcome":         fu.Outcome,
		"changed_by":      changedBy,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Int64("follow_up_id", fu.ID).Msg("publish follow-up event error")
	}
}
