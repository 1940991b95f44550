package service

import (
	"context"
	"fmt"

	"trialdesk/internal/domain"
	"trialdesk/internal/events"
	"trialdesk/internal/metrics"
	"trialdesk/internal/models"

	"github.com/rs/zerolog"
)

// LifecycleEvent is an action attempted against a booking's status.
type LifecycleEvent string

const (
	EventTeacherConfirms         LifecycleEvent = "teacher_confirms"
	EventTeacherMarksCompleted   LifecycleEvent = "teacher_marks_completed"
	EventTeacherMarksGhosted     LifecycleEvent = "teacher_marks_ghosted"
	EventSalesSchedulesFollowUp  LifecycleEvent = "sales_schedules_follow_up"
	EventSalesCreatesPaymentLink LifecycleEvent = "sales_creates_payment_link"
	EventSalesCompletesFollowUp  LifecycleEvent = "sales_completes_follow_up"
	EventPaymentReceived         LifecycleEvent = "payment_received"
	EventPaymentExpired          LifecycleEvent = "payment_expired"
	EventRegistrationCompleted   LifecycleEvent = "registration_completed"
	EventPackageExhausted        LifecycleEvent = "package_exhausted"
	EventSalesCancels            LifecycleEvent = "sales_cancels"
	EventSalesDrops              LifecycleEvent = "sales_drops"
)

// TransitionPayload carries the facts guards need. Callers fill only the
// fields relevant to their event.
type TransitionPayload struct {
	SessionID         int64  // teacher_confirms: the created session id
	Outcome           string // sales_completes_follow_up: "ready" | "not-interested"
	SelectionComplete bool   // sales_creates_payment_link: package+currency chosen
	PaymentReference  string // payment_received: external confirmation
	SessionsScheduled bool   // registration_completed: all sessions placed
	ChangedBy         string
}

// InvalidTransitionError reports a rejected transition with enough detail for
// the UI to explain why the action is disallowed.
type InvalidTransitionError struct {
	From  string
	Event LifecycleEvent
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: event %q not allowed in status %q", e.Event, e.From)
}

type transitionRule struct {
	to      string
	guard   func(TransitionPayload) error
	resolve func(TransitionPayload) (string, error)
}

// transitionTable is the single authority over the status lifecycle. UI
// permission checks are a view over this table, never a second source of truth.
var transitionTable = map[string]map[LifecycleEvent]transitionRule{
	models.StatusPending: {
		EventTeacherConfirms: {to: models.StatusConfirmed, guard: guardSessionExists},
		EventSalesCancels:    {to: models.StatusCancelled},
	},
	models.StatusConfirmed: {
		EventTeacherMarksCompleted: {to: models.StatusTrialCompleted},
		EventTeacherMarksGhosted:   {to: models.StatusTrialGhosted},
		EventSalesCancels:          {to: models.StatusCancelled},
	},
	models.StatusTrialCompleted: {
		EventSalesSchedulesFollowUp:  {to: models.StatusFollowUp},
		EventSalesCreatesPaymentLink: {to: models.StatusAwaitingPayment, guard: guardSelectionComplete},
	},
	models.StatusTrialGhosted: {
		// Re-confirm back-edge: the family resurfaced.
		EventTeacherConfirms:        {to: models.StatusConfirmed, guard: guardSessionExists},
		EventSalesSchedulesFollowUp: {to: models.StatusFollowUp},
		EventSalesDrops:             {to: models.StatusDropped},
	},
	models.StatusFollowUp: {
		EventSalesCompletesFollowUp: {resolve: resolveFollowUpOutcome},
		// Reschedule keeps the status; the follow-up row moves.
		EventSalesSchedulesFollowUp: {to: models.StatusFollowUp},
	},
	models.StatusAwaitingPayment: {
		EventPaymentReceived: {to: models.StatusPaid, guard: guardPaymentReference},
		EventPaymentExpired:  {to: models.StatusExpired},
		EventSalesCancels:    {to: models.StatusCancelled},
	},
	models.StatusPaid: {
		EventRegistrationCompleted: {to: models.StatusActive, guard: guardSessionsScheduled},
	},
	models.StatusActive: {
		EventPackageExhausted: {to: models.StatusExpired},
		EventSalesCancels:     {to: models.StatusCancelled},
		EventSalesDrops:       {to: models.StatusDropped},
	},
	// Re-offer payment back-edges.
	models.StatusExpired: {
		EventSalesCreatesPaymentLink: {to: models.StatusAwaitingPayment, guard: guardSelectionComplete},
	},
	models.StatusCancelled: {
		EventSalesCreatesPaymentLink: {to: models.StatusAwaitingPayment, guard: guardSelectionComplete},
	},
}

func guardSessionExists(p TransitionPayload) error {
	if p.SessionID <= 0 {
		return fmt.Errorf("teacher confirmation requires a session with a valid id")
	}
	return nil
}

func guardSelectionComplete(p TransitionPayload) error {
	if !p.SelectionComplete {
		return fmt.Errorf("payment link requires package and currency selected")
	}
	return nil
}

func guardPaymentReference(p TransitionPayload) error {
	if p.PaymentReference == "" {
		return fmt.Errorf("payment confirmation requires an external reference")
	}
	return nil
}

func guardSessionsScheduled(p TransitionPayload) error {
	if !p.SessionsScheduled {
		return fmt.Errorf("registration requires all sessions scheduled")
	}
	return nil
}

func resolveFollowUpOutcome(p TransitionPayload) (string, error) {
	switch p.Outcome {
	case models.FollowUpOutcomeReady:
		return models.StatusAwaitingPayment, nil
	case models.FollowUpOutcomeNotInterested:
		return models.StatusDropped, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOutcome, p.Outcome)
	}
}

// NextStatus computes the status an event leads to from the current one.
// Events absent from the table return *InvalidTransitionError and must not
// mutate anything.
func NextStatus(current string, event LifecycleEvent, p TransitionPayload) (string, error) {
	rules, ok := transitionTable[current]
	if !ok {
		return "", &InvalidTransitionError{From: current, Event: event}
	}
	rule, ok := rules[event]
	if !ok {
		return "", &InvalidTransitionError{From: current, Event: event}
	}
	if rule.guard != nil {
		if err := rule.guard(p); err != nil {
			return "", err
		}
	}
	if rule.resolve != nil {
		return rule.resolve(p)
	}
	return rule.to, nil
}

// AllowedEvents lists the events legal in the given status; the UI renders
// its buttons from this.
func AllowedEvents(current string) []LifecycleEvent {
	rules, ok := transitionTable[current]
	if !ok {
		return nil
	}
	allowed := make([]LifecycleEvent, 0, len(rules))
	for event := range rules {
		allowed = append(allowed, event)
	}
	return allowed
}

// LifecycleService applies lifecycle events to persisted bookings.
type LifecycleService struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewLifecycleService(repo domain.Repository, eventBus domain.EventPublisher, logger *zerolog.Logger) *LifecycleService {
	return &LifecycleService{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
	}
}

// GetStatus returns a booking's current status.
func (s *LifecycleService) GetStatus(ctx context.Context, bookingID int64) (string, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return "", err
	}
	return booking.Status, nil
}

// GetFamilyStatus returns the shared status of a family group.
func (s *LifecycleService) GetFamilyStatus(ctx context.Context, familyGroupID string) (string, error) {
	bookings, err := s.repo.GetFamilyBookings(ctx, familyGroupID)
	if err != nil {
		return "", err
	}
	if len(bookings) == 0 {
		return "", ErrFamilyNotFound
	}
	return bookings[0].Status, nil
}

// AttemptTransition applies one event to one booking. The status write uses
// the booking's version, so a concurrent transition loses cleanly.
func (s *LifecycleService) AttemptTransition(ctx context.Context, bookingID int64, event LifecycleEvent, p TransitionPayload) (string, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return "", err
	}

	next, err := NextStatus(booking.Status, event, p)
	if err != nil {
		return "", err
	}

	if next != booking.Status {
		if err := s.repo.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, next); err != nil {
			return "", err
		}
	}

	metrics.IncTransition(booking.Status, string(event))
	s.publishStatusChange(booking.ID, booking.Status, event, next, p.ChangedBy)

	return next, nil
}

// AttemptFamilyTransition applies one event to every booking in a family
// group; family members always move together.
func (s *LifecycleService) AttemptFamilyTransition(ctx context.Context, familyGroupID string, event LifecycleEvent, p TransitionPayload) (string, error) {
	bookings, err := s.repo.GetFamilyBookings(ctx, familyGroupID)
	if err != nil {
		return "", err
	}
	if len(bookings) == 0 {
		return "", ErrFamilyNotFound
	}

	// Validate the whole group first so a half-applied family transition
	// cannot happen because of a table rejection.
	next := ""
	for _, b := range bookings {
		n, err := NextStatus(b.Status, event, p)
		if err != nil {
			return "", err
		}
		if next == "" {
			next = n
		}
	}

	for _, b := range bookings {
		if b.Status == next {
			continue
		}
		if err := s.repo.UpdateBookingStatusWithVersion(ctx, b.ID, b.Version, next); err != nil {
			return "", err
		}
		metrics.IncTransition(b.Status, string(event))
		s.publishStatusChange(b.ID, b.Status, event, next, p.ChangedBy)
	}

	return next, nil
}

func (s *LifecycleService) publishStatusChange(bookingID int64, from string, event LifecycleEvent, to, changedBy string) {
	if s.eventBus == nil {
		return
	}
	payload := events.StatusEventPayload{
		BookingID: bookingID,
		From:      from,
		Event:     string(event),
		To:        to,
		ChangedBy: changedBy,
	}
	if err := s.eventBus.PublishJSON(events.EventStatusChanged, payload); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("publish status change error")
	}
}
