package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trialdesk/internal/database"
	"trialdesk/internal/domain"
	"trialdesk/internal/events"
	"trialdesk/internal/metrics"
	"trialdesk/internal/models"
	"trialdesk/internal/timezone"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StudentPayload is one student in a booking request.
type StudentPayload struct {
	StudentID   int64  `json:"student_id"`
	StudentName string `json:"student_name"`
	Phone       string `json:"phone,omitempty"`
}

// BookingRequest is the single contract for individual and family bookings:
// "family" is simply more than one student in the payload. The chosen slot
// group travels in the request itself; there is no shared selection state.
type BookingRequest struct {
	Students        []StudentPayload `json:"students"`
	Group           models.SlotGroup `json:"group"`
	ChosenTeacherID int64            `json:"chosen_teacher_id,omitempty"` // 0 = round-robin
	TeacherType     string           `json:"teacher_type"`
	ChangedBy       string           `json:"changed_by,omitempty"`
}

// BookingResult reports a committed booking.
type BookingResult struct {
	BookingIDs    []int64 `json:"booking_ids"`
	FamilyGroupID string  `json:"family_group_id,omitempty"`
	TeacherID     int64   `json:"teacher_id"`
}

// BookingService is the only writer of trial bookings.
type BookingService struct {
	repo          domain.Repository
	assigner      *Assigner
	tz            *timezone.Converter
	referenceZone string
	eventBus      domain.EventPublisher
	notifier      domain.NotifyWorker
	logger        *zerolog.Logger
}

func NewBookingService(repo domain.Repository, assigner *Assigner, tz *timezone.Converter,
	referenceZone string, eventBus domain.EventPublisher, notifier domain.NotifyWorker,
	logger *zerolog.Logger) *BookingService {
	return &BookingService{
		repo:          repo,
		assigner:      assigner,
		tz:            tz,
		referenceZone: referenceZone,
		eventBus:      eventBus,
		notifier:      notifier,
		logger:        logger,
	}
}

// Book commits a trial booking for every student in the payload against one
// teacher of the chosen slot group. With no explicit teacher choice the
// round-robin order is walked: a candidate lost to a concurrent booker is
// skipped and the next-oldest-assigned teacher is tried, until the group is
// exhausted and ErrSlotNoLongerAvailable surfaces. All rows plus the slot
// reservation commit atomically; a family booking can never hold a slot with
// only part of its rows written.
func (s *BookingService) Book(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	if len(req.Students) == 0 {
		return nil, ErrEmptyBookingPayload
	}
	if len(req.Group.Members) == 0 {
		return nil, ErrEmptySlotGroup
	}

	candidates, err := s.orderCandidates(ctx, req)
	if err != nil {
		return nil, err
	}

	familyGroupID := ""
	if len(req.Students) > 1 {
		familyGroupID = uuid.NewString()
	}

	trialDate, err := s.tz.Format(req.Group.UTCStart, s.referenceZone, "2006-01-02")
	if err != nil {
		return nil, err
	}
	trialTime, err := s.tz.Format(req.Group.UTCStart, s.referenceZone, "15:04")
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		bookings := make([]*models.TrialBooking, len(req.Students))
		for i, student := range req.Students {
			bookings[i] = &models.TrialBooking{
				StudentID:     student.StudentID,
				StudentName:   student.StudentName,
				Phone:         student.Phone,
				FamilyGroupID: familyGroupID,
				TeacherName:   candidate.TeacherName,
				TeacherType:   candidate.TeacherType,
				TrialDate:     trialDate,
				TrialTime:     trialTime,
			}
		}

		err := s.repo.ReserveAndBook(ctx, candidate.TeacherID, req.Group.UTCStart, req.Group.UTCEnd, bookings)
		if errors.Is(err, database.ErrAlreadyBooked) {
			metrics.IncReserveConflict()
			s.logger.Info().
				Int64("teacher_id", candidate.TeacherID).
				Time("utc_start", req.Group.UTCStart).
				Msg("lost reservation race, trying next candidate")
			continue
		}
		if err != nil {
			metrics.IncBooking("error")
			return nil, err
		}

		result := &BookingResult{
			FamilyGroupID: familyGroupID,
			TeacherID:     candidate.TeacherID,
			BookingIDs:    make([]int64, len(bookings)),
		}
		for i, b := range bookings {
			result.BookingIDs[i] = b.ID
			s.publishBooked(b, req.ChangedBy)
			s.enqueueConfirmation(ctx, b)
		}

		metrics.IncBooking("booked")
		return result, nil
	}

	metrics.IncBooking("conflict")
	return nil, ErrSlotNoLongerAvailable
}

// orderCandidates resolves the attempt order: a manual teacher choice tries
// that teacher only; otherwise the assigner's fairness order applies.
func (s *BookingService) orderCandidates(ctx context.Context, req BookingRequest) ([]models.SlotCandidate, error) {
	if req.ChosenTeacherID != 0 {
		for _, m := range req.Group.Members {
			if m.TeacherID == req.ChosenTeacherID {
				return []models.SlotCandidate{m}, nil
			}
		}
		return nil, fmt.Errorf("chosen teacher %d is not in the slot group", req.ChosenTeacherID)
	}
	return s.assigner.Order(ctx, req.Group)
}

func (s *BookingService) publishBooked(b *models.TrialBooking, changedBy string) {
	if s.eventBus == nil {
		return
	}
	payload := events.BookingEventPayload{
		BookingID:     b.ID,
		StudentID:     b.StudentID,
		StudentName:   b.StudentName,
		Phone:         b.Phone,
		FamilyGroupID: b.FamilyGroupID,
		TeacherID:     b.TeacherID,
		TeacherName:   b.TeacherName,
		Status:        b.Status,
		UTCStart:      b.UTCStart,
		ChangedBy:     changedBy,
	}
	if err := s.eventBus.PublishJSON(events.EventTrialBooked, payload); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("publish booking event error")
	}
}

func (s *BookingService) enqueueConfirmation(ctx context.Context, b *models.TrialBooking) {
	if s.notifier == nil || b.Phone == "" {
		return
	}
	task := models.NotifyTask{
		Kind:      "trial_booked",
		BookingID: b.ID,
		Phone:     b.Phone,
		Message: fmt.Sprintf("Trial lesson booked for %s on %s at %s with %s.",
			b.StudentName, b.TrialDate, b.TrialTime, b.TeacherName),
		CreatedAt: time.Now(),
	}
	if err := s.notifier.Enqueue(ctx, task); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("notify enqueue error")
	}
}
