package domain

import (
	"context"
	"time"

	"trialdesk/internal/models"
)

// Repository is the persistence surface for teachers, slots, bookings,
// follow-ups and assignment history.
type Repository interface {
	// Teachers
	SetTeachers(teachers []models.Teacher)
	GetTeacher(ctx context.Context, id int64) (*models.Teacher, error)
	GetActiveTeachers(ctx context.Context) ([]models.Teacher, error)
	UpsertTeacher(ctx context.Context, teacher *models.Teacher) error

	// Availability
	OpenSlot(ctx context.Context, slot *models.AvailabilitySlot) error
	GetTeacherSlots(ctx context.Context, teacherID int64, from, to time.Time) ([]models.AvailabilitySlot, error)
	FindFree(ctx context.Context, utcStart, utcEnd time.Time, teacherType string) ([]models.SlotCandidate, error)
	IsLocked(date string, now time.Time) bool
	ReleaseSlot(ctx context.Context, teacherID int64, utcStart time.Time) error

	// Bookings
	ReserveAndBook(ctx context.Context, teacherID int64, utcStart, utcEnd time.Time, bookings []*models.TrialBooking) error
	GetBooking(ctx context.Context, id int64) (*models.TrialBooking, error)
	GetFamilyBookings(ctx context.Context, familyGroupID string) ([]models.TrialBooking, error)
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]models.TrialBooking, error)
	GetDailyBookings(ctx context.Context, start, end time.Time) (map[string][]models.TrialBooking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id, version int64, status string) error

	// Round-robin assignment history
	GetAssignmentTimes(ctx context.Context, teacherIDs []int64) (map[int64]time.Time, error)

	// Follow-ups
	CreateFollowUp(ctx context.Context, fu *models.FollowUp) error
	GetFollowUp(ctx context.Context, id int64) (*models.FollowUp, error)
	RescheduleFollowUp(ctx context.Context, id int64, scheduledAt time.Time) error
	CompleteFollowUp(ctx context.Context, id int64, outcome, notes string) error
	GetPendingFollowUps(ctx context.Context, due time.Time) ([]models.FollowUp, error)
}

// FlowRepository stores family payment flow state for the duration of the
// multi-step UI flow.
type FlowRepository interface {
	GetFlow(ctx context.Context, familyID string) (*models.FamilyPaymentFlow, error)
	SetFlow(ctx context.Context, flow *models.FamilyPaymentFlow) error
	ClearFlow(ctx context.Context, familyID string) error
}

// EventPublisher fans domain events out to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// PaymentProvider mints checkout links. The engine only decides amount and
// currency; the provider owns the session.
type PaymentProvider interface {
	CreatePaymentLink(ctx context.Context, req models.PaymentRequest) (*models.PaymentLink, error)
}

// Messenger delivers rendered messages (WhatsApp or similar). Fire-and-forget
// from the engine's perspective.
type Messenger interface {
	Send(ctx context.Context, phone, message string) error
}

// NotifyWorker queues outbound notifications for async delivery.
type NotifyWorker interface {
	Enqueue(ctx context.Context, task models.NotifyTask) error
}
