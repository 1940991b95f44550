package models

import "time"

// Teacher types. "mixed" teachers take both kids and adult trials.
const (
	TeacherTypeKids   = "kids"
	TeacherTypeAdult  = "adult"
	TeacherTypeMixed  = "mixed"
	TeacherTypeExpert = "expert"
)

// Booking lifecycle statuses. Transitions between them are owned by
// service.Lifecycle; nothing else writes status.
const (
	StatusPending         = "pending"
	StatusConfirmed       = "confirmed"
	StatusTrialCompleted  = "trial-completed"
	StatusTrialGhosted    = "trial-ghosted"
	StatusFollowUp        = "follow-up"
	StatusAwaitingPayment = "awaiting-payment"
	StatusPaid            = "paid"
	StatusActive          = "active"
	StatusExpired         = "expired"
	StatusCancelled       = "cancelled"
	StatusDropped         = "dropped"
)

// Follow-up reasons.
const (
	FollowUpReasonNoAnswer       = "no-answer"
	FollowUpReasonCallLater      = "call-later"
	FollowUpReasonConsidering    = "considering"
	FollowUpReasonPaymentPending = "payment-pending"
)

// Follow-up outcomes.
const (
	FollowUpOutcomeReady         = "ready"
	FollowUpOutcomeNotInterested = "not-interested"
)

const (
	// SlotLength is the fixed trial lesson window.
	SlotLength = 30 * time.Minute

	// DefaultFlowTTL время жизни состояния семейного платежа в Redis
	DefaultFlowTTL = 24 * time.Hour

	// WorkerQueueSize размер очереди воркера уведомлений
	WorkerQueueSize = 1000
)

// ValidTeacherType reports whether t is one of the closed teacher type enum.
func ValidTeacherType(t string) bool {
	switch t {
	case TeacherTypeKids, TeacherTypeAdult, TeacherTypeMixed, TeacherTypeExpert:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusTrialCompleted, StatusTrialGhosted,
		StatusFollowUp, StatusAwaitingPayment, StatusPaid, StatusActive,
		StatusExpired, StatusCancelled, StatusDropped:
		return true
	}
	return false
}
