package models

import "time"

// FollowUp is a future contact reminder tied to a booking's status, separate
// from session scheduling. Completed exactly once; completion carries an
// outcome that drives the lifecycle.
type FollowUp struct {
	ID            int64     `json:"id"`
	BookingID     int64     `json:"booking_id"`
	FamilyGroupID string    `json:"family_group_id,omitempty"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Reason        string    `json:"reason"`
	Notes         string    `json:"notes,omitempty"`
	Completed     bool      `json:"completed"`
	Outcome       string    `json:"outcome,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NotifyTask is one outbound message queued for the messaging collaborator.
type NotifyTask struct {
	Kind      string    `json:"kind"`
	BookingID int64     `json:"booking_id,omitempty"`
	Phone     string    `json:"phone"`
	Message   string    `json:"message"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}
