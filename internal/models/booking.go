package models

import "time"

// TrialBooking is one student booked onto one trial slot. Bookings made
// together for a family share a FamilyGroupID and the same teacher/window.
// Rows are never hard-deleted; terminal statuses keep the history.
type TrialBooking struct {
	ID            int64     `json:"id"`
	StudentID     int64     `json:"student_id"`
	StudentName   string    `json:"student_name"`
	Phone         string    `json:"phone"`
	FamilyGroupID string    `json:"family_group_id,omitempty"`
	TeacherID     int64     `json:"teacher_id"`
	TeacherName   string    `json:"teacher_name"`
	TeacherType   string    `json:"teacher_type"`
	TrialDate     string    `json:"trial_date"` // YYYY-MM-DD in the reference zone
	TrialTime     string    `json:"trial_time"` // HH:MM in the reference zone
	UTCStart      time.Time `json:"utc_start"`
	UTCEnd        time.Time `json:"utc_end"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int64     `json:"version"`
}

// IsFamily reports whether the booking belongs to a multi-student group.
func (b *TrialBooking) IsFamily() bool {
	return b.FamilyGroupID != ""
}
