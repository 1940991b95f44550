package models

import "time"

// AvailabilitySlot is one half-hour teaching window a teacher opened.
// Date is the calendar day in the reference timezone; UTCStart/UTCEnd are the
// authoritative instants. A booked slot never reaches search results.
type AvailabilitySlot struct {
	ID        int64     `json:"id"`
	TeacherID int64     `json:"teacher_id"`
	Date      string    `json:"date"` // YYYY-MM-DD
	UTCStart  time.Time `json:"utc_start"`
	UTCEnd    time.Time `json:"utc_end"`
	IsBooked  bool      `json:"is_booked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SlotCandidate is an ephemeral search hit: one free teacher at one instant.
// Recomputed per search, never persisted.
type SlotCandidate struct {
	TeacherID            int64     `json:"teacher_id"`
	TeacherName          string    `json:"teacher_name"`
	TeacherType          string    `json:"teacher_type"`
	UTCStart             time.Time `json:"utc_start"`
	UTCEnd               time.Time `json:"utc_end"`
	ClientTimeDisplay    string    `json:"client_time"`
	ReferenceTimeDisplay string    `json:"reference_time"`
}

// SlotGroup collapses every teacher free for one identical UTC window into a
// single bookable unit. Members are deduplicated by teacher id and ordered by
// teacher id ascending.
type SlotGroup struct {
	UTCStart time.Time       `json:"utc_start"`
	UTCEnd   time.Time       `json:"utc_end"`
	Members  []SlotCandidate `json:"members"`
}
