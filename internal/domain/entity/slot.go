package entity

import "time"

// UnavailableReason explains why a generated slot cannot be booked
type UnavailableReason string

const (
	ReasonPast                 UnavailableReason = "past"
	ReasonOutsideBookingWindow UnavailableReason = "outside_booking_window"
	ReasonBlocked              UnavailableReason = "blocked"
	ReasonBooked               UnavailableReason = "booked"
	ReasonOutsideWorkingHours  UnavailableReason = "outside_working_hours"
)

// Slot is a candidate bookable interval. It is computed per request and never stored.
type Slot struct {
	Time              string            `json:"time"`
	EndTime           string            `json:"end_time"`
	Duration          int               `json:"duration"`
	Available         bool              `json:"available"`
	UnavailableReason UnavailableReason `json:"unavailable_reason,omitempty"`
}

// DaySlots is the slot grid of one date
type DaySlots struct {
	Date  time.Time
	Slots []Slot
}

// SlotStats summarises one generation pass
type SlotStats struct {
	Date      time.Time
	Total     int
	Available int
	Booked    int
	Blocked   int
}

// NextSlot is the first bookable slot found when scanning forward
type NextSlot struct {
	Date time.Time
	Slot Slot
}
