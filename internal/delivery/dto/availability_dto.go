package dto

import "github.com/google/uuid"

const (
	AvailabilityModeDates = "dates"
	AvailabilityModeSlots = "slots"
	AvailabilityModeNext  = "next"
	AvailabilityModeStats = "stats"
)

// Request DTOs

// AvailabilityQuery is bound from the query string of the availability endpoint.
type AvailabilityQuery struct {
	Mode               string `validate:"required,oneof=dates slots next stats"`
	Date               string `validate:"omitempty,datetime=2006-01-02"`
	ConsultationTypeID *uuid.UUID
	Days               int `validate:"omitempty,min=1"`
	IncludeUnavailable bool
}

// Response DTOs

type SlotResponse struct {
	Time              string `json:"time"`
	EndTime           string `json:"end_time"`
	Duration          int    `json:"duration"`
	Available         bool   `json:"available"`
	UnavailableReason string `json:"unavailable_reason,omitempty"`
}

type SlotListResponse struct {
	Date  string         `json:"date"`
	Slots []SlotResponse `json:"slots"`
	Total int            `json:"total"`
}

type AvailableDatesResponse struct {
	Dates []string `json:"dates"`
	Total int      `json:"total"`
}

type NextSlotResponse struct {
	Found bool          `json:"found"`
	Date  string        `json:"date,omitempty"`
	Slot  *SlotResponse `json:"slot,omitempty"`
}

type SlotStatsResponse struct {
	Date      string `json:"date"`
	Total     int    `json:"total"`
	Available int    `json:"available"`
	Booked    int    `json:"booked"`
	Blocked   int    `json:"blocked"`
}

// AvailabilityResponse carries exactly one of its fields, chosen by Mode.
type AvailabilityResponse struct {
	Mode  string                  `json:"mode"`
	Dates *AvailableDatesResponse `json:"dates,omitempty"`
	Slots *SlotListResponse       `json:"slots,omitempty"`
	Next  *NextSlotResponse       `json:"next,omitempty"`
	Stats *SlotStatsResponse      `json:"stats,omitempty"`
}
