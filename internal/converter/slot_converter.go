package converter

import (
	"time"

	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
	"clinic-booking/pkg/timeslot"
)

func SlotToResponse(slot entity.Slot) dto.SlotResponse {
	return dto.SlotResponse{
		Time:              slot.Time,
		EndTime:           slot.EndTime,
		Duration:          slot.Duration,
		Available:         slot.Available,
		UnavailableReason: string(slot.UnavailableReason),
	}
}

// SlotsToListResponse converts a slot grid; unavailable slots are dropped unless includeUnavailable.
func SlotsToListResponse(date time.Time, slots []entity.Slot, includeUnavailable bool) *dto.SlotListResponse {
	responses := make([]dto.SlotResponse, 0, len(slots))
	for _, slot := range slots {
		if !slot.Available && !includeUnavailable {
			continue
		}
		responses = append(responses, SlotToResponse(slot))
	}
	return &dto.SlotListResponse{
		Date:  timeslot.FormatDate(date),
		Slots: responses,
		Total: len(responses),
	}
}

func DatesToResponse(dates []time.Time) *dto.AvailableDatesResponse {
	formatted := make([]string, len(dates))
	for i, d := range dates {
		formatted[i] = timeslot.FormatDate(d)
	}
	return &dto.AvailableDatesResponse{
		Dates: formatted,
		Total: len(formatted),
	}
}

func NextSlotToResponse(next *entity.NextSlot) *dto.NextSlotResponse {
	if next == nil {
		return &dto.NextSlotResponse{Found: false}
	}
	slot := SlotToResponse(next.Slot)
	return &dto.NextSlotResponse{
		Found: true,
		Date:  timeslot.FormatDate(next.Date),
		Slot:  &slot,
	}
}

func SlotStatsToResponse(stats *entity.SlotStats) *dto.SlotStatsResponse {
	if stats == nil {
		return nil
	}
	return &dto.SlotStatsResponse{
		Date:      timeslot.FormatDate(stats.Date),
		Total:     stats.Total,
		Available: stats.Available,
		Booked:    stats.Booked,
		Blocked:   stats.Blocked,
	}
}
