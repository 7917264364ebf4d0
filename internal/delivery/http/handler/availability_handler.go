package handler

import (
	"net/http"
	"strconv"

	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/response"
	"clinic-booking/pkg/validator"

	"github.com/google/uuid"
)

type AvailabilityHandler struct {
	slotUsecase usecase.SlotUsecase
	validator   *validator.CustomValidator
}

func NewAvailabilityHandler(slotUsecase usecase.SlotUsecase, validator *validator.CustomValidator) *AvailabilityHandler {
	return &AvailabilityHandler{
		slotUsecase: slotUsecase,
		validator:   validator,
	}
}

// GetAvailability serves GET /doctors/{doctorId}/availability?mode=dates|slots|next|stats.
func (h *AvailabilityHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := pathUUID(r, "doctorId")
	if !ok {
		response.BadRequest(w, "Invalid doctor ID")
		return
	}

	query, msg := parseAvailabilityQuery(r)
	if msg != "" {
		response.BadRequest(w, msg)
		return
	}

	if err := h.validator.Validate(query); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	availability, err := h.slotUsecase.GetAvailability(r.Context(), doctorID, query)
	if err != nil {
		writeError(w, err, "Failed to get availability")
		return
	}

	response.Success(w, http.StatusOK, "Availability retrieved successfully", availability)
}

func parseAvailabilityQuery(r *http.Request) (*dto.AvailabilityQuery, string) {
	values := r.URL.Query()
	query := &dto.AvailabilityQuery{
		Mode: values.Get("mode"),
		Date: values.Get("date"),
	}
	if query.Mode == "" {
		query.Mode = dto.AvailabilityModeSlots
	}

	if raw := values.Get("consultation_type_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, "Invalid consultation_type_id"
		}
		query.ConsultationTypeID = &id
	}

	if raw := values.Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			return nil, "days must be a number"
		}
		query.Days = days
	}

	if raw := values.Get("include_unavailable"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, "include_unavailable must be true or false"
		}
		query.IncludeUnavailable = include
	}

	return query, ""
}
