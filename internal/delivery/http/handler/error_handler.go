package handler

import (
	"errors"
	"net/http"

	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/response"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// writeError maps a usecase failure to its HTTP status. Anything that is not a
// BookingError is reported as a 500 with the fallback message.
func writeError(w http.ResponseWriter, err error, fallback string) {
	var bookingErr *usecase.BookingError
	if !errors.As(err, &bookingErr) {
		response.InternalServerError(w, fallback)
		return
	}

	kind := string(bookingErr.Kind)
	switch bookingErr.Kind {
	case usecase.KindNotFound:
		response.NotFound(w, bookingErr.Message)
	case usecase.KindInvalidInput:
		response.Error(w, http.StatusBadRequest, bookingErr.Message, response.ErrorDetail{Kind: kind})
	case usecase.KindPolicyDenied:
		response.Error(w, http.StatusForbidden, bookingErr.Message, response.ErrorDetail{Kind: kind})
	case usecase.KindConflict:
		response.Conflict(w, bookingErr.Message, kind, true)
	case usecase.KindSlotUnavailable, usecase.KindLimitExceeded, usecase.KindAlreadyCancelled:
		response.Conflict(w, bookingErr.Message, kind, false)
	default:
		response.InternalServerError(w, fallback)
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
