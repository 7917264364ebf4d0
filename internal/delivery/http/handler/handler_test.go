package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/repository"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSlotUsecase struct {
	usecase.SlotUsecase
	query *dto.AvailabilityQuery
	err   error
}

func (s *stubSlotUsecase) GetAvailability(_ context.Context, _ uuid.UUID, query *dto.AvailabilityQuery) (*dto.AvailabilityResponse, error) {
	s.query = query
	if s.err != nil {
		return nil, s.err
	}
	return &dto.AvailabilityResponse{Mode: query.Mode}, nil
}

type stubBookingUsecase struct {
	slug string
	err  error
}

func (s *stubBookingUsecase) BookAppointment(_ context.Context, slug string, req *dto.BookAppointmentRequest) (*dto.AppointmentResponse, error) {
	s.slug = slug
	if s.err != nil {
		return nil, s.err
	}
	return &dto.AppointmentResponse{ID: uuid.New(), Date: req.Date, StartTime: req.Time, Status: "confirmed"}, nil
}

type stubAppointmentUsecase struct {
	usecase.AppointmentUsecase
	cancelReq *dto.CancelAppointmentRequest
	err       error
}

func (s *stubAppointmentUsecase) CancelAppointment(_ context.Context, id uuid.UUID, req *dto.CancelAppointmentRequest) (*dto.AppointmentResponse, error) {
	s.cancelReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &dto.AppointmentResponse{ID: id, Status: "cancelled", CancellationReason: req.Reason}, nil
}

func (s *stubAppointmentUsecase) GetAppointment(_ context.Context, id uuid.UUID) (*dto.AppointmentResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.AppointmentResponse{ID: id}, nil
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		retryable bool
	}{
		{name: "not found", err: usecase.ErrAppointmentNotFound, status: http.StatusNotFound},
		{name: "invalid input", err: usecase.ErrInvalidDate, status: http.StatusBadRequest},
		{name: "slot unavailable", err: usecase.ErrSlotJustTaken, status: http.StatusConflict},
		{name: "limit exceeded", err: usecase.ErrDoctorFullyBooked, status: http.StatusConflict},
		{name: "policy denied", err: usecase.ErrCancellationWindowPassed, status: http.StatusForbidden},
		{name: "already cancelled", err: usecase.ErrAppointmentAlreadyCancelled, status: http.StatusConflict},
		{name: "conflict", err: &usecase.BookingError{Kind: usecase.KindConflict, Message: usecase.ErrBookingConflict.Message, Err: repository.ErrTxConflict}, status: http.StatusConflict, retryable: true},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err, "fallback")

			assert.Equal(t, tt.status, rec.Code)
			body := decodeResponse(t, rec)
			assert.Equal(t, false, body["success"])
			if tt.status == http.StatusConflict {
				detail := body["error"].(map[string]interface{})
				assert.Equal(t, tt.retryable, detail["retryable"])
			}
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "fallback", body["message"])
			}
		})
	}
}

func TestBookingHandler_BookAppointment(t *testing.T) {
	stub := &stubBookingUsecase{}
	h := NewBookingHandler(stub, validator.NewValidator())

	body := `{"consultation_type_id":"` + uuid.NewString() + `","date":"2025-01-10","time":"10:00","patient":{"name":"Ana","phone":"+628111"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/doctors/dr-lee/appointments", strings.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"slug": "dr-lee"})
	rec := httptest.NewRecorder()

	h.BookAppointment(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "dr-lee", stub.slug)
	data := decodeResponse(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "10:00", data["start_time"])
}

func TestBookingHandler_ValidationAndConflicts(t *testing.T) {
	stub := &stubBookingUsecase{}
	h := NewBookingHandler(stub, validator.NewValidator())

	bad := `{"consultation_type_id":"` + uuid.NewString() + `","date":"2025-01-10","time":"9am","patient":{"name":"Ana","phone":"+628111"}}`
	rec := httptest.NewRecorder()
	h.BookAppointment(rec, mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(bad)), map[string]string{"slug": "dr-lee"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errs := decodeResponse(t, rec)["error"].(map[string]interface{})
	assert.Contains(t, errs, "Time")

	rec = httptest.NewRecorder()
	h.BookAppointment(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stub.err = usecase.ErrSlotJustTaken
	good := `{"consultation_type_id":"` + uuid.NewString() + `","date":"2025-01-10","time":"10:00","patient":{"name":"Ana","phone":"+628111"}}`
	rec = httptest.NewRecorder()
	h.BookAppointment(rec, mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(good)), map[string]string{"slug": "dr-lee"}))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, usecase.ErrSlotJustTaken.Message, decodeResponse(t, rec)["message"])
}

func TestAvailabilityHandler_ParsesQuery(t *testing.T) {
	stub := &stubSlotUsecase{}
	h := NewAvailabilityHandler(stub, validator.NewValidator())
	doctorID := uuid.NewString()
	ctID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/?mode=slots&date=2025-01-10&include_unavailable=true&days=7&consultation_type_id="+ctID.String(), nil)
	rec := httptest.NewRecorder()
	h.GetAvailability(rec, mux.SetURLVars(req, map[string]string{"doctorId": doctorID}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, stub.query)
	assert.Equal(t, dto.AvailabilityModeSlots, stub.query.Mode)
	assert.Equal(t, "2025-01-10", stub.query.Date)
	assert.True(t, stub.query.IncludeUnavailable)
	assert.Equal(t, 7, stub.query.Days)
	assert.Equal(t, &ctID, stub.query.ConsultationTypeID)
}

func TestAvailabilityHandler_RejectsBadInput(t *testing.T) {
	h := NewAvailabilityHandler(&stubSlotUsecase{}, validator.NewValidator())
	doctorID := uuid.NewString()

	tests := []struct {
		name   string
		vars   map[string]string
		target string
	}{
		{name: "doctor id", vars: map[string]string{"doctorId": "abc"}, target: "/?mode=slots"},
		{name: "mode", vars: map[string]string{"doctorId": doctorID}, target: "/?mode=calendar"},
		{name: "days", vars: map[string]string{"doctorId": doctorID}, target: "/?mode=dates&days=abc"},
		{name: "date format", vars: map[string]string{"doctorId": doctorID}, target: "/?mode=slots&date=10-01-2025"},
		{name: "consultation type", vars: map[string]string{"doctorId": doctorID}, target: "/?mode=next&consultation_type_id=x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.GetAvailability(rec, mux.SetURLVars(httptest.NewRequest(http.MethodGet, tt.target, nil), tt.vars))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAppointmentHandler_CancelWithoutBody(t *testing.T) {
	stub := &stubAppointmentUsecase{}
	h := NewAppointmentHandler(stub, validator.NewValidator())
	id := uuid.New()

	rec := httptest.NewRecorder()
	h.CancelAppointment(rec, mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/", nil), map[string]string{"id": id.String()}))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, stub.cancelReq)
	assert.Empty(t, stub.cancelReq.Reason)

	stub.err = usecase.ErrAppointmentAlreadyCancelled
	rec = httptest.NewRecorder()
	h.CancelAppointment(rec, mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"x"}`)), map[string]string{"id": id.String()}))
	assert.Equal(t, http.StatusConflict, rec.Code)
	detail := decodeResponse(t, rec)["error"].(map[string]interface{})
	assert.Equal(t, string(usecase.KindAlreadyCancelled), detail["kind"])
}

func TestAppointmentHandler_GetAppointment(t *testing.T) {
	stub := &stubAppointmentUsecase{}
	h := NewAppointmentHandler(stub, validator.NewValidator())

	rec := httptest.NewRecorder()
	h.GetAppointment(rec, mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "nope"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stub.err = usecase.ErrAppointmentNotFound
	rec = httptest.NewRecorder()
	h.GetAppointment(rec, mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": uuid.NewString()}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, usecase.ErrAppointmentNotFound.Message, decodeResponse(t, rec)["message"])
}
