package http

import (
	"net/http"

	"clinic-booking/internal/delivery/http/handler"
	"clinic-booking/internal/delivery/http/middleware"

	"github.com/gorilla/mux"
)

type Router struct {
	router              *mux.Router
	availabilityHandler *handler.AvailabilityHandler
	bookingHandler      *handler.BookingHandler
	appointmentHandler  *handler.AppointmentHandler
	loggingMiddleware   *middleware.LoggingMiddleware
	corsMiddleware      *middleware.CORSMiddleware
	metricsHandler      http.Handler
}

func NewRouter(
	availabilityHandler *handler.AvailabilityHandler,
	bookingHandler *handler.BookingHandler,
	appointmentHandler *handler.AppointmentHandler,
	loggingMiddleware *middleware.LoggingMiddleware,
	corsMiddleware *middleware.CORSMiddleware,
	metricsHandler http.Handler,
) *Router {
	return &Router{
		router:              mux.NewRouter(),
		availabilityHandler: availabilityHandler,
		bookingHandler:      bookingHandler,
		appointmentHandler:  appointmentHandler,
		loggingMiddleware:   loggingMiddleware,
		corsMiddleware:      corsMiddleware,
		metricsHandler:      metricsHandler,
	}
}

func (r *Router) Setup() *mux.Router {
	if r.metricsHandler != nil {
		r.router.Handle("/metrics", r.metricsHandler).Methods(http.MethodGet)
	}

	// API versioning
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Health check
	api.HandleFunc("/health", r.healthCheck).Methods(http.MethodGet)

	// Availability and booking (public)
	doctors := api.PathPrefix("/doctors").Subrouter()
	doctors.HandleFunc("/{doctorId}/availability", r.availabilityHandler.GetAvailability).Methods(http.MethodGet)
	doctors.HandleFunc("/{slug}/appointments", r.bookingHandler.BookAppointment).Methods(http.MethodPost)

	// Appointment lifecycle
	appointments := api.PathPrefix("/appointments").Subrouter()
	appointments.HandleFunc("/{id}", r.appointmentHandler.GetAppointment).Methods(http.MethodGet)
	appointments.HandleFunc("/{id}/history", r.appointmentHandler.GetHistory).Methods(http.MethodGet)
	appointments.HandleFunc("/{id}/cancel", r.appointmentHandler.CancelAppointment).Methods(http.MethodPost)
	appointments.HandleFunc("/{id}/reschedule", r.appointmentHandler.RescheduleAppointment).Methods(http.MethodPost)
	appointments.HandleFunc("/{id}/confirm", r.appointmentHandler.ConfirmAppointment).Methods(http.MethodPost)
	appointments.HandleFunc("/{id}/complete", r.appointmentHandler.CompleteAppointment).Methods(http.MethodPost)

	r.router.Use(r.loggingMiddleware.Handle)
	r.router.Use(r.corsMiddleware.Handle)

	return r.router
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}
