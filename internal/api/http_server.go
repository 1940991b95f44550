package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"trialdesk/internal/config"
	"trialdesk/internal/database"
	"trialdesk/internal/domain"
	"trialdesk/internal/export"
	"trialdesk/internal/service"
	"trialdesk/internal/timezone"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the ops-console API: availability search, bookings,
// status transitions, family payment flows and follow-ups.
type HTTPServer struct {
	cfg       config.APIConfig
	repo      domain.Repository
	search    *service.SearchService
	bookings  *service.BookingService
	lifecycle *service.LifecycleService
	payments  *service.PaymentService
	followups *service.FollowUpService
	exporter  *export.Exporter
	server    *http.Server
	auth      *HTTPAuth
	logger    zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	repo domain.Repository,
	search *service.SearchService,
	bookings *service.BookingService,
	lifecycle *service.LifecycleService,
	payments *service.PaymentService,
	followups *service.FollowUpService,
	exporter *export.Exporter,
	logger zerolog.Logger,
) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:       cfg,
		repo:      repo,
		search:    search,
		bookings:  bookings,
		lifecycle: lifecycle,
		payments:  payments,
		followups: followups,
		exporter:  exporter,
		logger:    logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/api/v1/availability", srv.handleAvailability)
	mux.HandleFunc("/api/v1/bookings", srv.handleBookings)
	mux.HandleFunc("/api/v1/bookings/", srv.handleBookingByID)
	mux.HandleFunc("/api/v1/families/", srv.handleFamily)
	mux.HandleFunc("/api/v1/followups", srv.handleFollowUps)
	mux.HandleFunc("/api/v1/followups/", srv.handleFollowUpByID)
	mux.HandleFunc("/api/v1/teachers/", srv.handleTeacherSlots)
	mux.HandleFunc("/api/v1/exports", srv.handleExport)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeServiceError maps domain errors onto HTTP statuses with enough detail
// for the console to render an actionable message.
func writeServiceError(w http.ResponseWriter, err error) {
	var invalidTransition *service.InvalidTransitionError
	if errors.As(err, &invalidTransition) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": invalidTransition.Error(),
			"from":  invalidTransition.From,
			"event": string(invalidTransition.Event),
		})
		return
	}

	var incomplete *service.IncompleteSelectionError
	if errors.As(err, &incomplete) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":               incomplete.Error(),
			"missing_student_ids": incomplete.MissingStudentIDs,
		})
		return
	}

	switch {
	case errors.Is(err, timezone.ErrInvalidTimezone),
		errors.Is(err, timezone.ErrAmbiguousLocalTime),
		errors.Is(err, service.ErrEmptyBookingPayload),
		errors.Is(err, service.ErrEmptySlotGroup),
		errors.Is(err, service.ErrUnknownOutcome),
		errors.Is(err, database.ErrInvalidTeacherType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrBookingNotFound),
		errors.Is(err, database.ErrTeacherNotFound),
		errors.Is(err, database.ErrSlotNotFound),
		errors.Is(err, database.ErrFollowUpNotFound),
		errors.Is(err, service.ErrFamilyNotFound),
		errors.Is(err, service.ErrPackageNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSlotNoLongerAvailable),
		errors.Is(err, database.ErrAlreadyBooked),
		errors.Is(err, database.ErrSlotLocked),
		errors.Is(err, database.ErrDuplicateSlot),
		errors.Is(err, database.ErrVersionConflict),
		errors.Is(err, database.ErrFollowUpCompleted),
		errors.Is(err, service.ErrCurrencyAlreadyLocked):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNoCurrencyLocked):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
