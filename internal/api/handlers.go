package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"trialdesk/internal/metrics"
	"trialdesk/internal/models"
	"trialdesk/internal/service"
)

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("availability")

	q := r.URL.Query()

	dateStr := strings.TrimSpace(q.Get("date"))
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	zone := strings.TrimSpace(q.Get("zone"))
	if zone == "" {
		writeError(w, http.StatusBadRequest, "zone is required")
		return
	}

	hourStr := strings.TrimSpace(q.Get("hour"))
	if hourStr == "" {
		writeError(w, http.StatusBadRequest, "hour is required")
		return
	}
	hour, err := strconv.ParseFloat(hourStr, 64)
	if err != nil || hour < 0 || hour >= 24 {
		writeError(w, http.StatusBadRequest, "invalid hour; expected fractional hour like 18.5")
		return
	}

	teacherType := strings.TrimSpace(q.Get("type"))

	groups, err := s.search.Search(r.Context(), date, zone, teacherType, hour)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("bookings")

	var req service.BookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.bookings.Book(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleBookingByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/bookings/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		metrics.IncHTTP("booking_get")
		booking, err := s.repo.GetBooking(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)

	case len(parts) == 2 && parts[1] == "transition" && r.Method == http.MethodPost:
		metrics.IncHTTP("booking_transition")
		s.handleTransition(w, r, id)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

type transitionRequest struct {
	Event             string `json:"event"`
	SessionID         int64  `json:"session_id,omitempty"`
	Outcome           string `json:"outcome,omitempty"`
	SelectionComplete bool   `json:"selection_complete,omitempty"`
	PaymentReference  string `json:"payment_reference,omitempty"`
	SessionsScheduled bool   `json:"sessions_scheduled,omitempty"`
	ChangedBy         string `json:"changed_by,omitempty"`
}

func (req transitionRequest) payload() service.TransitionPayload {
	return service.TransitionPayload{
		SessionID:         req.SessionID,
		Outcome:           req.Outcome,
		SelectionComplete: req.SelectionComplete,
		PaymentReference:  req.PaymentReference,
		SessionsScheduled: req.SessionsScheduled,
		ChangedBy:         req.ChangedBy,
	}
}

func (s *HTTPServer) handleTransition(w http.ResponseWriter, r *http.Request, bookingID int64) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Event == "" {
		writeError(w, http.StatusBadRequest, "event is required")
		return
	}

	newStatus, err := s.lifecycle.AttemptTransition(r.Context(), bookingID, service.LifecycleEvent(req.Event), req.payload())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": newStatus})
}

func (s *HTTPServer) handleFamily(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/families/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	familyID := parts[0]

	switch parts[1] {
	case "bookings":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		metrics.IncHTTP("family_bookings")
		bookings, err := s.repo.GetFamilyBookings(r.Context(), familyID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if len(bookings) == 0 {
			writeError(w, http.StatusNotFound, "family group not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})

	case "currency":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		metrics.IncHTTP("family_currency")
		var body struct {
			Currency string `json:"currency"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.payments.SelectCurrency(r.Context(), familyID, body.Currency); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"result": "locked"})

	case "selections":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		metrics.IncHTTP("family_selections")
		var sel models.PackageSelection
		if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.payments.UpsertSelection(r.Context(), familyID, sel); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"result": "saved"})

	case "total":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		metrics.IncHTTP("family_total")
		total, currency, err := s.payments.Total(r.Context(), familyID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"total": total, "currency": currency})

	case "payment-link":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		metrics.IncHTTP("family_payment_link")
		link, err := s.payments.CreateFamilyPaymentLink(r.Context(), familyID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, link)

	case "transition":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		metrics.IncHTTP("family_transition")
		var req transitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Event == "" {
			writeError(w, http.StatusBadRequest, "event is required")
			return
		}
		newStatus, err := s.lifecycle.AttemptFamilyTransition(r.Context(), familyID, service.LifecycleEvent(req.Event), req.payload())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": newStatus})

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) handleFollowUps(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		metrics.IncHTTP("followup_create")
		var body struct {
			BookingID   int64     `json:"booking_id"`
			ScheduledAt time.Time `json:"scheduled_at"`
			Reason      string    `json:"reason"`
			Notes       string    `json:"notes,omitempty"`
			ChangedBy   string    `json:"changed_by,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		fu, err := s.followups.Schedule(r.Context(), body.BookingID, body.ScheduledAt, body.Reason, body.Notes, body.ChangedBy)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, fu)

	case http.MethodGet:
		metrics.IncHTTP("followup_due")
		before := time.Now()
		if raw := strings.TrimSpace(r.URL.Query().Get("before")); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid before; expected RFC3339")
				return
			}
			before = parsed
		}
		due, err := s.followups.Due(r.Context(), before)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"followups": due})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleFollowUpByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/followups/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid follow-up id")
		return
	}

	switch parts[1] {
	case "complete":
		metrics.IncHTTP("followup_complete")
		var body struct {
			Outcome   string `json:"outcome"`
			Notes     string `json:"notes,omitempty"`
			ChangedBy string `json:"changed_by,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		newStatus, err := s.followups.Complete(r.Context(), id, body.Outcome, body.Notes, body.ChangedBy)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": newStatus})

	case "reschedule":
		metrics.IncHTTP("followup_reschedule")
		var body struct {
			ScheduledAt time.Time `json:"scheduled_at"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.followups.Reschedule(r.Context(), id, body.ScheduledAt); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"result": "rescheduled"})

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "exports are not configured")
		return
	}
	metrics.IncHTTP("export")

	var body struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start, err := time.Parse("2006-01-02", body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date; expected YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date; expected YYYY-MM-DD")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end_date is before start_date")
		return
	}

	filePath, err := s.exporter.ExportBookings(r.Context(), start, end)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"file_path": filePath})
}

func (s *HTTPServer) handleTeacherSlots(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/teachers/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[1] != "slots" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	teacherID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid teacher id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		metrics.IncHTTP("teacher_slots_get")
		q := r.URL.Query()
		from, err := time.Parse("2006-01-02", strings.TrimSpace(q.Get("from")))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from; expected YYYY-MM-DD")
			return
		}
		to, err := time.Parse("2006-01-02", strings.TrimSpace(q.Get("to")))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to; expected YYYY-MM-DD")
			return
		}
		slots, err := s.repo.GetTeacherSlots(r.Context(), teacherID, from, to.AddDate(0, 0, 1))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"slots": slots})

	case http.MethodPost:
		metrics.IncHTTP("teacher_slots_open")
		var body struct {
			UTCStart time.Time `json:"utc_start"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if body.UTCStart.IsZero() {
			writeError(w, http.StatusBadRequest, "utc_start is required")
			return
		}

		slot := &models.AvailabilitySlot{
			TeacherID: teacherID,
			UTCStart:  body.UTCStart.UTC(),
			UTCEnd:    body.UTCStart.UTC().Add(models.SlotLength),
		}
		if err := s.repo.OpenSlot(r.Context(), slot); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, slot)

	case http.MethodDelete:
		metrics.IncHTTP("teacher_slots_release")
		raw := strings.TrimSpace(r.URL.Query().Get("utc_start"))
		utcStart, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid utc_start; expected RFC3339")
			return
		}
		if err := s.repo.ReleaseSlot(r.Context(), teacherID, utcStart.UTC()); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"result": "released"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
