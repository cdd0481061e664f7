package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/podologia/agenda/services/booking-service/internal/availability"
	"github.com/podologia/agenda/services/booking-service/internal/booking"
	"github.com/podologia/agenda/services/booking-service/internal/catalog"
	"github.com/podologia/agenda/services/booking-service/internal/model"
)

type BookingHandler struct {
	svc     *booking.Service
	catalog *catalog.Repository
	logger  *slog.Logger
}

func NewBookingHandler(svc *booking.Service, catalogRepo *catalog.Repository, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, catalog: catalogRepo, logger: logger}
}

type bookRequest struct {
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	ServiceID       string `json:"service_id"`
	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
	CustomerEmail   string `json:"customer_email"`
	Notes           string `json:"notes"`
	Price           string `json:"price"`
}

func (req bookRequest) toRequest(source model.Source) booking.Request {
	return booking.Request{
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		ServiceID:       req.ServiceID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
		Notes:           req.Notes,
		Price:           req.Price,
		Source:          source,
	}
}

func (h *BookingHandler) Services(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	services, err := h.catalog.List(r.Context(), true)
	if err != nil {
		h.logger.Error("list services failed", "err", err)
		http.Error(w, "failed to list services", http.StatusInternalServerError)
		return
	}
	if services == nil {
		services = []catalog.Service{}
	}
	writeJSON(w, http.StatusOK, services)
}

func (h *BookingHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	s, err := h.svc.Schedule(date)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":       date,
		"opening":    s.Opening,
		"last_start": s.LastStart,
		"closing":    s.Closing,
		"is_closed":  s.IsClosed,
	})
}

// Slots lists free start times. Public callers never see slots that have
// already started today.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	h.slots(w, r, false)
}

func (h *BookingHandler) slots(w http.ResponseWriter, r *http.Request, admin bool) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	date := strings.TrimSpace(q.Get("date"))
	if date == "" {
		http.Error(w, "date is required", http.StatusBadRequest)
		return
	}
	duration, ok := queryInt(r, "duration_minutes")
	if !ok || duration > availability.MaxDurationMinutes {
		http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
		return
	}

	query := booking.SlotQuery{
		Date:            date,
		DurationMinutes: duration,
		ServiceID:       strings.TrimSpace(q.Get("service_id")),
		HourlyOnly:      queryBool(r, "hourly", !admin),
		HideStarted:     !admin,
	}
	if admin {
		query.ExcludeID = strings.TrimSpace(q.Get("exclude_id"))
	}

	res, err := h.svc.Slots(r.Context(), query)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req bookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	bookReq := req.toRequest(model.SourcePublic)
	// Public clients cannot set the price.
	bookReq.Price = ""
	bookReq.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	res, err := h.svc.Book(r.Context(), bookReq)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if res.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	writeJSON(w, http.StatusCreated, toResponse(res.Appointment))
}
