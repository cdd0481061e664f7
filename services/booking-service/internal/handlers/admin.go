package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/podologia/agenda/libs/auth"
	"github.com/podologia/agenda/services/booking-service/internal/catalog"
	"github.com/podologia/agenda/services/booking-service/internal/model"
	"github.com/podologia/agenda/services/booking-service/internal/storage"
)

type AdminHandler struct {
	*BookingHandler
	creds     auth.AdminCredentials
	jwtSecret string
	tokenTTL  time.Duration
	now       func() time.Time
}

func NewAdminHandler(bh *BookingHandler, creds auth.AdminCredentials, jwtSecret string, tokenTTL time.Duration) *AdminHandler {
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &AdminHandler{BookingHandler: bh, creds: creds, jwtSecret: jwtSecret, tokenTTL: tokenTTL, now: time.Now}
}

type serviceResponse struct {
	catalog.Service
	// Minutes is the duration slots and bookings will use.
	Minutes int `json:"minutes"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type rescheduleRequest struct {
	AppointmentID   string `json:"appointment_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
}

type statusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

type createServiceRequest struct {
	Name            string `json:"name"`
	Duration        string `json:"duration"`
	DurationMinutes *int   `json:"duration_minutes"`
	Price           string `json:"price"`
	Description     string `json:"description"`
	Active          *bool  `json:"active"`
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.creds.Check(req.Email, req.Password); err != nil {
		h.logger.Warn("admin login rejected", "email", strings.TrimSpace(req.Email))
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	now := h.now()
	token, err := auth.Issue(strings.ToLower(strings.TrimSpace(req.Email)), auth.RoleAdmin, h.jwtSecret, h.tokenTTL, now)
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: now.Add(h.tokenTTL).UTC().Format(time.RFC3339),
	})
}

// Appointments lists (GET) or manually creates (POST) appointments.
func (h *AdminHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listAppointments(w, r)
	case http.MethodPost:
		h.createAppointment(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) listAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cfg := h.svc.Config()
	var f storage.RangeFilter

	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		d, err := cfg.ParseDate(raw)
		if err != nil {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
		f.From = d
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		d, err := cfg.ParseDate(raw)
		if err != nil {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return
		}
		f.To = d
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		st, err := model.ParseStatus(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.Status = st
	}
	if n, ok := queryInt(r, "limit"); ok {
		f.Limit = n
	}

	appts, err := h.svc.List(r.Context(), f)
	if err != nil {
		h.logger.Error("list appointments failed", "err", err)
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	items := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		items = append(items, toResponse(a))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AdminHandler) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Book(r.Context(), req.toRequest(model.SourceAdmin))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(res.Appointment))
}

func (h *AdminHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req rescheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	appt, err := h.svc.Reschedule(r.Context(), req.AppointmentID, req.Date, req.Time, req.DurationMinutes)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

func (h *AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	status, err := model.ParseStatus(req.Status)
	if req.AppointmentID == "" || err != nil {
		http.Error(w, "appointment_id and a valid status are required", http.StatusBadRequest)
		return
	}
	appt, err := h.svc.UpdateStatus(r.Context(), req.AppointmentID, status)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

// AdminSlots is the slot listing of the edit dialog: finer steps by default,
// started slots kept, and the edited appointment excluded via exclude_id.
func (h *AdminHandler) AdminSlots(w http.ResponseWriter, r *http.Request) {
	h.slots(w, r, true)
}

func (h *AdminHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req createServiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	svc := catalog.Service{
		Name:            req.Name,
		Duration:        strings.TrimSpace(req.Duration),
		DurationMinutes: req.DurationMinutes,
		Price:           strings.TrimSpace(req.Price),
		Description:     strings.TrimSpace(req.Description),
		Active:          req.Active == nil || *req.Active,
	}
	if err := h.catalog.Create(r.Context(), &svc); err != nil {
		switch {
		case errors.Is(err, catalog.ErrInvalidService):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case storage.IsConflict(err):
			http.Error(w, "service already exists", http.StatusConflict)
		default:
			h.logger.Error("create service failed", "err", err)
			http.Error(w, "failed to create service", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, serviceResponse{Service: svc, Minutes: svc.Minutes()})
}
