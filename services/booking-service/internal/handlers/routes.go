package handlers

import (
	"net/http"

	"github.com/podologia/agenda/libs/httpx"
)

// Register mounts the public and admin APIs. adminAuth guards every admin
// route except login.
func Register(mux *http.ServeMux, admin *AdminHandler, adminAuth httpx.Middleware) {
	mux.HandleFunc("/api/v1/public/services", admin.Services)
	mux.HandleFunc("/api/v1/public/schedule", admin.Schedule)
	mux.HandleFunc("/api/v1/public/slots", admin.Slots)
	mux.HandleFunc("/api/v1/public/book", admin.Book)

	mux.HandleFunc("/api/v1/admin/login", admin.Login)
	guarded := func(h http.HandlerFunc) http.Handler {
		return httpx.Chain(h, adminAuth)
	}
	mux.Handle("/api/v1/admin/appointments", guarded(admin.Appointments))
	mux.Handle("/api/v1/admin/appointments/reschedule", guarded(admin.Reschedule))
	mux.Handle("/api/v1/admin/appointments/status", guarded(admin.Status))
	mux.Handle("/api/v1/admin/slots", guarded(admin.AdminSlots))
	mux.Handle("/api/v1/admin/services", guarded(admin.CreateService))
}
