package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Device endpoints
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleCreateDevice)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Delete("/", s.handleDeleteDevice)
				r.Post("/sensors", s.handleAttachSensors)
			})
		})

		// Sensor endpoints
		r.Route("/sensors", func(r chi.Router) {
			r.Get("/", s.handleListSensors)
			r.Post("/", s.handleCreateSensor)
			r.Delete("/{id}", s.handleDeleteSensor)
		})

		// Mapping endpoints. The GET parameter is a device ID, the
		// DELETE parameter a mapping ID; chi requires one name per slot.
		r.Route("/device-sensors", func(r chi.Router) {
			r.Get("/", s.handleListMappings)
			r.Post("/", s.handleCreateMapping)
			r.Get("/{id}", s.handleListDeviceMappings)
			r.Delete("/{id}", s.handleDeleteMapping)
		})

		// Reading endpoints. POST and GET address a device, DELETE a
		// mapping.
		r.Route("/readings", func(r chi.Router) {
			r.Post("/", s.handleIngestReading)
			r.Post("/{id}", s.handleIngestBulk)
			r.Get("/{id}", s.handleLatestReadings)
			r.Get("/{id}/history", s.handleReadingHistory)
			r.Delete("/{id}", s.handleDeleteReadings)
		})

		// WebSocket
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
