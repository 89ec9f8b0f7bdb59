package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/telemetry-core/internal/topology"
)

// CreateSensorRequest is the body for POST /sensors.
type CreateSensorRequest struct {
	Type string `json:"type"`
	Unit string `json:"unit,omitempty"`
}

// handleListSensors returns all sensors.
func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := s.topology.ListSensors(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list sensors")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sensors": sensors, "count": len(sensors)})
}

// handleCreateSensor registers a sensor type. Sensor identity is the
// type string: re-posting an existing type returns the stored row with
// created=false and a 200 rather than a conflict.
func (s *Server) handleCreateSensor(w http.ResponseWriter, r *http.Request) {
	var req CreateSensorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	sensor, created, err := s.topology.RegisterSensor(r.Context(), req.Type, req.Unit)
	if err != nil {
		if errors.Is(err, topology.ErrInvalidType) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		writeInternalError(w, "failed to register sensor")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"sensor": sensor, "created": created})
}

// handleDeleteSensor removes a sensor. Mappings and readings cascade.
func (s *Server) handleDeleteSensor(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := s.topology.DeleteSensor(r.Context(), id); err != nil {
		if errors.Is(err, topology.ErrSensorNotFound) {
			writeNotFound(w, "sensor not found")
			return
		}
		writeInternalError(w, "failed to delete sensor")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
