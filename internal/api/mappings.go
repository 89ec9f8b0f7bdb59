package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/telemetry-core/internal/topology"
)

// CreateMappingRequest is the body for POST /device-sensors.
type CreateMappingRequest struct {
	DeviceID int64 `json:"device_id"`
	SensorID int64 `json:"sensor_id"`
}

// handleListMappings returns all mappings.
func (s *Server) handleListMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := s.topology.ListMappings(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list mappings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mappings": mappings, "count": len(mappings)})
}

// handleListDeviceMappings returns a device's mappings with sensor type
// and unit embedded. An unknown device yields an empty list, matching
// the store's contract.
func (s *Server) handleListDeviceMappings(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	mappings, err := s.topology.MappingsForDevice(r.Context(), deviceID)
	if err != nil {
		writeInternalError(w, "failed to list device mappings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mappings": mappings, "count": len(mappings)})
}

// handleCreateMapping pairs a sensor with a device. Mapping identity is
// the (device, sensor) pair: re-posting an existing pair returns the
// stored row with created=false.
func (s *Server) handleCreateMapping(w http.ResponseWriter, r *http.Request) {
	var req CreateMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID <= 0 || req.SensorID <= 0 {
		writeBadRequest(w, "device_id and sensor_id are required")
		return
	}

	mapping, created, err := s.topology.MapSensorToDevice(r.Context(), req.DeviceID, req.SensorID)
	if err != nil {
		switch {
		case errors.Is(err, topology.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
		case errors.Is(err, topology.ErrSensorNotFound):
			writeNotFound(w, "sensor not found")
		default:
			writeInternalError(w, "failed to create mapping")
		}
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"mapping": mapping, "created": created})
}

// handleDeleteMapping removes a mapping. Its readings cascade.
func (s *Server) handleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := s.topology.DeleteMapping(r.Context(), id); err != nil {
		if errors.Is(err, topology.ErrMappingNotFound) {
			writeNotFound(w, "mapping not found")
			return
		}
		writeInternalError(w, "failed to delete mapping")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
