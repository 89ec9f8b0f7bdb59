package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/telemetry-core/internal/fanout"
	"github.com/nerrad567/telemetry-core/internal/topology"
)

// CreateDeviceRequest is the body for POST /devices. Sensors may be
// attached in the same call; each is registered (or reused) and mapped.
type CreateDeviceRequest struct {
	Name    string                 `json:"name"`
	Type    string                 `json:"type"`
	Sensors []topology.SensorInput `json:"sensors,omitempty"`
}

// CreateDeviceResponse carries the new device plus the outcome of any
// inline sensor attachments.
type CreateDeviceResponse struct {
	Device  *topology.Device        `json:"device"`
	Sensors []topology.AttachResult `json:"sensors,omitempty"`
}

// handleListDevices returns all devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.topology.ListDevices(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	dev, err := s.topology.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, topology.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleCreateDevice creates a new device, optionally attaching sensors
// in the same request. A device-created event is published on the
// device's channel once the row is committed.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req CreateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ctx := r.Context()
	dev, err := s.topology.RegisterDevice(ctx, req.Name, req.Type)
	if err != nil {
		if errors.Is(err, topology.ErrInvalidName) || errors.Is(err, topology.ErrInvalidType) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		writeInternalError(w, "failed to create device")
		return
	}

	resp := CreateDeviceResponse{Device: dev}
	if len(req.Sensors) > 0 {
		results, err := s.topology.AttachSensors(ctx, dev.ID, req.Sensors)
		if err != nil {
			// The device row is already committed; report the attach
			// failure without pretending the device doesn't exist.
			s.logger.Warn("sensor attach after device create failed", "device_id", dev.ID, "error", err)
			writeJSON(w, http.StatusCreated, resp)
			return
		}
		resp.Sensors = results
	}

	s.events.Publish(fanout.DeviceTopic(dev.ID), fanout.EventDeviceCreated, resp)

	writeJSON(w, http.StatusCreated, resp)
}

// handleDeleteDevice removes a device. Mappings and readings cascade.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := s.topology.DeleteDevice(r.Context(), id); err != nil {
		if errors.Is(err, topology.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AttachSensorsRequest is the body for POST /devices/{id}/sensors.
type AttachSensorsRequest struct {
	Sensors []topology.SensorInput `json:"sensors"`
}

// handleAttachSensors registers and maps a batch of sensors onto an
// existing device. Per-sensor failures are reported inline; only a
// missing device fails the whole request.
func (s *Server) handleAttachSensors(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req AttachSensorsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Sensors) == 0 {
		writeBadRequest(w, "sensors list is required")
		return
	}

	results, err := s.topology.AttachSensors(r.Context(), deviceID, req.Sensors)
	if err != nil {
		if errors.Is(err, topology.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to attach sensors")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

// parseID parses a positive int64 route parameter, writing a 400 on failure.
func parseID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "invalid id: must be a positive integer")
		return 0, false
	}
	return id, true
}
