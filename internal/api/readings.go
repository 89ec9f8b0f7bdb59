package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/telemetry-core/internal/ingest"
)

// IngestReadingRequest is the body for POST /readings. Value is a
// pointer so a missing field is distinguishable from zero and can be
// rejected.
type IngestReadingRequest struct {
	DeviceSensorID int64      `json:"device_sensor_id"`
	Time           *time.Time `json:"time,omitempty"`
	Value          *float64   `json:"value"`
	SkipValidation bool       `json:"skip_validation,omitempty"`
}

// IngestBulkRequest is the body for POST /readings/{id}.
type IngestBulkRequest struct {
	Readings       []ingest.Item `json:"readings"`
	SkipValidation bool          `json:"skip_validation,omitempty"`
}

// handleIngestReading ingests one reading against a known mapping.
//
// An accepted reading returns 201. A rejected reading (unknown mapping)
// returns 200 with accepted=false; the rejection is part of the result,
// not an error.
func (s *Server) handleIngestReading(w http.ResponseWriter, r *http.Request) {
	var req IngestReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	result, err := s.pipeline.IngestSingle(r.Context(), ingest.SingleRequest{
		DeviceSensorID: req.DeviceSensorID,
		Time:           req.Time,
		Value:          req.Value,
		SkipValidation: req.SkipValidation,
	})
	if err != nil {
		writeIngestError(w, err)
		return
	}

	status := http.StatusOK
	if result.Accepted {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

// handleIngestBulk ingests a device's batch of readings.
//
// Partial acceptance is normal: the response is 201 with the full
// ordered result list even when some items were rejected.
func (s *Server) handleIngestBulk(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req IngestBulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	results, err := s.pipeline.IngestBulk(r.Context(), deviceID, req.Readings, req.SkipValidation)
	if err != nil {
		writeIngestError(w, err)
		return
	}

	accepted := 0
	for _, res := range results {
		if res.Accepted {
			accepted++
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"results":  results,
		"received": len(results),
		"accepted": accepted,
	})
}

// handleLatestReadings returns the most recent reading per mapping for
// a device.
func (s *Server) handleLatestReadings(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	readings, err := s.readings.LatestByDevice(r.Context(), deviceID)
	if err != nil {
		writeInternalError(w, "failed to load readings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"readings": readings, "count": len(readings)})
}

// handleReadingHistory returns a device's readings newest first, with
// an optional ?limit= cap.
func (s *Server) handleReadingHistory(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "invalid limit: must be a non-negative integer")
			return
		}
		limit = parsed
	}

	readings, err := s.readings.ListByDevice(r.Context(), deviceID, limit)
	if err != nil {
		writeInternalError(w, "failed to load readings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"readings": readings, "count": len(readings)})
}

// handleDeleteReadings removes all readings for a mapping.
func (s *Server) handleDeleteReadings(w http.ResponseWriter, r *http.Request) {
	mappingID, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	deleted, err := s.readings.DeleteByMapping(r.Context(), mappingID)
	if err != nil {
		writeInternalError(w, "failed to delete readings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

// writeIngestError maps pipeline sentinels onto HTTP status codes.
func writeIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ingest.ErrValidation):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, ingest.ErrPersistence):
		writeInternalError(w, "failed to persist reading")
	default:
		writeInternalError(w, "ingestion failed")
	}
}
