package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/nerrad567/telemetry-core/internal/fanout"
	"github.com/nerrad567/telemetry-core/internal/infrastructure/logging"
	"github.com/nerrad567/telemetry-core/internal/reading"
	"github.com/nerrad567/telemetry-core/internal/topology"
)

// TopologyReader is the slice of the topology store the pipeline needs.
type TopologyReader interface {
	GetMappingDetail(ctx context.Context, mappingID int64) (*topology.MappingDetail, error)
	MappingsForDevice(ctx context.Context, deviceID int64) ([]topology.MappingDetail, error)
}

// ReadingWriter is the slice of the reading store the pipeline needs.
type ReadingWriter interface {
	Insert(ctx context.Context, r reading.Reading) (*reading.Reading, error)
	InsertBatch(ctx context.Context, readings []reading.Reading) (map[int]error, error)
}

// Publisher delivers post-commit events. Implemented by fanout.Broadcaster.
type Publisher interface {
	Publish(topic, event string, payload interface{})
}

// Archiver mirrors committed readings into the time-series archive.
// Implemented by influxdb.Client.
type Archiver interface {
	WriteReading(deviceSensorID int64, sensorType, unit string, value float64, timestamp time.Time)
}

// Deps holds the dependencies required by the pipeline.
type Deps struct {
	Topology TopologyReader
	Readings ReadingWriter
	Events   Publisher
	Archive  Archiver // optional
	Logger   *logging.Logger
	Now      func() time.Time // optional, defaults to time.Now
}

// Pipeline validates, persists, and fans out sensor readings.
//
// Thread Safety: safe for concurrent use; all state is per-call.
type Pipeline struct {
	topology TopologyReader
	readings ReadingWriter
	events   Publisher
	archive  Archiver
	logger   *logging.Logger
	now      func() time.Time
}

// New creates a pipeline with the given dependencies.
func New(deps Deps) (*Pipeline, error) {
	if deps.Topology == nil {
		return nil, fmt.Errorf("topology store is required")
	}
	if deps.Readings == nil {
		return nil, fmt.Errorf("reading store is required")
	}
	if deps.Events == nil {
		return nil, fmt.Errorf("event publisher is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Pipeline{
		topology: deps.Topology,
		readings: deps.Readings,
		events:   deps.Events,
		archive:  deps.Archive,
		logger:   deps.Logger,
		now:      now,
	}, nil
}

// IngestSingle processes one reading against a known mapping.
//
// Validation failures return ErrValidation before any storage work. An
// unknown mapping is a soft rejection: accepted=false with reason
// "invalid_mapping" and nothing written. Storage failures on the write
// itself return ErrPersistence.
//
// On success the committed reading is published on its per-mapping
// topic and mirrored to the archive.
func (p *Pipeline) IngestSingle(ctx context.Context, req SingleRequest) (Result, error) {
	if req.DeviceSensorID <= 0 {
		return Result{}, fmt.Errorf("%w: device_sensor_id is required", ErrValidation)
	}
	if req.Value == nil {
		return Result{}, fmt.Errorf("%w: value is required", ErrValidation)
	}
	value := *req.Value
	if !isFinite(value) {
		return Result{}, fmt.Errorf("%w: value must be a finite number", ErrValidation)
	}

	var detail *topology.MappingDetail
	if !req.SkipValidation {
		var err error
		detail, err = p.topology.GetMappingDetail(ctx, req.DeviceSensorID)
		if errors.Is(err, topology.ErrMappingNotFound) {
			return Result{
				DeviceSensorID: req.DeviceSensorID,
				Value:          value,
				Accepted:       false,
				Reason:         ReasonInvalidMapping,
			}, nil
		}
		if err != nil {
			return Result{}, fmt.Errorf("%w: resolving mapping: %w", ErrPersistence, err)
		}
	}

	when, timeReason := p.resolveTime(req.Time)

	stored, err := p.readings.Insert(ctx, reading.Reading{
		DeviceSensorID: req.DeviceSensorID,
		Time:           when,
		Value:          value,
	})
	if err != nil {
		// With validation skipped the foreign key is the only mapping
		// check left; its failure is still a rejection, not an outage.
		if errors.Is(err, reading.ErrInvalidMapping) {
			return Result{
				DeviceSensorID: req.DeviceSensorID,
				Value:          value,
				Accepted:       false,
				Reason:         ReasonInvalidMapping,
			}, nil
		}
		return Result{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	result := Result{
		DeviceSensorID: stored.DeviceSensorID,
		Time:           stored.Time,
		Value:          stored.Value,
		Accepted:       true,
		Reason:         timeReason,
	}
	if detail != nil {
		result.SensorType = detail.SensorType
		result.SensorUnit = detail.SensorUnit
	}

	// Commit is durable; everything below is best-effort.
	p.events.Publish(fanout.DeviceSensorTopic(req.DeviceSensorID), fanout.EventSensorUpdate, result)
	if p.archive != nil {
		p.archive.WriteReading(result.DeviceSensorID, result.SensorType, result.SensorUnit, result.Value, result.Time)
	}

	p.logger.Debug("reading accepted",
		"device_sensor_id", result.DeviceSensorID,
		"time_source", timeReason,
	)

	return result, nil
}

// IngestBulk processes a device's batch of readings.
//
// One read of the device's mappings builds the valid set; every item is
// resolved against that snapshot. The accepted subset is persisted as
// one batched write, then a single event carrying the full ordered
// result list is published on the device topic. Partial acceptance is a
// normal outcome, not an error.
func (p *Pipeline) IngestBulk(ctx context.Context, deviceID int64, items []Item, skipValidation bool) ([]Result, error) {
	if deviceID <= 0 {
		return nil, fmt.Errorf("%w: device id is required", ErrValidation)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no readings provided", ErrValidation)
	}

	var validSet map[int64]topology.MappingDetail
	if !skipValidation {
		mappings, err := p.topology.MappingsForDevice(ctx, deviceID)
		if err != nil {
			return nil, fmt.Errorf("%w: resolving device mappings: %w", ErrPersistence, err)
		}
		validSet = make(map[int64]topology.MappingDetail, len(mappings))
		for _, m := range mappings {
			validSet[m.ID] = m
		}
	}

	// One server timestamp for the whole request: items without a device
	// time all record the same instant.
	serverTime := p.now().UTC()

	results := make([]Result, len(items))
	var accepted []reading.Reading
	var acceptedIndex []int

	for i, item := range items {
		results[i] = Result{DeviceSensorID: item.DeviceSensorID}

		if item.DeviceSensorID <= 0 {
			results[i].Reason = ReasonInvalidMapping
			continue
		}
		if item.Value == nil || !isFinite(*item.Value) {
			results[i].Reason = ReasonInvalidValue
			continue
		}
		value := *item.Value
		results[i].Value = value

		var detail topology.MappingDetail
		if !skipValidation {
			var ok bool
			detail, ok = validSet[item.DeviceSensorID]
			if !ok {
				results[i].Reason = ReasonInvalidMapping
				continue
			}
		}

		when := serverTime
		timeReason := ReasonServerTime
		if item.Time != nil {
			when = item.Time.UTC()
			timeReason = ReasonDeviceTime
		}

		results[i].Time = when
		results[i].Accepted = true
		results[i].Reason = timeReason
		results[i].SensorType = detail.SensorType
		results[i].SensorUnit = detail.SensorUnit

		accepted = append(accepted, reading.Reading{
			DeviceSensorID: item.DeviceSensorID,
			Time:           when,
			Value:          value,
		})
		acceptedIndex = append(acceptedIndex, i)
	}

	failed, err := p.readings.InsertBatch(ctx, accepted)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	for j, rowErr := range failed {
		i := acceptedIndex[j]
		results[i].Accepted = false
		if errors.Is(rowErr, reading.ErrInvalidMapping) {
			results[i].Reason = ReasonInvalidMapping
		} else {
			results[i].Reason = rowErr.Error()
		}
	}

	// One event per request, carrying every outcome.
	p.events.Publish(fanout.DeviceTopic(deviceID), fanout.EventSensorsUpdate, results)

	acceptedCount := 0
	for _, r := range results {
		if !r.Accepted {
			continue
		}
		acceptedCount++
		if p.archive != nil {
			p.archive.WriteReading(r.DeviceSensorID, r.SensorType, r.SensorUnit, r.Value, r.Time)
		}
	}

	p.logger.Info("bulk ingest processed",
		"device_id", deviceID,
		"received", len(items),
		"accepted", acceptedCount,
	)

	return results, nil
}

// resolveTime picks the reading timestamp: the device's if it sent one,
// the server's otherwise.
func (p *Pipeline) resolveTime(deviceTime *time.Time) (time.Time, string) {
	if deviceTime != nil {
		return deviceTime.UTC(), ReasonDeviceTime
	}
	return p.now().UTC(), ReasonServerTime
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
