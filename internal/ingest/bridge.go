package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/telemetry-core/internal/infrastructure/logging"
)

// Subscriber is the slice of the MQTT client the bridge needs. The
// handler signature matches mqtt.MessageHandler.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
}

// BulkMessage is the payload devices publish on their ingest topic. It
// mirrors the bulk HTTP request body.
type BulkMessage struct {
	Readings       []Item `json:"readings"`
	SkipValidation bool   `json:"skip_validation,omitempty"`
}

// Bridge feeds device readings arriving over MQTT into the pipeline.
// The target device is addressed by topic: telemetry/ingest/<device-id>.
//
// Malformed messages are logged and dropped rather than returned as
// errors; a misbehaving device must not wedge the subscription.
type Bridge struct {
	pipeline *Pipeline
	logger   *logging.Logger
}

// NewBridge creates a bridge feeding the given pipeline.
func NewBridge(pipeline *Pipeline, logger *logging.Logger) (*Bridge, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Bridge{pipeline: pipeline, logger: logger}, nil
}

// Attach subscribes the bridge to the given topic filter. The filter is
// expected to match per-device ingest topics, normally Topics.AllIngest.
func (b *Bridge) Attach(sub Subscriber, topicFilter string, qos byte) error {
	if err := sub.Subscribe(topicFilter, qos, b.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topicFilter, err)
	}
	b.logger.Info("mqtt ingest bridge attached", "topic", topicFilter, "qos", qos)
	return nil
}

// HandleMessage processes one inbound MQTT message. It always returns
// nil: per-message failures are terminal for that message only.
func (b *Bridge) HandleMessage(topic string, payload []byte) error {
	deviceID, err := deviceIDFromTopic(topic)
	if err != nil {
		b.logger.Warn("ignoring message on malformed ingest topic", "topic", topic, "error", err)
		return nil
	}

	var msg BulkMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.logger.Warn("ignoring malformed ingest payload", "topic", topic, "error", err)
		return nil
	}

	results, err := b.pipeline.IngestBulk(context.Background(), deviceID, msg.Readings, msg.SkipValidation)
	if err != nil {
		b.logger.Error("mqtt ingest failed", "device_id", deviceID, "error", err)
		return nil
	}

	accepted := 0
	for _, r := range results {
		if r.Accepted {
			accepted++
		}
	}
	b.logger.Debug("mqtt ingest processed",
		"device_id", deviceID,
		"received", len(results),
		"accepted", accepted,
	)
	return nil
}

// deviceIDFromTopic extracts the device id from the final topic segment.
func deviceIDFromTopic(topic string) (int64, error) {
	idx := strings.LastIndexByte(topic, '/')
	if idx < 0 || idx == len(topic)-1 {
		return 0, fmt.Errorf("no device segment in %q", topic)
	}
	id, err := strconv.ParseInt(topic[idx+1:], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid device id in %q", topic)
	}
	return id, nil
}
