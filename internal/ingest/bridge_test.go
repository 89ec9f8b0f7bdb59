package ingest

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/nerrad567/telemetry-core/internal/infrastructure/logging"
	"github.com/nerrad567/telemetry-core/internal/topology"
)

type fakeSubscriber struct {
	topic   string
	qos     byte
	handler func(topic string, payload []byte) error
	err     error
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	if f.err != nil {
		return f.err
	}
	f.topic = topic
	f.qos = qos
	f.handler = handler
	return nil
}

func newTestBridge(t *testing.T, topo *fakeTopology, writer *fakeWriter) (*Bridge, *fakePublisher) {
	t.Helper()
	p, publisher, _ := newTestPipeline(t, topo, writer)
	b, err := NewBridge(p, logging.Default())
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	return b, publisher
}

func TestBridgeAttach(t *testing.T) {
	topo := &fakeTopology{}
	b, _ := newTestBridge(t, topo, &fakeWriter{})

	sub := &fakeSubscriber{}
	if err := b.Attach(sub, "telemetry/ingest/+", 1); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if sub.topic != "telemetry/ingest/+" {
		t.Errorf("subscribed topic = %q, want telemetry/ingest/+", sub.topic)
	}
	if sub.qos != 1 {
		t.Errorf("subscribed qos = %d, want 1", sub.qos)
	}
	if sub.handler == nil {
		t.Fatal("no handler registered")
	}
}

func TestBridgeAttach_SubscribeError(t *testing.T) {
	b, _ := newTestBridge(t, &fakeTopology{}, &fakeWriter{})

	sub := &fakeSubscriber{err: errors.New("broker gone")}
	if err := b.Attach(sub, "telemetry/ingest/+", 1); err == nil {
		t.Fatal("Attach() succeeded despite subscribe failure")
	}
}

func TestBridgeHandleMessage(t *testing.T) {
	topo := &fakeTopology{mappings: []topology.MappingDetail{
		{Mapping: topology.Mapping{ID: 10, DeviceID: 7}, SensorType: "temperature", SensorUnit: "celsius"},
	}}
	writer := &fakeWriter{}
	b, publisher := newTestBridge(t, topo, writer)

	payload, err := json.Marshal(BulkMessage{Readings: []Item{
		{DeviceSensorID: 10, Value: fv(21.5)},
		{DeviceSensorID: 999, Value: fv(3)},
	}})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	if err := b.HandleMessage("telemetry/ingest/7", payload); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	if len(writer.batches) != 1 || len(writer.batches[0]) != 1 {
		t.Fatalf("persisted batches = %v, want one batch with one row", writer.batches)
	}
	if writer.batches[0][0].DeviceSensorID != 10 {
		t.Errorf("persisted mapping = %d, want 10", writer.batches[0][0].DeviceSensorID)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("published %d events, want 1", len(publisher.events))
	}
	if publisher.events[0].topic != "device-7" {
		t.Errorf("event topic = %q, want device-7", publisher.events[0].topic)
	}
}

func TestBridgeHandleMessage_BadInput(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"non-numeric device segment", "telemetry/ingest/kitchen", `{"readings":[{"device_sensor_id":1,"value":2}]}`},
		{"missing device segment", "telemetry/ingest/", `{"readings":[{"device_sensor_id":1,"value":2}]}`},
		{"bare topic", "telemetry", `{"readings":[{"device_sensor_id":1,"value":2}]}`},
		{"invalid json", "telemetry/ingest/7", `{"readings":`},
		{"empty readings", "telemetry/ingest/7", `{"readings":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := &fakeWriter{}
			b, publisher := newTestBridge(t, &fakeTopology{}, writer)

			// Bad input is dropped, never surfaced to the MQTT loop.
			if err := b.HandleMessage(tt.topic, []byte(tt.payload)); err != nil {
				t.Fatalf("HandleMessage() error = %v, want nil", err)
			}
			if len(writer.batches) != 0 {
				t.Error("dropped message reached storage")
			}
			if len(publisher.events) != 0 {
				t.Error("dropped message was published")
			}
		})
	}
}
