package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/telemetry-core/internal/infrastructure/config"
)

// brokerConfig returns a working MQTT configuration. The suite needs a
// broker listening on 127.0.0.1:1883 (mosquitto in dev).
func brokerConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
			TLS:      false,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// mustConnect connects with the given client id and registers cleanup.
func mustConnect(t *testing.T, clientID string) *Client {
	t.Helper()
	client, err := Connect(brokerConfig(clientID))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnect(t *testing.T) {
	client := mustConnect(t, "telemetry-core-test-connect")
	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_NoBroker(t *testing.T) {
	cfg := brokerConfig("telemetry-core-test-nobroker")
	cfg.Broker.Port = 19999 // nothing listens here

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClose(t *testing.T) {
	client := mustConnect(t, "telemetry-core-test-close")

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}

	// Close on a zero-value client is a no-op, not a panic.
	if err := (&Client{}).Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	client := mustConnect(t, "telemetry-core-test-health")

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() ignored a cancelled context")
	}

	client.Close()
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close() error = %v, want ErrNotConnected", err)
	}
}

func TestPublish(t *testing.T) {
	client := mustConnect(t, "telemetry-core-test-pub")

	topic := Topics{}.Event("device-sensor-12", "sensor-update")
	if err := client.Publish(topic, []byte(`{"value":21.5,"accepted":true}`), 1, false); err != nil {
		t.Errorf("Publish() error = %v", err)
	}

	if err := client.PublishString(topic, `{"value":18.0,"accepted":true}`, 1, false); err != nil {
		t.Errorf("PublishString() error = %v", err)
	}

	// Retained status messages survive for late subscribers.
	if err := client.PublishRetained(Topics{}.SystemStatus(), []byte(`{"status":"online"}`)); err != nil {
		t.Errorf("PublishRetained() error = %v", err)
	}
}

func TestPublish_InvalidInput(t *testing.T) {
	client := mustConnect(t, "telemetry-core-test-pub-invalid")

	if err := client.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Publish("telemetry/ingest/1", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 3: error = %v, want ErrInvalidQoS", err)
	}
	if err := client.Publish("telemetry/ingest/1", nil, 1, false); err != nil {
		t.Errorf("nil payload: error = %v, want nil", err)
	}
}

func TestPublish_Disconnected(t *testing.T) {
	client := mustConnect(t, "telemetry-core-test-pub-down")
	client.Close()

	err := client.Publish(Topics{}.Ingest(1), []byte("x"), 1, false)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestSubscribe(t *testing.T) {
	client := mustConnect(t, "telemetry-core-test-sub")

	topic := Topics{}.Ingest(3)
	err := client.Subscribe(topic, 1, func(string, []byte) error { return nil })
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if !client.HasSubscription(topic) {
		t.Error("HasSubscription() = false after Subscribe()")
	}
	if got := client.SubscriptionCount(); got != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", got)
	}

	if err := client.Unsubscribe(topic); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(topic) {
		t.Error("HasSubscription() = true after Unsubscribe()")
	}
	if got := client.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", got)
	}
}

func TestSubscribe_InvalidInput(t *testing.T) {
	client := mustConnect(t, "telemetry-core-test-sub-invalid")
	noop := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Subscribe("telemetry/ingest/+", 3, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 3: error = %v, want ErrInvalidQoS", err)
	}
	if err := client.Subscribe("telemetry/ingest/+", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler: error = %v, want ErrSubscribeFailed", err)
	}
}

func TestSubscribe_Disconnected(t *testing.T) {
	client := mustConnect(t, "telemetry-core-test-sub-down")
	client.Close()

	err := client.Subscribe(Topics{}.AllIngest(), 1, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}

	if err := client.Unsubscribe("telemetry/ingest/+"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestUnsubscribe_EmptyTopic(t *testing.T) {
	client := mustConnect(t, "telemetry-core-test-unsub-empty")

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe() error = %v, want ErrInvalidTopic", err)
	}
}

func TestRoundtrip(t *testing.T) {
	pub := mustConnect(t, "telemetry-core-test-rt-pub")
	sub := mustConnect(t, "telemetry-core-test-rt-sub")

	topic := Topics{}.Ingest(42)
	want := `{"readings":[{"device_sensor_id":9,"value":21.5}]}`
	received := make(chan string, 1)

	err := sub.Subscribe(topic, 1, func(_ string, payload []byte) error {
		received <- string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// Let the broker register the subscription before publishing.
	time.Sleep(100 * time.Millisecond)

	if err := pub.PublishString(topic, want, 1, false); err != nil {
		t.Fatalf("PublishString() error = %v", err)
	}

	select {
	case got := <-received:
		if got != want {
			t.Errorf("payload = %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Error("timed out waiting for message")
	}
}

func TestRoundtrip_IngestWildcard(t *testing.T) {
	pub := mustConnect(t, "telemetry-core-test-wild-pub")
	sub := mustConnect(t, "telemetry-core-test-wild-sub")

	var mu sync.Mutex
	seen := make(map[string]bool)

	err := sub.Subscribe(Topics{}.AllIngest(), 1, func(topic string, _ []byte) error {
		mu.Lock()
		seen[topic] = true
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	// Every device's ingest topic matches the single-level wildcard.
	for _, deviceID := range []int64{1, 2, 3} {
		topic := Topics{}.Ingest(deviceID)
		if err := pub.PublishString(topic, `{"readings":[]}`, 1, false); err != nil {
			t.Fatalf("PublishString(%s) error = %v", topic, err)
		}
	}

	time.Sleep(500 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, deviceID := range []int64{1, 2, 3} {
		if !seen[Topics{}.Ingest(deviceID)] {
			t.Errorf("no message received on %s", Topics{}.Ingest(deviceID))
		}
	}
}

func TestHandlerError_DoesNotBreakSubscription(t *testing.T) {
	pub := mustConnect(t, "telemetry-core-test-herr-pub")
	sub := mustConnect(t, "telemetry-core-test-herr-sub")

	topic := Topics{}.Ingest(99)
	calls := make(chan struct{}, 2)

	err := sub.Subscribe(topic, 1, func(string, []byte) error {
		calls <- struct{}{}
		return errors.New("device sent garbage")
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	// Two messages: the second must still be delivered after the first
	// handler invocation errored.
	for i := 0; i < 2; i++ {
		if err := pub.PublishString(topic, fmt.Sprintf(`{"n":%d}`, i), 1, false); err != nil {
			t.Fatalf("PublishString() error = %v", err)
		}
	}

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("handler call %d never arrived", i+1)
		}
	}
}

func TestSetCallbacks(t *testing.T) {
	client := mustConnect(t, "telemetry-core-test-callbacks")

	// Connect callbacks fire on reconnect; setting them after Connect()
	// must at least be race-free with paho's async connect handler.
	connected := make(chan struct{}, 1)
	client.SetOnConnect(func() {
		select {
		case connected <- struct{}{}:
		default:
		}
	})
	client.SetOnDisconnect(func(error) {})

	select {
	case <-connected:
		// paho's handler was still in flight, fine
	case <-time.After(50 * time.Millisecond):
		// callback registered after the handler ran, also fine
	}
}

func TestMultipleSubscriptions(t *testing.T) {
	client := mustConnect(t, "telemetry-core-test-multi")

	topics := []string{
		Topics{}.Ingest(1),
		Topics{}.Ingest(2),
		Topics{}.Event("device-sensor-5", "sensor-update"),
	}
	for _, topic := range topics {
		if err := client.Subscribe(topic, 1, func(string, []byte) error { return nil }); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}

	if got := client.SubscriptionCount(); got != len(topics) {
		t.Errorf("SubscriptionCount() = %d, want %d", got, len(topics))
	}
	for _, topic := range topics {
		if !client.HasSubscription(topic) {
			t.Errorf("HasSubscription(%s) = false", topic)
		}
	}
	if client.HasSubscription("telemetry/ingest/999") {
		t.Error("HasSubscription() = true for a topic never subscribed")
	}
}

func TestIsConnected_ZeroValue(t *testing.T) {
	if (&Client{}).IsConnected() {
		t.Error("IsConnected() = true on zero-value client")
	}
}

func TestPublish_LargePayload(t *testing.T) {
	client := mustConnect(t, "telemetry-core-test-large")

	// A big bulk batch, well past the default packet sizes.
	payload := make([]byte, 64*1024)
	for i := range payload {
		payload[i] = byte(i % 256)
	}

	if err := client.Publish(Topics{}.Ingest(7), payload, 1, false); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
}

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"single reading event", Topics{}.Event("device-sensor-42", "sensor-update"), "telemetry/event/device-sensor-42/sensor-update"},
		{"bulk result event", Topics{}.Event("device-7", "sensors-update"), "telemetry/event/device-7/sensors-update"},
		{"system status", Topics{}.SystemStatus(), "telemetry/system/status"},
		{"device ingest", Topics{}.Ingest(7), "telemetry/ingest/7"},
		{"ingest wildcard", Topics{}.AllIngest(), "telemetry/ingest/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
