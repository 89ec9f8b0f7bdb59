package api

import (
	"encoding/json"
	"testing"

	"github.com/nerrad567/telemetry-core/internal/fanout"
	"github.com/nerrad567/telemetry-core/internal/infrastructure/config"
	"github.com/nerrad567/telemetry-core/internal/infrastructure/logging"
)

func newTestHub() *Hub {
	return NewHub(config.WebSocketConfig{
		Path:           "/ws",
		MaxMessageSize: 4096,
		PingInterval:   30,
		PongTimeout:    10,
	}, logging.Default())
}

// newTestClient builds a registered client without a network connection;
// messages are inspected straight off the send channel.
func newTestClient(t *testing.T, hub *Hub) *WSClient {
	t.Helper()
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)
	return client
}

// subscribe drives the client through the real message handler and
// drains the acknowledgement so later assertions see only events.
func subscribe(t *testing.T, client *WSClient, channels ...string) {
	t.Helper()
	payload, err := json.Marshal(WSSubscribePayload{Channels: channels})
	if err != nil {
		t.Fatalf("marshal subscribe payload: %v", err)
	}
	raw, err := json.Marshal(WSMessage{Type: WSTypeSubscribe, ID: "sub-1", Payload: payload})
	if err != nil {
		t.Fatalf("marshal subscribe message: %v", err)
	}
	client.handleMessage(raw)

	select {
	case data := <-client.send:
		var reply WSMessage
		if err := json.Unmarshal(data, &reply); err != nil {
			t.Fatalf("unmarshal subscribe reply: %v", err)
		}
		if reply.Type != WSTypeResponse {
			t.Fatalf("subscribe reply type = %q, want %q", reply.Type, WSTypeResponse)
		}
	default:
		t.Fatal("no subscribe acknowledgement sent")
	}
}

// receiveEvent pops one message off the client's send channel and
// decodes it, failing if nothing was delivered.
func receiveEvent(t *testing.T, client *WSClient) WSMessage {
	t.Helper()
	select {
	case data := <-client.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return msg
	default:
		t.Fatal("expected an event, send channel is empty")
		return WSMessage{}
	}
}

// assertNoEvent fails if anything is waiting on the client's send channel.
func assertNoEvent(t *testing.T, client *WSClient) {
	t.Helper()
	select {
	case data := <-client.send:
		t.Fatalf("unexpected message delivered: %s", data)
	default:
	}
}

func TestHubBroadcast_ChannelIsolation(t *testing.T) {
	hub := newTestHub()

	tempClient := newTestClient(t, hub)
	humidityClient := newTestClient(t, hub)
	subscribe(t, tempClient, "device-sensor-5")
	subscribe(t, humidityClient, "device-sensor-6")

	hub.Broadcast("device-sensor-5", fanout.EventSensorUpdate, json.RawMessage(`{"value":21.5}`))

	msg := receiveEvent(t, tempClient)
	if msg.Type != WSTypeEvent {
		t.Errorf("type = %q, want %q", msg.Type, WSTypeEvent)
	}
	if msg.Channel != "device-sensor-5" {
		t.Errorf("channel = %q, want device-sensor-5", msg.Channel)
	}
	if msg.EventType != fanout.EventSensorUpdate {
		t.Errorf("event_type = %q, want %q", msg.EventType, fanout.EventSensorUpdate)
	}
	assertNoEvent(t, tempClient)

	// The client watching a different mapping hears nothing.
	assertNoEvent(t, humidityClient)
}

func TestHubBroadcast_NoSubscribers(t *testing.T) {
	hub := newTestHub()
	client := newTestClient(t, hub)

	// Connected but not subscribed: broadcasts pass the client by.
	hub.Broadcast("device-sensor-5", fanout.EventSensorUpdate, json.RawMessage(`{}`))
	assertNoEvent(t, client)
}

func TestHubBroadcast_Unsubscribe(t *testing.T) {
	hub := newTestHub()
	client := newTestClient(t, hub)
	subscribe(t, client, "device-1")

	payload, _ := json.Marshal(WSSubscribePayload{Channels: []string{"device-1"}})
	raw, _ := json.Marshal(WSMessage{Type: WSTypeUnsubscribe, ID: "unsub-1", Payload: payload})
	client.handleMessage(raw)
	<-client.send // unsubscribe acknowledgement

	hub.Broadcast("device-1", fanout.EventSensorsUpdate, json.RawMessage(`[]`))
	assertNoEvent(t, client)
}

func TestHubPublish_TransportPath(t *testing.T) {
	hub := newTestHub()
	client := newTestClient(t, hub)
	subscribe(t, client, "device-3")

	if hub.Name() != "websocket" {
		t.Errorf("Name() = %q, want websocket", hub.Name())
	}
	if err := hub.Publish("device-3", fanout.EventDeviceCreated, []byte(`{"id":3}`)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msg := receiveEvent(t, client)
	if msg.EventType != fanout.EventDeviceCreated {
		t.Errorf("event_type = %q, want %q", msg.EventType, fanout.EventDeviceCreated)
	}
	if string(msg.Payload) != `{"id":3}` {
		t.Errorf("payload = %s, want {\"id\":3}", msg.Payload)
	}
}

func TestHubUnregister(t *testing.T) {
	hub := newTestHub()
	client := newTestClient(t, hub)
	subscribe(t, client, "device-sensor-9")

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}

	// Broadcasting after disconnect must not panic on the closed channel.
	hub.Broadcast("device-sensor-9", fanout.EventSensorUpdate, json.RawMessage(`{}`))
}
