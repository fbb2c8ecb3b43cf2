// Package mqtt connects the navigation server to the robot's MQTT broker. GPS fixes
// published by the on-board producer are fed to the position tracker, and motion
// commands can be published to the executor instead of posted over HTTP.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dpup/prefab/logging"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/paulmach/orb"

	"github.com/ifsp/robotnav/server/internal/lib/geo"
)

// Fix is the GPS fix payload published on the fix topic
type Fix struct {
	Time      string  `json:"time"`
	Date      string  `json:"date"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Validity  string  `json:"validity"` // "A" valid, "V" void
}

// IngestFunc receives each valid fix
type IngestFunc func(ctx context.Context, fix orb.Point) error

// Options configures the broker connection
type Options struct {
	Broker         string
	ClientID       string
	FixTopic       string
	CommandPrefix  string
	ConnectTimeout time.Duration
}

// Bridge owns the broker connection
type Bridge struct {
	client  pahomqtt.Client
	options Options
}

// Dial connects to the broker
func Dial(options Options) (*Bridge, error) {
	if options.ConnectTimeout <= 0 {
		options.ConnectTimeout = 5 * time.Second
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(options.Broker).
		SetClientID(options.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(options.ConnectTimeout)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(options.ConnectTimeout) {
		return nil, fmt.Errorf("timed out connecting to mqtt broker %s", options.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", options.Broker, err)
	}
	return &Bridge{client: client, options: options}, nil
}

// SubscribeFixes delivers fixes from the fix topic to ingest until the bridge is closed
func (b *Bridge) SubscribeFixes(ctx context.Context, ingest IngestFunc) error {
	ctx = logging.EnsureLogger(ctx)
	handler := &fixHandler{ctx: ctx, ingest: ingest}
	token := b.client.Subscribe(b.options.FixTopic, 0, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		handler.handle(msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.options.FixTopic, err)
	}
	logging.Infow(ctx, "MQTT: subscribed to fixes", "topic", b.options.FixTopic)
	return nil
}

// Executor returns a robot executor that publishes over this connection
func (b *Bridge) Executor() *Executor {
	return NewExecutor(b.client, b.options.CommandPrefix)
}

// Close disconnects from the broker, allowing a short grace period for in-flight work
func (b *Bridge) Close() {
	b.client.Disconnect(250)
}

type fixHandler struct {
	ctx    context.Context
	ingest IngestFunc
}

func (h *fixHandler) handle(payload []byte) {
	point, ok, err := decodeFix(payload)
	if err != nil {
		logging.Warnw(h.ctx, "MQTT: discarding malformed fix", "error", err)
		return
	}
	if !ok {
		return
	}
	if err := h.ingest(h.ctx, point); err != nil {
		logging.Warnw(h.ctx, "MQTT: fix rejected", "error", err)
	}
}

// decodeFix parses a fix payload. Void fixes report ok=false without an error.
func decodeFix(payload []byte) (orb.Point, bool, error) {
	var fix Fix
	if err := json.Unmarshal(payload, &fix); err != nil {
		return orb.Point{}, false, fmt.Errorf("failed to unmarshal fix: %w", err)
	}
	if fix.Validity != "" && !strings.EqualFold(fix.Validity, "A") {
		return orb.Point{}, false, nil
	}
	point, err := geo.NewPoint(fix.Longitude, fix.Latitude)
	if err != nil {
		return orb.Point{}, false, err
	}
	return point, true, nil
}
