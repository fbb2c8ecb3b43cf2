package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ifsp/robotnav/server/internal/clients/robot"
	"github.com/ifsp/robotnav/server/internal/lib/routing"
)

// Publisher is the subset of the paho client used to send commands
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// Executor publishes motion programs, stops, and speeds under a topic prefix:
// <prefix>/route, <prefix>/stop and <prefix>/speed. Payloads match the HTTP executor.
type Executor struct {
	publisher Publisher
	prefix    string
	timeout   time.Duration
}

var _ robot.Executor = (*Executor)(nil)

// NewExecutor creates an executor publishing under prefix
func NewExecutor(publisher Publisher, prefix string) *Executor {
	if prefix == "" {
		prefix = "robot"
	}
	return &Executor{
		publisher: publisher,
		prefix:    strings.TrimRight(prefix, "/"),
		timeout:   2 * time.Second,
	}
}

func (e *Executor) ReplaceProgram(ctx context.Context, commands []routing.Command) error {
	if commands == nil {
		commands = []routing.Command{}
	}
	return e.publish(ctx, "route", map[string]interface{}{"commands": commands})
}

func (e *Executor) Stop(ctx context.Context) error {
	return e.publish(ctx, "stop", struct{}{})
}

func (e *Executor) SetSpeed(ctx context.Context, speed int) error {
	return e.publish(ctx, "speed", map[string]int{"speed": robot.ClampSpeed(speed)})
}

func (e *Executor) publish(ctx context.Context, name string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", name, err)
	}

	topic := e.prefix + "/" + name
	token := e.publisher.Publish(topic, 1, false, payload)

	timeout := e.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}
