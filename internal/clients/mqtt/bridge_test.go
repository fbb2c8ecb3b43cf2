package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dpup/prefab/logging"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifsp/robotnav/server/internal/lib/routing"
)

func TestDecodeFix(t *testing.T) {
	point, ok, err := decodeFix([]byte(`{"time":"12:35:19","lat":-22.83387,"lon":-47.05264,"validity":"A"}`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, orb.Point{-47.05264, -22.83387}, point)

	_, ok, err = decodeFix([]byte(`{"lat":1,"lon":2,"validity":"V"}`))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = decodeFix([]byte(`{"lat":1,"lon":2}`))
	require.NoError(t, err)
	assert.True(t, ok, "fixes without validity are accepted")

	_, _, err = decodeFix([]byte(`not json`))
	assert.Error(t, err)
}

func TestFixHandler(t *testing.T) {
	var got []orb.Point
	handler := &fixHandler{
		ctx: logging.EnsureLogger(context.Background()),
		ingest: func(_ context.Context, fix orb.Point) error {
			got = append(got, fix)
			return nil
		},
	}

	handler.handle([]byte(`{"lat":1.5,"lon":2.5,"validity":"A"}`))
	handler.handle([]byte(`{"lat":9,"lon":9,"validity":"V"}`))
	handler.handle([]byte(`{broken`))
	handler.handle([]byte(`{"lat":3.5,"lon":4.5,"validity":"a"}`))

	assert.Equal(t, []orb.Point{{2.5, 1.5}, {4.5, 3.5}}, got)
}

type fakeToken struct {
	err      error
	complete bool
}

func (f *fakeToken) Wait() bool                     { return f.complete }
func (f *fakeToken) WaitTimeout(time.Duration) bool { return f.complete }
func (f *fakeToken) Error() error                   { return f.err }
func (f *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if f.complete {
		close(ch)
	}
	return ch
}

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePublisher struct {
	messages []published
	token    *fakeToken
}

func (f *fakePublisher) Publish(topic string, qos byte, _ bool, payload interface{}) pahomqtt.Token {
	f.messages = append(f.messages, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return f.token
}

func TestExecutor_Publishes(t *testing.T) {
	publisher := &fakePublisher{token: &fakeToken{complete: true}}
	executor := NewExecutor(publisher, "robot/")
	ctx := context.Background()

	require.NoError(t, executor.ReplaceProgram(ctx, []routing.Command{routing.Turn(routing.Right, 45), routing.Move(3)}))
	require.NoError(t, executor.Stop(ctx))
	require.NoError(t, executor.SetSpeed(ctx, 140))

	require.Len(t, publisher.messages, 3)
	assert.Equal(t, "robot/route", publisher.messages[0].topic)
	assert.Equal(t, byte(1), publisher.messages[0].qos)
	assert.JSONEq(t, `{"commands":[{"type":"turn","direction":"right","degrees":45},{"type":"move","distance":3}]}`,
		string(publisher.messages[0].payload))
	assert.Equal(t, "robot/stop", publisher.messages[1].topic)
	assert.Equal(t, "robot/speed", publisher.messages[2].topic)

	var speed map[string]int
	require.NoError(t, json.Unmarshal(publisher.messages[2].payload, &speed))
	assert.Equal(t, 100, speed["speed"])
}

func TestExecutor_NilProgram(t *testing.T) {
	publisher := &fakePublisher{token: &fakeToken{complete: true}}
	executor := NewExecutor(publisher, "")

	require.NoError(t, executor.ReplaceProgram(context.Background(), nil))
	assert.Equal(t, "robot/route", publisher.messages[0].topic)
	assert.JSONEq(t, `{"commands":[]}`, string(publisher.messages[0].payload))
}

func TestExecutor_Errors(t *testing.T) {
	executor := NewExecutor(&fakePublisher{token: &fakeToken{complete: false}}, "robot")
	err := executor.Stop(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")

	executor = NewExecutor(&fakePublisher{token: &fakeToken{complete: true, err: errors.New("not connected")}}, "robot")
	err = executor.Stop(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}
