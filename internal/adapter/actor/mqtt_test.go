package actor

import (
	"testing"
	"time"

	"github.com/berfenger/aurora2mqtt/internal/core/domain"
	"github.com/berfenger/aurora2mqtt/internal/core/events"
	"github.com/berfenger/aurora2mqtt/internal/mqtt"
	"github.com/berfenger/aurora2mqtt/internal/util"
	"github.com/berfenger/aurora2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func healthState(t *testing.T, root *actor.RootContext, pid *actor.PID) domain.ActorHealthResponse {
	t.Helper()
	result, err := root.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := result.(domain.ActorHealthResponse)
	require.True(t, ok)
	return resp
}

// probeState is safe to call from assert.Eventually.
func probeState(root *actor.RootContext, pid *actor.PID) string {
	result, err := root.RequestFuture(pid, domain.ActorHealthRequest{}, time.Second).Result()
	if err != nil {
		return ""
	}
	resp, _ := result.(domain.ActorHealthResponse)
	return resp.State
}

func TestMQTTActor(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	context := as.Root

	es := eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, logger) })
	pid := context.Spawn(props)

	resp := healthState(t, context, pid)
	assert.True(resp.Healthy)
	assert.Equal("published=0", resp.State)

	// no efficiency: 14 fields
	es.Publish(domain.ReadingEvent{Reading: domain.Reading{CycleId: "c1", Timestamp: time.Now(), PowerOutput: 245}})
	es.Publish(events.PollerStateUpdateEvent("polling"))

	assert.Eventually(func() bool {
		return probeState(context, pid) == "published=15"
	}, 2*time.Second, 20*time.Millisecond)

	context.Stop(pid)
}

func TestEvent2MQTTMessage(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	client := mqtt.CreateMQTTClient(&cfg, mqtt.OptsFromConfig(&cfg), nil, nil)

	msg := event2MQTTMessage(client, domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_ENERGY_TOTAL},
		Value:                  24511.874,
		Decimals:               3,
	})
	if assert.NotNil(msg) {
		assert.Equal("aurora/sensor/energy_total/state", msg.topic)
		assert.Equal("24511.874", msg.message)
		assert.False(msg.retain)
	}

	msg = event2MQTTMessage(client, events.PollerStateUpdateEvent("idle"))
	if assert.NotNil(msg) {
		assert.Equal("aurora/sensor/poller_state/state", msg.topic)
		assert.Equal("idle", msg.message)
		assert.True(msg.retain)
	}

	msg = event2MQTTMessage(client, domain.BridgeStateUpdateEvent{Value: false})
	if assert.NotNil(msg) {
		assert.Equal("aurora/bridge/state", msg.topic)
		assert.Equal(mqtt.MQTT_PAYLOAD_OFFLINE, msg.message)
	}

	assert.Nil(event2MQTTMessage(client, "unknown"))
}
