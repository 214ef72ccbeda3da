package actor

import (
	"path/filepath"
	"testing"
	"time"

	adactor "github.com/berfenger/aurora2mqtt/internal/adapter/actor"
	"github.com/berfenger/aurora2mqtt/internal/adapter/sink"
	"github.com/berfenger/aurora2mqtt/internal/config"
	"github.com/berfenger/aurora2mqtt/internal/core/domain"
	"github.com/berfenger/aurora2mqtt/internal/util"
	"github.com/berfenger/aurora2mqtt/internal/util/actorutil"
	"github.com/berfenger/aurora2mqtt/pkg/aurora"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger(cfg config.Config) *zap.Logger {
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	return zap.Must(logCfg.Build())
}

func spawnMaster(t *testing.T, cfg config.Config, reader aurora.InverterReader) (*actor.ActorSystem, *actor.PID, *sink.LastReading) {
	t.Helper()
	logger := testLogger(cfg)
	as := actorutil.NewActorSystemWithZapLogger(logger)
	last := sink.NewLastReading()

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, func() (aurora.InverterReader, error) {
			return reader, nil
		}, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, logger)
		}, func(es *eventstream.EventStream) *adactor.StorageActor {
			return adactor.NewStorageActor(&cfg, es, logger)
		}, last, logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = as.Root.StopFuture(pid).Wait()
		as.Shutdown()
	})
	return as, pid, last
}

func request[T any](t *testing.T, root *actor.RootContext, pid *actor.PID, msg any) T {
	t.Helper()
	res, err := root.RequestFuture(pid, msg, 5*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(T)
	require.True(t, ok, "unexpected response %T", res)
	return resp
}

func TestMasterActor(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	cfg.MQTT.Enable = true
	cfg.Storage.Enable = true
	cfg.Storage.DBPath = filepath.Join(t.TempDir(), "aurora.db")

	as, pid, last := spawnMaster(t, cfg, aurora.CreateTestInverterReader())
	root := as.Root

	healthResp := request[domain.ActorHealthResponse](t, root, pid, domain.ActorHealthRequest{})
	assert.True(healthResp.Healthy, "healthy is true")
	assert.Equal("ok", healthResp.State)

	assert.Eventually(func() bool {
		_, ok := last.Get()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	lastResp := request[domain.GetLastReadingResponse](t, root, pid, domain.GetLastReadingRequest{})
	if assert.NotNil(lastResp.Reading) {
		assert.Equal(2450.0, lastResp.Reading.PowerOutput)
		assert.Equal(24511.874, lastResp.Reading.EnergyTotal)
		assert.NotEmpty(lastResp.Reading.CycleId)
	}

	status := request[domain.GetPollerStatusResponse](t, root, pid, domain.GetPollerStatusRequest{})
	assert.NotZero(status.Cycles)
	assert.Zero(status.FailedCycles)
	assert.Empty(status.LastCycleError)

	assert.Eventually(func() bool {
		res, err := root.RequestFuture(pid, domain.GetHistoryRequest{Since: time.Now().Add(-time.Hour)}, time.Second).Result()
		if err != nil {
			return false
		}
		hist, ok := res.(domain.GetHistoryResponse)
		return ok && !hist.HasResponseError() && len(hist.Readings) > 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestMasterActorStorageDisabled(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()

	as, pid, _ := spawnMaster(t, cfg, aurora.CreateTestInverterReader())
	root := as.Root

	healthResp := request[domain.ActorHealthResponse](t, root, pid, domain.ActorHealthRequest{})
	assert.True(healthResp.Healthy)

	hist := request[domain.GetHistoryResponse](t, root, pid, domain.GetHistoryRequest{Since: time.Now()})
	assert.ErrorIs(hist.GetResponseError(), domain.ErrStorageDisabled)

	prune := request[domain.PruneReadingsResponse](t, root, pid, domain.PruneReadingsRequest{Before: time.Now()})
	assert.ErrorIs(prune.GetResponseError(), domain.ErrStorageDisabled)
}

func TestMasterActorNoReadingYet(t *testing.T) {

	cfg := util.LoadTestConfig()
	reader := aurora.CreateTestInverterReader()
	reader.SetOpenErr(&aurora.ConnectError{Addr: "127.0.0.1:8899", Err: aurora.ErrTimeout})

	as, pid, _ := spawnMaster(t, cfg, reader)

	lastResp := request[domain.GetLastReadingResponse](t, as.Root, pid, domain.GetLastReadingRequest{})
	assert.Nil(t, lastResp.Reading)
}
