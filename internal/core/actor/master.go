package actor

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	adactor "github.com/berfenger/aurora2mqtt/internal/adapter/actor"
	"github.com/berfenger/aurora2mqtt/internal/adapter/sink"
	"github.com/berfenger/aurora2mqtt/internal/config"
	"github.com/berfenger/aurora2mqtt/internal/core/domain"
	. "github.com/berfenger/aurora2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type StorageActorProvider func(*eventstream.EventStream) *adactor.StorageActor

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck   healthCheckResult
	eventStream          *eventstream.EventStream
	lastReading          *sink.LastReading
	pollerActor          *actor.PID
	mqttActor            *actor.PID
	storageActor         *actor.PID
	readerProvider       ReaderProvider
	mqttActorProvider    MQTTActorProvider
	storageActorProvider StorageActorProvider
	logger               *zap.Logger
}

type healthCheckResult struct {
	expected  []string
	healthy   map[string]bool
	respondTo *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, readerProvider ReaderProvider, mqttActorProvider MQTTActorProvider,
	storageActorProvider StorageActorProvider, lastReading *sink.LastReading, logger *zap.Logger) *MasterOfPuppetsActor {
	if lastReading == nil {
		lastReading = sink.NewLastReading()
	}
	act := &MasterOfPuppetsActor{
		config:               config,
		behavior:             actor.NewBehavior(),
		stash:                &Stash{},
		logger:               ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:          &eventstream.EventStream{},
		lastReading:          lastReading,
		readerProvider:       readerProvider,
		mqttActorProvider:    mqttActorProvider,
		storageActorProvider: storageActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}

		// sinks first, so no reading is missed
		if state.config.MQTT.Enable && state.mqttActorProvider != nil {
			mqttActorPID, err := state.startMQTTActor(ctx)
			if err != nil {
				panic(err)
			}
			state.mqttActor = mqttActorPID
			state.currentHealthCheck.expected = append(state.currentHealthCheck.expected, domain.ACTOR_ID_MQTT)
		}

		if state.config.Storage.Enable && state.storageActorProvider != nil {
			storageActorPID, err := state.startStorageActor(ctx)
			if err != nil {
				panic(err)
			}
			state.storageActor = storageActorPID
			state.currentHealthCheck.expected = append(state.currentHealthCheck.expected, domain.ACTOR_ID_STORAGE)
		}

		pollerActorPID, err := state.startPollerActor(ctx)
		if err != nil {
			panic(err)
		}
		state.pollerActor = pollerActorPID
		state.currentHealthCheck.expected = append(state.currentHealthCheck.expected, domain.ACTOR_ID_POLLER)

		// start HA Discovery
		if state.mqttActor != nil && state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		for _, id := range state.currentHealthCheck.expected {
			state.requestHealth(ctx, id)
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.GetLastReadingRequest:
		resp := domain.GetLastReadingResponse{}
		if reading, ok := state.lastReading.Get(); ok {
			resp.Reading = &reading
		}
		ForRequest(msg).Respond(ctx, resp)
	case domain.GetPollerStatusRequest:
		ctx.Forward(state.pollerActor)
	case domain.GetHistoryRequest:
		if state.storageActor == nil {
			ForRequest(msg).Respond(ctx, domain.GetHistoryResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: domain.ErrStorageDisabled},
			})
			return
		}
		ctx.Forward(state.storageActor)
	case domain.PruneReadingsRequest:
		if state.storageActor == nil {
			ForRequest(msg).Respond(ctx, domain.PruneReadingsResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: domain.ErrStorageDisabled},
			})
			return
		}
		ctx.Forward(state.storageActor)
	case *actor.Terminated:
		// if the poller dies for good there is nothing left to do
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_POLLER) {
			state.logger.Error("master@default poller terminated")
			panic(errors.New("poller terminated"))
		}
	default:
		state.logger.Debug("master@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy), zap.String("state", msg.State))
		state.currentHealthCheck.healthy[msg.Id] = msg.Healthy
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) requestHealth(ctx actor.Context, id string) {
	var pid *actor.PID
	switch id {
	case domain.ACTOR_ID_POLLER:
		pid = state.pollerActor
	case domain.ACTOR_ID_MQTT:
		pid = state.mqttActor
	case domain.ACTOR_ID_STORAGE:
		pid = state.storageActor
	}
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
		return domain.ActorHealthResponse{
			Id:      id,
			Healthy: false,
		}
	})
}

func (state *MasterOfPuppetsActor) startPollerActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	pollerSink := sink.Fanout{state.lastReading, sink.NewEventStreamSink(state.eventStream)}
	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(&state.config, state.readerProvider, pollerSink, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	pollerActorPID, err := ctx.SpawnNamed(pollerProps, domain.ACTOR_ID_POLLER)
	if err != nil {
		return nil, err
	}

	return pollerActorPID, nil
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(3, 30*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *MasterOfPuppetsActor) startStorageActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(30*time.Second, 1*time.Second)

	storageProps := actor.PropsFromProducer(func() actor.Actor {
		return state.storageActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	storageActorPID, err := ctx.SpawnNamed(storageProps, domain.ACTOR_ID_STORAGE)
	if err != nil {
		return nil, err
	}

	return storageActorPID, nil
}

func (state *healthCheckResult) reset() {
	state.healthy = make(map[string]bool, len(state.expected))
	state.respondTo = nil
}

func (state *healthCheckResult) allReceived() bool {
	return len(state.healthy) >= len(state.expected)
}

func (state *healthCheckResult) unhealthy() []string {
	var ids []string
	for _, id := range state.expected {
		if !state.healthy[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	unhealthy := state.unhealthy()
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: len(unhealthy) == 0,
		State:   "ok",
	}
	if len(unhealthy) > 0 {
		resp.State = "unhealthy: " + strings.Join(unhealthy, ",")
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
