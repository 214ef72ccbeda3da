package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/aurora2mqtt/internal/config"
	"github.com/berfenger/aurora2mqtt/internal/core/domain"
	"github.com/berfenger/aurora2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// HADiscoveryActor announces the bridge and inverter sensors once the MQTT
// actor is up, then goes quiet.
type HADiscoveryActor struct {
	config    *config.Config
	behavior  actor.Behavior
	mqttActor *actor.PID

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:    config,
		mqttActor: mqttActor,
		behavior:  actor.NewBehavior(),
		logger:    actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// MQTT Actor Request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 5*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		if !msg.Healthy {
			panic(errors.New("MQTT Actor is not healthy"))
		}

		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors: DiscoverySensors(state.config),
		})
		state.behavior.Become(state.Done)
	default:
		state.logger.Debug("hadiscovery@healthcheck: ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {
	switch ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HA_DISCOVERY,
			Healthy: true,
			State:   "published",
		})
	}
}

// DiscoverySensors lists every sensor announced to Home Assistant. The
// inverter hangs off the bridge device; only the first sensor of each device
// carries the full device description.
func DiscoverySensors(cfg *config.Config) []domain.GenericSensor {
	var sensors []domain.GenericSensor

	bridgeDevice := domain.BridgeDevice(cfg.MQTT.BaseTopic)
	sensors = append(sensors, domain.BridgeSensors(bridgeDevice)...)

	inverterDevice := domain.InverterDevice(cfg.Inverter.Host, cfg.Inverter.Port, uint8(cfg.Inverter.Address))
	inverterDevice.ViaDevice = bridgeDevice.Id
	inverterSensors := domain.InverterSensors(inverterDevice)
	for i := range inverterSensors {
		if i > 0 {
			inverterSensors[i].Device = domain.IdDevice(inverterDevice)
		}
		sensors = append(sensors, inverterSensors[i])
	}

	return sensors
}
