package actor

import (
	"fmt"
	"math"

	"b2500dist/internal/config"
	"b2500dist/internal/core/domain"
	"b2500dist/internal/core/events"
	"b2500dist/internal/core/port"
	"b2500dist/internal/core/service"
	. "b2500dist/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// DistributorActor owns the storage tracker, the distribution logic and the
// publish gate. Its mailbox dispatches one message at a time, which is the
// serialization the tracker and the gate rely on.
type DistributorActor struct {
	behavior actor.Behavior
	stash    *Stash

	config      *config.Config
	mqttActor   *actor.PID
	eventStream *eventstream.EventStream
	tracker     *service.StorageTracker
	gate        *service.PublishGate
	logic       port.PowerDistributionLogic

	logger *zap.Logger
}

func NewDistributorActor(config *config.Config, mqttActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *DistributorActor {
	actorLogger := ActorLogger(domain.ACTOR_ID_DISTRIBUTOR, logger)
	act := &DistributorActor{
		config:      config,
		mqttActor:   mqttActor,
		eventStream: eventStream,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		tracker: service.NewStorageTracker(config.DistributionConfig.DefaultBatteryPercent,
			config.DistributionConfig.DefaultPowerOutput, actorLogger),
		gate: service.NewPublishGate(config.DistributionConfig.MinPublishChangeWatt),
		logic: &service.DefaultPowerDistributionLogic{
			MinPowerWatt:       config.PowerConfig.MinPowerWatt,
			MaxPowerWatt:       config.PowerConfig.MaxPowerWatt,
			MaxPowerBoostWatt:  config.PowerConfig.MaxPowerBoostWatt,
			RebalanceThreshold: config.DistributionConfig.RebalanceThreshold,
			RebalanceRate:      config.DistributionConfig.RebalanceRate,
			Logger:             actorLogger,
		},
		logger: actorLogger,
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *DistributorActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *DistributorActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("distributor@default started")
	case domain.ActorHealthRequest:
		state.logger.Debug("distributor@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_DISTRIBUTOR,
			Healthy: true,
			State:   "idle",
		})
	case domain.BatteryReading:
		state.tracker.SetBattery(msg.Storage, msg.Percent)
		state.publishTelemetryEvents(msg.Storage)
	case domain.PowerReading:
		state.tracker.SetPower(msg.Storage, msg.Watts)
		state.publishTelemetryEvents(msg.Storage)
	case domain.ConnectivityChanged:
		if state.tracker.SetOnline(msg.Storage, msg.Online) {
			state.eventStream.Publish(events.StorageOnlineUpdateEvent(msg.Storage, msg.Online))
		}
	case domain.NetPowerSample:
		state.logger.Debug("distributor@default NetPowerSample", zap.Float64("watts", msg.Watts))
		state.evaluate(ctx, msg.Watts)
	case domain.PublishDeltaResponse:
		if msg.HasResponseError() {
			state.logger.Error("distributor@default could not publish delta",
				zap.String("storage", msg.Storage.String()), zap.Error(msg.GetResponseError()))
			return
		}
		// only a confirmed publish moves the gate, so a failed send is
		// retried on the next identical computation
		state.gate.Record(msg.Storage, msg.DeltaWatt)
		state.eventStream.Publish(events.StorageDeltaUpdateEvent(msg.Storage, msg.DeltaWatt))
	case domain.PublishMessageResponse:
		if msg.HasResponseError() {
			state.logger.Error("distributor@default could not publish net power", zap.Error(msg.GetResponseError()))
		}
	default:
		state.logger.Debug("distributor@default ignore", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *DistributorActor) evaluate(ctx actor.Context, netPower float64) {
	// echo the computed net power on its own topic
	ctx.Request(state.mqttActor, domain.PublishMessageRequest{
		Topic:   state.config.MQTT.Topics.NetPowerOutput,
		Payload: fmt.Sprintf("%d", int(math.Round(netPower))),
		Retain:  true,
	})
	state.eventStream.Publish(events.NetPowerUpdateEvent(netPower))

	snapshot := state.tracker.Snapshot()
	result := state.logic.Distribute(netPower, snapshot)
	if !result.Controllable {
		// both units offline, nothing to publish
		return
	}

	published := false
	for _, id := range []domain.StorageID{domain.Storage1, domain.Storage2} {
		// round once at the publish boundary; the gate compares and stores
		// the same integer that goes on the wire
		rounded := int(math.Round(result.Delta(id)))
		if !state.gate.ShouldPublish(id, rounded) {
			continue
		}
		ctx.Request(state.mqttActor, domain.PublishDeltaRequest{
			Storage:   id,
			DeltaWatt: rounded,
		})
		published = true
	}
	if published {
		state.logSummary(netPower, snapshot, result)
	}
}

func (state *DistributorActor) publishTelemetryEvents(id domain.StorageID) {
	for _, ev := range events.StorageTelemetryUpdateEvents(id, state.tracker.Snapshot().Get(id)) {
		state.eventStream.Publish(ev)
	}
}

func (state *DistributorActor) logSummary(netPower float64, snapshot domain.StorageSnapshot, result domain.DistributionResult) {
	log := state.logger.Sugar()
	log.Infof("net power: %dW", int(math.Round(netPower)))
	for _, id := range []domain.StorageID{domain.Storage1, domain.Storage2} {
		unit := snapshot.Get(id)
		status := "ONLINE"
		if !unit.Online {
			status = "OFFLINE"
		}
		delta := int(math.Round(result.Delta(id)))
		log.Infof("storage %s (%s): %.1f%% %d->%dW (%+d)", id, status, unit.BatteryPercent,
			int(math.Round(unit.CurrentPower)), int(math.Round(unit.CurrentPower+result.Delta(id))), delta)
	}
	totalCurrent := snapshot.Storage1.CurrentPower + snapshot.Storage2.CurrentPower
	log.Infof("total output: %d->%dW", int(math.Round(totalCurrent)),
		int(math.Round(totalCurrent+result.Delta1+result.Delta2)))
}
