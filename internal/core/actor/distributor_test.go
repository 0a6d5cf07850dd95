package actor

import (
	"errors"
	"strings"
	"testing"
	"time"

	adactor "b2500dist/internal/adapter/actor"
	"b2500dist/internal/core/domain"
	"b2500dist/internal/core/events"
	"b2500dist/internal/util"
	"b2500dist/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type deltaEvent struct {
	sensorId string
	value    float64
}

func TestDistributorFlow(t *testing.T) {

	require := require.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cfg := util.LoadTestConfig()
	es := &eventstream.EventStream{}

	deltas := make(chan deltaEvent, 16)
	sub := es.Subscribe(func(evt interface{}) {
		if ev, ok := evt.(domain.FloatSensorUpdateEvent); ok && strings.HasSuffix(ev.Id, "_delta") {
			deltas <- deltaEvent{sensorId: ev.Id, value: ev.Value}
		}
	})
	defer es.Unsubscribe(sub)

	// mqtt actor stand-in that acks every publish
	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewTestMQTTActor(&cfg, es, logger)
	})
	mqttActorPID := context.Spawn(mqttProps)

	distributorProps := actor.PropsFromProducer(func() actor.Actor {
		return NewDistributorActor(&cfg, mqttActorPID, es, logger)
	})
	distributorPID := context.Spawn(distributorProps)

	time.Sleep(200 * time.Millisecond)

	hcr, err := healthCheck(context, distributorPID)
	require.NoError(err)
	assert.True(t, hcr.Healthy, "actor should be healthy")
	assert.Equal(t, "idle", hcr.State, "actor state should be idle")

	// battery 90/50 at 200W each: rebalance saturates, 160W moves to unit 1
	context.Send(distributorPID, domain.BatteryReading{Storage: domain.Storage1, Percent: 90})
	context.Send(distributorPID, domain.BatteryReading{Storage: domain.Storage2, Percent: 50})
	context.Send(distributorPID, domain.PowerReading{Storage: domain.Storage1, Watts: 200})
	context.Send(distributorPID, domain.PowerReading{Storage: domain.Storage2, Watts: 200})
	context.Send(distributorPID, domain.NetPowerSample{Watts: 0})

	ev := waitDelta(require, deltas)
	require.Equal(events.StorageDeltaSensorId(domain.Storage1), ev.sensorId)
	require.EqualValues(160, ev.value)

	ev = waitDelta(require, deltas)
	require.Equal(events.StorageDeltaSensorId(domain.Storage2), ev.sensorId)
	require.EqualValues(-160, ev.value)

	// storage 1 drops off: the whole sample goes to storage 2
	context.Send(distributorPID, domain.ConnectivityChanged{Storage: domain.Storage1, Online: false})
	context.Send(distributorPID, domain.NetPowerSample{Watts: 100})

	ev = waitDelta(require, deltas)
	require.Equal(events.StorageDeltaSensorId(domain.Storage1), ev.sensorId)
	require.EqualValues(0, ev.value)

	ev = waitDelta(require, deltas)
	require.Equal(events.StorageDeltaSensorId(domain.Storage2), ev.sensorId)
	require.EqualValues(100, ev.value)

	// both offline: the sample is dropped, nothing reaches the broker
	context.Send(distributorPID, domain.ConnectivityChanged{Storage: domain.Storage2, Online: false})
	context.Send(distributorPID, domain.NetPowerSample{Watts: 250})

	select {
	case ev := <-deltas:
		t.Errorf("unexpected delta publish while both units offline: %+v", ev)
	case <-time.After(500 * time.Millisecond):
	}

	context.Stop(distributorPID)
	context.Stop(mqttActorPID)
	as.Shutdown()
}

func TestDistributorRetriesAfterFailedPublish(t *testing.T) {

	require := require.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cfg := util.LoadTestConfig()
	// a nonzero gate makes a recorded publish suppress identical values
	cfg.DistributionConfig.MinPublishChangeWatt = 50
	es := &eventstream.EventStream{}

	attempts := make(chan domain.PublishDeltaRequest, 16)
	brokenMQTTProps := actor.PropsFromFunc(func(ctx actor.Context) {
		switch msg := ctx.Message().(type) {
		case domain.PublishMessageRequest:
			if ctx.Sender() != nil {
				ctx.Respond(domain.PublishMessageResponse{})
			}
		case domain.PublishDeltaRequest:
			attempts <- msg
			if ctx.Sender() != nil {
				ctx.Respond(domain.PublishDeltaResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: errors.New("broker unavailable"),
					},
					Storage:   msg.Storage,
					DeltaWatt: msg.DeltaWatt,
				})
			}
		}
	})
	mqttActorPID := context.Spawn(brokenMQTTProps)

	distributorProps := actor.PropsFromProducer(func() actor.Actor {
		return NewDistributorActor(&cfg, mqttActorPID, es, logger)
	})
	distributorPID := context.Spawn(distributorProps)

	time.Sleep(200 * time.Millisecond)

	context.Send(distributorPID, domain.NetPowerSample{Watts: 100})
	waitAttempts(require, attempts, 2)

	// a failed publish must not move the gate, so the identical sample is
	// attempted again instead of being suppressed
	context.Send(distributorPID, domain.NetPowerSample{Watts: 100})
	waitAttempts(require, attempts, 2)

	context.Stop(distributorPID)
	context.Stop(mqttActorPID)
	as.Shutdown()
}

func waitAttempts(require *require.Assertions, attempts chan domain.PublishDeltaRequest, count int) {
	for i := 0; i < count; i++ {
		select {
		case <-attempts:
		case <-time.After(2 * time.Second):
			require.FailNow("timed out waiting for a publish attempt")
		}
	}
}

func waitDelta(require *require.Assertions, deltas chan deltaEvent) deltaEvent {
	select {
	case ev := <-deltas:
		return ev
	case <-time.After(2 * time.Second):
		require.FailNow("timed out waiting for a delta publish")
		return deltaEvent{}
	}
}

func healthCheck(ctx *actor.RootContext, pid *actor.PID) (*domain.ActorHealthResponse, error) {
	resp, err := ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	if err != nil {
		return nil, err
	}
	hcr, ok := resp.(domain.ActorHealthResponse)
	if !ok {
		return nil, errors.New("unexpcted response type")
	}
	return &hcr, nil
}
