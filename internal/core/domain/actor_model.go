package domain

const (
	ACTOR_ID_MASTER      = "master"
	ACTOR_ID_MQTT        = "mqtt"
	ACTOR_ID_DISTRIBUTOR = "distributor"
)

// Telemetry events. Each maps 1:1 to a storage tracker mutation and is
// produced by the MQTT adapter from an inbound message.

type BatteryReading struct {
	Storage StorageID
	Percent float64
}

type PowerReading struct {
	Storage StorageID
	Watts   float64
}

type ConnectivityChanged struct {
	Storage StorageID
	Online  bool
}

// NetPowerSample triggers one distribution evaluation.
// Watts = consumption - feedin, signed.
type NetPowerSample struct {
	Watts float64
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

// PublishDeltaRequest asks the MQTT actor to publish a rounded power delta
// on the unit's output topic. The response carries any publish error so the
// caller can decide whether to record the value as published.
type PublishDeltaRequest struct {
	ActorRequestMixIn
	Storage   StorageID
	DeltaWatt int
}

type PublishDeltaResponse struct {
	ActorResponseMixIn
	Storage   StorageID
	DeltaWatt int
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
