package domain

import (
	"errors"
	"time"
)

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_POLLER       = "poller"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_STORAGE      = "storage"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

var ErrStorageDisabled = errors.New("storage is disabled")

type GetLastReadingRequest struct {
	ActorRequestMixIn
}

type GetLastReadingResponse struct {
	ActorResponseMixIn
	Reading *Reading
}

type GetPollerStatusRequest struct {
	ActorRequestMixIn
}

type GetPollerStatusResponse struct {
	ActorResponseMixIn
	State          string
	Cycles         uint64
	FailedCycles   uint64
	LastCycleError string
	LastReadingAt  time.Time
}

type GetHistoryRequest struct {
	ActorRequestMixIn
	Since time.Time
}

type GetHistoryResponse struct {
	ActorResponseMixIn
	Readings []Reading
}

type StoreReadingResponse struct {
	ActorResponseMixIn
	CycleId string
}

type PruneReadingsRequest struct {
	ActorRequestMixIn
	Before time.Time
}

type PruneReadingsResponse struct {
	ActorResponseMixIn
	Deleted int64
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

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
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
