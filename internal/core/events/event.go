package events

import (
	"fmt"

	"b2500dist/internal/core/domain"
)

const (
	SENSOR_ID_BRIDGE_STATE = "bridge"
	SENSOR_ID_NET_POWER    = "net_power"
)

func StorageBatterySensorId(id domain.StorageID) string {
	return fmt.Sprintf("storage_%s_battery", id)
}

func StoragePowerSensorId(id domain.StorageID) string {
	return fmt.Sprintf("storage_%s_power", id)
}

func StorageOnlineSensorId(id domain.StorageID) string {
	return fmt.Sprintf("storage_%s_online", id)
}

func StorageDeltaSensorId(id domain.StorageID) string {
	return fmt.Sprintf("storage_%s_delta", id)
}

func NetPowerUpdateEvent(watts float64) any {
	return domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: SENSOR_ID_NET_POWER,
		},
		Value:    watts,
		Decimals: 0,
	}
}

func StorageTelemetryUpdateEvents(id domain.StorageID, state domain.StorageState) []any {
	var events []any

	// Battery SoC
	events = append(events, domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: StorageBatterySensorId(id),
		},
		Value:    state.BatteryPercent,
		Decimals: 1,
	})
	// Current output power
	events = append(events, domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: StoragePowerSensorId(id),
		},
		Value:    state.CurrentPower,
		Decimals: 0,
	})

	return events
}

func StorageOnlineUpdateEvent(id domain.StorageID, online bool) any {
	return domain.BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: StorageOnlineSensorId(id),
		},
		Value: online,
	}
}

func StorageDeltaUpdateEvent(id domain.StorageID, deltaWatt int) any {
	return domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: StorageDeltaSensorId(id),
		},
		Value:    float64(deltaWatt),
		Decimals: 0,
	}
}
