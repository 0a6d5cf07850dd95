package service

import (
	"b2500dist/internal/core/domain"

	"go.uber.org/zap"
)

// StorageTracker holds the last-known telemetry of both units. It is not
// synchronized: all mutations and reads must happen on the distributor
// actor's mailbox, which dispatches one message at a time.
type StorageTracker struct {
	units  [2]domain.StorageState
	logger *zap.Logger
}

func NewStorageTracker(defaultBatteryPercent, defaultPowerOutput float64, logger *zap.Logger) *StorageTracker {
	defaultState := domain.StorageState{
		BatteryPercent: defaultBatteryPercent,
		CurrentPower:   defaultPowerOutput,
		Online:         true,
	}
	logger.Sugar().Infof("initialized: both storages at %.1f%%, %.1fW", defaultBatteryPercent, defaultPowerOutput)
	return &StorageTracker{
		units:  [2]domain.StorageState{defaultState, defaultState},
		logger: logger,
	}
}

func (t *StorageTracker) SetBattery(id domain.StorageID, percent float64) {
	old := t.units[id].BatteryPercent
	t.units[id].BatteryPercent = percent
	t.units[id].HasBatteryData = true
	if absDiff(old, percent) > 1 {
		t.logger.Sugar().Debugf("storage %s battery: %.1f%% -> %.1f%%", id, old, percent)
	}
}

func (t *StorageTracker) SetPower(id domain.StorageID, watts float64) {
	t.units[id].CurrentPower = watts
	t.units[id].HasPowerData = true
}

// SetOnline reports whether the flag actually changed value, so the caller
// can surface the transition.
func (t *StorageTracker) SetOnline(id domain.StorageID, online bool) bool {
	changed := t.units[id].Online != online
	t.units[id].Online = online
	if changed {
		if online {
			t.logger.Sugar().Infof("storage %s: ONLINE", id)
		} else {
			t.logger.Sugar().Infof("storage %s: OFFLINE", id)
		}
	}
	return changed
}

func (t *StorageTracker) Snapshot() domain.StorageSnapshot {
	return domain.StorageSnapshot{
		Storage1: t.units[domain.Storage1],
		Storage2: t.units[domain.Storage2],
	}
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
