package service

import (
	"testing"

	"b2500dist/internal/core/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestTracker() *StorageTracker {
	return NewStorageTracker(80, 200, zap.Must(zap.NewDevelopment()))
}

func TestTrackerStartsWithDefaults(t *testing.T) {

	require := require.New(t)

	tracker := newTestTracker()
	snapshot := tracker.Snapshot()

	for _, id := range []domain.StorageID{domain.Storage1, domain.Storage2} {
		state := snapshot.Get(id)
		require.EqualValues(80, state.BatteryPercent)
		require.EqualValues(200, state.CurrentPower)
		require.True(state.Online, "units are assumed online until told otherwise")
		require.False(state.HasBatteryData)
		require.False(state.HasPowerData)
	}
}

func TestTrackerFreshnessFlagsLatch(t *testing.T) {

	require := require.New(t)

	tracker := newTestTracker()
	tracker.SetBattery(domain.Storage1, 64)
	tracker.SetPower(domain.Storage2, 310)

	snapshot := tracker.Snapshot()
	require.True(snapshot.Storage1.HasBatteryData)
	require.False(snapshot.Storage1.HasPowerData)
	require.False(snapshot.Storage2.HasBatteryData)
	require.True(snapshot.Storage2.HasPowerData)
	require.EqualValues(64, snapshot.Storage1.BatteryPercent)
	require.EqualValues(310, snapshot.Storage2.CurrentPower)

	// a later reading updates the value but the flag stays latched
	tracker.SetBattery(domain.Storage1, 63)
	require.True(tracker.Snapshot().Storage1.HasBatteryData)
}

func TestTrackerOnlineTransitions(t *testing.T) {

	require := require.New(t)

	tracker := newTestTracker()
	require.False(tracker.SetOnline(domain.Storage1, true), "setting the initial value is not a transition")
	require.True(tracker.SetOnline(domain.Storage1, false))
	require.False(tracker.SetOnline(domain.Storage1, false))
	require.True(tracker.SetOnline(domain.Storage1, true))

	require.True(tracker.Snapshot().Storage2.Online, "units track independently")
}

func TestTrackerSnapshotIsACopy(t *testing.T) {

	require := require.New(t)

	tracker := newTestTracker()
	snapshot := tracker.Snapshot()
	tracker.SetBattery(domain.Storage1, 12)
	require.EqualValues(80, snapshot.Storage1.BatteryPercent, "earlier snapshots must not observe later mutations")
}
