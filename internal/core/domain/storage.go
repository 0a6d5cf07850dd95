package domain

// StorageID identifies one of the two controlled B2500 units.
type StorageID uint8

const (
	Storage1 StorageID = iota
	Storage2
)

func (id StorageID) String() string {
	if id == Storage1 {
		return "1"
	}
	return "2"
}

// StorageState is the last-known telemetry of a single unit. Values start
// at configured defaults until a real reading arrives; the Has* flags latch
// true on the first reading and never regress.
type StorageState struct {
	BatteryPercent float64
	CurrentPower   float64
	Online         bool
	HasBatteryData bool
	HasPowerData   bool
}

// StorageSnapshot is a momentary copy of both units' state. The distribution
// logic only ever sees snapshots, never live tracker state.
type StorageSnapshot struct {
	Storage1 StorageState
	Storage2 StorageState
}

func (s StorageSnapshot) Get(id StorageID) StorageState {
	if id == Storage1 {
		return s.Storage1
	}
	return s.Storage2
}

// DistributionResult is the per-unit wattage adjustment to apply to current
// output. Controllable is false when both units are offline and nothing can
// act on the computed sample.
type DistributionResult struct {
	Delta1       float64
	Delta2       float64
	Controllable bool
}

func (r DistributionResult) Delta(id StorageID) float64 {
	if id == Storage1 {
		return r.Delta1
	}
	return r.Delta2
}
