package port

import (
	"b2500dist/internal/core/domain"
)

// PowerDistributionLogic splits a net grid power sample between the two
// storage units. Implementations must be pure: no mutation of the snapshot,
// identical inputs yield identical outputs.
type PowerDistributionLogic interface {
	Distribute(netPowerWatt float64, snapshot domain.StorageSnapshot) domain.DistributionResult
}
