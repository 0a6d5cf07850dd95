package service

import (
	"math"

	"b2500dist/internal/core/domain"
)

// PublishGate suppresses re-publishing a delta that has not moved at least
// MIN_PUBLISH_CHANGE watts since the last value actually sent. It compares
// and stores integers rounded once at the publish boundary, never raw floats.
type PublishGate struct {
	minChangeWatt int
	lastPublished [2]*int
}

func NewPublishGate(minChangeWatt uint32) *PublishGate {
	return &PublishGate{
		minChangeWatt: int(minChangeWatt),
	}
}

// ShouldPublish is true on the first call for a unit, and afterwards iff the
// rounded delta moved at least minChangeWatt from the last recorded publish.
func (g *PublishGate) ShouldPublish(id domain.StorageID, roundedDeltaWatt int) bool {
	last := g.lastPublished[id]
	if last == nil {
		return true
	}
	return math.Abs(float64(roundedDeltaWatt-*last)) >= float64(g.minChangeWatt)
}

// Record stores the value actually sent. Callers must only record after the
// downstream publish succeeded, so a failed send is retried naturally instead
// of being suppressed.
func (g *PublishGate) Record(id domain.StorageID, roundedDeltaWatt int) {
	v := roundedDeltaWatt
	g.lastPublished[id] = &v
}
