package service

import (
	"math"
	"strings"

	"b2500dist/internal/core/domain"
	"b2500dist/internal/core/port"

	"go.uber.org/zap"
)

type DefaultPowerDistributionLogic struct {
	MinPowerWatt       uint32
	MaxPowerWatt       uint32
	MaxPowerBoostWatt  uint32
	RebalanceThreshold float64
	RebalanceRate      float64
	Logger             *zap.Logger
}

func (cfg *DefaultPowerDistributionLogic) Distribute(netPowerWatt float64, snapshot domain.StorageSnapshot) domain.DistributionResult {
	s1 := snapshot.Storage1
	s2 := snapshot.Storage2

	if !s1.Online && !s2.Online {
		cfg.Logger.Warn("distribution: both storage units offline")
		return domain.DistributionResult{}
	}
	if !s1.Online {
		cfg.Logger.Info("distribution: storage 1 offline, redirecting all power to storage 2")
		return domain.DistributionResult{Delta1: 0, Delta2: netPowerWatt, Controllable: true}
	}
	if !s2.Online {
		cfg.Logger.Info("distribution: storage 2 offline, redirecting all power to storage 1")
		return domain.DistributionResult{Delta1: netPowerWatt, Delta2: 0, Controllable: true}
	}

	cfg.logDefaultsInUse(snapshot)

	minPower := float64(cfg.MinPowerWatt)
	maxPower := float64(cfg.MaxPowerWatt)

	totalCurrentOutput := s1.CurrentPower + s2.CurrentPower
	desiredTotalOutput := totalCurrentOutput + netPowerWatt

	if desiredTotalOutput >= 2*maxPower {
		// saturation high: drive both units past nominal max
		target := maxPower + float64(cfg.MaxPowerBoostWatt)
		cfg.Logger.Info("distribution: operating in max power mode")
		return controllable(target-s1.CurrentPower, target-s2.CurrentPower)
	}
	if desiredTotalOutput <= 2*minPower {
		cfg.Logger.Info("distribution: operating in min power mode")
		return controllable(minPower-s1.CurrentPower, minPower-s2.CurrentPower)
	}

	weight1, weight2 := cfg.weights(s1.BatteryPercent, s2.BatteryPercent)

	targetOutput1 := desiredTotalOutput * weight1
	targetOutput2 := desiredTotalOutput * weight2

	/* Two-pass clamp: a unit pinned at a bound hands the whole remainder to
	 * the other unit, which is then re-checked the same way. The final pair
	 * is not guaranteed to satisfy both bounds in every combination; physical
	 * limits on total system output keep that a rare case.
	 */
	if targetOutput1 < minPower {
		targetOutput1 = minPower
		targetOutput2 = desiredTotalOutput - targetOutput1
	} else if targetOutput1 > maxPower {
		targetOutput1 = maxPower
		targetOutput2 = desiredTotalOutput - targetOutput1
	}
	if targetOutput2 < minPower {
		targetOutput2 = minPower
		targetOutput1 = desiredTotalOutput - targetOutput2
	} else if targetOutput2 > maxPower {
		targetOutput2 = maxPower
		targetOutput1 = desiredTotalOutput - targetOutput2
	}

	return controllable(targetOutput1-s1.CurrentPower, targetOutput2-s2.CurrentPower)
}

// weights splits the desired total output by relative battery level. The
// rebalance shift moves extra output onto the fuller unit so it discharges
// faster and both batteries converge over time.
func (cfg *DefaultPowerDistributionLogic) weights(battery1, battery2 float64) (float64, float64) {
	batteryDiff := battery1 - battery2
	if math.Abs(batteryDiff) < cfg.RebalanceThreshold {
		// dead band: near-equal batteries split evenly to avoid oscillation
		return 0.5, 0.5
	}

	weight1, weight2 := 0.5, 0.5
	totalBattery := battery1 + battery2
	if totalBattery != 0 {
		weight1 = battery1 / totalBattery
		weight2 = battery2 / totalBattery
	}

	shift := cfg.RebalanceRate * (math.Abs(batteryDiff) / 100)
	if batteryDiff > 0 {
		weight1 += shift
		weight2 -= shift
	} else {
		weight1 -= shift
		weight2 += shift
	}

	weight1 = math.Max(0.1, math.Min(0.9, weight1))
	weight2 = math.Max(0.1, math.Min(0.9, weight2))
	totalWeight := weight1 + weight2
	return weight1 / totalWeight, weight2 / totalWeight
}

func (cfg *DefaultPowerDistributionLogic) logDefaultsInUse(snapshot domain.StorageSnapshot) {
	var usingDefaults []string
	if !snapshot.Storage1.HasBatteryData {
		usingDefaults = append(usingDefaults, "S1bat")
	}
	if !snapshot.Storage1.HasPowerData {
		usingDefaults = append(usingDefaults, "S1pwr")
	}
	if !snapshot.Storage2.HasBatteryData {
		usingDefaults = append(usingDefaults, "S2bat")
	}
	if !snapshot.Storage2.HasPowerData {
		usingDefaults = append(usingDefaults, "S2pwr")
	}
	if len(usingDefaults) > 0 {
		cfg.Logger.Debug("distribution: using default values", zap.String("fields", strings.Join(usingDefaults, ", ")))
	}
}

func controllable(delta1, delta2 float64) domain.DistributionResult {
	return domain.DistributionResult{
		Delta1:       delta1,
		Delta2:       delta2,
		Controllable: true,
	}
}

// ensure interface compliance
var _ port.PowerDistributionLogic = (*DefaultPowerDistributionLogic)(nil)
