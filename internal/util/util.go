package util

import (
	"b2500dist/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "b2500dist",
			Topics: config.TopicsConfig{
				Source:         "sma",
				NetPowerOutput: "sma/net_power",
				Storage1: config.StorageTopicsConfig{
					Battery:   "b2500/1/battery/remaining_percent",
					Power:     "b2500/1/power/power",
					Connected: "b2500/1/smartmeter/connected",
					Output:    "sma/net_power/1",
				},
				Storage2: config.StorageTopicsConfig{
					Battery:   "b2500/2/battery/remaining_percent",
					Power:     "b2500/2/power/power",
					Connected: "b2500/2/smartmeter/connected",
					Output:    "sma/net_power/2",
				},
			},
		},
		PowerConfig: config.PowerConfig{
			MinPowerWatt:      40,
			MaxPowerWatt:      400,
			MaxPowerBoostWatt: 100,
		},
		DistributionConfig: config.DistributionConfig{
			DefaultBatteryPercent: 80,
			DefaultPowerOutput:    200,
			RebalanceThreshold:    3,
			RebalanceRate:         1.0,
			MinPublishChangeWatt:  0,
		},
		Port: 8080,
	}
}
