package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	MQTT     MQTTConfig `mapstructure:"mqtt"`

	PowerConfig        PowerConfig        `mapstructure:"power"`
	DistributionConfig DistributionConfig `mapstructure:"distribution"`
	Port               uint               `mapstructure:"port"`
	HttpLog            bool               `mapstructure:"http_log"`
}

// PowerConfig bounds the output range of a single storage unit.
type PowerConfig struct {
	MinPowerWatt      uint32 `mapstructure:"min_power"`
	MaxPowerWatt      uint32 `mapstructure:"max_power"`
	MaxPowerBoostWatt uint32 `mapstructure:"max_power_boost"`
}

type DistributionConfig struct {
	DefaultBatteryPercent float64 `mapstructure:"default_battery_percent"`
	DefaultPowerOutput    float64 `mapstructure:"default_power_output"`
	RebalanceThreshold    float64 `mapstructure:"rebalance_threshold"`
	RebalanceRate         float64 `mapstructure:"rebalance_rate"`
	MinPublishChangeWatt  uint32  `mapstructure:"min_publish_change"`
}

type MQTTConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	BaseTopic string       `mapstructure:"base_topic"`
	Topics    TopicsConfig `mapstructure:"topics"`
}

type TopicsConfig struct {
	Source         string              `mapstructure:"source"`
	NetPowerOutput string              `mapstructure:"net_power_output"`
	Storage1       StorageTopicsConfig `mapstructure:"storage1"`
	Storage2       StorageTopicsConfig `mapstructure:"storage2"`
}

type StorageTopicsConfig struct {
	Battery   string `mapstructure:"battery"`
	Power     string `mapstructure:"power"`
	Connected string `mapstructure:"connected"`
	Output    string `mapstructure:"output"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
