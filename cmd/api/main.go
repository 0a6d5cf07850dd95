package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "b2500dist/internal/adapter/actor"
	"b2500dist/internal/config"
	"b2500dist/internal/core/actor"
	"b2500dist/internal/server"
	"b2500dist/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	slog.Info("Starting b2500dist", "version", versioninfo.Short())

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => B2500_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("B2500_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("b2500")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check bounds
	if cfg.PowerConfig.MinPowerWatt >= cfg.PowerConfig.MaxPowerWatt {
		return nil, errors.New("config param power.min_power must be < power.max_power")
	}
	if cfg.DistributionConfig.RebalanceRate < 0 {
		return nil, errors.New("config param distribution.rebalance_rate must be >= 0")
	}
	if cfg.DistributionConfig.RebalanceThreshold < 0 {
		return nil, errors.New("config param distribution.rebalance_threshold must be >= 0")
	}
	if cfg.MQTT.Topics.Source == "" {
		return nil, errors.New("config param mqtt.topics.source is required")
	}

	return &cfg, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.base_topic", "b2500dist")
	viper.SetDefault("mqtt.topics.source", "sma")
	viper.SetDefault("mqtt.topics.net_power_output", "sma/net_power")
	viper.SetDefault("mqtt.topics.storage1.battery", "b2500/1/battery/remaining_percent")
	viper.SetDefault("mqtt.topics.storage1.power", "b2500/1/power/power")
	viper.SetDefault("mqtt.topics.storage1.connected", "b2500/1/smartmeter/connected")
	viper.SetDefault("mqtt.topics.storage1.output", "sma/net_power/1")
	viper.SetDefault("mqtt.topics.storage2.battery", "b2500/2/battery/remaining_percent")
	viper.SetDefault("mqtt.topics.storage2.power", "b2500/2/power/power")
	viper.SetDefault("mqtt.topics.storage2.connected", "b2500/2/smartmeter/connected")
	viper.SetDefault("mqtt.topics.storage2.output", "sma/net_power/2")
	viper.SetDefault("power.min_power", 40)
	viper.SetDefault("power.max_power", 400)
	viper.SetDefault("power.max_power_boost", 100)
	viper.SetDefault("distribution.default_battery_percent", 80)
	viper.SetDefault("distribution.default_power_output", 200)
	viper.SetDefault("distribution.rebalance_threshold", 3)
	viper.SetDefault("distribution.rebalance_rate", 1.0)
	viper.SetDefault("distribution.min_publish_change", 0)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
