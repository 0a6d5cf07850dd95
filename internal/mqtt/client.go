package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"b2500dist/internal/config"
	"b2500dist/internal/core/domain"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"

	OBIS_CONSUMPTION = "1-0:1.7.0"
	OBIS_FEEDIN      = "1-0:2.7.0"
)

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("b2500dist_%d", rand.IntN(1000)))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.MQTT.BaseTopic)
	opts.WillQos = 0

	return opts
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		client: mqtt.NewClient(opts),
		cfg:    cfg.MQTT,
	}
}

type MQTTClient struct {
	client mqtt.Client
	cfg    config.MQTTConfig
}

// sourceReading is the smart meter JSON published on the source topic,
// keyed by OBIS codes.
type sourceReading struct {
	Consumption *obisValue `json:"1-0:1.7.0"`
	FeedIn      *obisValue `json:"1-0:2.7.0"`
}

type obisValue struct {
	Value float64 `json:"value"`
}

func (c *MQTTClient) baseTopic() string {
	return c.cfg.BaseTopic
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.baseTopic())
}

func (c *MQTTClient) SensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/sensor/%s/state", c.baseTopic(), sensorId)
}

func (c *MQTTClient) BinarySensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/binary_sensor/%s/state", c.baseTopic(), sensorId)
}

func (c *MQTTClient) StorageOutputTopic(id domain.StorageID) string {
	if id == domain.Storage1 {
		return c.cfg.Topics.Storage1.Output
	}
	return c.cfg.Topics.Storage2.Output
}

// TelemetryTopics lists every topic the bridge subscribes to.
func (c *MQTTClient) TelemetryTopics() []string {
	return []string{
		c.cfg.Topics.Source,
		c.cfg.Topics.Storage1.Battery,
		c.cfg.Topics.Storage1.Power,
		c.cfg.Topics.Storage1.Connected,
		c.cfg.Topics.Storage2.Battery,
		c.cfg.Topics.Storage2.Power,
		c.cfg.Topics.Storage2.Connected,
	}
}

// ParseTelemetryMessage maps an inbound MQTT message to its domain event.
// Malformed payloads are rejected here and never reach the controller.
func (c *MQTTClient) ParseTelemetryMessage(msg mqtt.Message) (any, error) {
	return ParseTelemetry(c.cfg.Topics, msg.Topic(), msg.Payload())
}

func ParseTelemetry(topics config.TopicsConfig, topic string, payload []byte) (any, error) {
	switch topic {
	case topics.Source:
		return parseSourceReading(payload)
	case topics.Storage1.Battery:
		return parseBatteryReading(domain.Storage1, payload)
	case topics.Storage2.Battery:
		return parseBatteryReading(domain.Storage2, payload)
	case topics.Storage1.Power:
		return parsePowerReading(domain.Storage1, payload)
	case topics.Storage2.Power:
		return parsePowerReading(domain.Storage2, payload)
	case topics.Storage1.Connected:
		return parseConnectivity(domain.Storage1, payload), nil
	case topics.Storage2.Connected:
		return parseConnectivity(domain.Storage2, payload), nil
	}
	return nil, fmt.Errorf("unhandled topic %s", topic)
}

func parseSourceReading(payload []byte) (any, error) {
	var reading sourceReading
	if err := json.Unmarshal(payload, &reading); err != nil {
		return nil, err
	}
	if reading.Consumption == nil || reading.FeedIn == nil {
		return nil, errors.New("source reading is missing consumption or feed-in value")
	}
	return domain.NetPowerSample{
		Watts: reading.Consumption.Value - reading.FeedIn.Value,
	}, nil
}

func parseBatteryReading(id domain.StorageID, payload []byte) (any, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		return nil, err
	}
	return domain.BatteryReading{Storage: id, Percent: value}, nil
}

func parsePowerReading(id domain.StorageID, payload []byte) (any, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		return nil, err
	}
	return domain.PowerReading{Storage: id, Watts: value}, nil
}

func parseConnectivity(id domain.StorageID, payload []byte) any {
	return domain.ConnectivityChanged{
		Storage: id,
		Online:  strings.EqualFold(strings.TrimSpace(string(payload)), "ON"),
	}
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	token := c.client.Publish(topic, qos, retain, payload)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT publish timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	token := c.client.Subscribe(topic, qos, handler)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT subscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) SubscribeToTelemetryTopics(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	topics := make(map[string]byte)
	for _, topic := range c.TelemetryTopics() {
		topics[topic] = 1
	}
	token := c.client.SubscribeMultiple(topics, handler)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT subscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Unsubscribe(topic string, continuation func(error), timeout time.Duration) {
	token := c.client.Unsubscribe(topic)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT unsubscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	token := c.client.Connect()
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT connect timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}
