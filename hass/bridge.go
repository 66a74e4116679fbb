// Package hass publishes the meters and the demo purifier to Home Assistant
// over MQTT discovery. Entities on the Home Assistant side are pure
// read-throughs of the JSON state documents published here, purifier commands
// come back on the command topics and are dispatched to the device.
package hass

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/angas/glowbridge/config"
	"github.com/angas/glowbridge/coordinator"
	"github.com/angas/glowbridge/issues"
	"github.com/angas/glowbridge/purifier"
)

type Bridge struct {
	mqttClient mqtt.Client
	logger     *slog.Logger
	issues     *issues.Registry

	prefix     string
	baseTopic  string
	instanceId string

	device       *purifier.Device
	purifierName string

	mu         sync.Mutex
	discovered map[string]bool
}

// New builds the bridge. A nil device disables the purifier side entirely,
// a nil registry disables broker issue reporting.
func New(cfg config.AppConfigMqtt, instanceId string, device *purifier.Device, purifierName string, reg *issues.Registry, logger *slog.Logger) *Bridge {
	b := &Bridge{
		logger:       logger,
		issues:       reg,
		prefix:       cfg.GetDiscoveryPrefix(),
		baseTopic:    cfg.GetBaseTopic(),
		instanceId:   instanceId,
		device:       device,
		purifierName: purifierName,
		discovered:   make(map[string]bool),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(instanceId)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetWill(bridgeAvailabilityTopic(cfg.GetBaseTopic()), "offline", 0, true)
	opts.OnConnect = func(client mqtt.Client) {
		b.handleConnected()
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		b.handleConnectionLost(err)
	}

	mqttLog := logger.With("module", "mqtt")
	mqtt.CRITICAL = newMqttLogger(mqttLog, slog.LevelError)
	mqtt.ERROR = newMqttLogger(mqttLog, slog.LevelError)
	mqtt.WARN = newMqttLogger(mqttLog, slog.LevelWarn)

	b.mqttClient = mqtt.NewClient(opts)
	return b
}

func (b *Bridge) handleConnected() {
	b.logger.Info("home assistant MQTT connected")
	if b.issues != nil {
		b.issues.Clear(issues.KeyMqttDown)
	}
}

func (b *Bridge) handleConnectionLost(err error) {
	b.logger.Warn("home assistant MQTT connection lost", slog.Any("error", err))
	if b.issues != nil {
		b.issues.Raise(issues.KeyMqttDown, issues.SeverityWarning,
			fmt.Sprintf("MQTT broker connection lost: %v", err))
	}
}

// Connect establishes the broker session, announces the bridge online and,
// when the purifier is enabled, publishes its discovery and subscribes to its
// command topics.
func (b *Bridge) Connect() error {
	b.logger.Debug("connecting home assistant MQTT client")

	if token := b.mqttClient.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	b.publish(bridgeAvailabilityTopic(b.baseTopic), "online", true)

	if b.device == nil {
		return nil
	}

	for _, msg := range purifierDiscoveryConfigs(b.prefix, b.baseTopic, b.instanceId, b.purifierName) {
		b.publishJSON(msg.Topic, msg.Payload, true)
	}
	b.PublishPurifierState(b.device.State())

	commandFilter := purifierCommandTopic(b.baseTopic, "+")
	token := b.mqttClient.Subscribe(commandFilter, 0, func(client mqtt.Client, msg mqtt.Message) {
		b.handlePurifierCommand(msg.Topic(), string(msg.Payload()))
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}

	return nil
}

func (b *Bridge) Disconnect() {
	b.logger.Info("disconnecting home assistant MQTT client")

	b.publish(bridgeAvailabilityTopic(b.baseTopic), "offline", true)
	if b.device != nil {
		token := b.mqttClient.Unsubscribe(purifierCommandTopic(b.baseTopic, "+"))
		token.WaitTimeout(1 * time.Second)
		if token.Error() != nil {
			b.logger.Error("error unsubscribing from command topics", slog.Any("error", token.Error()))
		}
	}

	b.mqttClient.Disconnect(250)
}

// PublishSnapshot pushes one fresh snapshot: discovery for meters not seen
// before, then availability and the state document per meter.
func (b *Bridge) PublishSnapshot(snap *coordinator.Snapshot) {
	for meterId, m := range snap.Meters {
		b.ensureMeterDiscovered(m)
		b.publish(meterAvailabilityTopic(b.baseTopic, meterId), "online", true)
		b.publishJSON(meterStateTopic(b.baseTopic, meterId), m, true)
	}
}

// MarkMetersUnavailable flags every discovered meter offline, used when a
// fetch cycle fails.
func (b *Bridge) MarkMetersUnavailable() {
	b.mu.Lock()
	meterIds := make([]string, 0, len(b.discovered))
	for id := range b.discovered {
		meterIds = append(meterIds, id)
	}
	b.mu.Unlock()

	for _, id := range meterIds {
		b.publish(meterAvailabilityTopic(b.baseTopic, id), "offline", true)
	}
}

func (b *Bridge) PublishPurifierState(state purifier.State) {
	b.publishJSON(purifierStateTopic(b.baseTopic), state, true)
}

func (b *Bridge) ensureMeterDiscovered(m *coordinator.MeterSnapshot) {
	b.mu.Lock()
	seen := b.discovered[m.MeterId]
	b.discovered[m.MeterId] = true
	b.mu.Unlock()
	if seen {
		return
	}

	b.logger.Info("announcing meter",
		slog.String("meterId", m.MeterId),
		slog.String("model", m.Model))
	for _, msg := range meterDiscoveryConfigs(b.prefix, b.baseTopic, b.instanceId, m) {
		b.publishJSON(msg.Topic, msg.Payload, true)
	}
}

func (b *Bridge) handlePurifierCommand(topic, payload string) {
	command := topic[strings.LastIndex(topic, "/")+1:]
	b.logger.Debug("purifier command",
		slog.String("command", command),
		slog.String("payload", payload))

	var err error
	switch command {
	case "power":
		b.device.SetPower(payload == "ON")
	case "fan_speed":
		err = b.device.SetFanSpeed(purifier.FanSpeed(payload))
	case "percentage":
		var pct int
		if pct, err = strconv.Atoi(payload); err == nil {
			err = b.device.SetPercentage(pct)
		}
	case "target_humidity":
		var value float64
		if value, err = strconv.ParseFloat(payload, 64); err == nil {
			err = b.device.SetTargetHumidity(value)
		}
	case "child_lock":
		b.device.SetChildLock(payload == "ON")
	case "led_display":
		b.device.SetLedDisplay(payload == "ON")
	case "reset_filter":
		b.device.ResetFilter()
	default:
		b.logger.Warn("unknown command topic", slog.String("topic", topic))
		return
	}

	if err != nil {
		b.logger.Error("purifier command failed",
			slog.String("command", command),
			slog.String("payload", payload),
			slog.Any("error", err))
	}
}

func (b *Bridge) publish(topic, payload string, retained bool) {
	token := b.mqttClient.Publish(topic, 0, retained, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			b.logger.Error("publish failed",
				slog.String("topic", topic),
				slog.Any("error", token.Error()))
		}
	}()
}

func (b *Bridge) publishJSON(topic string, v any, retained bool) {
	data, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("marshalling payload",
			slog.String("topic", topic),
			slog.Any("error", err))
		return
	}
	b.publish(topic, string(data), retained)
}
