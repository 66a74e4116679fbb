package hass

import (
	"fmt"

	"github.com/angas/glowbridge/coordinator"
	"github.com/angas/glowbridge/purifier"
)

const manufacturer = "Hildebrand Technology"

// discoveryPayload is the Home Assistant MQTT discovery config document. One
// struct covers all platforms, unused fields stay omitted.
type discoveryPayload struct {
	Name              string   `json:"name"`
	UniqueId          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic,omitempty"`
	ValueTemplate     string   `json:"value_template,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
	EntityCategory    string   `json:"entity_category,omitempty"`
	Icon              string   `json:"icon,omitempty"`
	AvailabilityTopic string   `json:"availability_topic,omitempty"`
	CommandTopic      string   `json:"command_topic,omitempty"`
	Options           []string `json:"options,omitempty"`
	Min               *float64 `json:"min,omitempty"`
	Max               *float64 `json:"max,omitempty"`
	Step              *float64 `json:"step,omitempty"`
	PayloadOn         string   `json:"payload_on,omitempty"`
	PayloadOff        string   `json:"payload_off,omitempty"`
	PayloadPress      string   `json:"payload_press,omitempty"`

	PercentageStateTopic    string `json:"percentage_state_topic,omitempty"`
	PercentageCommandTopic  string `json:"percentage_command_topic,omitempty"`
	PercentageValueTemplate string `json:"percentage_value_template,omitempty"`

	Device deviceInfo `json:"device"`
}

type deviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// discoveryMessage pairs a discovery config with its topic
// ({prefix}/{platform}/{unique_id}/config).
type discoveryMessage struct {
	Topic   string
	Payload discoveryPayload
}

// meterEntityDescription declares one sensor per meter data key. The catalog
// is instantiated per discovered meter, filtered by its energy types.
type meterEntityDescription struct {
	Key         string
	Name        string
	EnergyType  string
	DeviceClass string
	StateClass  string
	Unit        string
	Icon        string
	Category    string
}

var meterEntityDescriptions = buildMeterDescriptions()

func buildMeterDescriptions() []meterEntityDescription {
	var out []meterEntityDescription
	for _, energy := range []struct{ id, label string }{
		{"electricity", "Electricity"},
		{"gas", "Gas"},
	} {
		out = append(out,
			meterEntityDescription{
				Key:         energy.id + "_power_current",
				Name:        energy.label + " current usage",
				EnergyType:  energy.id,
				DeviceClass: "power",
				StateClass:  "measurement",
				Unit:        "kW",
			},
			meterEntityDescription{
				Key:         energy.id + "_usage_today",
				Name:        energy.label + " usage today",
				EnergyType:  energy.id,
				DeviceClass: "energy",
				StateClass:  "total_increasing",
				Unit:        "kWh",
			},
			meterEntityDescription{
				Key:         energy.id + "_usage_week",
				Name:        energy.label + " usage this week",
				EnergyType:  energy.id,
				DeviceClass: "energy",
				StateClass:  "total_increasing",
				Unit:        "kWh",
			},
			meterEntityDescription{
				Key:         energy.id + "_usage_month",
				Name:        energy.label + " usage this month",
				EnergyType:  energy.id,
				DeviceClass: "energy",
				StateClass:  "total_increasing",
				Unit:        "kWh",
			},
			meterEntityDescription{
				Key:         energy.id + "_cost_today",
				Name:        energy.label + " cost today",
				EnergyType:  energy.id,
				DeviceClass: "monetary",
				StateClass:  "total",
				Unit:        "GBP",
			},
			meterEntityDescription{
				Key:         energy.id + "_cost_week",
				Name:        energy.label + " cost this week",
				EnergyType:  energy.id,
				DeviceClass: "monetary",
				StateClass:  "total",
				Unit:        "GBP",
			},
			meterEntityDescription{
				Key:         energy.id + "_cost_month",
				Name:        energy.label + " cost this month",
				EnergyType:  energy.id,
				DeviceClass: "monetary",
				StateClass:  "total",
				Unit:        "GBP",
			},
			meterEntityDescription{
				Key:        energy.id + "_rate",
				Name:       energy.label + " tariff rate",
				EnergyType: energy.id,
				Unit:       "p/kWh",
				Icon:       "mdi:cash",
				Category:   "diagnostic",
			},
			meterEntityDescription{
				Key:         energy.id + "_standing_charge",
				Name:        energy.label + " standing charge",
				EnergyType:  energy.id,
				DeviceClass: "monetary",
				Unit:        "GBP",
				Icon:        "mdi:cash-clock",
				Category:    "diagnostic",
			},
		)
	}
	return out
}

// meterDiscoveryConfigs builds all discovery messages for one meter: a sensor
// per applicable data key plus the connectivity binary sensor.
func meterDiscoveryConfigs(prefix, baseTopic, instanceId string, m *coordinator.MeterSnapshot) []discoveryMessage {
	device := deviceInfo{
		Identifiers:  []string{fmt.Sprintf("%s_%s", instanceId, m.MeterId)},
		Name:         m.Name,
		Manufacturer: manufacturer,
		Model:        m.Model,
	}
	stateTopic := meterStateTopic(baseTopic, m.MeterId)
	availabilityTopic := meterAvailabilityTopic(baseTopic, m.MeterId)

	var out []discoveryMessage
	for _, desc := range meterEntityDescriptions {
		if !m.HasEnergyType(desc.EnergyType) {
			continue
		}
		uniqueId := fmt.Sprintf("%s_%s_%s", instanceId, m.MeterId, desc.Key)
		out = append(out, discoveryMessage{
			Topic: fmt.Sprintf("%s/sensor/%s/config", prefix, uniqueId),
			Payload: discoveryPayload{
				Name:              desc.Name,
				UniqueId:          uniqueId,
				StateTopic:        stateTopic,
				ValueTemplate:     valueTemplate(desc.EnergyType, desc.Key),
				UnitOfMeasurement: desc.Unit,
				DeviceClass:       desc.DeviceClass,
				StateClass:        desc.StateClass,
				Icon:              desc.Icon,
				EntityCategory:    desc.Category,
				AvailabilityTopic: availabilityTopic,
				Device:            device,
			},
		})
	}

	lastUpdateId := fmt.Sprintf("%s_%s_last_update", instanceId, m.MeterId)
	out = append(out, discoveryMessage{
		Topic: fmt.Sprintf("%s/sensor/%s/config", prefix, lastUpdateId),
		Payload: discoveryPayload{
			Name:           "Last update",
			UniqueId:       lastUpdateId,
			StateTopic:     stateTopic,
			ValueTemplate:  "{{ value_json.last_update }}",
			DeviceClass:    "timestamp",
			EntityCategory: "diagnostic",
			Device:         device,
		},
	})

	uniqueId := fmt.Sprintf("%s_%s_connectivity", instanceId, m.MeterId)
	out = append(out, discoveryMessage{
		Topic: fmt.Sprintf("%s/binary_sensor/%s/config", prefix, uniqueId),
		Payload: discoveryPayload{
			Name:           "Connectivity",
			UniqueId:       uniqueId,
			StateTopic:     availabilityTopic,
			DeviceClass:    "connectivity",
			EntityCategory: "diagnostic",
			PayloadOn:      "online",
			PayloadOff:     "offline",
			Device:         device,
		},
	})

	return out
}

// valueTemplate addresses a flat data key inside the per-meter JSON state
// document, which nests totals under the energy type.
func valueTemplate(energyType, key string) string {
	field := key[len(energyType)+1:]
	return fmt.Sprintf("{{ value_json.%s.%s }}", energyType, field)
}

// purifierDiscoveryConfigs builds the discovery messages for the demo air
// purifier: air quality sensors, filter and connectivity diagnostics, the
// child lock and led switches, the fan speed select, the target humidity
// number, the reset filter button and the fan itself.
func purifierDiscoveryConfigs(prefix, baseTopic, instanceId, name string) []discoveryMessage {
	device := deviceInfo{
		Identifiers:  []string{fmt.Sprintf("%s_purifier", instanceId)},
		Name:         name,
		Manufacturer: manufacturer,
		Model:        "Air Purifier Demo",
	}
	stateTopic := purifierStateTopic(baseTopic)
	availabilityTopic := bridgeAvailabilityTopic(baseTopic)
	uid := func(key string) string { return fmt.Sprintf("%s_purifier_%s", instanceId, key) }
	base := func(key string) discoveryPayload {
		return discoveryPayload{
			UniqueId:          uid(key),
			StateTopic:        stateTopic,
			AvailabilityTopic: availabilityTopic,
			Device:            device,
		}
	}

	aqi := base("aqi")
	aqi.Name = "Air quality index"
	aqi.DeviceClass = "aqi"
	aqi.StateClass = "measurement"
	aqi.ValueTemplate = "{{ value_json.aqi }}"

	pm25 := base("pm25")
	pm25.Name = "PM2.5"
	pm25.DeviceClass = "pm25"
	pm25.StateClass = "measurement"
	pm25.UnitOfMeasurement = "µg/m³"
	pm25.ValueTemplate = "{{ value_json.pm25 }}"

	runtime := base("runtime_hours")
	runtime.Name = "Runtime"
	runtime.UnitOfMeasurement = "h"
	runtime.Icon = "mdi:timer-outline"
	runtime.EntityCategory = "diagnostic"
	runtime.StateClass = "total_increasing"
	runtime.ValueTemplate = "{{ value_json.runtime_hours }}"

	filterLife := base("filter_life")
	filterLife.Name = "Filter life"
	filterLife.UnitOfMeasurement = "%"
	filterLife.Icon = "mdi:air-filter"
	filterLife.EntityCategory = "diagnostic"
	filterLife.ValueTemplate = "{{ value_json.filter_life }}"

	filterReplace := base("filter_replace")
	filterReplace.Name = "Filter replacement"
	filterReplace.DeviceClass = "problem"
	filterReplace.EntityCategory = "diagnostic"
	filterReplace.ValueTemplate = "{{ 'ON' if value_json.filter_replace else 'OFF' }}"

	connectivity := base("connectivity")
	connectivity.Name = "Connectivity"
	connectivity.DeviceClass = "connectivity"
	connectivity.EntityCategory = "diagnostic"
	connectivity.StateTopic = availabilityTopic
	connectivity.AvailabilityTopic = ""
	connectivity.PayloadOn = "online"
	connectivity.PayloadOff = "offline"

	childLock := base("child_lock")
	childLock.Name = "Child lock"
	childLock.Icon = "mdi:lock"
	childLock.CommandTopic = purifierCommandTopic(baseTopic, "child_lock")
	childLock.ValueTemplate = "{{ 'ON' if value_json.child_lock else 'OFF' }}"

	led := base("led_display")
	led.Name = "LED display"
	led.Icon = "mdi:led-on"
	led.CommandTopic = purifierCommandTopic(baseTopic, "led_display")
	led.ValueTemplate = "{{ 'ON' if value_json.led_display else 'OFF' }}"

	fanSpeed := base("fan_speed")
	fanSpeed.Name = "Fan speed"
	fanSpeed.Icon = "mdi:fan"
	fanSpeed.CommandTopic = purifierCommandTopic(baseTopic, "fan_speed")
	fanSpeed.ValueTemplate = "{{ value_json.fan_speed }}"
	for _, s := range purifier.FanSpeedOptions {
		fanSpeed.Options = append(fanSpeed.Options, string(s))
	}

	humidityMin := purifier.TargetHumidityMin
	humidityMax := purifier.TargetHumidityMax
	humidityStep := purifier.TargetHumidityStep
	humidity := base("target_humidity")
	humidity.Name = "Target humidity"
	humidity.UnitOfMeasurement = "%"
	humidity.Icon = "mdi:water-percent"
	humidity.CommandTopic = purifierCommandTopic(baseTopic, "target_humidity")
	humidity.ValueTemplate = "{{ value_json.target_humidity }}"
	humidity.Min = &humidityMin
	humidity.Max = &humidityMax
	humidity.Step = &humidityStep

	resetFilter := base("reset_filter")
	resetFilter.Name = "Reset filter"
	resetFilter.Icon = "mdi:restart"
	resetFilter.EntityCategory = "config"
	resetFilter.StateTopic = ""
	resetFilter.CommandTopic = purifierCommandTopic(baseTopic, "reset_filter")
	resetFilter.PayloadPress = "PRESS"

	fan := base("fan")
	fan.Name = "Fan"
	fan.CommandTopic = purifierCommandTopic(baseTopic, "power")
	fan.ValueTemplate = "{{ 'ON' if value_json.power else 'OFF' }}"
	fan.PayloadOn = "ON"
	fan.PayloadOff = "OFF"
	fan.PercentageStateTopic = stateTopic
	fan.PercentageCommandTopic = purifierCommandTopic(baseTopic, "percentage")
	fan.PercentageValueTemplate = "{{ value_json.percentage }}"

	return []discoveryMessage{
		{Topic: fmt.Sprintf("%s/sensor/%s/config", prefix, uid("aqi")), Payload: aqi},
		{Topic: fmt.Sprintf("%s/sensor/%s/config", prefix, uid("pm25")), Payload: pm25},
		{Topic: fmt.Sprintf("%s/sensor/%s/config", prefix, uid("runtime_hours")), Payload: runtime},
		{Topic: fmt.Sprintf("%s/sensor/%s/config", prefix, uid("filter_life")), Payload: filterLife},
		{Topic: fmt.Sprintf("%s/binary_sensor/%s/config", prefix, uid("filter_replace")), Payload: filterReplace},
		{Topic: fmt.Sprintf("%s/binary_sensor/%s/config", prefix, uid("connectivity")), Payload: connectivity},
		{Topic: fmt.Sprintf("%s/switch/%s/config", prefix, uid("child_lock")), Payload: childLock},
		{Topic: fmt.Sprintf("%s/switch/%s/config", prefix, uid("led_display")), Payload: led},
		{Topic: fmt.Sprintf("%s/select/%s/config", prefix, uid("fan_speed")), Payload: fanSpeed},
		{Topic: fmt.Sprintf("%s/number/%s/config", prefix, uid("target_humidity")), Payload: humidity},
		{Topic: fmt.Sprintf("%s/button/%s/config", prefix, uid("reset_filter")), Payload: resetFilter},
		{Topic: fmt.Sprintf("%s/fan/%s/config", prefix, uid("fan")), Payload: fan},
	}
}

func bridgeAvailabilityTopic(baseTopic string) string {
	return baseTopic + "/bridge/availability"
}

func meterStateTopic(baseTopic, meterId string) string {
	return fmt.Sprintf("%s/meter/%s/state", baseTopic, meterId)
}

func meterAvailabilityTopic(baseTopic, meterId string) string {
	return fmt.Sprintf("%s/meter/%s/availability", baseTopic, meterId)
}

func purifierStateTopic(baseTopic string) string {
	return baseTopic + "/purifier/state"
}

func purifierCommandTopic(baseTopic, command string) string {
	return fmt.Sprintf("%s/purifier/set/%s", baseTopic, command)
}
