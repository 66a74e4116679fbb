// Package purifier hosts the demo air purifier device. There is no real
// hardware behind it: a simulated data source drifts the air quality readings
// on every refresh, while commands mutate one explicitly owned state object.
// The fan speed select and the fan percentage are two views of the same owned
// field, changing one changes the other.
package purifier

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

type FanSpeed string

const (
	SpeedLow    FanSpeed = "low"
	SpeedMedium FanSpeed = "medium"
	SpeedHigh   FanSpeed = "high"
	SpeedAuto   FanSpeed = "auto"
)

var FanSpeedOptions = []FanSpeed{SpeedLow, SpeedMedium, SpeedHigh, SpeedAuto}

const (
	TargetHumidityMin  = 30.0
	TargetHumidityMax  = 80.0
	TargetHumidityStep = 5.0
)

// State is an immutable copy of the device state, safe to hand to publishers.
type State struct {
	Power          bool      `json:"power"`
	FanSpeed       FanSpeed  `json:"fan_speed"`
	Percentage     int       `json:"percentage"`
	TargetHumidity float64   `json:"target_humidity"`
	ChildLock      bool      `json:"child_lock"`
	LedDisplay     bool      `json:"led_display"`
	FilterLife     int       `json:"filter_life"`
	FilterReplace  bool      `json:"filter_replace"`
	Aqi            int       `json:"aqi"`
	AqiCategory    string    `json:"aqi_category"`
	Pm25           float64   `json:"pm25"`
	RuntimeHours   float64   `json:"runtime_hours"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Device owns all purifier state. Every mutation goes through a method here,
// entities never write state anywhere else.
type Device struct {
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	tick        int
	runtime     time.Duration
	lastRefresh time.Time
	onChange    func(State)

	now func() time.Time
}

func NewDevice(logger *slog.Logger) *Device {
	d := &Device{
		logger: logger,
		now:    time.Now,
	}
	d.state = State{
		Power:          true,
		FanSpeed:       SpeedAuto,
		Percentage:     66,
		TargetHumidity: 50,
		LedDisplay:     true,
		FilterLife:     100,
	}
	return d
}

// OnChange registers the publish callback, invoked with a state copy after
// every mutation and refresh. Register before the device is driven.
func (d *Device) OnChange(fn func(State)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = fn
}

// State returns a copy of the current state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Refresh advances the simulated data source one step. The drift is
// deterministic in the tick counter so tests and demos are reproducible.
func (d *Device) Refresh() {
	d.mu.Lock()
	d.tick++

	now := d.now()
	if !d.lastRefresh.IsZero() && d.state.Power {
		d.runtime += now.Sub(d.lastRefresh)
	}
	d.lastRefresh = now
	d.state.RuntimeHours = math.Round(d.runtime.Hours()*10) / 10

	d.state.Aqi = 30 + (d.tick*17)%140
	d.state.AqiCategory = aqiCategory(d.state.Aqi)
	d.state.Pm25 = math.Round((4+float64((d.tick*23)%220)/10)*10) / 10

	// the filter wears while the purifier runs
	if d.state.Power && d.tick%5 == 0 && d.state.FilterLife > 0 {
		d.state.FilterLife--
	}
	d.state.FilterReplace = d.state.FilterLife <= 10

	d.finishLocked("refresh")
}

func (d *Device) SetPower(on bool) {
	d.mu.Lock()
	d.state.Power = on
	if !on {
		d.state.Percentage = 0
	} else if d.state.Percentage == 0 {
		d.state.Percentage = percentageForSpeed(d.state.FanSpeed)
	}
	d.finishLocked("set power")
}

// SetFanSpeed applies a named speed. The percentage view follows, auto keeps
// the current percentage.
func (d *Device) SetFanSpeed(speed FanSpeed) error {
	if !validSpeed(speed) {
		return fmt.Errorf("invalid fan speed %q", speed)
	}

	d.mu.Lock()
	d.state.FanSpeed = speed
	if speed != SpeedAuto {
		d.state.Percentage = percentageForSpeed(speed)
		d.state.Power = true
	}
	d.finishLocked("set fan speed")
	return nil
}

// SetPercentage applies a fan percentage. The named speed view follows: the
// percentage snaps to the nearest of the three speed steps, 0 turns off.
func (d *Device) SetPercentage(percentage int) error {
	if percentage < 0 || percentage > 100 {
		return fmt.Errorf("percentage %d out of range", percentage)
	}

	d.mu.Lock()
	if percentage == 0 {
		d.state.Power = false
		d.state.Percentage = 0
	} else {
		speed := speedForPercentage(percentage)
		d.state.Power = true
		d.state.FanSpeed = speed
		d.state.Percentage = percentageForSpeed(speed)
	}
	d.finishLocked("set percentage")
	return nil
}

func (d *Device) SetTargetHumidity(value float64) error {
	if value < TargetHumidityMin || value > TargetHumidityMax {
		return fmt.Errorf("target humidity %.0f out of range", value)
	}

	d.mu.Lock()
	d.state.TargetHumidity = math.Round(value/TargetHumidityStep) * TargetHumidityStep
	d.finishLocked("set target humidity")
	return nil
}

func (d *Device) SetChildLock(on bool) {
	d.mu.Lock()
	d.state.ChildLock = on
	d.finishLocked("set child lock")
}

func (d *Device) SetLedDisplay(on bool) {
	d.mu.Lock()
	d.state.LedDisplay = on
	d.finishLocked("set led display")
}

// ResetFilter marks a fresh filter installed.
func (d *Device) ResetFilter() {
	d.mu.Lock()
	d.state.FilterLife = 100
	d.state.FilterReplace = false
	d.finishLocked("reset filter")
}

// finishLocked stamps the state, releases the lock and notifies the publish
// callback outside of it.
func (d *Device) finishLocked(action string) {
	d.state.UpdatedAt = d.now()
	state := d.state
	onChange := d.onChange
	d.mu.Unlock()

	d.logger.Debug("purifier state changed", slog.String("action", action))
	if onChange != nil {
		onChange(state)
	}
}

func validSpeed(speed FanSpeed) bool {
	for _, s := range FanSpeedOptions {
		if s == speed {
			return true
		}
	}
	return false
}

func percentageForSpeed(speed FanSpeed) int {
	switch speed {
	case SpeedLow:
		return 33
	case SpeedMedium:
		return 66
	case SpeedHigh:
		return 100
	default:
		return 66
	}
}

func speedForPercentage(percentage int) FanSpeed {
	switch {
	case percentage <= 33:
		return SpeedLow
	case percentage <= 66:
		return SpeedMedium
	default:
		return SpeedHigh
	}
}

func aqiCategory(aqi int) string {
	switch {
	case aqi <= 50:
		return "Good"
	case aqi <= 100:
		return "Moderate"
	case aqi <= 150:
		return "Unhealthy for Sensitive Groups"
	case aqi <= 200:
		return "Unhealthy"
	case aqi <= 300:
		return "Very Unhealthy"
	default:
		return "Hazardous"
	}
}
