package purifier

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestDevice() *Device {
	return NewDevice(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDefaults(t *testing.T) {
	d := newTestDevice()
	s := d.State()

	if !s.Power || s.FanSpeed != SpeedAuto || s.Percentage != 66 {
		t.Errorf("unexpected fan defaults: %+v", s)
	}
	if s.TargetHumidity != 50 || s.ChildLock || !s.LedDisplay || s.FilterLife != 100 {
		t.Errorf("unexpected defaults: %+v", s)
	}
}

func TestFanSpeedAndPercentageAreLinked(t *testing.T) {
	d := newTestDevice()

	if err := d.SetFanSpeed(SpeedHigh); err != nil {
		t.Fatal(err)
	}
	if s := d.State(); s.Percentage != 100 || s.FanSpeed != SpeedHigh {
		t.Errorf("select change did not drive the percentage: %+v", s)
	}

	if err := d.SetPercentage(30); err != nil {
		t.Fatal(err)
	}
	if s := d.State(); s.FanSpeed != SpeedLow || s.Percentage != 33 {
		t.Errorf("percentage change did not drive the select: %+v", s)
	}

	if err := d.SetPercentage(0); err != nil {
		t.Fatal(err)
	}
	if s := d.State(); s.Power || s.Percentage != 0 {
		t.Errorf("zero percentage should turn the fan off: %+v", s)
	}

	if err := d.SetFanSpeed(SpeedMedium); err != nil {
		t.Fatal(err)
	}
	if s := d.State(); !s.Power || s.Percentage != 66 {
		t.Errorf("setting a speed should turn the fan back on: %+v", s)
	}
}

func TestSetFanSpeedRejectsUnknown(t *testing.T) {
	d := newTestDevice()
	if err := d.SetFanSpeed("turbo"); err == nil {
		t.Error("expected error for unknown speed")
	}
	if err := d.SetPercentage(150); err == nil {
		t.Error("expected error for out-of-range percentage")
	}
}

func TestSetTargetHumidity(t *testing.T) {
	d := newTestDevice()

	if err := d.SetTargetHumidity(62); err != nil {
		t.Fatal(err)
	}
	if s := d.State(); s.TargetHumidity != 60 {
		t.Errorf("expected snap to step of 5, got %v", s.TargetHumidity)
	}

	if err := d.SetTargetHumidity(20); err == nil {
		t.Error("expected error below minimum")
	}
	if err := d.SetTargetHumidity(90); err == nil {
		t.Error("expected error above maximum")
	}
}

func TestRefreshDriftsAirQuality(t *testing.T) {
	d := newTestDevice()

	d.Refresh()
	s1 := d.State()
	if s1.Aqi <= 0 || s1.AqiCategory == "" || s1.Pm25 <= 0 {
		t.Errorf("refresh produced no readings: %+v", s1)
	}

	d.Refresh()
	s2 := d.State()
	if s2.Aqi == s1.Aqi {
		t.Error("expected the simulated AQI to drift between refreshes")
	}
}

func TestFilterWearAndReset(t *testing.T) {
	d := newTestDevice()

	for i := 0; i < 460; i++ {
		d.Refresh()
	}
	s := d.State()
	if s.FilterLife >= 100 {
		t.Errorf("filter should wear while running, got %d", s.FilterLife)
	}
	if !s.FilterReplace {
		t.Errorf("expected filter replacement flag at life %d", s.FilterLife)
	}

	d.ResetFilter()
	s = d.State()
	if s.FilterLife != 100 || s.FilterReplace {
		t.Errorf("reset did not restore the filter: %+v", s)
	}
}

func TestRuntimeAccumulatesWhilePowered(t *testing.T) {
	d := newTestDevice()

	clock := time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return clock }

	d.Refresh() // establishes the baseline
	clock = clock.Add(90 * time.Minute)
	d.Refresh()

	if got := d.State().RuntimeHours; got != 1.5 {
		t.Errorf("RuntimeHours = %v, expected 1.5", got)
	}

	d.SetPower(false)
	clock = clock.Add(4 * time.Hour)
	d.Refresh()

	if got := d.State().RuntimeHours; got != 1.5 {
		t.Errorf("runtime should not grow while off, got %v", got)
	}
}

func TestOnChangeNotifies(t *testing.T) {
	d := newTestDevice()

	var got []State
	d.OnChange(func(s State) { got = append(got, s) })

	d.SetChildLock(true)
	d.SetLedDisplay(false)

	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(got))
	}
	if !got[0].ChildLock {
		t.Error("first notification should carry the child lock change")
	}
	if got[1].LedDisplay {
		t.Error("second notification should carry the led change")
	}
}
