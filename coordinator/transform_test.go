package coordinator

import (
	"testing"
	"time"

	"github.com/angas/glowbridge/glowmarkt"
)

func f64(v float64) *float64 { return &v }

func TestExtractReadingValue(t *testing.T) {
	tests := []struct {
		name     string
		series   *glowmarkt.ReadingSeries
		expected *float64
	}{
		{
			name:     "absent series",
			series:   nil,
			expected: nil,
		},
		{
			name:     "empty series",
			series:   &glowmarkt.ReadingSeries{Data: [][]*float64{}},
			expected: nil,
		},
		{
			name: "sums valid pairs",
			series: &glowmarkt.ReadingSeries{Data: [][]*float64{
				{f64(1717200000), f64(1.5)},
				{f64(1717203600), f64(2.25)},
			}},
			expected: f64(3.75),
		},
		{
			name: "skips null values and malformed pairs",
			series: &glowmarkt.ReadingSeries{Data: [][]*float64{
				{f64(1717200000), f64(1.5)},
				{f64(1717203600), nil},
				{f64(1717207200)}, // malformed, only a timestamp
				{f64(1717210800), f64(2.0)},
			}},
			expected: f64(3.5),
		},
		{
			name: "order does not matter",
			series: &glowmarkt.ReadingSeries{Data: [][]*float64{
				{f64(1717210800), f64(2.0)},
				{f64(1717200000), f64(1.5)},
			}},
			expected: f64(3.5),
		},
		{
			name: "rounds to three decimals",
			series: &glowmarkt.ReadingSeries{Data: [][]*float64{
				{f64(1717200000), f64(1.00049)},
				{f64(1717203600), f64(2.0001)},
			}},
			expected: f64(3.001),
		},
		{
			name: "all nulls still counts as a total of zero",
			series: &glowmarkt.ReadingSeries{Data: [][]*float64{
				{f64(1717200000), nil},
			}},
			expected: f64(0),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractReadingValue(tt.series)
			assertFloatPtr(t, got, tt.expected)
		})
	}
}

func TestLatestReadingValue(t *testing.T) {
	series := &glowmarkt.ReadingSeries{Data: [][]*float64{
		{f64(1717200000), f64(0.5)},
		{f64(1717200060), f64(0.75)},
		{f64(1717200120), nil},
	}}
	got := latestReadingValue(series)
	assertFloatPtr(t, got, f64(0.75))

	if got := latestReadingValue(nil); got != nil {
		t.Errorf("latestReadingValue(nil) = %v, expected nil", *got)
	}
}

func TestExtractTariff(t *testing.T) {
	tariff := &glowmarkt.Tariff{Data: []glowmarkt.TariffEntry{
		{CurrentRates: glowmarkt.TariffRates{Rate: f64(15.2345), StandingCharge: f64(4567)}},
		{CurrentRates: glowmarkt.TariffRates{Rate: f64(99), StandingCharge: f64(99)}}, // older entry, ignored
	}}

	assertFloatPtr(t, extractTariffRate(tariff), f64(15.2345))
	assertFloatPtr(t, extractStandingCharge(tariff), f64(4567))

	if got := extractTariffRate(&glowmarkt.Tariff{}); got != nil {
		t.Errorf("expected nil rate for empty tariff history, got %v", *got)
	}
	if got := extractTariffRate(nil); got != nil {
		t.Errorf("expected nil rate for absent tariff, got %v", *got)
	}
}

func TestTransform(t *testing.T) {
	fetchedAt := time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)

	t.Run("electricity only meter", func(t *testing.T) {
		raw := &glowmarkt.RawData{Meters: map[string]*glowmarkt.MeterData{
			"ve-1": {
				VirtualEntity: glowmarkt.VirtualEntity{VeId: "ve-1", Name: "Home", PostalCode: "AB1 2CD"},
				Resources: []glowmarkt.Resource{
					{ResourceId: "r1", Classifier: "electricity.consumption"},
					{ResourceId: "r2", Classifier: "electricity.consumption.cost"},
				},
				Readings: map[string]glowmarkt.ReadingSeries{
					"electricity.consumption_today":      {Data: [][]*float64{{f64(1), f64(1.5)}, {f64(2), f64(2.5)}}},
					"electricity.consumption.cost_today": {Data: [][]*float64{{f64(1), f64(120)}, {f64(2), f64(130)}}},
				},
				Current: map[string]glowmarkt.ReadingSeries{
					"electricity.consumption": {Data: [][]*float64{{f64(1), f64(0.5)}, {f64(2), f64(0.8)}}},
				},
				Tariffs: map[string]glowmarkt.Tariff{
					"electricity.consumption": {Data: []glowmarkt.TariffEntry{
						{CurrentRates: glowmarkt.TariffRates{Rate: f64(28.123456), StandingCharge: f64(4567)}},
					}},
				},
			},
		}}

		snap := transform(raw, fetchedAt)
		if snap.FetchedAt != fetchedAt {
			t.Errorf("unexpected FetchedAt: %v", snap.FetchedAt)
		}

		m := snap.Meters["ve-1"]
		if m == nil {
			t.Fatal("missing meter ve-1")
		}
		if !m.HasElectricity || m.HasGas {
			t.Errorf("expected electricity only, got has_electricity=%v has_gas=%v", m.HasElectricity, m.HasGas)
		}
		if m.Model != "Electricity Smart Meter" {
			t.Errorf("unexpected model: %q", m.Model)
		}
		if m.Name != "Home" || m.PostalCode != "AB1 2CD" {
			t.Errorf("unexpected identity: %q %q", m.Name, m.PostalCode)
		}

		assertFloatPtr(t, m.Electricity.UsageToday, f64(4))
		assertFloatPtr(t, m.Electricity.CostToday, f64(2.5)) // 250 pence
		assertFloatPtr(t, m.Electricity.PowerCurrent, f64(0.8))
		assertFloatPtr(t, m.Electricity.Rate, f64(28.1235))
		assertFloatPtr(t, m.Electricity.StandingCharge, f64(45.67))

		// absent windows stay nil
		assertFloatPtr(t, m.Electricity.UsageWeek, nil)
		assertFloatPtr(t, m.Gas.UsageToday, nil)
		assertFloatPtr(t, m.Gas.Rate, nil)
	})

	t.Run("both energy types", func(t *testing.T) {
		raw := &glowmarkt.RawData{Meters: map[string]*glowmarkt.MeterData{
			"ve-2": {
				VirtualEntity: glowmarkt.VirtualEntity{VeId: "ve-2"},
				Resources: []glowmarkt.Resource{
					{ResourceId: "r1", Classifier: "electricity.consumption"},
					{ResourceId: "r3", Classifier: "gas.consumption"},
				},
			},
		}}

		m := transform(raw, fetchedAt).Meters["ve-2"]
		if m.Model != "Electricity & Gas Smart Meter" {
			t.Errorf("unexpected model: %q", m.Model)
		}
		if m.Name != "Smart Meter" {
			t.Errorf("expected fallback name, got %q", m.Name)
		}
	})

	t.Run("zero resources", func(t *testing.T) {
		raw := &glowmarkt.RawData{Meters: map[string]*glowmarkt.MeterData{
			"ve-3": {VirtualEntity: glowmarkt.VirtualEntity{VeId: "ve-3", Name: "Empty"}},
		}}

		m := transform(raw, fetchedAt).Meters["ve-3"]
		if m.HasElectricity || m.HasGas {
			t.Error("expected no energy types")
		}
		if m.Model != "Smart Meter" {
			t.Errorf("unexpected model: %q", m.Model)
		}
		for _, key := range []string{
			"electricity_usage_today", "electricity_cost_month", "electricity_rate",
			"gas_usage_week", "gas_standing_charge",
		} {
			v, ok := m.Value(key)
			if !ok {
				t.Errorf("unknown data key %q", key)
			}
			if v != nil {
				t.Errorf("expected nil for %q, got %v", key, *v)
			}
		}
	})

	t.Run("unknown classifier drives no flag", func(t *testing.T) {
		raw := &glowmarkt.RawData{Meters: map[string]*glowmarkt.MeterData{
			"ve-4": {
				VirtualEntity: glowmarkt.VirtualEntity{VeId: "ve-4"},
				Resources:     []glowmarkt.Resource{{ResourceId: "r9", Classifier: "water.consumption"}},
			},
		}}

		m := transform(raw, fetchedAt).Meters["ve-4"]
		if m.HasElectricity || m.HasGas {
			t.Error("water classifier must not set electricity or gas flags")
		}
	})
}

func TestMeterSnapshotValue(t *testing.T) {
	m := &MeterSnapshot{
		Electricity: EnergyTotals{UsageToday: f64(1.5), Rate: f64(28.1)},
		Gas:         EnergyTotals{CostMonth: f64(12.34)},
	}

	v, ok := m.Value("electricity_usage_today")
	if !ok || v == nil || *v != 1.5 {
		t.Errorf("electricity_usage_today = %v, %v", v, ok)
	}
	v, ok = m.Value("gas_cost_month")
	if !ok || v == nil || *v != 12.34 {
		t.Errorf("gas_cost_month = %v, %v", v, ok)
	}
	if _, ok := m.Value("water_usage_today"); ok {
		t.Error("unexpected data key accepted")
	}
	if _, ok := m.Value("electricity_bogus"); ok {
		t.Error("unexpected data key accepted")
	}
}

func assertFloatPtr(t *testing.T, got, expected *float64) {
	t.Helper()
	if expected == nil {
		if got != nil {
			t.Errorf("expected nil, got %v", *got)
		}
		return
	}
	if got == nil {
		t.Errorf("expected %v, got nil", *expected)
		return
	}
	if *got != *expected {
		t.Errorf("expected %v, got %v", *expected, *got)
	}
}
