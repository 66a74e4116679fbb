package coordinator

import (
	"strings"
	"time"

	"github.com/angas/glowbridge/convert"
	"github.com/angas/glowbridge/glowmarkt"
)

// NewSnapshot builds a snapshot from a raw fetch result, outside of the poll
// loop. Used by the one-shot fetch tool.
func NewSnapshot(raw *glowmarkt.RawData, fetchedAt time.Time) *Snapshot {
	return transform(raw, fetchedAt)
}

// transform flattens a raw fetch result into the snapshot entities read.
// This is the only place pence become GBP: usage rounds to 3 decimals, money
// to 2, tariff rates to 4.
func transform(raw *glowmarkt.RawData, fetchedAt time.Time) *Snapshot {
	snap := &Snapshot{
		FetchedAt: fetchedAt,
		Meters:    make(map[string]*MeterSnapshot, len(raw.Meters)),
	}

	for meterId, md := range raw.Meters {
		hasElectricity := false
		hasGas := false
		for _, res := range md.Resources {
			if strings.HasPrefix(res.Classifier, "electricity") {
				hasElectricity = true
			}
			if strings.HasPrefix(res.Classifier, "gas") {
				hasGas = true
			}
		}

		var model string
		switch {
		case hasElectricity && hasGas:
			model = "Electricity & Gas Smart Meter"
		case hasElectricity:
			model = "Electricity Smart Meter"
		case hasGas:
			model = "Gas Smart Meter"
		default:
			model = "Smart Meter"
		}

		name := md.VirtualEntity.Name
		if name == "" {
			name = "Smart Meter"
		}

		snap.Meters[meterId] = &MeterSnapshot{
			MeterId:        meterId,
			Name:           name,
			PostalCode:     md.VirtualEntity.PostalCode,
			Model:          model,
			HasElectricity: hasElectricity,
			HasGas:         hasGas,
			LastUpdate:     fetchedAt,
			Electricity: energyTotals(md,
				glowmarkt.ClassifierElectricityConsumption,
				glowmarkt.ClassifierElectricityCost),
			Gas: energyTotals(md,
				glowmarkt.ClassifierGasConsumption,
				glowmarkt.ClassifierGasCost),
		}
	}

	return snap
}

func energyTotals(md *glowmarkt.MeterData, consumption, cost string) EnergyTotals {
	tariff := tariffFor(md, consumption)
	return EnergyTotals{
		PowerCurrent:   latestReadingValue(seriesFor(md.Current, consumption)),
		UsageToday:     extractReadingValue(seriesFor(md.Readings, consumption+"_today")),
		UsageWeek:      extractReadingValue(seriesFor(md.Readings, consumption+"_week")),
		UsageMonth:     extractReadingValue(seriesFor(md.Readings, consumption+"_month")),
		CostToday:      convert.PenceToGBP(extractReadingValue(seriesFor(md.Readings, cost+"_today"))),
		CostWeek:       convert.PenceToGBP(extractReadingValue(seriesFor(md.Readings, cost+"_week"))),
		CostMonth:      convert.PenceToGBP(extractReadingValue(seriesFor(md.Readings, cost+"_month"))),
		Rate:           extractTariffRate(tariff),
		StandingCharge: convert.PenceToGBP(extractStandingCharge(tariff)),
	}
}

func seriesFor(m map[string]glowmarkt.ReadingSeries, key string) *glowmarkt.ReadingSeries {
	if m == nil {
		return nil
	}
	if s, ok := m[key]; ok {
		return &s
	}
	return nil
}

func tariffFor(md *glowmarkt.MeterData, classifier string) *glowmarkt.Tariff {
	if md.Tariffs == nil {
		return nil
	}
	if t, ok := md.Tariffs[classifier]; ok {
		return &t
	}
	return nil
}

// extractReadingValue sums the valid [timestamp, value] pairs of a series,
// skipping null values and malformed pairs, rounded to 3 decimals. Nil when
// the series is absent or empty.
func extractReadingValue(series *glowmarkt.ReadingSeries) *float64 {
	if series == nil || len(series.Data) == 0 {
		return nil
	}

	total := 0.0
	for _, pair := range series.Data {
		if len(pair) < 2 || pair[1] == nil {
			continue
		}
		total += *pair[1]
	}

	rounded := convert.ThreeDecimals(total)
	return &rounded
}

// latestReadingValue returns the most recent valid value of a series,
// rounded to 3 decimals. Used for the short "current value" window.
func latestReadingValue(series *glowmarkt.ReadingSeries) *float64 {
	if series == nil {
		return nil
	}
	for i := len(series.Data) - 1; i >= 0; i-- {
		pair := series.Data[i]
		if len(pair) < 2 || pair[1] == nil {
			continue
		}
		rounded := convert.ThreeDecimals(*pair[1])
		return &rounded
	}
	return nil
}

// extractTariffRate takes the rate from the first (most recent) tariff
// entry, rounded to 4 decimals. The rate stays in pence per kWh.
func extractTariffRate(tariff *glowmarkt.Tariff) *float64 {
	if tariff == nil || len(tariff.Data) == 0 {
		return nil
	}
	return convert.RoundPtr(tariff.Data[0].CurrentRates.Rate, 4)
}

// extractStandingCharge takes the standing charge (pence per day) from the
// first tariff entry, rounded to 2 decimals. Conversion to GBP happens at
// assembly.
func extractStandingCharge(tariff *glowmarkt.Tariff) *float64 {
	if tariff == nil || len(tariff.Data) == 0 {
		return nil
	}
	return convert.RoundPtr(tariff.Data[0].CurrentRates.StandingCharge, 2)
}
