package coordinator

import (
	"strings"
	"time"
)

// EnergyTotals holds the per-energy-type values of one poll cycle. Nil means
// the API had no data for that field, entities render it as unknown.
type EnergyTotals struct {
	PowerCurrent   *float64 `json:"power_current"`
	UsageToday     *float64 `json:"usage_today"`
	UsageWeek      *float64 `json:"usage_week"`
	UsageMonth     *float64 `json:"usage_month"`
	CostToday      *float64 `json:"cost_today"`
	CostWeek       *float64 `json:"cost_week"`
	CostMonth      *float64 `json:"cost_month"`
	Rate           *float64 `json:"rate"`
	StandingCharge *float64 `json:"standing_charge"`
}

// MeterSnapshot is the flattened, entity-friendly record for one meter.
// Monetary values are in GBP, converted exactly once during the transform.
type MeterSnapshot struct {
	MeterId        string       `json:"meter_id"`
	Name           string       `json:"name"`
	PostalCode     string       `json:"postal_code,omitempty"`
	Model          string       `json:"model"`
	HasElectricity bool         `json:"has_electricity"`
	HasGas         bool         `json:"has_gas"`
	LastUpdate     time.Time    `json:"last_update"`
	Electricity    EnergyTotals `json:"electricity"`
	Gas            EnergyTotals `json:"gas"`
}

// Value resolves a flat data key ("electricity_usage_today", "gas_rate", ...)
// against the snapshot. Entities address their value exclusively through
// these keys.
func (m *MeterSnapshot) Value(key string) (*float64, bool) {
	totals := &m.Electricity
	rest, ok := strings.CutPrefix(key, "electricity_")
	if !ok {
		if rest, ok = strings.CutPrefix(key, "gas_"); !ok {
			return nil, false
		}
		totals = &m.Gas
	}

	switch rest {
	case "power_current":
		return totals.PowerCurrent, true
	case "usage_today":
		return totals.UsageToday, true
	case "usage_week":
		return totals.UsageWeek, true
	case "usage_month":
		return totals.UsageMonth, true
	case "cost_today":
		return totals.CostToday, true
	case "cost_week":
		return totals.CostWeek, true
	case "cost_month":
		return totals.CostMonth, true
	case "rate":
		return totals.Rate, true
	case "standing_charge":
		return totals.StandingCharge, true
	default:
		return nil, false
	}
}

// HasEnergyType reports whether the meter carries the given energy type
// ("electricity" or "gas").
func (m *MeterSnapshot) HasEnergyType(energyType string) bool {
	switch energyType {
	case "electricity":
		return m.HasElectricity
	case "gas":
		return m.HasGas
	default:
		return false
	}
}

// Snapshot is the single source of truth consumed by all entities. It is
// rebuilt wholesale on every poll cycle and swapped in by reference, readers
// never see a partially-built one.
type Snapshot struct {
	FetchedAt time.Time                 `json:"fetched_at"`
	Meters    map[string]*MeterSnapshot `json:"meters"`
}
