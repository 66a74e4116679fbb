package glowmarkt

// Resource classifiers for energy data
const (
	ClassifierElectricityConsumption = "electricity.consumption"
	ClassifierElectricityCost        = "electricity.consumption.cost"
	ClassifierGasConsumption         = "gas.consumption"
	ClassifierGasCost                = "gas.consumption.cost"
)

// Aggregation periods accepted by the readings endpoint
const (
	PeriodMinute = "PT1M"
	PeriodDay    = "P1D"
	PeriodWeek   = "P1W"
	PeriodMonth  = "P1M"
)

const FunctionSum = "sum"

// VirtualEntity is one smart meter account object. It may expose several
// resources (consumption and cost streams per energy type).
type VirtualEntity struct {
	VeId       string `json:"veId"`
	Name       string `json:"name"`
	PostalCode string `json:"postalCode"`
}

// Resource is a single measurable stream under a virtual entity.
type Resource struct {
	ResourceId string `json:"resourceId"`
	Classifier string `json:"classifier"`
	Name       string `json:"name"`
	BaseUnit   string `json:"baseUnit"`
}

type resourcesResponse struct {
	Resources []Resource `json:"resources"`
}

// ReadingSeries is the raw readings payload: a list of [timestamp, value]
// pairs. Values can be null and pairs can be malformed, consumers must skip
// those entries.
type ReadingSeries struct {
	Units string       `json:"units"`
	Data  [][]*float64 `json:"data"`
}

type TariffRates struct {
	Rate           *float64 `json:"rate"`
	StandingCharge *float64 `json:"standingCharge"`
}

type TariffEntry struct {
	CurrentRates TariffRates `json:"currentRates"`
}

// Tariff holds the tariff history for a resource, most recent entry first.
type Tariff struct {
	Data []TariffEntry `json:"data"`
}

type authResponse struct {
	Valid bool   `json:"valid"`
	Token string `json:"token"`
}

// MeterData is the per-virtual-entity aggregation produced by GetData.
// Readings are keyed "<classifier>_<window>", current readings and tariffs
// by classifier.
type MeterData struct {
	VirtualEntity VirtualEntity
	Resources     []Resource
	Readings      map[string]ReadingSeries
	Current       map[string]ReadingSeries
	Tariffs       map[string]Tariff
}

// RawData is the untransformed result of one full fetch cycle.
type RawData struct {
	VirtualEntities []VirtualEntity
	Meters          map[string]*MeterData
}
