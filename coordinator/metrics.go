package coordinator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glowbridge_fetch_cycles_total",
		Help: "Number of completed fetch cycles by result.",
	}, []string{"result"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "glowbridge_fetch_duration_seconds",
		Help:    "Duration of a full fetch cycle.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	meterCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "glowbridge_meters",
		Help: "Number of meters in the last published snapshot.",
	})

	usageKwh = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "glowbridge_usage_kwh",
		Help: "Energy usage from the last snapshot in kWh.",
	}, []string{"meter", "energy", "window"})

	costGbp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "glowbridge_cost_gbp",
		Help: "Energy cost from the last snapshot in GBP.",
	}, []string{"meter", "energy", "window"})
)

func observeRefresh(result string, took time.Duration) {
	fetchCycles.WithLabelValues(result).Inc()
	fetchDuration.Observe(took.Seconds())
}

func updateMeterMetrics(snap *Snapshot) {
	meterCount.Set(float64(len(snap.Meters)))

	for meterId, m := range snap.Meters {
		setEnergyGauges(meterId, "electricity", m.Electricity)
		setEnergyGauges(meterId, "gas", m.Gas)
	}
}

func setEnergyGauges(meterId, energy string, totals EnergyTotals) {
	windows := map[string]struct{ usage, cost *float64 }{
		"today": {totals.UsageToday, totals.CostToday},
		"week":  {totals.UsageWeek, totals.CostWeek},
		"month": {totals.UsageMonth, totals.CostMonth},
	}
	for window, v := range windows {
		if v.usage != nil {
			usageKwh.WithLabelValues(meterId, energy, window).Set(*v.usage)
		}
		if v.cost != nil {
			costGbp.WithLabelValues(meterId, energy, window).Set(*v.cost)
		}
	}
}
