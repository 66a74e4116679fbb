package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// MeterHistoryRow is one (meter, energy type) record from a completed poll
// cycle. Nullable columns mirror readings the API did not return.
type MeterHistoryRow struct {
	FetchedAt      time.Time `json:"fetched_at"`
	MeterId        string    `json:"meter_id"`
	EnergyType     string    `json:"energy_type"`
	UsageToday     *float64  `json:"usage_today"`
	UsageWeek      *float64  `json:"usage_week"`
	UsageMonth     *float64  `json:"usage_month"`
	CostToday      *float64  `json:"cost_today"`
	CostWeek       *float64  `json:"cost_week"`
	CostMonth      *float64  `json:"cost_month"`
	Rate           *float64  `json:"rate"`
	StandingCharge *float64  `json:"standing_charge"`
}

func (d *Database) SaveMeterHistory(ctx context.Context, rows []MeterHistoryRow) error {
	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting meter history transaction: %w", err)
	}

	for _, r := range rows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO meter_history (
				fetched_at, meter_id, energy_type,
				usage_today, usage_week, usage_month,
				cost_today, cost_week, cost_month,
				rate, standing_charge)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.FetchedAt.UTC().Format(time.RFC3339),
			r.MeterId,
			r.EnergyType,
			nullFloat(r.UsageToday), nullFloat(r.UsageWeek), nullFloat(r.UsageMonth),
			nullFloat(r.CostToday), nullFloat(r.CostWeek), nullFloat(r.CostMonth),
			nullFloat(r.Rate), nullFloat(r.StandingCharge))
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("rollback meter history: %w", rbErr)
			}
			return fmt.Errorf("saving meter history for %s: %w", r.MeterId, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing meter history: %w", err)
	}
	return nil
}

func (d *Database) GetMeterHistory(ctx context.Context, meterId string, energyType string, limit int) ([]MeterHistoryRow, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := d.read.QueryContext(ctx, `
		SELECT fetched_at, meter_id, energy_type,
			usage_today, usage_week, usage_month,
			cost_today, cost_week, cost_month,
			rate, standing_charge
		FROM meter_history
		WHERE meter_id = ? AND energy_type = ?
		ORDER BY id DESC
		LIMIT ?`,
		meterId, energyType, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching meter history: %w", err)
	}
	defer rows.Close()

	var result []MeterHistoryRow
	for rows.Next() {
		var r MeterHistoryRow
		var ts string
		var ut, uw, um, ct, cw, cm, rate, sc sql.NullFloat64
		if err := rows.Scan(&ts, &r.MeterId, &r.EnergyType, &ut, &uw, &um, &ct, &cw, &cm, &rate, &sc); err != nil {
			return nil, err
		}
		r.FetchedAt, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing fetched_at: %w", err)
		}
		r.UsageToday = fromNullFloat(ut)
		r.UsageWeek = fromNullFloat(uw)
		r.UsageMonth = fromNullFloat(um)
		r.CostToday = fromNullFloat(ct)
		r.CostWeek = fromNullFloat(cw)
		r.CostMonth = fromNullFloat(cm)
		r.Rate = fromNullFloat(rate)
		r.StandingCharge = fromNullFloat(sc)
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading meter history rows: %w", err)
	}

	return result, nil
}

func (d *Database) PurgeMeterHistory(ctx context.Context, retentionDays int) error {
	d.logger.Debug("purging meter history")
	before := time.Now().Add(-24 * time.Hour * time.Duration(retentionDays)).UTC().Format(time.RFC3339)
	res, err := d.write.ExecContext(ctx, `DELETE FROM meter_history WHERE fetched_at < ?`, before)
	if err != nil {
		return fmt.Errorf("purging meter_history: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil {
		d.logger.Debug(fmt.Sprintf("purged %d rows from meter_history", rows))
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func fromNullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
