package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/aurora2mqtt/internal/core/domain"
)

const readingColumns = `cycle_id, captured_at, power_output, voltage_1, current_1, voltage_2, current_2,
	temperature_1, temperature_2, grid_voltage, peak_power_today,
	energy_today, energy_week, energy_month, energy_year, energy_total, efficiency`

type ReadingRepo struct {
	db *sql.DB
}

func NewReadingRepo(db *sql.DB) *ReadingRepo {
	return &ReadingRepo{db: db}
}

func (r *ReadingRepo) Store(ctx context.Context, reading domain.Reading) error {
	var efficiency any
	if reading.HasEfficiency() {
		efficiency = *reading.EfficiencyPercent
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO readings(`+readingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, reading.CycleId, toUnixMillis(reading.Timestamp),
		reading.PowerOutput, reading.Voltage1, reading.Current1, reading.Voltage2, reading.Current2,
		reading.Temperature1, reading.Temperature2, reading.GridVoltage, reading.PeakPowerToday,
		reading.EnergyToday, reading.EnergyWeek, reading.EnergyMonth, reading.EnergyYear, reading.EnergyTotal,
		efficiency)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// ListSince returns the readings captured at or after since, oldest first.
func (r *ReadingRepo) ListSince(ctx context.Context, since time.Time) ([]domain.Reading, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+readingColumns+`
		FROM readings
		WHERE captured_at >= ?
		ORDER BY captured_at ASC, id ASC
	`, toUnixMillis(since))
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	var out []domain.Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w", err)
	}
	return out, nil
}

// Latest returns the most recent reading, or nil when the table is empty.
func (r *ReadingRepo) Latest(ctx context.Context) (*domain.Reading, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+readingColumns+`
		FROM readings
		ORDER BY captured_at DESC, id DESC
		LIMIT 1
	`)
	reading, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reading, nil
}

func (r *ReadingRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM readings WHERE captured_at < ?`, toUnixMillis(before))
	if err != nil {
		return 0, fmt.Errorf("delete readings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete readings: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReading(s scanner) (domain.Reading, error) {
	var (
		reading    domain.Reading
		capturedMs int64
		efficiency sql.NullFloat64
	)
	err := s.Scan(&reading.CycleId, &capturedMs,
		&reading.PowerOutput, &reading.Voltage1, &reading.Current1, &reading.Voltage2, &reading.Current2,
		&reading.Temperature1, &reading.Temperature2, &reading.GridVoltage, &reading.PeakPowerToday,
		&reading.EnergyToday, &reading.EnergyWeek, &reading.EnergyMonth, &reading.EnergyYear, &reading.EnergyTotal,
		&efficiency)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reading{}, err
	}
	if err != nil {
		return domain.Reading{}, fmt.Errorf("scan reading: %w", err)
	}
	reading.Timestamp = fromUnixMillis(capturedMs)
	if efficiency.Valid {
		value := efficiency.Float64
		reading.EfficiencyPercent = &value
	}
	return reading, nil
}
