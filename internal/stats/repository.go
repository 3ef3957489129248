package stats

import (
	"context"
	"time"

	"github.com/hackgods/blood-donation-scheduling/internal/db"
)

type Repository interface {
	Counters(ctx context.Context, monthStart, activeSince time.Time) (Counters, error)
	InventoryRows(ctx context.Context) ([]InventoryRow, error)
	Upcoming(ctx context.Context, from time.Time, limit int) ([]UpcomingAppointment, error)
}

type PgRepository struct {
	pool db.Querier
}

func NewPgRepository(pool db.Querier) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Counters(ctx context.Context, monthStart, activeSince time.Time) (Counters, error) {
	var c Counters
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM user_roles WHERE role = 'donor'),
			(SELECT count(DISTINCT donor_id) FROM donations WHERE donation_date >= $2),
			(SELECT count(*) FROM donations),
			(SELECT count(*) FROM donations WHERE donation_date >= $1)
	`, monthStart, activeSince).Scan(&c.TotalDonors, &c.ActiveDonors, &c.TotalDonations, &c.MonthlyDonations)
	return c, err
}

func (r *PgRepository) InventoryRows(ctx context.Context) ([]InventoryRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT hospital_id, blood_type, current_units, maximum_capacity
		FROM blood_inventory
		ORDER BY blood_type
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InventoryRow
	for rows.Next() {
		var row InventoryRow
		if err := rows.Scan(&row.HospitalID, &row.BloodType, &row.CurrentUnits, &row.Capacity); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *PgRepository) Upcoming(ctx context.Context, from time.Time, limit int) ([]UpcomingAppointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.donor_id, a.blood_type, a.scheduled_at, h.name, h.address
		FROM appointments a
		JOIN hospitals h ON h.id = a.hospital_id
		WHERE a.status = 'scheduled'
		  AND a.scheduled_at >= $1
		ORDER BY a.scheduled_at
		LIMIT $2
	`, from, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []UpcomingAppointment{}
	for rows.Next() {
		var u UpcomingAppointment
		if err := rows.Scan(&u.ID, &u.DonorID, &u.BloodType, &u.ScheduledAt, &u.HospitalName, &u.HospitalAddress); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
