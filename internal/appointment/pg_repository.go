package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/blood-donation-scheduling/internal/db"
)

const (
	constraintOneScheduled    = "appointments_one_scheduled_per_donor"
	constraintDonationPerAppt = "donations_appointment_id_key"
	appointmentColumns        = `id, donor_id, hospital_id, blood_type, scheduled_at, status, COALESCE(notes, ''), created_at, updated_at`
	appointmentDetailColumns  = `a.id, a.donor_id, a.hospital_id, a.blood_type, a.scheduled_at, a.status, COALESCE(a.notes, ''), a.created_at, a.updated_at, h.name, h.address, COALESCE(p.first_name || ' ' || p.last_name, ''), COALESCE(p.phone, '')`
	donationColumns           = `id, appointment_id, donor_id, hospital_id, blood_type, units, status, donation_date`
	hospitalColumns           = `id, name, address, COALESCE(phone, ''), COALESCE(email, ''), is_active, created_at`
	timeWindowColumns         = `id, hospital_id, day_of_week, start_time::text, end_time::text, is_active`
	inventoryColumns          = `hospital_id, blood_type, current_units, maximum_capacity, minimum_threshold, last_updated`
)

type PgRepository struct {
	pool db.Querier
}

func NewPgRepository(pool db.Querier) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDonor(row pgx.Row) (*Donor, error) {
	var d Donor
	err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &d.Email, &d.Phone, &d.BloodType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDonorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanHospital(row pgx.Row) (*Hospital, error) {
	var h Hospital
	err := row.Scan(&h.ID, &h.Name, &h.Address, &h.Phone, &h.Email, &h.IsActive, &h.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHospitalNotFound
		}
		return nil, err
	}
	return &h, nil
}

func scanTimeWindow(row pgx.Row) (*TimeWindow, error) {
	var w TimeWindow
	err := row.Scan(&w.ID, &w.HospitalID, &w.DayOfWeek, &w.StartTime, &w.EndTime, &w.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTimeWindowNotFound
		}
		return nil, err
	}
	return &w, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.DonorID,
		&a.HospitalID,
		&a.BloodType,
		&a.ScheduledAt,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanAppointmentDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	err := row.Scan(
		&d.ID,
		&d.DonorID,
		&d.HospitalID,
		&d.BloodType,
		&d.ScheduledAt,
		&d.Status,
		&d.Notes,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.HospitalName,
		&d.HospitalAddress,
		&d.DonorName,
		&d.DonorPhone,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDonation(row pgx.Row) (*Donation, error) {
	var d Donation
	err := row.Scan(&d.ID, &d.AppointmentID, &d.DonorID, &d.HospitalID, &d.BloodType, &d.Units, &d.Status, &d.DonationDate)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanInventory(row pgx.Row) (*InventoryCounter, error) {
	var c InventoryCounter
	err := row.Scan(&c.HospitalID, &c.BloodType, &c.CurrentUnits, &c.Capacity, &c.Threshold, &c.LastUpdated)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// collect drains rows through scan; it closes rows.
func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	var result []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Interface methods

func (r *PgRepository) GetDonorByID(ctx context.Context, id uuid.UUID) (*Donor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(blood_type, '')
		FROM profiles
		WHERE id = $1
	`, id)
	return scanDonor(row)
}

func (r *PgRepository) GetHospitalByID(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+hospitalColumns+` FROM hospitals WHERE id = $1`, id)
	return scanHospital(row)
}

func (r *PgRepository) ListActiveHospitals(ctx context.Context) ([]Hospital, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+hospitalColumns+`
		FROM hospitals
		WHERE is_active
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanHospital)
}

func (r *PgRepository) SetHospitalActive(ctx context.Context, id uuid.UUID, active bool) (*Hospital, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE hospitals
		SET is_active = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+hospitalColumns, id, active)
	return scanHospital(row)
}

func (r *PgRepository) GetTimeWindowByID(ctx context.Context, id uuid.UUID) (*TimeWindow, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+timeWindowColumns+` FROM hospital_time_windows WHERE id = $1`, id)
	return scanTimeWindow(row)
}

func (r *PgRepository) ListActiveTimeWindows(ctx context.Context, hospitalID uuid.UUID) ([]TimeWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+timeWindowColumns+`
		FROM hospital_time_windows
		WHERE hospital_id = $1 AND is_active
		ORDER BY day_of_week, start_time
	`, hospitalID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTimeWindow)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetScheduledForDonor(ctx context.Context, donorID uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE donor_id = $1 AND status = 'scheduled'
	`, donorID)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByDonor(ctx context.Context, donorID uuid.UUID, statuses []AppointmentStatus) ([]AppointmentDetail, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentDetailColumns+`
		FROM appointments a
		JOIN hospitals h ON h.id = a.hospital_id
		LEFT JOIN profiles p ON p.id = a.donor_id
		WHERE a.donor_id = $1
		  AND a.status = ANY($2)
		ORDER BY a.scheduled_at DESC
	`, donorID, names)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAppointmentDetail)
}

func (r *PgRepository) ListOpenAppointmentsByHospital(ctx context.Context, hospitalID uuid.UUID) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentDetailColumns+`
		FROM appointments a
		JOIN hospitals h ON h.id = a.hospital_id
		LEFT JOIN profiles p ON p.id = a.donor_id
		WHERE a.hospital_id = $1
		  AND a.status <> 'completed'
		ORDER BY a.scheduled_at
	`, hospitalID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAppointmentDetail)
}

func (r *PgRepository) CreateScheduledAppointment(ctx context.Context, in NewAppointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, donor_id, hospital_id, blood_type, scheduled_at, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'scheduled', $6, now(), now())
		RETURNING `+appointmentColumns,
		uuid.New(), in.DonorID, in.HospitalID, in.BloodType, in.ScheduledAt, in.Notes)

	a, err := scanAppointment(row)
	if err != nil {
		if db.IsUniqueViolation(err, constraintOneScheduled) {
			return nil, ErrAlreadyScheduled
		}
		return nil, err
	}
	return a, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) CompleteAppointment(ctx context.Context, id uuid.UUID, units int, at time.Time) (*Donation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin completion: %w", err)
	}
	// No-op once committed.
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		donorID    uuid.UUID
		hospitalID uuid.UUID
		bloodType  string
	)
	err = tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'completed',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'scheduled'
		RETURNING donor_id, hospital_id, blood_type
	`, id).Scan(&donorID, &hospitalID, &bloodType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("mark appointment completed: %w", err)
	}

	donation, err := scanDonation(tx.QueryRow(ctx, `
		INSERT INTO donations (id, appointment_id, donor_id, hospital_id, blood_type, units, status, donation_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'completed', $7, now())
		RETURNING `+donationColumns,
		uuid.New(), id, donorID, hospitalID, bloodType, units, at))
	if err != nil {
		if db.IsUniqueViolation(err, constraintDonationPerAppt) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("insert donation: %w", err)
	}

	if _, err := tx.Exec(ctx, `SELECT increment_blood_units($1, $2, $3)`, hospitalID, bloodType, units); err != nil {
		return nil, fmt.Errorf("increment inventory: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit completion: %w", err)
	}
	return donation, nil
}

func (r *PgRepository) FindOverdueScheduled(ctx context.Context, before time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'scheduled'
		  AND scheduled_at < $1
		ORDER BY scheduled_at
	`, before)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAppointment)
}

func (r *PgRepository) ListCompletedDonationsByDonor(ctx context.Context, donorID uuid.UUID) ([]Donation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+donationColumns+`
		FROM donations
		WHERE donor_id = $1 AND status = 'completed'
		ORDER BY donation_date DESC
	`, donorID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDonation)
}

func (r *PgRepository) ListDonationsByHospital(ctx context.Context, hospitalID uuid.UUID, bloodType string) ([]Donation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+donationColumns+`
		FROM donations
		WHERE hospital_id = $1
		  AND ($2 = '' OR blood_type = $2)
		ORDER BY donation_date DESC
	`, hospitalID, bloodType)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDonation)
}

func (r *PgRepository) ListInventory(ctx context.Context, hospitalID uuid.UUID) ([]InventoryCounter, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+inventoryColumns+`
		FROM blood_inventory
		WHERE hospital_id = $1
		ORDER BY blood_type
	`, hospitalID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanInventory)
}

func (r *PgRepository) DonorEmails(ctx context.Context, hospitalID uuid.UUID, bloodType string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT p.email
		FROM donations d
		JOIN profiles p ON p.id = d.donor_id
		WHERE d.hospital_id = $1
		  AND d.blood_type = $2
		  AND COALESCE(p.email, '') <> ''
		ORDER BY p.email
	`, hospitalID, bloodType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return emails, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
