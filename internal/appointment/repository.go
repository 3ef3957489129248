package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/blood-donation-scheduling/internal/apperr"
)

var (
	ErrDonorNotFound       = fmt.Errorf("%w: donor not found", apperr.ErrNotFound)
	ErrHospitalNotFound    = fmt.Errorf("%w: hospital not found", apperr.ErrNotFound)
	ErrTimeWindowNotFound  = fmt.Errorf("%w: time window not found", apperr.ErrNotFound)
	ErrAppointmentNotFound = fmt.Errorf("%w: appointment not found", apperr.ErrNotFound)

	// ErrAlreadyScheduled is also what the storage constraint on
	// (donor_id) WHERE status = 'scheduled' turns into.
	ErrAlreadyScheduled = fmt.Errorf("%w: donor already has a scheduled appointment", apperr.ErrConflict)
	// ErrInvalidTransition covers both a terminal current status and a
	// status that changed between the read and the guarded write.
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", apperr.ErrConflict)
)


// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetDonorByID(ctx context.Context, id uuid.UUID) (*Donor, error)
	GetHospitalByID(ctx context.Context, id uuid.UUID) (*Hospital, error)
	ListActiveHospitals(ctx context.Context) ([]Hospital, error)
	SetHospitalActive(ctx context.Context, id uuid.UUID, active bool) (*Hospital, error)

	GetTimeWindowByID(ctx context.Context, id uuid.UUID) (*TimeWindow, error)
	ListActiveTimeWindows(ctx context.Context, hospitalID uuid.UUID) ([]TimeWindow, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// GetScheduledForDonor returns ErrAppointmentNotFound when the donor has none.
	GetScheduledForDonor(ctx context.Context, donorID uuid.UUID) (*Appointment, error)
	ListAppointmentsByDonor(ctx context.Context, donorID uuid.UUID, statuses []AppointmentStatus) ([]AppointmentDetail, error)
	ListOpenAppointmentsByHospital(ctx context.Context, hospitalID uuid.UUID) ([]AppointmentDetail, error)

	// Creation and updates
	CreateScheduledAppointment(ctx context.Context, in NewAppointment) (*Appointment, error)
	// UpdateAppointmentStatus only writes when the current status equals from,
	// otherwise it returns ErrAppointmentNotFound.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	// CompleteAppointment moves a scheduled appointment to completed, records the
	// donation and adds units to the hospital counter as one unit of work.
	CompleteAppointment(ctx context.Context, id uuid.UUID, units int, at time.Time) (*Donation, error)

	// No-show worker
	FindOverdueScheduled(ctx context.Context, before time.Time) ([]Appointment, error)

	ListCompletedDonationsByDonor(ctx context.Context, donorID uuid.UUID) ([]Donation, error)
	ListDonationsByHospital(ctx context.Context, hospitalID uuid.UUID, bloodType string) ([]Donation, error)
	ListInventory(ctx context.Context, hospitalID uuid.UUID) ([]InventoryCounter, error)
	DonorEmails(ctx context.Context, hospitalID uuid.UUID, bloodType string) ([]string, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
