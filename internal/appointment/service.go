package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/blood-donation-scheduling/internal/apperr"
	"github.com/hackgods/blood-donation-scheduling/internal/config"
	"github.com/hackgods/blood-donation-scheduling/internal/obs"
	redisclient "github.com/hackgods/blood-donation-scheduling/internal/redis"
)

const (
	EventAppointmentScheduled = "APPOINTMENT_SCHEDULED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentNoShow    = "APPOINTMENT_NO_SHOW"
	EventDonationCompleted    = "DONATION_COMPLETED"
	EventHospitalToggled      = "HOSPITAL_ACTIVE_CHANGED"
	EventDonorsRequested      = "DONORS_REQUESTED"

	scheduledNote = "Scheduled via dashboard"
)

var (
	ErrBloodTypeMissing     = fmt.Errorf("%w: donor profile has no valid blood type", apperr.ErrValidation)
	ErrHospitalNotAccepting = fmt.Errorf("%w: hospital is not accepting appointments", apperr.ErrConflict)
	ErrInvalidWindow        = fmt.Errorf("%w: time window does not belong to an active slot of this hospital", apperr.ErrNotFound)
	ErrScheduleInProgress   = fmt.Errorf("%w: another scheduling request for this donor is in progress, please retry", apperr.ErrConflict)
	ErrInvalidUnits         = fmt.Errorf("%w: units must be a positive integer", apperr.ErrValidation)
	ErrNotOwner             = fmt.Errorf("%w: appointment belongs to another donor", apperr.ErrForbidden)
	ErrOtherHospital        = fmt.Errorf("%w: appointment belongs to another hospital", apperr.ErrForbidden)
)

// Notifier delivers a donation request to a set of donor emails.
type Notifier interface {
	Send(ctx context.Context, emails []string, subject, message string) error
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	cfg      config.Config
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, opts ...Option) *Service {
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	s := &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// dependency wraps err as a backing-service failure unless it already carries a kind.
func dependency(op string, err error) error {
	if apperr.Kind(err) != nil {
		return err
	}
	return apperr.Dependency(op, err)
}

// ScheduleAppointment books the donor into the next occurrence of the window.
// A per-donor lock narrows the race between the existence check and the
// insert; the partial unique index on scheduled appointments is what
// guarantees a donor never holds two.
func (s *Service) ScheduleAppointment(ctx context.Context, donorID, hospitalID, windowID uuid.UUID) (*Appointment, error) {
	donor, err := s.repo.GetDonorByID(ctx, donorID)
	if err != nil {
		return nil, dependency("load donor", err)
	}
	if !ValidBloodType(donor.BloodType) {
		return nil, ErrBloodTypeMissing
	}

	hospital, err := s.repo.GetHospitalByID(ctx, hospitalID)
	if err != nil {
		return nil, dependency("load hospital", err)
	}
	if !hospital.IsActive {
		return nil, ErrHospitalNotAccepting
	}

	window, err := s.repo.GetTimeWindowByID(ctx, windowID)
	if err != nil {
		if errors.Is(err, ErrTimeWindowNotFound) {
			return nil, ErrInvalidWindow
		}
		return nil, dependency("load time window", err)
	}
	if window.HospitalID != hospitalID || !window.IsActive {
		return nil, ErrInvalidWindow
	}

	scheduledAt, err := NextOccurrence(s.now(), window.DayOfWeek, window.StartTime, s.cfg.Timezone)
	if err != nil {
		return nil, apperr.Validation("time window %s: %v", windowID, err)
	}

	var created *Appointment

	err = s.locker.WithLock(ctx, redisclient.DonorKey(donorID), func(lockCtx context.Context) error {
		existing, err := s.repo.GetScheduledForDonor(lockCtx, donorID)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return dependency("check scheduled appointment", err)
		}
		if existing != nil {
			return ErrAlreadyScheduled
		}

		appt, err := s.repo.CreateScheduledAppointment(lockCtx, NewAppointment{
			DonorID:     donorID,
			HospitalID:  hospitalID,
			BloodType:   donor.BloodType,
			ScheduledAt: scheduledAt,
			Notes:       scheduledNote,
		})
		if err != nil {
			return dependency("create appointment", err)
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentScheduled, map[string]any{
			"donor_id":     donorID.String(),
			"hospital_id":  hospitalID.String(),
			"window_id":    windowID.String(),
			"scheduled_at": scheduledAt,
		})
		return nil
	})

	if err != nil {
		switch {
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			obs.ScheduleConflicts.Inc()
			return nil, ErrScheduleInProgress
		case errors.Is(err, ErrAlreadyScheduled):
			obs.ScheduleConflicts.Inc()
			return nil, err
		}
		return nil, dependency("schedule appointment", err)
	}

	obs.AppointmentTransitions.WithLabelValues(string(StatusScheduled)).Inc()
	return created, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, dependency("load appointment", err)
	}
	return appt, nil
}

// CancelAppointment moves a scheduled appointment to cancelled.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCancelled, map[string]any{})
}

// CancelForDonor cancels id only if donorID owns it.
func (s *Service) CancelForDonor(ctx context.Context, donorID, id uuid.UUID) (*Appointment, error) {
	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.DonorID != donorID {
		return nil, ErrNotOwner
	}
	return s.transition(ctx, id, StatusCancelled, map[string]any{"by": "donor"})
}

// SetStatus applies an agent-chosen terminal status other than completed,
// which must go through CompleteDonation to record units.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	switch to {
	case StatusCancelled, StatusNoShow:
	case StatusCompleted:
		return nil, apperr.Validation("completing an appointment requires the donated units")
	default:
		return nil, apperr.Validation("status %q cannot be set directly", to)
	}
	return s.transition(ctx, id, to, map[string]any{"by": "agent"})
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to AppointmentStatus, payload map[string]any) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, dependency("load appointment", err)
	}
	if appt.Status != StatusScheduled {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, StatusScheduled, to)
	if err != nil {
		// The guarded update found no scheduled row: someone else moved it first.
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, dependency("update appointment status", err)
	}

	obs.AppointmentTransitions.WithLabelValues(string(to)).Inc()
	s.logEvent(ctx, id, eventFor(to), payload)
	return updated, nil
}

func eventFor(status AppointmentStatus) string {
	switch status {
	case StatusNoShow:
		return EventAppointmentNoShow
	case StatusCompleted:
		return EventDonationCompleted
	}
	return EventAppointmentCancelled
}

// CompleteDonation marks the appointment completed, records the donation and
// increments the hospital inventory counter in a single transaction.
func (s *Service) CompleteDonation(ctx context.Context, id uuid.UUID, units int) (*Donation, error) {
	if units <= 0 {
		return nil, ErrInvalidUnits
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, dependency("load appointment", err)
	}
	if appt.Status != StatusScheduled {
		return nil, ErrInvalidTransition
	}

	donation, err := s.repo.CompleteAppointment(ctx, id, units, s.now().UTC())
	if err != nil {
		return nil, dependency("complete donation", err)
	}

	obs.AppointmentTransitions.WithLabelValues(string(StatusCompleted)).Inc()
	obs.DonationUnits.WithLabelValues(donation.BloodType).Add(float64(units))
	s.logEvent(ctx, id, EventDonationCompleted, map[string]any{
		"donation_id": donation.ID.String(),
		"hospital_id": donation.HospitalID.String(),
		"blood_type":  donation.BloodType,
		"units":       units,
	})
	return donation, nil
}

// MarkOverdueNoShows is called by the worker periodically. It returns how many
// appointments it moved to no_show.
func (s *Service) MarkOverdueNoShows(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.NoShowGrace)
	overdue, err := s.repo.FindOverdueScheduled(ctx, cutoff)
	if err != nil {
		return 0, dependency("find overdue appointments", err)
	}

	marked := 0
	for _, appt := range overdue {
		_, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusScheduled, StatusNoShow)
		if err != nil {
			if !errors.Is(err, ErrAppointmentNotFound) {
				s.logger.Warn("mark no-show failed", zap.Stringer("appointment_id", appt.ID), zap.Error(err))
			}
			continue
		}
		marked++
		obs.AppointmentTransitions.WithLabelValues(string(StatusNoShow)).Inc()
		s.logEvent(ctx, appt.ID, EventAppointmentNoShow, map[string]any{
			"reason":       "worker",
			"scheduled_at": appt.ScheduledAt,
		})
	}

	return marked, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	ev := EventLog{
		EventType: eventType,
		Payload:   data,
		CreatedAt: s.now(),
	}
	if appointmentID != uuid.Nil {
		id := appointmentID
		ev.AppointmentID = &id
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("insert event log",
			zap.String("event", eventType),
			zap.Stringer("appointment_id", appointmentID),
			zap.Error(err),
		)
	}
}
