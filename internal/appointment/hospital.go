package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/blood-donation-scheduling/internal/apperr"
)

// View selects one partition of a hospital's open appointments.
type View string

const (
	ViewAll      View = ""
	ViewToday    View = "today"
	ViewUpcoming View = "upcoming"
	ViewOther    View = "other"

	DonationRequestSubject = "Blood Donation Request"
)

var (
	ErrNoRecipients     = fmt.Errorf("%w: no past donors of this blood type", apperr.ErrNotFound)
	ErrRequestsDisabled = fmt.Errorf("%w: donor notifications are not configured", apperr.ErrDependency)
)

func ParseView(raw string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(raw))); v {
	case ViewAll, ViewToday, ViewUpcoming, ViewOther:
		return v, nil
	}
	return "", apperr.Validation("unknown view %q", raw)
}

// Partitions groups a hospital's non-completed appointments for the agent dashboard.
type Partitions struct {
	Today    []AppointmentDetail
	Upcoming []AppointmentDetail
	Other    []AppointmentDetail
}

// Partition splits appts relative to now in loc. Today holds everything on the
// current calendar day whatever its status; Upcoming holds scheduled
// appointments after now; Other holds the rest that is not completed.
// An appointment can be in both Today and Upcoming.
func Partition(appts []AppointmentDetail, now time.Time, loc *time.Location) Partitions {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	p := Partitions{
		Today:    []AppointmentDetail{},
		Upcoming: []AppointmentDetail{},
		Other:    []AppointmentDetail{},
	}
	for _, a := range appts {
		if a.Status == StatusCompleted {
			continue
		}
		if !a.ScheduledAt.Before(dayStart) && a.ScheduledAt.Before(dayEnd) {
			p.Today = append(p.Today, a)
		}
		if a.Status == StatusScheduled && a.ScheduledAt.After(now) {
			p.Upcoming = append(p.Upcoming, a)
		} else {
			p.Other = append(p.Other, a)
		}
	}
	return p
}

func (s *Service) ListHospitals(ctx context.Context) ([]Hospital, error) {
	hs, err := s.repo.ListActiveHospitals(ctx)
	if err != nil {
		return nil, dependency("list hospitals", err)
	}
	return hs, nil
}

func (s *Service) GetHospital(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	h, err := s.repo.GetHospitalByID(ctx, id)
	if err != nil {
		return nil, dependency("load hospital", err)
	}
	return h, nil
}

// TimeWindows lists the active weekly windows of an active hospital.
func (s *Service) TimeWindows(ctx context.Context, hospitalID uuid.UUID) ([]TimeWindow, error) {
	h, err := s.GetHospital(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	if !h.IsActive {
		return nil, ErrHospitalNotAccepting
	}
	ws, err := s.repo.ListActiveTimeWindows(ctx, hospitalID)
	if err != nil {
		return nil, dependency("list time windows", err)
	}
	return ws, nil
}

// SetHospitalActive stores the flag and returns the stored hospital, which
// callers should display instead of assuming the write took effect.
func (s *Service) SetHospitalActive(ctx context.Context, hospitalID uuid.UUID, active bool) (*Hospital, error) {
	h, err := s.repo.SetHospitalActive(ctx, hospitalID, active)
	if err != nil {
		return nil, dependency("set hospital active", err)
	}
	s.logEvent(ctx, uuid.Nil, EventHospitalToggled, map[string]any{
		"hospital_id": hospitalID.String(),
		"is_active":   h.IsActive,
	})
	return h, nil
}

func (s *Service) Inventory(ctx context.Context, hospitalID uuid.UUID) ([]InventoryCounter, error) {
	inv, err := s.repo.ListInventory(ctx, hospitalID)
	if err != nil {
		return nil, dependency("list inventory", err)
	}
	return inv, nil
}

// HospitalAppointments returns the partitions of the hospital's open appointments.
func (s *Service) HospitalAppointments(ctx context.Context, hospitalID uuid.UUID) (Partitions, error) {
	appts, err := s.repo.ListOpenAppointmentsByHospital(ctx, hospitalID)
	if err != nil {
		return Partitions{}, dependency("list hospital appointments", err)
	}
	return Partition(appts, s.now(), s.cfg.Timezone), nil
}

func (s *Service) HospitalDonations(ctx context.Context, hospitalID uuid.UUID, bloodType string) ([]Donation, error) {
	if bloodType != "" && !ValidBloodType(bloodType) {
		return nil, apperr.Validation("unknown blood type %q", bloodType)
	}
	ds, err := s.repo.ListDonationsByHospital(ctx, hospitalID, bloodType)
	if err != nil {
		return nil, dependency("list donations", err)
	}
	return ds, nil
}

// RequestDonors emails every past donor of bloodType at the hospital and
// returns how many addresses were contacted. An empty subject uses
// DonationRequestSubject.
func (s *Service) RequestDonors(ctx context.Context, hospitalID uuid.UUID, bloodType, subject, message string) (int, error) {
	if !ValidBloodType(bloodType) {
		return 0, apperr.Validation("unknown blood type %q", bloodType)
	}
	if strings.TrimSpace(message) == "" {
		return 0, apperr.Validation("message is required")
	}
	if strings.TrimSpace(subject) == "" {
		subject = DonationRequestSubject
	}
	if s.notifier == nil {
		return 0, ErrRequestsDisabled
	}

	emails, err := s.repo.DonorEmails(ctx, hospitalID, bloodType)
	if err != nil {
		return 0, dependency("list donor emails", err)
	}
	if len(emails) == 0 {
		return 0, ErrNoRecipients
	}

	if err := s.notifier.Send(ctx, emails, subject, message); err != nil {
		if errors.Is(err, apperr.ErrDependency) {
			return 0, err
		}
		return 0, apperr.Dependency("send donation request", err)
	}

	s.logger.Info("donation request sent",
		zap.Stringer("hospital_id", hospitalID),
		zap.String("blood_type", bloodType),
		zap.Int("recipients", len(emails)),
	)
	s.logEvent(ctx, uuid.Nil, EventDonorsRequested, map[string]any{
		"hospital_id": hospitalID.String(),
		"blood_type":  bloodType,
		"recipients":  len(emails),
	})
	return len(emails), nil
}
