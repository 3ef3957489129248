package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Eligibility struct {
	LastDonation   *time.Time
	NextEligible   *time.Time
	EligibleNow    bool
	TotalDonations int
	TotalUnits     int
}

// CurrentAppointment returns the donor's scheduled appointment, or nil when there is none.
func (s *Service) CurrentAppointment(ctx context.Context, donorID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetScheduledForDonor(ctx, donorID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, nil
		}
		return nil, dependency("load scheduled appointment", err)
	}
	return appt, nil
}

// History lists the donor's finished appointments, newest first.
func (s *Service) History(ctx context.Context, donorID uuid.UUID) ([]AppointmentDetail, error) {
	appts, err := s.repo.ListAppointmentsByDonor(ctx, donorID,
		[]AppointmentStatus{StatusCompleted, StatusCancelled, StatusNoShow})
	if err != nil {
		return nil, dependency("list donor history", err)
	}
	return appts, nil
}

// Eligibility reports when the donor may donate again. It is informational;
// scheduling does not enforce it.
func (s *Service) Eligibility(ctx context.Context, donorID uuid.UUID) (*Eligibility, error) {
	donations, err := s.repo.ListCompletedDonationsByDonor(ctx, donorID)
	if err != nil {
		return nil, dependency("list donor donations", err)
	}

	e := &Eligibility{EligibleNow: true, TotalDonations: len(donations)}
	for _, d := range donations {
		e.TotalUnits += d.Units
	}
	if len(donations) == 0 {
		return e, nil
	}

	last := donations[0].DonationDate
	for _, d := range donations[1:] {
		if d.DonationDate.After(last) {
			last = d.DonationDate
		}
	}
	next := NextEligibleDate(last, s.cfg.Timezone)
	e.LastDonation = &last
	e.NextEligible = &next
	e.EligibleNow = !s.now().Before(next)
	return e, nil
}
