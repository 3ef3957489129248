package api

import (
	"net/http"

	"github.com/google/uuid"
)

func (s *server) scheduleAppointment(w http.ResponseWriter, r *http.Request) {
	var req ScheduleAppointmentRequest
	if !s.decode(w, r, &req) {
		return
	}

	appt, err := s.appointments.ScheduleAppointment(r.Context(),
		caller(r).UserID, uuid.MustParse(req.HospitalID), uuid.MustParse(req.TimeWindowID))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (s *server) currentAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := s.appointments.CurrentAppointment(r.Context(), caller(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := CurrentAppointmentResponse{}
	if appt != nil {
		a := toAppointmentResponse(appt)
		resp.Appointment = &a
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) appointmentHistory(w http.ResponseWriter, r *http.Request) {
	appts, err := s.appointments.History(r.Context(), caller(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailResponses(appts))
}

func (s *server) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	appt, err := s.appointments.CancelForDonor(r.Context(), caller(r).UserID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (s *server) eligibility(w http.ResponseWriter, r *http.Request) {
	e, err := s.appointments.Eligibility(r.Context(), caller(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EligibilityResponse{
		EligibleNow:    e.EligibleNow,
		LastDonation:   e.LastDonation,
		NextEligible:   e.NextEligible,
		TotalDonations: e.TotalDonations,
		TotalUnits:     e.TotalUnits,
	})
}
