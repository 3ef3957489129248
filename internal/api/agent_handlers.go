package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/blood-donation-scheduling/internal/appointment"
)

// agentAppointmentID parses the path id and checks that the appointment
// belongs to the agent's hospital. An appointment never changes hospital,
// so the check cannot go stale before the following write.
func (s *server) agentAppointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return uuid.Nil, false
	}
	appt, err := s.appointments.GetAppointment(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return uuid.Nil, false
	}
	if appt.HospitalID != hospitalOf(r) {
		s.fail(w, r, appointment.ErrOtherHospital)
		return uuid.Nil, false
	}
	return id, true
}

func (s *server) agentHospital(w http.ResponseWriter, r *http.Request) {
	h, err := s.appointments.GetHospital(r.Context(), hospitalOf(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHospitalResponse(h))
}

func (s *server) setHospitalActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if !s.decode(w, r, &req) {
		return
	}
	h, err := s.appointments.SetHospitalActive(r.Context(), hospitalOf(r), *req.IsActive)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHospitalResponse(h))
}

func (s *server) inventory(w http.ResponseWriter, r *http.Request) {
	inv, err := s.appointments.Inventory(r.Context(), hospitalOf(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]InventoryResponse, 0, len(inv))
	for _, c := range inv {
		out = append(out, InventoryResponse{
			BloodType:    c.BloodType,
			CurrentUnits: c.CurrentUnits,
			Capacity:     c.Capacity,
			Threshold:    c.Threshold,
			Low:          c.CurrentUnits < c.Threshold,
			LastUpdated:  c.LastUpdated,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) hospitalAppointments(w http.ResponseWriter, r *http.Request) {
	view, err := appointment.ParseView(r.URL.Query().Get("view"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.appointments.HospitalAppointments(r.Context(), hospitalOf(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	switch view {
	case appointment.ViewToday:
		writeJSON(w, http.StatusOK, ViewResponse{View: string(view), Appointments: toDetailResponses(p.Today)})
	case appointment.ViewUpcoming:
		writeJSON(w, http.StatusOK, ViewResponse{View: string(view), Appointments: toDetailResponses(p.Upcoming)})
	case appointment.ViewOther:
		writeJSON(w, http.StatusOK, ViewResponse{View: string(view), Appointments: toDetailResponses(p.Other)})
	default:
		writeJSON(w, http.StatusOK, PartitionsResponse{
			Today:    toDetailResponses(p.Today),
			Upcoming: toDetailResponses(p.Upcoming),
			Other:    toDetailResponses(p.Other),
		})
	}
}

func (s *server) completeDonation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.agentAppointmentID(w, r)
	if !ok {
		return
	}
	var req CompleteDonationRequest
	if !s.decode(w, r, &req) {
		return
	}
	d, err := s.appointments.CompleteDonation(r.Context(), id, req.Units)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDonationResponse(d))
}

func (s *server) setAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.agentAppointmentID(w, r)
	if !ok {
		return
	}
	var req SetStatusRequest
	if !s.decode(w, r, &req) {
		return
	}
	status, _ := appointment.ParseStatus(req.Status)
	appt, err := s.appointments.SetStatus(r.Context(), id, status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (s *server) hospitalDonations(w http.ResponseWriter, r *http.Request) {
	ds, err := s.appointments.HospitalDonations(r.Context(), hospitalOf(r), r.URL.Query().Get("blood_type"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]DonationResponse, 0, len(ds))
	for i := range ds {
		out = append(out, toDonationResponse(&ds[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) requestDonors(w http.ResponseWriter, r *http.Request) {
	var req DonationRequestBody
	if !s.decode(w, r, &req) {
		return
	}
	n, err := s.appointments.RequestDonors(r.Context(), hospitalOf(r), req.BloodType, req.Subject, req.Message)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, DonationRequestResponse{Recipients: n})
}
