package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hackgods/blood-donation-scheduling/internal/appointment"
	"github.com/hackgods/blood-donation-scheduling/internal/apperr"
	"github.com/hackgods/blood-donation-scheduling/internal/assignment"
)

// errorCodes gives well-known domain errors a stable code. Anything else is
// coded by its kind.
var errorCodes = []struct {
	err  error
	code string
}{
	{appointment.ErrAlreadyScheduled, "already_scheduled"},
	{appointment.ErrScheduleInProgress, "schedule_in_progress"},
	{appointment.ErrInvalidTransition, "invalid_status_transition"},
	{appointment.ErrHospitalNotAccepting, "hospital_not_accepting"},
	{appointment.ErrInvalidWindow, "invalid_time_window"},
	{appointment.ErrBloodTypeMissing, "blood_type_missing"},
	{appointment.ErrInvalidUnits, "invalid_units"},
	{appointment.ErrNoRecipients, "no_recipients"},
	{appointment.ErrNotOwner, "not_owner"},
	{appointment.ErrOtherHospital, "other_hospital"},
	{appointment.ErrAppointmentNotFound, "appointment_not_found"},
	{appointment.ErrHospitalNotFound, "hospital_not_found"},
	{appointment.ErrDonorNotFound, "donor_not_found"},
	{assignment.ErrAlreadyAssigned, "already_assigned"},
	{assignment.ErrAssignInProgress, "assignment_in_progress"},
	{assignment.ErrNotAssigned, "agent_not_assigned"},
	{assignment.ErrNotAgent, "not_an_agent"},
	{assignment.ErrNoAssignment, "no_assignment"},
	{assignment.ErrHospitalNotFound, "hospital_not_found"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// statusFor maps an error kind to its HTTP status and fallback code.
func statusFor(err error) (int, string) {
	switch apperr.Kind(err) {
	case apperr.ErrValidation:
		return http.StatusBadRequest, "validation_error"
	case apperr.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case apperr.ErrConflict:
		return http.StatusConflict, "conflict"
	case apperr.ErrForbidden:
		return http.StatusForbidden, "forbidden"
	case apperr.ErrDependency:
		return http.StatusBadGateway, "dependency_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

// fail writes err as a JSON error. Server-side failures are logged and their
// details withheld from the client.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			code = c.code
			break
		}
	}

	details := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		if status == http.StatusInternalServerError {
			details = "internal error"
		}
	}
	writeError(w, status, code, details)
}
