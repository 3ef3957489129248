package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hackgods/blood-donation-scheduling/internal/auth"
)

const maxBodyBytes = 1 << 20

// decode reads a JSON body into dst and validates its tags. It writes the
// error response itself and reports whether the handler may continue.
func (s *server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", validationDetails(err))
		return false
	}
	return true
}

func validationDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// caller returns the identity set by Authenticate. Routes using it sit behind
// that middleware, so absence is a wiring bug.
func caller(r *http.Request) auth.Identity {
	id, _ := auth.IdentityFromContext(r.Context())
	return id
}

func hospitalOf(r *http.Request) uuid.UUID {
	id, _ := auth.HospitalFromContext(r.Context())
	return id
}

// issueToken is mounted only in dev.
func (s *server) issueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !s.decode(w, r, &req) {
		return
	}
	userID := uuid.MustParse(req.UserID)

	role, err := s.roles.RoleOf(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrNoRole) {
			writeError(w, http.StatusNotFound, "unknown_user", "user has no role")
			return
		}
		s.fail(w, r, err)
		return
	}

	token, err := s.tokens.Generate(userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: token, Role: string(role)})
}

func (s *server) listHospitals(w http.ResponseWriter, r *http.Request) {
	hs, err := s.appointments.ListHospitals(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]HospitalResponse, 0, len(hs))
	for i := range hs {
		out = append(out, toHospitalResponse(&hs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) listTimeWindows(w http.ResponseWriter, r *http.Request) {
	hospitalID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	ws, err := s.appointments.TimeWindows(r.Context(), hospitalID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]TimeWindowResponse, 0, len(ws))
	for _, tw := range ws {
		out = append(out, TimeWindowResponse{
			ID:         tw.ID,
			HospitalID: tw.HospitalID,
			DayOfWeek:  tw.DayOfWeek,
			StartTime:  tw.StartTime,
			EndTime:    tw.EndTime,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
