package api

import (
	"net/http"

	"github.com/google/uuid"
)

func (s *server) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.stats.Dashboard(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *server) listAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.assignments.ListAgents(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]AgentResponse, 0, len(agents))
	for _, a := range agents {
		out = append(out, AgentResponse{
			ID:           a.ID,
			FirstName:    a.FirstName,
			LastName:     a.LastName,
			Email:        a.Email,
			Phone:        a.Phone,
			HospitalID:   a.HospitalID,
			HospitalName: a.HospitalName,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) assignAgent(w http.ResponseWriter, r *http.Request) {
	var req AssignAgentRequest
	if !s.decode(w, r, &req) {
		return
	}
	a, err := s.assignments.Assign(r.Context(), uuid.MustParse(req.AgentID), uuid.MustParse(req.HospitalID))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentResponse(a))
}

func (s *server) unassignAgent(w http.ResponseWriter, r *http.Request) {
	agentID, ok := pathUUID(w, r, "agentId")
	if !ok {
		return
	}
	a, err := s.assignments.Unassign(r.Context(), agentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentResponse(a))
}
