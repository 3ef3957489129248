package assignment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps assignments in memory. Agents and hospitals are
// registered up front with PutAgent and PutHospital.
type MemoryRepository struct {
	mu          sync.Mutex
	agents      map[uuid.UUID]Agent
	hospitals   map[uuid.UUID]string
	assignments []Assignment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		agents:    make(map[uuid.UUID]Agent),
		hospitals: make(map[uuid.UUID]string),
	}
}

func (r *MemoryRepository) PutAgent(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID] = a
}

func (r *MemoryRepository) PutHospital(id uuid.UUID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hospitals[id] = name
}

func (r *MemoryRepository) activeLocked(agentID uuid.UUID) int {
	for i, a := range r.assignments {
		if a.AgentID == agentID && a.IsActive {
			return i
		}
	}
	return -1
}

func (r *MemoryRepository) withHospital(a Agent) Agent {
	if i := r.activeLocked(a.ID); i >= 0 {
		id := r.assignments[i].HospitalID
		a.HospitalID = &id
		a.HospitalName = r.hospitals[id]
	}
	return a
}

func (r *MemoryRepository) GetAgent(_ context.Context, agentID uuid.UUID) (*Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return nil, ErrNotAgent
	}
	a = r.withHospital(a)
	return &a, nil
}

func (r *MemoryRepository) HospitalExists(_ context.Context, hospitalID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.hospitals[hospitalID]
	return ok, nil
}

func (r *MemoryRepository) GetActive(_ context.Context, agentID uuid.UUID) (*Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.activeLocked(agentID)
	if i < 0 {
		return nil, ErrNoAssignment
	}
	a := r.assignments[i]
	return &a, nil
}

func (r *MemoryRepository) Create(_ context.Context, agentID, hospitalID uuid.UUID) (*Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeLocked(agentID) >= 0 {
		return nil, ErrAlreadyAssigned
	}
	a := Assignment{
		ID:         uuid.New(),
		AgentID:    agentID,
		HospitalID: hospitalID,
		IsActive:   true,
		AssignedAt: time.Now(),
	}
	r.assignments = append(r.assignments, a)
	return &a, nil
}

func (r *MemoryRepository) Deactivate(_ context.Context, agentID uuid.UUID) (*Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.activeLocked(agentID)
	if i < 0 {
		return nil, ErrNoAssignment
	}
	now := time.Now()
	r.assignments[i].IsActive = false
	r.assignments[i].UnassignedAt = &now
	a := r.assignments[i]
	return &a, nil
}

func (r *MemoryRepository) ListAgents(_ context.Context) ([]Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, r.withHospital(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, nil
}
