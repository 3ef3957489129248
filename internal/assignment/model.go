package assignment

import (
	"time"

	"github.com/google/uuid"
)

// Assignment links one agent to one hospital. Only one assignment per agent
// may be active at a time.
type Assignment struct {
	ID           uuid.UUID
	AgentID      uuid.UUID
	HospitalID   uuid.UUID
	IsActive     bool
	AssignedAt   time.Time
	UnassignedAt *time.Time
}

type Agent struct {
	ID           uuid.UUID
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	HospitalID   *uuid.UUID
	HospitalName string
}
