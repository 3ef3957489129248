package assignment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/blood-donation-scheduling/internal/apperr"
)

var (
	ErrNotAgent         = fmt.Errorf("%w: user is not an agent", apperr.ErrValidation)
	ErrHospitalNotFound = fmt.Errorf("%w: hospital not found", apperr.ErrNotFound)
	ErrNoAssignment     = fmt.Errorf("%w: agent has no active assignment", apperr.ErrNotFound)
	ErrAlreadyAssigned  = fmt.Errorf("%w: agent already has an active assignment", apperr.ErrConflict)
)

type Repository interface {
	// GetAgent returns ErrNotAgent when the user is missing or holds another role.
	GetAgent(ctx context.Context, agentID uuid.UUID) (*Agent, error)
	HospitalExists(ctx context.Context, hospitalID uuid.UUID) (bool, error)
	GetActive(ctx context.Context, agentID uuid.UUID) (*Assignment, error)
	// Create returns ErrAlreadyAssigned when the agent already has an active row.
	Create(ctx context.Context, agentID, hospitalID uuid.UUID) (*Assignment, error)
	Deactivate(ctx context.Context, agentID uuid.UUID) (*Assignment, error)
	ListAgents(ctx context.Context) ([]Agent, error)
}
