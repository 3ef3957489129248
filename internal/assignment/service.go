package assignment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/blood-donation-scheduling/internal/apperr"
	redisclient "github.com/hackgods/blood-donation-scheduling/internal/redis"
)

var (
	ErrNotAssigned      = fmt.Errorf("%w: agent is not assigned to a hospital", apperr.ErrForbidden)
	ErrAssignInProgress = fmt.Errorf("%w: another assignment change for this agent is in progress, please retry", apperr.ErrConflict)
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	logger *zap.Logger
}

func NewService(repo Repository, locker redisclient.Locker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, locker: locker, logger: logger}
}

func wrap(op string, err error) error {
	if apperr.Kind(err) != nil {
		return err
	}
	return apperr.Dependency(op, err)
}

// Assign gives the agent its hospital. An agent already assigned must be
// unassigned first.
func (s *Service) Assign(ctx context.Context, agentID, hospitalID uuid.UUID) (*Assignment, error) {
	if _, err := s.repo.GetAgent(ctx, agentID); err != nil {
		return nil, wrap("load agent", err)
	}
	ok, err := s.repo.HospitalExists(ctx, hospitalID)
	if err != nil {
		return nil, wrap("load hospital", err)
	}
	if !ok {
		return nil, ErrHospitalNotFound
	}

	var created *Assignment
	err = s.locker.WithLock(ctx, redisclient.AgentKey(agentID), func(lockCtx context.Context) error {
		existing, err := s.repo.GetActive(lockCtx, agentID)
		if err != nil && !errors.Is(err, ErrNoAssignment) {
			return wrap("check assignment", err)
		}
		if existing != nil {
			return ErrAlreadyAssigned
		}

		a, err := s.repo.Create(lockCtx, agentID, hospitalID)
		if err != nil {
			return wrap("create assignment", err)
		}
		created = a
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrAssignInProgress
		}
		return nil, wrap("assign agent", err)
	}

	s.logger.Info("agent assigned",
		zap.Stringer("agent_id", agentID),
		zap.Stringer("hospital_id", hospitalID),
	)
	return created, nil
}

func (s *Service) Unassign(ctx context.Context, agentID uuid.UUID) (*Assignment, error) {
	var removed *Assignment
	err := s.locker.WithLock(ctx, redisclient.AgentKey(agentID), func(lockCtx context.Context) error {
		a, err := s.repo.Deactivate(lockCtx, agentID)
		if err != nil {
			return wrap("deactivate assignment", err)
		}
		removed = a
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrAssignInProgress
		}
		return nil, wrap("unassign agent", err)
	}

	s.logger.Info("agent unassigned",
		zap.Stringer("agent_id", agentID),
		zap.Stringer("hospital_id", removed.HospitalID),
	)
	return removed, nil
}

// ActiveHospital resolves the hospital an agent acts for.
func (s *Service) ActiveHospital(ctx context.Context, agentID uuid.UUID) (uuid.UUID, error) {
	a, err := s.repo.GetActive(ctx, agentID)
	if err != nil {
		if errors.Is(err, ErrNoAssignment) {
			return uuid.Nil, ErrNotAssigned
		}
		return uuid.Nil, wrap("load assignment", err)
	}
	return a.HospitalID, nil
}

func (s *Service) ListAgents(ctx context.Context) ([]Agent, error) {
	agents, err := s.repo.ListAgents(ctx)
	if err != nil {
		return nil, wrap("list agents", err)
	}
	return agents, nil
}
