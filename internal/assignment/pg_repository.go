package assignment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/blood-donation-scheduling/internal/db"
)

const (
	constraintOneActive = "agent_one_active_assignment"
	assignmentColumns   = `id, agent_id, hospital_id, is_active, assigned_at, unassigned_at`
)

type PgRepository struct {
	pool db.Querier
}

func NewPgRepository(pool db.Querier) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanAssignment(row pgx.Row) (*Assignment, error) {
	var a Assignment
	err := row.Scan(&a.ID, &a.AgentID, &a.HospitalID, &a.IsActive, &a.AssignedAt, &a.UnassignedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoAssignment
		}
		return nil, err
	}
	return &a, nil
}

func scanAgent(row pgx.Row) (*Agent, error) {
	var a Agent
	err := row.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Phone, &a.HospitalID, &a.HospitalName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotAgent
		}
		return nil, err
	}
	return &a, nil
}

const agentQuery = `
	SELECT p.id, p.first_name, p.last_name, COALESCE(p.email, ''), COALESCE(p.phone, ''),
	       aa.hospital_id, COALESCE(h.name, '')
	FROM profiles p
	JOIN user_roles r ON r.user_id = p.id AND r.role = 'agent'
	LEFT JOIN agent_hospital_assignments aa ON aa.agent_id = p.id AND aa.is_active
	LEFT JOIN hospitals h ON h.id = aa.hospital_id
`

func (r *PgRepository) GetAgent(ctx context.Context, agentID uuid.UUID) (*Agent, error) {
	return scanAgent(r.pool.QueryRow(ctx, agentQuery+` WHERE p.id = $1`, agentID))
}

func (r *PgRepository) HospitalExists(ctx context.Context, hospitalID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM hospitals WHERE id = $1)`, hospitalID).Scan(&exists)
	return exists, err
}

func (r *PgRepository) GetActive(ctx context.Context, agentID uuid.UUID) (*Assignment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+`
		FROM agent_hospital_assignments
		WHERE agent_id = $1 AND is_active
	`, agentID)
	return scanAssignment(row)
}

func (r *PgRepository) Create(ctx context.Context, agentID, hospitalID uuid.UUID) (*Assignment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO agent_hospital_assignments (id, agent_id, hospital_id, is_active, assigned_at)
		VALUES ($1, $2, $3, true, now())
		RETURNING `+assignmentColumns, uuid.New(), agentID, hospitalID)

	a, err := scanAssignment(row)
	if err != nil {
		if db.IsUniqueViolation(err, constraintOneActive) {
			return nil, ErrAlreadyAssigned
		}
		return nil, err
	}
	return a, nil
}

func (r *PgRepository) Deactivate(ctx context.Context, agentID uuid.UUID) (*Assignment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE agent_hospital_assignments
		SET is_active = false,
		    unassigned_at = now()
		WHERE agent_id = $1 AND is_active
		RETURNING `+assignmentColumns, agentID)
	return scanAssignment(row)
}

func (r *PgRepository) ListAgents(ctx context.Context) ([]Agent, error) {
	rows, err := r.pool.Query(ctx, agentQuery+` ORDER BY p.last_name, p.first_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return agents, nil
}
