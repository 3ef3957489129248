package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/hackgods/blood-donation-scheduling/internal/db"
	redisclient "github.com/hackgods/blood-donation-scheduling/internal/redis"
)

// RoleStore resolves the role of a user.
type RoleStore interface {
	RoleOf(ctx context.Context, userID uuid.UUID) (Role, error)
}

type PgRoleStore struct {
	pool db.Querier
}

func NewPgRoleStore(pool db.Querier) *PgRoleStore {
	return &PgRoleStore{pool: pool}
}

func (s *PgRoleStore) RoleOf(ctx context.Context, userID uuid.UUID) (Role, error) {
	var raw string
	err := s.pool.QueryRow(ctx, `SELECT role FROM user_roles WHERE user_id = $1`, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoRole
		}
		return "", fmt.Errorf("load role: %w", err)
	}
	role, ok := ParseRole(raw)
	if !ok {
		return "", fmt.Errorf("unknown role %q for user %s", raw, userID)
	}
	return role, nil
}

// CachedRoleStore keeps resolved roles in Redis. Cache failures fall through
// to the wrapped store.
type CachedRoleStore struct {
	next   RoleStore
	cache  redisclient.Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedRoleStore(next RoleStore, cache redisclient.Cache, ttl time.Duration, logger *zap.Logger) *CachedRoleStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedRoleStore{next: next, cache: cache, ttl: ttl, logger: logger}
}

func roleKey(userID uuid.UUID) string { return "role:" + userID.String() }

func (s *CachedRoleStore) RoleOf(ctx context.Context, userID uuid.UUID) (Role, error) {
	var cached Role
	hit, err := s.cache.GetJSON(ctx, roleKey(userID), &cached)
	if err != nil {
		s.logger.Warn("role cache read failed", zap.Stringer("user_id", userID), zap.Error(err))
	} else if hit {
		if role, ok := ParseRole(string(cached)); ok {
			return role, nil
		}
	}

	role, err := s.next.RoleOf(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := s.cache.SetJSON(ctx, roleKey(userID), role, s.ttl); err != nil {
		s.logger.Warn("role cache write failed", zap.Stringer("user_id", userID), zap.Error(err))
	}
	return role, nil
}

// StaticRoleStore serves roles from memory, for tests and the simulator.
type StaticRoleStore struct {
	mu    sync.RWMutex
	roles map[uuid.UUID]Role
}

func NewStaticRoleStore() *StaticRoleStore {
	return &StaticRoleStore{roles: make(map[uuid.UUID]Role)}
}

func (s *StaticRoleStore) Set(userID uuid.UUID, role Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[userID] = role
}

func (s *StaticRoleStore) RoleOf(_ context.Context, userID uuid.UUID) (Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[userID]
	if !ok {
		return "", ErrNoRole
	}
	return role, nil
}
