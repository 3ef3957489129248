package stats

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/blood-donation-scheduling/internal/apperr"
	redisclient "github.com/hackgods/blood-donation-scheduling/internal/redis"
)

const cacheKey = "dashboard"

type Service struct {
	repo   Repository
	cache  redisclient.Cache
	ttl    time.Duration
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewService builds the dashboard service. A nil cache disables caching.
func NewService(repo Repository, cache redisclient.Cache, ttl time.Duration, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, cache: cache, ttl: ttl, loc: loc, logger: logger, now: time.Now}
}

// Dashboard serves the cached dashboard when fresh. Cache errors are logged
// and the dashboard is computed from the database.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	if s.cache != nil && s.ttl > 0 {
		var cached Dashboard
		hit, err := s.cache.GetJSON(ctx, cacheKey, &cached)
		if err != nil {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	d, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.ttl > 0 {
		if err := s.cache.SetJSON(ctx, cacheKey, d, s.ttl); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return d, nil
}

func (s *Service) compute(ctx context.Context) (*Dashboard, error) {
	now := s.now()

	counters, err := s.repo.Counters(ctx, monthStart(now, s.loc), now.In(s.loc).AddDate(0, -6, 0))
	if err != nil {
		return nil, apperr.Dependency("load counters", err)
	}

	rows, err := s.repo.InventoryRows(ctx)
	if err != nil {
		return nil, apperr.Dependency("load inventory", err)
	}
	stock := AggregateInventory(rows)

	upcoming, err := s.repo.Upcoming(ctx, now, upcomingLimit)
	if err != nil {
		return nil, apperr.Dependency("load upcoming appointments", err)
	}

	return &Dashboard{
		Counters:    counters,
		Inventory:   stock,
		Alerts:      Alerts(stock),
		Upcoming:    upcoming,
		GeneratedAt: now.UTC(),
	}, nil
}
