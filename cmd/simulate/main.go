package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/blood-donation-scheduling/internal/auth"
	"github.com/hackgods/blood-donation-scheduling/internal/config"
	"github.com/hackgods/blood-donation-scheduling/internal/db"
	"github.com/hackgods/blood-donation-scheduling/internal/obs"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	ScheduleRatio float64
	CancelRatio   float64
	CompleteRatio float64
	ReadRatio     float64
	DonorLimit    int
}

type window struct {
	hospitalID uuid.UUID
	windowID   uuid.UUID
}

// DataPool holds the ids workers draw from and the appointments they created.
type DataPool struct {
	Donors  []uuid.UUID
	Windows []window
	// agent per hospital
	Agents map[uuid.UUID]uuid.UUID

	mu           sync.Mutex
	appointments map[uuid.UUID]createdAppointment
}

type createdAppointment struct {
	donorID    uuid.UUID
	hospitalID uuid.UUID
}

func (dp *DataPool) Add(id uuid.UUID, a createdAppointment) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments[id] = a
}

// Take removes and returns a random created appointment.
func (dp *DataPool) Take(rng *rand.Rand) (uuid.UUID, createdAppointment, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, createdAppointment{}, false
	}
	n := rng.Intn(len(dp.appointments))
	for id, a := range dp.appointments {
		if n == 0 {
			delete(dp.appointments, id)
			return id, a, true
		}
		n--
	}
	return uuid.Nil, createdAppointment{}, false
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	lo = latencies[0]
	hi = latencies[len(latencies)-1]
	p50 = latencies[min(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, lo, hi, p50, p95
}

type Metrics struct {
	Schedule OperationMetrics
	Cancel   OperationMetrics
	Complete OperationMetrics
	Read     OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	tokens  *auth.Tokens
	logger  *zap.Logger
	metrics Metrics

	tokenMu sync.Mutex
	cache   map[uuid.UUID]string
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}
	logger, err := obs.NewLogger(baseCfg.Env, baseCfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}
	logger.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("schedule", cfg.ScheduleRatio),
		zap.Float64("cancel", cfg.CancelRatio),
		zap.Float64("complete", cfg.CompleteRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	tokens, err := auth.NewTokens(baseCfg.AuthSecret, time.Hour)
	if err != nil {
		logger.Fatal("auth tokens", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, baseCfg.PostgresDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal("load data pool", zap.Error(err))
	}
	logger.Info("data pool loaded",
		zap.Int("donors", len(dataPool.Donors)),
		zap.Int("windows", len(dataPool.Windows)),
		zap.Int("staffed_hospitals", len(dataPool.Agents)),
	)

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		tokens: tokens,
		logger: logger,
		cache:  make(map[uuid.UUID]string),
	}
	sim.Run()
	sim.PrintReport()

	checkCtx, cancelCheck := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelCheck()
	if err := checkInvariants(checkCtx, pgPool); err != nil {
		logger.Fatal("invariant violated", zap.Error(err))
	}
	logger.Info("invariants hold")
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		ScheduleRatio: getFloat("SIM_SCHEDULE_RATIO", 0.4),
		CancelRatio:   getFloat("SIM_CANCEL_RATIO", 0.1),
		CompleteRatio: getFloat("SIM_COMPLETE_RATIO", 0.2),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.3),
		DonorLimit:    getInt("SIM_DONOR_LIMIT", 2000),
	}

	total := cfg.ScheduleRatio + cfg.CancelRatio + cfg.CompleteRatio + cfg.ReadRatio
	if total > 0 {
		cfg.ScheduleRatio /= total
		cfg.CancelRatio /= total
		cfg.CompleteRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dp := &DataPool{
		Agents:       make(map[uuid.UUID]uuid.UUID),
		appointments: make(map[uuid.UUID]createdAppointment),
	}

	rows, err := pool.Query(ctx, `
		SELECT p.id
		FROM profiles p
		JOIN user_roles r ON r.user_id = p.id AND r.role = 'donor'
		WHERE p.blood_type IS NOT NULL
		LIMIT $1
	`, cfg.DonorLimit)
	if err != nil {
		return nil, fmt.Errorf("load donors: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dp.Donors = append(dp.Donors, id)
	}
	rows.Close()

	rows, err = pool.Query(ctx, `
		SELECT w.hospital_id, w.id
		FROM hospital_time_windows w
		JOIN hospitals h ON h.id = w.hospital_id
		WHERE w.is_active AND h.is_active
	`)
	if err != nil {
		return nil, fmt.Errorf("load windows: %w", err)
	}
	for rows.Next() {
		var w window
		if err := rows.Scan(&w.hospitalID, &w.windowID); err != nil {
			rows.Close()
			return nil, err
		}
		dp.Windows = append(dp.Windows, w)
	}
	rows.Close()

	rows, err = pool.Query(ctx, `SELECT hospital_id, agent_id FROM agent_hospital_assignments WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("load agents: %w", err)
	}
	for rows.Next() {
		var hospitalID, agentID uuid.UUID
		if err := rows.Scan(&hospitalID, &agentID); err != nil {
			rows.Close()
			return nil, err
		}
		dp.Agents[hospitalID] = agentID
	}
	rows.Close()

	if len(dp.Donors) == 0 {
		return nil, fmt.Errorf("no donors loaded")
	}
	if len(dp.Windows) == 0 {
		return nil, fmt.Errorf("no active time windows loaded")
	}
	return dp, nil
}

// checkInvariants verifies what concurrent traffic must never break.
func checkInvariants(ctx context.Context, pool *pgxpool.Pool) error {
	var doubleBooked int
	if err := pool.QueryRow(ctx, `
		SELECT count(*) FROM (
			SELECT donor_id FROM appointments WHERE status = 'scheduled'
			GROUP BY donor_id HAVING count(*) > 1
		) t
	`).Scan(&doubleBooked); err != nil {
		return err
	}
	if doubleBooked > 0 {
		return fmt.Errorf("%d donors hold more than one scheduled appointment", doubleBooked)
	}

	var orphaned int
	if err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		LEFT JOIN donations d ON d.appointment_id = a.id
		WHERE (a.status = 'completed') <> (d.id IS NOT NULL)
	`).Scan(&orphaned); err != nil {
		return err
	}
	if orphaned > 0 {
		return fmt.Errorf("%d appointments disagree with their donation record", orphaned)
	}
	return nil
}

func (s *Simulator) token(userID uuid.UUID) string {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	if t, ok := s.cache[userID]; ok {
		return t
	}
	t, err := s.tokens.Generate(userID)
	if err != nil {
		s.logger.Fatal("sign token", zap.Error(err))
	}
	s.cache[userID] = t
	return t
}

func (s *Simulator) call(ctx context.Context, method, path string, as uuid.UUID, body any, out any) (int, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token(as))

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()
	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	c := s.config

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch r := rng.Float64(); {
		case r < c.ScheduleRatio:
			s.doSchedule(ctx, rng)
		case r < c.ScheduleRatio+c.CancelRatio:
			s.doCancel(ctx, rng)
		case r < c.ScheduleRatio+c.CancelRatio+c.CompleteRatio:
			s.doComplete(ctx, rng)
		default:
			s.doRead(ctx, rng)
		}
	}
}

func (s *Simulator) doSchedule(ctx context.Context, rng *rand.Rand) {
	donorID := s.pool.Donors[rng.Intn(len(s.pool.Donors))]
	w := s.pool.Windows[rng.Intn(len(s.pool.Windows))]

	var out struct {
		ID uuid.UUID `json:"id"`
	}
	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/donor/appointments", donorID, map[string]string{
		"hospital_id":    w.hospitalID.String(),
		"time_window_id": w.windowID.String(),
	}, &out)
	latency := time.Since(start)

	ok := err == nil && status == http.StatusCreated
	if ok && out.ID != uuid.Nil {
		s.pool.Add(out.ID, createdAppointment{donorID: donorID, hospitalID: w.hospitalID})
	}
	s.metrics.Schedule.Record(latency, ok, status == http.StatusConflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	id, a, ok := s.pool.Take(rng)
	if !ok {
		return
	}
	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/donor/appointments/"+id.String()+"/cancel", a.donorID, nil, nil)
	s.metrics.Cancel.Record(time.Since(start), err == nil && status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doComplete(ctx context.Context, rng *rand.Rand) {
	id, a, ok := s.pool.Take(rng)
	if !ok {
		return
	}
	agentID, staffed := s.pool.Agents[a.hospitalID]
	if !staffed {
		return
	}
	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/agent/appointments/"+id.String()+"/complete", agentID,
		map[string]int{"units": 1 + rng.Intn(2)}, nil)
	s.metrics.Complete.Record(time.Since(start), err == nil && status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doRead(ctx context.Context, rng *rand.Rand) {
	var (
		path string
		as   uuid.UUID
	)
	switch rng.Intn(3) {
	case 0:
		as, path = s.pool.Donors[rng.Intn(len(s.pool.Donors))], "/donor/appointments/current"
	case 1:
		as, path = s.pool.Donors[rng.Intn(len(s.pool.Donors))], "/hospitals"
	default:
		if len(s.pool.Agents) == 0 {
			return
		}
		for _, agentID := range s.pool.Agents {
			as = agentID
			break
		}
		path = "/agent/appointments?view=today"
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, path, as, nil, nil)
	s.metrics.Read.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Schedule", &s.metrics.Schedule)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Complete", &s.metrics.Complete)
	printOperationReport("Read", &s.metrics.Read)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
