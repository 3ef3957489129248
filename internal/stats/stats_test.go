package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/hackgods/blood-donation-scheduling/internal/apperr"
)

func TestAggregateInventory(t *testing.T) {
	h1, h2 := uuid.New(), uuid.New()
	rows := []InventoryRow{
		{HospitalID: h1, BloodType: "O+", CurrentUnits: 30, Capacity: 100},
		{HospitalID: h2, BloodType: "O+", CurrentUnits: 45, Capacity: 50},
		{HospitalID: h1, BloodType: "A-", CurrentUnits: 1, Capacity: 40},
		{HospitalID: h1, BloodType: "B+", CurrentUnits: 0, Capacity: 0},
	}

	got := AggregateInventory(rows)
	want := []BloodTypeStock{
		{BloodType: "A-", Current: 1, Needed: 40, Hospitals: 1, Percentage: 3},
		{BloodType: "B+", Current: 0, Needed: 0, Hospitals: 1, Percentage: 0},
		{BloodType: "O+", Current: 75, Needed: 150, Hospitals: 2, Percentage: 50},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAlerts(t *testing.T) {
	stock := []BloodTypeStock{
		{BloodType: "A+", Percentage: 59},
		{BloodType: "A-", Percentage: 29},
		{BloodType: "AB+", Percentage: 60},
		{BloodType: "AB-", Percentage: 10},
		{BloodType: "B+", Percentage: 45},
		{BloodType: "B-", Percentage: 5},
	}

	alerts := Alerts(stock)
	if len(alerts) != 4 {
		t.Fatalf("alerts = %d, want 4", len(alerts))
	}
	wantTypes := []string{"low", "urgent", "urgent", "low"}
	wantBlood := []string{"A+", "A-", "AB-", "B+"}
	for i, a := range alerts {
		if a.Type != wantTypes[i] || a.BloodType != wantBlood[i] {
			t.Fatalf("alert %d = %+v", i, a)
		}
	}
	if alerts[1].Message != "A- blood type critically low (29%)" {
		t.Fatalf("message = %q", alerts[1].Message)
	}
}

func TestMonthStart(t *testing.T) {
	loc := time.FixedZone("EAT", 3*60*60)
	// 22:00 UTC on 31 March is already 1 April in EAT.
	now := time.Date(2025, 3, 31, 22, 0, 0, 0, time.UTC)
	got := monthStart(now, loc)
	want := time.Date(2025, 4, 1, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

type fakeRepo struct {
	calls int
	err   error
}

func (f *fakeRepo) Counters(context.Context, time.Time, time.Time) (Counters, error) {
	f.calls++
	return Counters{TotalDonors: 3, TotalDonations: 5}, f.err
}

func (f *fakeRepo) InventoryRows(context.Context) ([]InventoryRow, error) {
	return []InventoryRow{{BloodType: "O-", CurrentUnits: 2, Capacity: 10}}, nil
}

func (f *fakeRepo) Upcoming(context.Context, time.Time, int) ([]UpcomingAppointment, error) {
	return []UpcomingAppointment{}, nil
}

type mapCache struct {
	data    map[string]*Dashboard
	readErr error
}

func (c *mapCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	if c.readErr != nil {
		return false, c.readErr
	}
	d, ok := c.data[key]
	if !ok {
		return false, nil
	}
	*dst.(*Dashboard) = *d
	return true, nil
}

func (c *mapCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	c.data[key] = v.(*Dashboard)
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func TestDashboardUsesCache(t *testing.T) {
	repo := &fakeRepo{}
	cache := &mapCache{data: map[string]*Dashboard{}}
	svc := NewService(repo, cache, 30*time.Second, time.UTC, nil)

	d, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.Counters.TotalDonors != 3 || len(d.Alerts) != 1 || d.Alerts[0].Type != "urgent" {
		t.Fatalf("unexpected dashboard: %+v", d)
	}

	if _, err := svc.Dashboard(context.Background()); err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if repo.calls != 1 {
		t.Fatalf("repo calls = %d, want 1", repo.calls)
	}
}

func TestDashboardDegradesOnCacheError(t *testing.T) {
	repo := &fakeRepo{}
	cache := &mapCache{data: map[string]*Dashboard{}, readErr: errors.New("redis down")}
	svc := NewService(repo, cache, 30*time.Second, time.UTC, nil)

	if _, err := svc.Dashboard(context.Background()); err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if repo.calls != 1 {
		t.Fatalf("repo calls = %d, want 1", repo.calls)
	}
}

func TestDashboardDependencyError(t *testing.T) {
	svc := NewService(&fakeRepo{err: errors.New("pg down")}, nil, 0, nil, nil)
	if _, err := svc.Dashboard(context.Background()); !errors.Is(err, apperr.ErrDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestPgCounters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	month := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	since := time.Date(2024, 9, 12, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT").
		WithArgs(month, since).
		WillReturnRows(pgxmock.NewRows([]string{"donors", "active", "total", "monthly"}).AddRow(10, 4, 25, 3))

	c, err := NewPgRepository(mock).Counters(context.Background(), month, since)
	if err != nil {
		t.Fatalf("Counters: %v", err)
	}
	if c != (Counters{TotalDonors: 10, ActiveDonors: 4, TotalDonations: 25, MonthlyDonations: 3}) {
		t.Fatalf("counters = %+v", c)
	}
}
