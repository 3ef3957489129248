// Package stats builds the admin dashboard: headline counters, blood
// inventory aggregated across hospitals, low-stock alerts and the next
// scheduled appointments.
package stats

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	lowPercentage    = 60
	urgentPercentage = 30
	maxAlerts        = 4
	upcomingLimit    = 10
)

type Counters struct {
	TotalDonors      int `json:"total_donors"`
	ActiveDonors     int `json:"active_donors"`
	TotalDonations   int `json:"total_donations"`
	MonthlyDonations int `json:"monthly_donations"`
}

// InventoryRow is one hospital's counter for one blood type.
type InventoryRow struct {
	HospitalID   uuid.UUID
	BloodType    string
	CurrentUnits int
	Capacity     int
}

type BloodTypeStock struct {
	BloodType  string `json:"blood_type"`
	Current    int    `json:"current"`
	Needed     int    `json:"needed"`
	Hospitals  int    `json:"hospitals"`
	Percentage int    `json:"percentage"`
}

type Alert struct {
	Type      string `json:"type"` // low or urgent
	BloodType string `json:"blood_type"`
	Message   string `json:"message"`
}

type UpcomingAppointment struct {
	ID              uuid.UUID `json:"id"`
	DonorID         uuid.UUID `json:"donor_id"`
	BloodType       string    `json:"blood_type"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	HospitalName    string    `json:"hospital_name"`
	HospitalAddress string    `json:"hospital_address"`
}

type Dashboard struct {
	Counters    Counters              `json:"counters"`
	Inventory   []BloodTypeStock      `json:"inventory"`
	Alerts      []Alert               `json:"alerts"`
	Upcoming    []UpcomingAppointment `json:"upcoming"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// AggregateInventory sums counters per blood type, ordered by blood type.
func AggregateInventory(rows []InventoryRow) []BloodTypeStock {
	byType := make(map[string]*BloodTypeStock)
	for _, r := range rows {
		s, ok := byType[r.BloodType]
		if !ok {
			s = &BloodTypeStock{BloodType: r.BloodType}
			byType[r.BloodType] = s
		}
		s.Current += r.CurrentUnits
		s.Needed += r.Capacity
		s.Hospitals++
	}

	out := make([]BloodTypeStock, 0, len(byType))
	for _, s := range byType {
		if s.Needed > 0 {
			s.Percentage = int(math.Round(float64(s.Current) / float64(s.Needed) * 100))
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BloodType < out[j].BloodType })
	return out
}

// Alerts lists blood types under the low threshold, keeping the input order.
func Alerts(stock []BloodTypeStock) []Alert {
	alerts := []Alert{}
	for _, s := range stock {
		if s.Percentage >= lowPercentage {
			continue
		}
		a := Alert{Type: "low", BloodType: s.BloodType,
			Message: fmt.Sprintf("%s blood type below normal level (%d%%)", s.BloodType, s.Percentage)}
		if s.Percentage < urgentPercentage {
			a.Type = "urgent"
			a.Message = fmt.Sprintf("%s blood type critically low (%d%%)", s.BloodType, s.Percentage)
		}
		alerts = append(alerts, a)
		if len(alerts) == maxAlerts {
			break
		}
	}
	return alerts
}

// monthStart is 00:00 on the first day of now's month in loc.
func monthStart(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
}
