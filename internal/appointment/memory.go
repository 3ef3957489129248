package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultCapacity  = 100
	defaultThreshold = 10
)

// MemoryRepository is a Repository backed by maps. It is used by tests and
// by the simulator when no database is configured.
type MemoryRepository struct {
	mu           sync.Mutex
	donors       map[uuid.UUID]Donor
	hospitals    map[uuid.UUID]Hospital
	windows      map[uuid.UUID]TimeWindow
	appointments map[uuid.UUID]Appointment
	donations    []Donation
	inventory    map[inventoryKey]InventoryCounter
	events       []EventLog
}

type inventoryKey struct {
	hospitalID uuid.UUID
	bloodType  string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		donors:       make(map[uuid.UUID]Donor),
		hospitals:    make(map[uuid.UUID]Hospital),
		windows:      make(map[uuid.UUID]TimeWindow),
		appointments: make(map[uuid.UUID]Appointment),
		inventory:    make(map[inventoryKey]InventoryCounter),
	}
}

func (r *MemoryRepository) PutDonor(d Donor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.donors[d.ID] = d
}

func (r *MemoryRepository) PutHospital(h Hospital) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hospitals[h.ID] = h
}

func (r *MemoryRepository) PutTimeWindow(w TimeWindow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows[w.ID] = w
}

func (r *MemoryRepository) PutAppointment(a Appointment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appointments[a.ID] = a
}

func (r *MemoryRepository) PutInventory(c InventoryCounter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inventory[inventoryKey{c.HospitalID, c.BloodType}] = c
}

// Inventory returns the counter for one hospital and blood type.
func (r *MemoryRepository) Inventory(hospitalID uuid.UUID, bloodType string) (InventoryCounter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.inventory[inventoryKey{hospitalID, bloodType}]
	return c, ok
}

func (r *MemoryRepository) Events() []EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EventLog(nil), r.events...)
}

func (r *MemoryRepository) Appointments() []Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Appointment, 0, len(r.appointments))
	for _, a := range r.appointments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out
}

func (r *MemoryRepository) Donations() []Donation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Donation(nil), r.donations...)
}

func (r *MemoryRepository) GetDonorByID(_ context.Context, id uuid.UUID) (*Donor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donors[id]
	if !ok {
		return nil, ErrDonorNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) GetHospitalByID(_ context.Context, id uuid.UUID) (*Hospital, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hospitals[id]
	if !ok {
		return nil, ErrHospitalNotFound
	}
	return &h, nil
}

func (r *MemoryRepository) ListActiveHospitals(_ context.Context) ([]Hospital, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Hospital
	for _, h := range r.hospitals {
		if h.IsActive {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) SetHospitalActive(_ context.Context, id uuid.UUID, active bool) (*Hospital, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hospitals[id]
	if !ok {
		return nil, ErrHospitalNotFound
	}
	h.IsActive = active
	r.hospitals[id] = h
	return &h, nil
}

func (r *MemoryRepository) GetTimeWindowByID(_ context.Context, id uuid.UUID) (*TimeWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[id]
	if !ok {
		return nil, ErrTimeWindowNotFound
	}
	return &w, nil
}

func (r *MemoryRepository) ListActiveTimeWindows(_ context.Context, hospitalID uuid.UUID) ([]TimeWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []TimeWindow
	for _, w := range r.windows {
		if w.HospitalID == hospitalID && w.IsActive {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) GetScheduledForDonor(_ context.Context, donorID uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appointments {
		if a.DonorID == donorID && a.Status == StatusScheduled {
			return &a, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *MemoryRepository) detail(a Appointment) AppointmentDetail {
	d := AppointmentDetail{Appointment: a}
	if h, ok := r.hospitals[a.HospitalID]; ok {
		d.HospitalName = h.Name
		d.HospitalAddress = h.Address
	}
	if p, ok := r.donors[a.DonorID]; ok {
		d.DonorName = p.FirstName + " " + p.LastName
		d.DonorPhone = p.Phone
	}
	return d
}

func (r *MemoryRepository) ListAppointmentsByDonor(_ context.Context, donorID uuid.UUID, statuses []AppointmentStatus) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[AppointmentStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	var out []AppointmentDetail
	for _, a := range r.appointments {
		if a.DonorID == donorID && want[a.Status] {
			out = append(out, r.detail(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	return out, nil
}

func (r *MemoryRepository) ListOpenAppointmentsByHospital(_ context.Context, hospitalID uuid.UUID) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AppointmentDetail
	for _, a := range r.appointments {
		if a.HospitalID == hospitalID && a.Status != StatusCompleted {
			out = append(out, r.detail(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (r *MemoryRepository) CreateScheduledAppointment(_ context.Context, in NewAppointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appointments {
		if a.DonorID == in.DonorID && a.Status == StatusScheduled {
			return nil, ErrAlreadyScheduled
		}
	}
	now := time.Now()
	a := Appointment{
		ID:          uuid.New(),
		DonorID:     in.DonorID,
		HospitalID:  in.HospitalID,
		BloodType:   in.BloodType,
		ScheduledAt: in.ScheduledAt,
		Status:      StatusScheduled,
		Notes:       in.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.appointments[a.ID] = a
	return &a, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) CompleteAppointment(_ context.Context, id uuid.UUID, units int, at time.Time) (*Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != StatusScheduled {
		return nil, ErrInvalidTransition
	}
	a.Status = StatusCompleted
	a.UpdatedAt = at
	r.appointments[id] = a

	d := Donation{
		ID:            uuid.New(),
		AppointmentID: a.ID,
		DonorID:       a.DonorID,
		HospitalID:    a.HospitalID,
		BloodType:     a.BloodType,
		Units:         units,
		Status:        DonationCompleted,
		DonationDate:  at,
	}
	r.donations = append(r.donations, d)

	key := inventoryKey{a.HospitalID, a.BloodType}
	c, ok := r.inventory[key]
	if !ok {
		c = InventoryCounter{
			HospitalID: a.HospitalID,
			BloodType:  a.BloodType,
			Capacity:   defaultCapacity,
			Threshold:  defaultThreshold,
		}
	}
	c.CurrentUnits += units
	c.LastUpdated = at
	r.inventory[key] = c

	return &d, nil
}

func (r *MemoryRepository) FindOverdueScheduled(_ context.Context, before time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.Status == StatusScheduled && a.ScheduledAt.Before(before) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (r *MemoryRepository) ListCompletedDonationsByDonor(_ context.Context, donorID uuid.UUID) ([]Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Donation
	for _, d := range r.donations {
		if d.DonorID == donorID && d.Status == DonationCompleted {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DonationDate.After(out[j].DonationDate) })
	return out, nil
}

func (r *MemoryRepository) ListDonationsByHospital(_ context.Context, hospitalID uuid.UUID, bloodType string) ([]Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Donation
	for _, d := range r.donations {
		if d.HospitalID == hospitalID && (bloodType == "" || d.BloodType == bloodType) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DonationDate.After(out[j].DonationDate) })
	return out, nil
}

func (r *MemoryRepository) ListInventory(_ context.Context, hospitalID uuid.UUID) ([]InventoryCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []InventoryCounter
	for k, c := range r.inventory {
		if k.hospitalID == hospitalID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BloodType < out[j].BloodType })
	return out, nil
}

func (r *MemoryRepository) DonorEmails(_ context.Context, hospitalID uuid.UUID, bloodType string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, d := range r.donations {
		if d.HospitalID != hospitalID || d.BloodType != bloodType {
			continue
		}
		p, ok := r.donors[d.DonorID]
		if !ok || p.Email == "" || seen[p.Email] {
			continue
		}
		seen[p.Email] = true
		out = append(out, p.Email)
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}
