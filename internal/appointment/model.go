package appointment

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Terminal reports whether no transition leaves s.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

func ParseStatus(raw string) (AppointmentStatus, bool) {
	switch s := AppointmentStatus(raw); s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return s, true
	}
	return "", false
}

const DonationCompleted = "completed"

var BloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

func ValidBloodType(bt string) bool {
	for _, v := range BloodTypes {
		if v == bt {
			return true
		}
	}
	return false
}

type Hospital struct {
	ID        uuid.UUID
	Name      string
	Address   string
	Phone     string
	Email     string
	IsActive  bool
	CreatedAt time.Time
}

type Donor struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Phone     string
	BloodType string // empty when the donor never filled it in
}

// TimeWindow is a recurring weekly slot. DayOfWeek follows time.Weekday (0 = Sunday).
type TimeWindow struct {
	ID         uuid.UUID
	HospitalID uuid.UUID
	DayOfWeek  int
	StartTime  string // HH:MM[:SS]
	EndTime    string
	IsActive   bool
}

type Appointment struct {
	ID          uuid.UUID
	DonorID     uuid.UUID
	HospitalID  uuid.UUID
	BloodType   string
	ScheduledAt time.Time
	Status      AppointmentStatus
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type NewAppointment struct {
	DonorID     uuid.UUID
	HospitalID  uuid.UUID
	BloodType   string
	ScheduledAt time.Time
	Notes       string
}

// AppointmentDetail is an appointment joined with the names dashboards show.
type AppointmentDetail struct {
	Appointment
	HospitalName    string
	HospitalAddress string
	DonorName       string
	DonorPhone      string
}

type Donation struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	DonorID       uuid.UUID
	HospitalID    uuid.UUID
	BloodType     string
	Units         int
	Status        string
	DonationDate  time.Time
}

type InventoryCounter struct {
	HospitalID   uuid.UUID
	BloodType    string
	CurrentUnits int
	Capacity     int
	Threshold    int
	LastUpdated  time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
