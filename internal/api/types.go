package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/blood-donation-scheduling/internal/appointment"
	"github.com/hackgods/blood-donation-scheduling/internal/assignment"
)

type ScheduleAppointmentRequest struct {
	HospitalID   string `json:"hospital_id" validate:"required,uuid"`
	TimeWindowID string `json:"time_window_id" validate:"required,uuid"`
}

type CompleteDonationRequest struct {
	Units int `json:"units" validate:"required,gt=0"`
}

type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=cancelled no_show completed scheduled"`
}

type SetActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

type DonationRequestBody struct {
	BloodType string `json:"blood_type" validate:"required,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Subject   string `json:"subject" validate:"max=200"`
	Message   string `json:"message" validate:"required,max=5000"`
}

type AssignAgentRequest struct {
	AgentID    string `json:"agent_id" validate:"required,uuid"`
	HospitalID string `json:"hospital_id" validate:"required,uuid"`
}

type TokenRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

type TokenResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

type AppointmentResponse struct {
	ID          uuid.UUID `json:"id"`
	DonorID     uuid.UUID `json:"donor_id"`
	HospitalID  uuid.UUID `json:"hospital_id"`
	BloodType   string    `json:"blood_type"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	HospitalName    string `json:"hospital_name"`
	HospitalAddress string `json:"hospital_address,omitempty"`
	DonorName       string `json:"donor_name,omitempty"`
	DonorPhone      string `json:"donor_phone,omitempty"`
}

type CurrentAppointmentResponse struct {
	Appointment *AppointmentResponse `json:"appointment"`
}

type PartitionsResponse struct {
	Today    []AppointmentDetailResponse `json:"today"`
	Upcoming []AppointmentDetailResponse `json:"upcoming"`
	Other    []AppointmentDetailResponse `json:"other"`
}

type ViewResponse struct {
	View         string                      `json:"view"`
	Appointments []AppointmentDetailResponse `json:"appointments"`
}

type HospitalResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Address  string    `json:"address"`
	Phone    string    `json:"phone,omitempty"`
	Email    string    `json:"email,omitempty"`
	IsActive bool      `json:"is_active"`
}

type TimeWindowResponse struct {
	ID         uuid.UUID `json:"id"`
	HospitalID uuid.UUID `json:"hospital_id"`
	DayOfWeek  int       `json:"day_of_week"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
}

type DonationResponse struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	DonorID       uuid.UUID `json:"donor_id"`
	HospitalID    uuid.UUID `json:"hospital_id"`
	BloodType     string    `json:"blood_type"`
	Units         int       `json:"units"`
	Status        string    `json:"status"`
	DonationDate  time.Time `json:"donation_date"`
}

type InventoryResponse struct {
	BloodType    string    `json:"blood_type"`
	CurrentUnits int       `json:"current_units"`
	Capacity     int       `json:"maximum_capacity"`
	Threshold    int       `json:"minimum_threshold"`
	Low          bool      `json:"low"`
	LastUpdated  time.Time `json:"last_updated"`
}

type EligibilityResponse struct {
	EligibleNow    bool       `json:"eligible_now"`
	LastDonation   *time.Time `json:"last_donation,omitempty"`
	NextEligible   *time.Time `json:"next_eligible,omitempty"`
	TotalDonations int        `json:"total_donations"`
	TotalUnits     int        `json:"total_units"`
}

type DonationRequestResponse struct {
	Recipients int `json:"recipients"`
}

type AgentResponse struct {
	ID           uuid.UUID  `json:"id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	HospitalID   *uuid.UUID `json:"hospital_id,omitempty"`
	HospitalName string     `json:"hospital_name,omitempty"`
}

type AssignmentResponse struct {
	ID           uuid.UUID  `json:"id"`
	AgentID      uuid.UUID  `json:"agent_id"`
	HospitalID   uuid.UUID  `json:"hospital_id"`
	IsActive     bool       `json:"is_active"`
	AssignedAt   time.Time  `json:"assigned_at"`
	UnassignedAt *time.Time `json:"unassigned_at,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		DonorID:     a.DonorID,
		HospitalID:  a.HospitalID,
		BloodType:   a.BloodType,
		ScheduledAt: a.ScheduledAt,
		Status:      string(a.Status),
		Notes:       a.Notes,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func toDetailResponses(in []appointment.AppointmentDetail) []AppointmentDetailResponse {
	out := make([]AppointmentDetailResponse, 0, len(in))
	for i := range in {
		d := in[i]
		out = append(out, AppointmentDetailResponse{
			AppointmentResponse: toAppointmentResponse(&d.Appointment),
			HospitalName:        d.HospitalName,
			HospitalAddress:     d.HospitalAddress,
			DonorName:           d.DonorName,
			DonorPhone:          d.DonorPhone,
		})
	}
	return out
}

func toHospitalResponse(h *appointment.Hospital) HospitalResponse {
	return HospitalResponse{
		ID:       h.ID,
		Name:     h.Name,
		Address:  h.Address,
		Phone:    h.Phone,
		Email:    h.Email,
		IsActive: h.IsActive,
	}
}

func toDonationResponse(d *appointment.Donation) DonationResponse {
	return DonationResponse{
		ID:            d.ID,
		AppointmentID: d.AppointmentID,
		DonorID:       d.DonorID,
		HospitalID:    d.HospitalID,
		BloodType:     d.BloodType,
		Units:         d.Units,
		Status:        d.Status,
		DonationDate:  d.DonationDate,
	}
}

func toAssignmentResponse(a *assignment.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:           a.ID,
		AgentID:      a.AgentID,
		HospitalID:   a.HospitalID,
		IsActive:     a.IsActive,
		AssignedAt:   a.AssignedAt,
		UnassignedAt: a.UnassignedAt,
	}
}
