package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/blood-donation-scheduling/internal/appointment"
	"github.com/hackgods/blood-donation-scheduling/internal/assignment"
	"github.com/hackgods/blood-donation-scheduling/internal/auth"
	"github.com/hackgods/blood-donation-scheduling/internal/config"
	redisclient "github.com/hackgods/blood-donation-scheduling/internal/redis"
	"github.com/hackgods/blood-donation-scheduling/internal/stats"
)

// Wednesday 2025-03-12 10:00 UTC
var fixedNow = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

type notifierStub struct {
	mu     sync.Mutex
	emails []string
}

func (n *notifierStub) Send(_ context.Context, emails []string, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emails = append(n.emails, emails...)
	return nil
}

func (n *notifierStub) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.emails...)
}

type statsRepoStub struct{}

func (statsRepoStub) Counters(context.Context, time.Time, time.Time) (stats.Counters, error) {
	return stats.Counters{TotalDonors: 3, ActiveDonors: 1, TotalDonations: 1, MonthlyDonations: 1}, nil
}

func (statsRepoStub) InventoryRows(context.Context) ([]stats.InventoryRow, error) {
	return []stats.InventoryRow{{HospitalID: uuid.New(), BloodType: "O+", CurrentUnits: 20, Capacity: 100}}, nil
}

func (statsRepoStub) Upcoming(context.Context, time.Time, int) ([]stats.UpcomingAppointment, error) {
	return nil, nil
}

type testAPI struct {
	t        *testing.T
	srv      *httptest.Server
	tokens   *auth.Tokens
	repo     *appointment.MemoryRepository
	notifier *notifierStub

	donor, otherDonor            uuid.UUID
	agent, otherAgent, idleAgent uuid.UUID
	admin                        uuid.UUID
	hospital, otherHospital      appointment.Hospital
	window                       appointment.TimeWindow
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	tokens, err := auth.NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}

	a := &testAPI{
		t:             t,
		tokens:        tokens,
		repo:          appointment.NewMemoryRepository(),
		notifier:      &notifierStub{},
		donor:         uuid.New(),
		otherDonor:    uuid.New(),
		agent:         uuid.New(),
		otherAgent:    uuid.New(),
		idleAgent:     uuid.New(),
		admin:         uuid.New(),
		hospital:      appointment.Hospital{ID: uuid.New(), Name: "Kenyatta", Address: "Hospital Rd", IsActive: true},
		otherHospital: appointment.Hospital{ID: uuid.New(), Name: "Aga Khan", Address: "3rd Parklands Ave", IsActive: true},
	}
	a.window = appointment.TimeWindow{ID: uuid.New(), HospitalID: a.hospital.ID, DayOfWeek: int(time.Friday), StartTime: "09:00:00", EndTime: "12:00:00", IsActive: true}

	a.repo.PutDonor(appointment.Donor{ID: a.donor, FirstName: "Amina", LastName: "Otieno", Email: "amina@example.com", BloodType: "O+"})
	a.repo.PutDonor(appointment.Donor{ID: a.otherDonor, FirstName: "Brian", LastName: "Kamau", Email: "brian@example.com", BloodType: "A-"})
	a.repo.PutHospital(a.hospital)
	a.repo.PutHospital(a.otherHospital)
	a.repo.PutTimeWindow(a.window)

	roles := auth.NewStaticRoleStore()
	roles.Set(a.donor, auth.RoleDonor)
	roles.Set(a.otherDonor, auth.RoleDonor)
	roles.Set(a.agent, auth.RoleAgent)
	roles.Set(a.otherAgent, auth.RoleAgent)
	roles.Set(a.idleAgent, auth.RoleAgent)
	roles.Set(a.admin, auth.RoleAdmin)

	locker := redisclient.NewLocalLocker()

	assignRepo := assignment.NewMemoryRepository()
	assignRepo.PutHospital(a.hospital.ID, a.hospital.Name)
	assignRepo.PutHospital(a.otherHospital.ID, a.otherHospital.Name)
	for _, id := range []uuid.UUID{a.agent, a.otherAgent, a.idleAgent} {
		assignRepo.PutAgent(assignment.Agent{ID: id, FirstName: "Agent", LastName: id.String()[:8]})
	}
	assignments := assignment.NewService(assignRepo, locker, nil)
	if _, err := assignments.Assign(context.Background(), a.agent, a.hospital.ID); err != nil {
		t.Fatalf("assign agent: %v", err)
	}
	if _, err := assignments.Assign(context.Background(), a.otherAgent, a.otherHospital.ID); err != nil {
		t.Fatalf("assign other agent: %v", err)
	}

	appts := appointment.NewService(a.repo, locker,
		config.Config{Timezone: time.UTC, NoShowGrace: 24 * time.Hour},
		appointment.WithClock(func() time.Time { return fixedNow }),
		appointment.WithNotifier(a.notifier),
	)

	handler := NewRouter(RouterConfig{
		Appointments: appts,
		Assignments:  assignments,
		Stats:        stats.NewService(statsRepoStub{}, nil, 0, time.UTC, nil),
		Tokens:       tokens,
		Roles:        roles,
		Env:          "dev",
		Version:      "test",
	})
	a.srv = httptest.NewServer(handler)
	t.Cleanup(a.srv.Close)
	return a
}

func (a *testAPI) token(userID uuid.UUID) string {
	a.t.Helper()
	tok, err := a.tokens.Generate(userID)
	if err != nil {
		a.t.Fatalf("Generate: %v", err)
	}
	return tok
}

// do sends a request as userID; uuid.Nil sends no Authorization header.
func (a *testAPI) do(method, path string, userID uuid.UUID, body any) *http.Response {
	a.t.Helper()
	var payload []byte
	switch b := body.(type) {
	case nil:
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		if err != nil {
			a.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, a.srv.URL+path, bytes.NewReader(payload))
	if err != nil {
		a.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+a.token(userID))
	}
	resp, err := a.srv.Client().Do(req)
	if err != nil {
		a.t.Fatalf("do request: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}

func expectError(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	expectStatus(t, resp, status)
	body := decode[ErrorResponse](t, resp)
	if body.Error != code {
		t.Fatalf("expected error %q, got %q (%s)", code, body.Error, body.Details)
	}
}

func (a *testAPI) schedule(donor uuid.UUID) AppointmentResponse {
	a.t.Helper()
	resp := a.do(http.MethodPost, "/donor/appointments", donor, ScheduleAppointmentRequest{
		HospitalID:   a.hospital.ID.String(),
		TimeWindowID: a.window.ID.String(),
	})
	expectStatus(a.t, resp, http.StatusCreated)
	return decode[AppointmentResponse](a.t, resp)
}

func TestLiveness(t *testing.T) {
	a := newTestAPI(t)
	resp := a.do(http.MethodGet, "/health/live", uuid.Nil, nil)
	expectStatus(t, resp, http.StatusOK)
	if body := decode[LivenessResponse](t, resp); body.Status != "ok" || body.Version != "test" {
		t.Fatalf("unexpected liveness body: %+v", body)
	}
}

func TestAuthentication(t *testing.T) {
	a := newTestAPI(t)

	expectError(t, a.do(http.MethodGet, "/hospitals", uuid.Nil, nil), http.StatusUnauthorized, "unauthenticated")

	req, _ := http.NewRequest(http.MethodGet, a.srv.URL+"/hospitals", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := a.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	expectError(t, resp, http.StatusUnauthorized, "invalid_token")

	expectError(t, a.do(http.MethodGet, "/hospitals", uuid.New(), nil), http.StatusForbidden, "no_role")
}

func TestRoleGates(t *testing.T) {
	a := newTestAPI(t)

	expectError(t, a.do(http.MethodGet, "/agent/inventory", a.donor, nil), http.StatusForbidden, "forbidden")
	expectError(t, a.do(http.MethodGet, "/admin/stats", a.agent, nil), http.StatusForbidden, "forbidden")
	expectError(t, a.do(http.MethodGet, "/donor/eligibility", a.admin, nil), http.StatusForbidden, "forbidden")
	expectError(t, a.do(http.MethodGet, "/agent/hospital", a.idleAgent, nil), http.StatusForbidden, "agent_not_assigned")
}

func TestIssueToken(t *testing.T) {
	a := newTestAPI(t)

	resp := a.do(http.MethodPost, "/auth/token", uuid.Nil, TokenRequest{UserID: a.donor.String()})
	expectStatus(t, resp, http.StatusOK)
	tok := decode[TokenResponse](t, resp)
	if tok.Role != string(auth.RoleDonor) || tok.Token == "" {
		t.Fatalf("unexpected token response: %+v", tok)
	}

	expectError(t, a.do(http.MethodPost, "/auth/token", uuid.Nil, TokenRequest{UserID: uuid.NewString()}),
		http.StatusNotFound, "unknown_user")
}

func TestListHospitalsAndWindows(t *testing.T) {
	a := newTestAPI(t)

	resp := a.do(http.MethodGet, "/hospitals", a.donor, nil)
	expectStatus(t, resp, http.StatusOK)
	if hs := decode[[]HospitalResponse](t, resp); len(hs) != 2 {
		t.Fatalf("expected 2 hospitals, got %d", len(hs))
	}

	resp = a.do(http.MethodGet, "/hospitals/"+a.hospital.ID.String()+"/time-windows", a.donor, nil)
	expectStatus(t, resp, http.StatusOK)
	ws := decode[[]TimeWindowResponse](t, resp)
	if len(ws) != 1 || ws[0].ID != a.window.ID {
		t.Fatalf("unexpected windows: %+v", ws)
	}

	expectError(t, a.do(http.MethodGet, "/hospitals/not-a-uuid/time-windows", a.donor, nil),
		http.StatusBadRequest, "invalid_id")
}

func TestDonationLifecycle(t *testing.T) {
	a := newTestAPI(t)

	appt := a.schedule(a.donor)
	if appt.Status != "scheduled" || appt.BloodType != "O+" {
		t.Fatalf("unexpected appointment: %+v", appt)
	}
	want := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	if !appt.ScheduledAt.Equal(want) {
		t.Fatalf("expected %v, got %v", want, appt.ScheduledAt)
	}

	expectError(t, a.do(http.MethodPost, "/donor/appointments", a.donor, ScheduleAppointmentRequest{
		HospitalID:   a.hospital.ID.String(),
		TimeWindowID: a.window.ID.String(),
	}), http.StatusConflict, "already_scheduled")

	resp := a.do(http.MethodGet, "/donor/appointments/current", a.donor, nil)
	expectStatus(t, resp, http.StatusOK)
	if cur := decode[CurrentAppointmentResponse](t, resp); cur.Appointment == nil || cur.Appointment.ID != appt.ID {
		t.Fatalf("unexpected current appointment: %+v", cur)
	}

	resp = a.do(http.MethodGet, "/agent/appointments?view=upcoming", a.agent, nil)
	expectStatus(t, resp, http.StatusOK)
	view := decode[ViewResponse](t, resp)
	if view.View != "upcoming" || len(view.Appointments) != 1 || view.Appointments[0].DonorName != "Amina Otieno" {
		t.Fatalf("unexpected upcoming view: %+v", view)
	}

	path := "/agent/appointments/" + appt.ID.String() + "/complete"
	expectError(t, a.do(http.MethodPost, path, a.agent, CompleteDonationRequest{Units: 0}),
		http.StatusBadRequest, "invalid_request")

	resp = a.do(http.MethodPost, path, a.agent, CompleteDonationRequest{Units: 2})
	expectStatus(t, resp, http.StatusOK)
	if d := decode[DonationResponse](t, resp); d.Units != 2 || d.Status != "completed" || d.AppointmentID != appt.ID {
		t.Fatalf("unexpected donation: %+v", d)
	}

	expectError(t, a.do(http.MethodPost, path, a.agent, CompleteDonationRequest{Units: 2}),
		http.StatusConflict, "invalid_status_transition")

	resp = a.do(http.MethodGet, "/agent/inventory", a.agent, nil)
	expectStatus(t, resp, http.StatusOK)
	inv := decode[[]InventoryResponse](t, resp)
	if len(inv) != 1 || inv[0].BloodType != "O+" || inv[0].CurrentUnits != 2 || !inv[0].Low {
		t.Fatalf("unexpected inventory: %+v", inv)
	}

	resp = a.do(http.MethodGet, "/donor/appointments/history", a.donor, nil)
	expectStatus(t, resp, http.StatusOK)
	if hist := decode[[]AppointmentDetailResponse](t, resp); len(hist) != 1 || hist[0].Status != "completed" {
		t.Fatalf("unexpected history: %+v", hist)
	}

	resp = a.do(http.MethodGet, "/donor/eligibility", a.donor, nil)
	expectStatus(t, resp, http.StatusOK)
	if e := decode[EligibilityResponse](t, resp); e.EligibleNow || e.TotalUnits != 2 || e.NextEligible == nil {
		t.Fatalf("unexpected eligibility: %+v", e)
	}

	resp = a.do(http.MethodGet, "/agent/donations?blood_type=O%2B", a.agent, nil)
	expectStatus(t, resp, http.StatusOK)
	if ds := decode[[]DonationResponse](t, resp); len(ds) != 1 {
		t.Fatalf("expected 1 donation, got %d", len(ds))
	}
}

func TestRequestBodyValidation(t *testing.T) {
	a := newTestAPI(t)

	expectError(t, a.do(http.MethodPost, "/donor/appointments", a.donor, "{not json"),
		http.StatusBadRequest, "invalid_request_body")
	expectError(t, a.do(http.MethodPost, "/donor/appointments", a.donor, `{"hospital_id":"x","extra":1}`),
		http.StatusBadRequest, "invalid_request_body")

	resp := a.do(http.MethodPost, "/donor/appointments", a.donor, ScheduleAppointmentRequest{HospitalID: "nope"})
	expectStatus(t, resp, http.StatusBadRequest)
	if body := decode[ErrorResponse](t, resp); body.Error != "invalid_request" || !strings.Contains(body.Details, "HospitalID") {
		t.Fatalf("unexpected validation error: %+v", body)
	}

	expectError(t, a.do(http.MethodPut, "/agent/hospital/active", a.agent, `{}`),
		http.StatusBadRequest, "invalid_request")
}

func TestAgentCannotTouchOtherHospital(t *testing.T) {
	a := newTestAPI(t)
	appt := a.schedule(a.donor)

	expectError(t, a.do(http.MethodPost, "/agent/appointments/"+appt.ID.String()+"/complete", a.otherAgent, CompleteDonationRequest{Units: 1}),
		http.StatusForbidden, "other_hospital")
	expectError(t, a.do(http.MethodPost, "/agent/appointments/"+appt.ID.String()+"/status", a.otherAgent, SetStatusRequest{Status: "no_show"}),
		http.StatusForbidden, "other_hospital")
	expectError(t, a.do(http.MethodPost, "/agent/appointments/"+uuid.NewString()+"/status", a.agent, SetStatusRequest{Status: "no_show"}),
		http.StatusNotFound, "appointment_not_found")
}

func TestSetAppointmentStatus(t *testing.T) {
	a := newTestAPI(t)
	appt := a.schedule(a.donor)
	path := "/agent/appointments/" + appt.ID.String() + "/status"

	expectError(t, a.do(http.MethodPost, path, a.agent, SetStatusRequest{Status: "completed"}),
		http.StatusBadRequest, "validation_error")
	expectError(t, a.do(http.MethodPost, path, a.agent, SetStatusRequest{Status: "done"}),
		http.StatusBadRequest, "invalid_request")

	resp := a.do(http.MethodPost, path, a.agent, SetStatusRequest{Status: "no_show"})
	expectStatus(t, resp, http.StatusOK)
	if got := decode[AppointmentResponse](t, resp); got.Status != "no_show" {
		t.Fatalf("expected no_show, got %q", got.Status)
	}

	expectError(t, a.do(http.MethodPost, path, a.agent, SetStatusRequest{Status: "cancelled"}),
		http.StatusConflict, "invalid_status_transition")
}

func TestDonorCancel(t *testing.T) {
	a := newTestAPI(t)
	appt := a.schedule(a.donor)
	path := "/donor/appointments/" + appt.ID.String() + "/cancel"

	expectError(t, a.do(http.MethodPost, path, a.otherDonor, nil), http.StatusForbidden, "not_owner")

	resp := a.do(http.MethodPost, path, a.donor, nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[AppointmentResponse](t, resp); got.Status != "cancelled" {
		t.Fatalf("expected cancelled, got %q", got.Status)
	}

	resp = a.do(http.MethodGet, "/donor/appointments/current", a.donor, nil)
	expectStatus(t, resp, http.StatusOK)
	if cur := decode[CurrentAppointmentResponse](t, resp); cur.Appointment != nil {
		t.Fatalf("expected no current appointment, got %+v", cur.Appointment)
	}

	a.schedule(a.donor)
}

func TestHospitalToggle(t *testing.T) {
	a := newTestAPI(t)

	resp := a.do(http.MethodPut, "/agent/hospital/active", a.agent, map[string]bool{"is_active": false})
	expectStatus(t, resp, http.StatusOK)
	if h := decode[HospitalResponse](t, resp); h.IsActive {
		t.Fatal("expected hospital to be inactive")
	}

	expectError(t, a.do(http.MethodPost, "/donor/appointments", a.donor, ScheduleAppointmentRequest{
		HospitalID:   a.hospital.ID.String(),
		TimeWindowID: a.window.ID.String(),
	}), http.StatusConflict, "hospital_not_accepting")

	resp = a.do(http.MethodGet, "/hospitals", a.donor, nil)
	expectStatus(t, resp, http.StatusOK)
	if hs := decode[[]HospitalResponse](t, resp); len(hs) != 1 || hs[0].ID != a.otherHospital.ID {
		t.Fatalf("expected only the other hospital, got %+v", hs)
	}

	resp = a.do(http.MethodGet, "/agent/hospital", a.agent, nil)
	expectStatus(t, resp, http.StatusOK)
	if h := decode[HospitalResponse](t, resp); h.ID != a.hospital.ID || h.IsActive {
		t.Fatalf("unexpected hospital: %+v", h)
	}
}

func TestHospitalAppointmentViews(t *testing.T) {
	a := newTestAPI(t)
	a.schedule(a.donor)

	resp := a.do(http.MethodGet, "/agent/appointments", a.agent, nil)
	expectStatus(t, resp, http.StatusOK)
	p := decode[PartitionsResponse](t, resp)
	if len(p.Today) != 0 || len(p.Upcoming) != 1 || len(p.Other) != 0 {
		t.Fatalf("unexpected partitions: today=%d upcoming=%d other=%d", len(p.Today), len(p.Upcoming), len(p.Other))
	}

	expectError(t, a.do(http.MethodGet, "/agent/appointments?view=yesterday", a.agent, nil),
		http.StatusBadRequest, "validation_error")
}

func TestRequestDonors(t *testing.T) {
	a := newTestAPI(t)
	body := DonationRequestBody{BloodType: "O+", Message: "Stocks are low, please come in."}

	expectError(t, a.do(http.MethodPost, "/agent/donation-requests", a.agent, body),
		http.StatusNotFound, "no_recipients")

	appt := a.schedule(a.donor)
	resp := a.do(http.MethodPost, "/agent/appointments/"+appt.ID.String()+"/complete", a.agent, CompleteDonationRequest{Units: 1})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = a.do(http.MethodPost, "/agent/donation-requests", a.agent, body)
	expectStatus(t, resp, http.StatusAccepted)
	if got := decode[DonationRequestResponse](t, resp); got.Recipients != 1 {
		t.Fatalf("expected 1 recipient, got %d", got.Recipients)
	}
	if sent := a.notifier.sent(); len(sent) != 1 || sent[0] != "amina@example.com" {
		t.Fatalf("unexpected notified emails: %v", sent)
	}

	expectError(t, a.do(http.MethodPost, "/agent/donation-requests", a.agent, DonationRequestBody{BloodType: "Z+", Message: "x"}),
		http.StatusBadRequest, "invalid_request")
}

func TestAdminDashboard(t *testing.T) {
	a := newTestAPI(t)

	resp := a.do(http.MethodGet, "/admin/stats", a.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	d := decode[stats.Dashboard](t, resp)
	if d.Counters.TotalDonors != 3 || len(d.Inventory) != 1 {
		t.Fatalf("unexpected dashboard: %+v", d)
	}
	if len(d.Alerts) != 1 || d.Alerts[0].Type != "urgent" {
		t.Fatalf("expected one urgent alert, got %+v", d.Alerts)
	}
}

func TestAdminAssignments(t *testing.T) {
	a := newTestAPI(t)

	resp := a.do(http.MethodGet, "/admin/agents", a.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	if agents := decode[[]AgentResponse](t, resp); len(agents) != 3 {
		t.Fatalf("expected 3 agents, got %d", len(agents))
	}

	expectError(t, a.do(http.MethodPost, "/admin/assignments", a.admin, AssignAgentRequest{
		AgentID: a.agent.String(), HospitalID: a.otherHospital.ID.String(),
	}), http.StatusConflict, "already_assigned")

	resp = a.do(http.MethodPost, "/admin/assignments", a.admin, AssignAgentRequest{
		AgentID: a.idleAgent.String(), HospitalID: a.otherHospital.ID.String(),
	})
	expectStatus(t, resp, http.StatusCreated)
	if as := decode[AssignmentResponse](t, resp); !as.IsActive || as.HospitalID != a.otherHospital.ID {
		t.Fatalf("unexpected assignment: %+v", as)
	}

	resp = a.do(http.MethodGet, "/agent/hospital", a.idleAgent, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = a.do(http.MethodDelete, "/admin/assignments/"+a.idleAgent.String(), a.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	if as := decode[AssignmentResponse](t, resp); as.IsActive || as.UnassignedAt == nil {
		t.Fatalf("unexpected unassignment: %+v", as)
	}

	expectError(t, a.do(http.MethodDelete, "/admin/assignments/"+a.idleAgent.String(), a.admin, nil),
		http.StatusNotFound, "no_assignment")
	expectError(t, a.do(http.MethodGet, "/agent/hospital", a.idleAgent, nil),
		http.StatusForbidden, "agent_not_assigned")
}
