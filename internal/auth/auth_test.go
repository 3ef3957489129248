package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
)

func TestTokensRoundTrip(t *testing.T) {
	tokens, err := NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	id := uuid.New()

	tok, err := tokens.Generate(id)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	got, err := tokens.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != id {
		t.Fatalf("subject = %v, want %v", got, id)
	}
}

func TestTokensRejectInvalid(t *testing.T) {
	tokens, _ := NewTokens("test-secret", time.Hour)
	other, _ := NewTokens("other-secret", time.Hour)
	id := uuid.New()

	foreign, _ := other.Generate(id)
	if _, err := tokens.Parse(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret: expected ErrInvalidToken, got %v", err)
	}

	tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := tokens.Generate(id)
	tokens.now = time.Now
	if _, err := tokens.Parse(expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired: expected ErrInvalidToken, got %v", err)
	}

	wrongIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   id.String(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	if _, err := tokens.Parse(wrongIssuer); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("issuer: expected ErrInvalidToken, got %v", err)
	}

	for _, bad := range []string{"", "garbage", "a.b.c"} {
		if _, err := tokens.Parse(bad); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%q: expected ErrInvalidToken, got %v", bad, err)
		}
	}
}

func TestNewTokensRequiresSecret(t *testing.T) {
	if _, err := NewTokens("  ", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewTokens("s", 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestParseRole(t *testing.T) {
	if r, ok := ParseRole(" Agent "); !ok || r != RoleAgent {
		t.Fatalf("ParseRole = %v, %v", r, ok)
	}
	if _, ok := ParseRole("nurse"); ok {
		t.Fatal("unexpected role accepted")
	}
}

func TestIdentityContext(t *testing.T) {
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Fatal("identity on empty context")
	}
	id := Identity{UserID: uuid.New(), Role: RoleDonor}
	got, ok := IdentityFromContext(ContextWithIdentity(context.Background(), id))
	if !ok || got != id {
		t.Fatalf("identity = %+v, %v", got, ok)
	}

	h := uuid.New()
	if got, ok := HospitalFromContext(ContextWithHospital(context.Background(), h)); !ok || got != h {
		t.Fatalf("hospital = %v, %v", got, ok)
	}
}

type countingStore struct {
	calls int
	role  Role
}

func (s *countingStore) RoleOf(context.Context, uuid.UUID) (Role, error) {
	s.calls++
	return s.role, nil
}

type memCache struct {
	data map[string]Role
	fail bool
}

func (c *memCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	if c.fail {
		return false, errors.New("redis down")
	}
	r, ok := c.data[key]
	if ok {
		*dst.(*Role) = r
	}
	return ok, nil
}

func (c *memCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	if c.fail {
		return errors.New("redis down")
	}
	c.data[key] = v.(Role)
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func TestCachedRoleStore(t *testing.T) {
	next := &countingStore{role: RoleAgent}
	cache := &memCache{data: map[string]Role{}}
	store := NewCachedRoleStore(next, cache, time.Minute, nil)
	id := uuid.New()

	for i := 0; i < 3; i++ {
		r, err := store.RoleOf(context.Background(), id)
		if err != nil || r != RoleAgent {
			t.Fatalf("RoleOf = %v, %v", r, err)
		}
	}
	if next.calls != 1 {
		t.Fatalf("backing calls = %d, want 1", next.calls)
	}

	cache.fail = true
	if r, err := store.RoleOf(context.Background(), id); err != nil || r != RoleAgent {
		t.Fatalf("RoleOf with cache down = %v, %v", r, err)
	}
	if next.calls != 2 {
		t.Fatalf("backing calls = %d, want 2", next.calls)
	}
}

func TestPgRoleStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	known, unknown := uuid.New(), uuid.New()
	mock.ExpectQuery("SELECT role FROM user_roles").
		WithArgs(known).
		WillReturnRows(pgxmock.NewRows([]string{"role"}).AddRow("admin"))
	mock.ExpectQuery("SELECT role FROM user_roles").
		WithArgs(unknown).
		WillReturnRows(pgxmock.NewRows([]string{"role"}))

	store := NewPgRoleStore(mock)
	if r, err := store.RoleOf(context.Background(), known); err != nil || r != RoleAdmin {
		t.Fatalf("RoleOf = %v, %v", r, err)
	}
	if _, err := store.RoleOf(context.Background(), unknown); !errors.Is(err, ErrNoRole) {
		t.Fatalf("expected ErrNoRole, got %v", err)
	}
}
