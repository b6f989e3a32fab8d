package user

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/hackgods/doctor-appointment-scheduling/internal/apperr"
	"github.com/hackgods/doctor-appointment-scheduling/internal/auth"
)

type fakeCounter map[string]int

func (f fakeCounter) CountForDoctor(_ context.Context, doctorID string) (int, error) {
	return f[doctorID], nil
}

func newTestService(counter AvailabilityCounter) (*Service, *auth.Tokens) {
	tokens := auth.NewTokens("test-secret", time.Hour)
	svc := NewService(NewMemoryRepository(), tokens, counter, zerolog.Nop())
	svc.cost = bcrypt.MinCost
	return svc, tokens
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, tokens := newTestService(fakeCounter{})
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "  Ana@Example.com ", Password: "secret1", Type: auth.RoleDoctor})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != "ana@example.com" || u.Type != auth.RoleDoctor || u.PasswordHash == "secret1" {
		t.Fatalf("unexpected user %+v", u)
	}

	got, token, err := svc.Authenticate(ctx, "ANA@example.com", "secret1")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("expected %s, got %s", u.ID, got.ID)
	}

	caller, err := tokens.Parse(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if caller.ID != u.ID || caller.Role != auth.RoleDoctor {
		t.Fatalf("unexpected caller %+v", caller)
	}
}

func TestRegister_DefaultsToPatient(t *testing.T) {
	svc, _ := newTestService(fakeCounter{})
	u, err := svc.Register(context.Background(), RegisterInput{Name: "Bo", Email: "bo@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Type != auth.RolePatient {
		t.Fatalf("expected PATIENT, got %s", u.Type)
	}
}

func TestRegister_Errors(t *testing.T) {
	svc, _ := newTestService(fakeCounter{})
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	tests := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"missing name", RegisterInput{Email: "x@example.com", Password: "secret1"}, apperr.ErrValidation},
		{"bad email", RegisterInput{Name: "X", Email: "not-an-email", Password: "secret1"}, apperr.ErrValidation},
		{"short password", RegisterInput{Name: "X", Email: "x@example.com", Password: "12345"}, apperr.ErrValidation},
		{"password over bcrypt limit", RegisterInput{Name: "X", Email: "x@example.com", Password: strings.Repeat("a", MaxPasswordBytes+1)}, apperr.ErrValidation},
		{"multibyte password over bcrypt limit", RegisterInput{Name: "X", Email: "x@example.com", Password: strings.Repeat("é", 40)}, apperr.ErrValidation},
		{"bad type", RegisterInput{Name: "X", Email: "x@example.com", Password: "secret1", Type: "ADMIN"}, apperr.ErrValidation},
		{"duplicate email", RegisterInput{Name: "X", Email: "ANA@example.com", Password: "secret1"}, apperr.ErrConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAuthenticate_InvalidCredentials(t *testing.T) {
	svc, _ := newTestService(fakeCounter{})
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := svc.Authenticate(ctx, "ana@example.com", "wrong!"); !errors.Is(err, ErrInvalidCredentials) || !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, _, err := svc.Authenticate(ctx, "nobody@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: got %v", err)
	}
}

func TestMeAndListDoctors(t *testing.T) {
	counter := fakeCounter{}
	svc, _ := newTestService(counter)
	ctx := context.Background()

	d1, _ := svc.Register(ctx, RegisterInput{Name: "D1", Email: "d1@example.com", Password: "secret1", Type: auth.RoleDoctor})
	_, _ = svc.Register(ctx, RegisterInput{Name: "P1", Email: "p1@example.com", Password: "secret1"})
	d2, _ := svc.Register(ctx, RegisterInput{Name: "D2", Email: "d2@example.com", Password: "secret1", Type: auth.RoleDoctor})
	counter[d1.ID] = 2

	me, err := svc.Me(ctx, d1.ID)
	if err != nil || me.Name != "D1" {
		t.Fatalf("me: %v %+v", err, me)
	}
	if _, err := svc.Me(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	doctors, err := svc.ListDoctors(ctx)
	if err != nil {
		t.Fatalf("list doctors: %v", err)
	}
	if len(doctors) != 2 {
		t.Fatalf("expected 2 doctors, got %d", len(doctors))
	}
	if doctors[0].ID != d1.ID || doctors[0].AvailabilityCount != 2 {
		t.Fatalf("unexpected first doctor %+v", doctors[0])
	}
	if doctors[1].ID != d2.ID || doctors[1].AvailabilityCount != 0 {
		t.Fatalf("unexpected second doctor %+v", doctors[1])
	}
}

type countingRepo struct {
	*MemoryRepository
	gets int
}

func (c *countingRepo) GetByID(ctx context.Context, id string) (*User, error) {
	c.gets++
	return c.MemoryRepository.GetByID(ctx, id)
}

func TestCachedRepository(t *testing.T) {
	inner := &countingRepo{MemoryRepository: NewMemoryRepository()}
	repo, err := NewCachedRepository(inner, 8)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	ctx := context.Background()
	if err := repo.Create(ctx, &User{ID: "u1", Name: "A", Email: "a@example.com", Type: auth.RolePatient}); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 3; i++ {
		u, err := repo.GetByID(ctx, "u1")
		if err != nil || u.Name != "A" {
			t.Fatalf("get: %v %+v", err, u)
		}
	}
	if inner.gets != 1 {
		t.Fatalf("expected one backend read, got %d", inner.gets)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	if _, err := NewCachedRepository(inner, 0); err == nil {
		t.Fatalf("expected error for non-positive size")
	}
}
