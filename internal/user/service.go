package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/hackgods/doctor-appointment-scheduling/internal/apperr"
	"github.com/hackgods/doctor-appointment-scheduling/internal/auth"
)

var ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthorized)

// AvailabilityCounter reports how many availability windows a doctor has.
type AvailabilityCounter interface {
	CountForDoctor(ctx context.Context, doctorID string) (int, error)
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Type     auth.Role
}

type Service struct {
	repo     Repository
	tokens   *auth.Tokens
	counter  AvailabilityCounter
	validate *validator.Validate
	log      zerolog.Logger
	cost     int
	now      func() time.Time
}

func NewService(repo Repository, tokens *auth.Tokens, counter AvailabilityCounter, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		tokens:   tokens,
		counter:  counter,
		validate: validator.New(),
		log:      log.With().Str("component", "user").Logger(),
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	email := normalizeEmail(in.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, apperr.Invalid("email", "must be a valid email address")
	}
	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		return nil, apperr.Invalid("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	if len(in.Password) > MaxPasswordBytes {
		return nil, apperr.Invalid("password", fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes))
	}
	role := in.Type
	if role == "" {
		role = auth.RolePatient
	}
	if !role.Valid() {
		return nil, apperr.Invalid("type", "must be DOCTOR or PATIENT")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Type:         role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", u.ID).Str("type", string(u.Type)).Msg("user registered")
	return u, nil
}

// Authenticate checks the credentials and returns the user with a signed
// access token.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, string, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.Caller())
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *Service) Me(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context) ([]Doctor, error) {
	users, err := s.repo.ListByType(ctx, auth.RoleDoctor)
	if err != nil {
		return nil, err
	}

	result := make([]Doctor, 0, len(users))
	for _, u := range users {
		n, err := s.counter.CountForDoctor(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("count availability for %s: %w", u.ID, err)
		}
		result = append(result, Doctor{User: *u, AvailabilityCount: n})
	}
	return result, nil
}
