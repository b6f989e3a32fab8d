package auth

import "context"

type Role string

const (
	RoleDoctor  Role = "DOCTOR"
	RolePatient Role = "PATIENT"
)

func (r Role) Valid() bool {
	return r == RoleDoctor || r == RolePatient
}

// Caller is an authenticated identity as seen by the domain services.
type Caller struct {
	ID   string
	Role Role
}

func (c Caller) IsDoctor() bool {
	return c.Role == RoleDoctor
}

type contextKey struct{}

// WithCaller stores the caller in ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// CallerFrom retrieves the caller stored by WithCaller.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(contextKey{}).(Caller)
	return c, ok
}
