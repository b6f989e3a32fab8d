package user

import (
	"time"

	"github.com/hackgods/doctor-appointment-scheduling/internal/auth"
)

const MinPasswordLength = 6

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Type         auth.Role
	CreatedAt    time.Time
}

func (u *User) Caller() auth.Caller {
	return auth.Caller{ID: u.ID, Role: u.Type}
}

// Doctor is a doctor listing entry with the number of availability windows
// they have published.
type Doctor struct {
	User
	AvailabilityCount int
}
