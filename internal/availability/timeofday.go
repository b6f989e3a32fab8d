package availability

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hackgods/doctor-appointment-scheduling/internal/apperr"
)

const (
	DateLayout    = "2006-01-02"
	minutesPerDay = 24 * 60
)

// TimeOfDay is a wall clock time expressed in minutes from midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" in the range 00:00-23:59.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	h, okH := twoDigits(s[0:2])
	m, okM := twoDigits(s[3:5])
	if !okH || !okM || h > 23 || m > 59 {
		return 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func twoDigits(s string) (int, bool) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ValidateDate checks a calendar day in YYYY-MM-DD form.
func ValidateDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return apperr.Invalid("date", "must be a valid YYYY-MM-DD date")
	}
	return nil
}

func parseTimeField(field, value string) (TimeOfDay, error) {
	t, err := ParseTimeOfDay(value)
	if err != nil {
		return 0, apperr.Invalid(field, "must be HH:MM between 00:00 and 23:59")
	}
	return t, nil
}
