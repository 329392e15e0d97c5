package circulation

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Settings are the library-wide loan rules.
type Settings struct {
	LoanDuration        int     `json:"loanDuration"`    // days
	MaxBooksPerUser     int     `json:"maxBooksPerUser"` // advisory only
	FinePerDay          float64 `json:"finePerDay"`
	ReservationDuration int     `json:"reservationDuration"` // days
}

// DefaultSettings returns the rules used until staff change them.
func DefaultSettings() Settings {
	return Settings{
		LoanDuration:        14,
		MaxBooksPerUser:     5,
		FinePerDay:          0.50,
		ReservationDuration: 3,
	}
}

// WithDefaults replaces unset or nonsensical values with the defaults.
func (s Settings) WithDefaults() Settings {
	d := DefaultSettings()
	if s.LoanDuration <= 0 {
		s.LoanDuration = d.LoanDuration
	}
	if s.MaxBooksPerUser <= 0 {
		s.MaxBooksPerUser = d.MaxBooksPerUser
	}
	if s.FinePerDay < 0 {
		s.FinePerDay = d.FinePerDay
	}
	if s.ReservationDuration <= 0 {
		s.ReservationDuration = d.ReservationDuration
	}
	return s
}

// Set updates one field by its JSON name.
func (s *Settings) Set(key, value string) error {
	switch key {
	case "loanDuration", "maxBooksPerUser", "reservationDuration":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer", key)
		}
		switch key {
		case "loanDuration":
			s.LoanDuration = n
		case "maxBooksPerUser":
			s.MaxBooksPerUser = n
		default:
			s.ReservationDuration = n
		}
	case "finePerDay":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("finePerDay must be a non-negative number")
		}
		s.FinePerDay = f
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

// DueDate is now plus the loan duration in calendar days, in now's
// location.
func DueDate(now time.Time, s Settings) time.Time {
	return now.AddDate(0, 0, s.WithDefaults().LoanDuration)
}

// DaysOverdue is the number of started days past due, or 0.
func DaysOverdue(due, now time.Time) int {
	if !now.After(due) {
		return 0
	}
	return int(math.Ceil(now.Sub(due).Hours() / 24))
}

// CalculateFine is the overdue fine rounded to cents.
func CalculateFine(due, now time.Time, s Settings) float64 {
	days := DaysOverdue(due, now)
	if days == 0 {
		return 0
	}
	return math.Round(float64(days)*s.FinePerDay*100) / 100
}
