package booking

import (
	"fmt"
	"time"

	"scams/internal/models"
)

// Result is the outcome of a validator. Message is empty when Valid is true.
type Result struct {
	Valid   bool   `json:"is_valid"`
	Message string `json:"message,omitempty"`
}

func ok() Result { return Result{Valid: true} }

func fail(msg string) Result { return Result{Message: msg} }

// Rules are the configurable limits applied to new and edited bookings.
type Rules struct {
	MinDuration    int // minutes
	MaxDuration    int // minutes
	MaxAdvanceDays int
	WorkdayMinutes int
}

// DefaultRules returns 30 min / 8 h / 90 days / 8 h workday.
func DefaultRules() Rules {
	return Rules{
		MinDuration:    models.DefaultMinDurationMinutes,
		MaxDuration:    models.DefaultMaxDurationMinutes,
		MaxAdvanceDays: models.DefaultMaxAdvanceDays,
		WorkdayMinutes: models.DefaultWorkdayMinutes,
	}
}

func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.MinDuration <= 0 {
		r.MinDuration = d.MinDuration
	}
	if r.MaxDuration <= 0 {
		r.MaxDuration = d.MaxDuration
	}
	if r.MaxAdvanceDays <= 0 {
		r.MaxAdvanceDays = d.MaxAdvanceDays
	}
	if r.WorkdayMinutes <= 0 {
		r.WorkdayMinutes = d.WorkdayMinutes
	}
	return r
}

// Validator applies Rules against a clock. The zero value uses DefaultRules and time.Now.
type Validator struct {
	rules Rules
	now   func() time.Time
}

func NewValidator(rules Rules, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{rules: rules.withDefaults(), now: now}
}

func (v *Validator) Rules() Rules {
	if v == nil {
		return DefaultRules()
	}
	return v.rules.withDefaults()
}

func (v *Validator) clock() time.Time {
	if v == nil || v.now == nil {
		return time.Now()
	}
	return v.now()
}

// ValidateTime checks that end follows start and the duration is inside
// [MinDuration, MaxDuration], both bounds inclusive.
func (v *Validator) ValidateTime(start, end string) Result {
	rules := v.Rules()

	iv, err := ParseInterval(start, end)
	if err != nil {
		return fail("Invalid time format; expected HH:MM")
	}
	if iv.End <= iv.Start {
		return fail("End time must be after start time")
	}
	if iv.Minutes() < rules.MinDuration {
		return fail(fmt.Sprintf("Booking must be at least %s", humanMinutes(rules.MinDuration)))
	}
	if iv.Minutes() > rules.MaxDuration {
		return fail(fmt.Sprintf("Booking cannot exceed %s", humanMinutes(rules.MaxDuration)))
	}
	return ok()
}

// ValidateDate rejects dates before today and after today+MaxAdvanceDays.
// Only the calendar date matters; the time of day of "now" is ignored.
func (v *Validator) ValidateDate(date string) Result {
	rules := v.Rules()
	now := v.clock()

	d, err := time.ParseInLocation(models.DateLayout, date, now.Location())
	if err != nil {
		return fail("Invalid date format; expected YYYY-MM-DD")
	}

	today := StartOfDay(now)
	if d.Before(today) {
		return fail("Cannot book rooms in the past")
	}
	if d.After(today.AddDate(0, 0, rules.MaxAdvanceDays)) {
		return fail(fmt.Sprintf("Cannot book rooms more than %d days in advance", rules.MaxAdvanceDays))
	}
	return ok()
}

// Today returns the validator's current date as YYYY-MM-DD.
func (v *Validator) Today() string {
	return v.clock().Format(models.DateLayout)
}

// ValidateTime runs the duration check with DefaultRules.
func ValidateTime(start, end string) Result {
	return (*Validator)(nil).ValidateTime(start, end)
}

// ValidateDate runs the booking-window check with DefaultRules against now.
func ValidateDate(date string, now time.Time) Result {
	return NewValidator(DefaultRules(), func() time.Time { return now }).ValidateDate(date)
}

// StartOfDay truncates t to local midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func humanMinutes(m int) string {
	if m%60 == 0 {
		h := m / 60
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return fmt.Sprintf("%d minutes", m)
}
