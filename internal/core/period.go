package core

import (
	"fmt"
	"time"
)

var monthNames = [12]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// Period is a calendar month. Month is 1-indexed.
type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// NewPeriod returns a validated period.
func NewPeriod(month, year int) (Period, error) {
	p := Period{Month: month, Year: year}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// PeriodOf returns the period containing t, in t's location.
func PeriodOf(t time.Time) Period {
	return Period{Month: int(t.Month()), Year: t.Year()}
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, p.Month)
	}
	if p.Year < 1 || p.Year > 9999 {
		return fmt.Errorf("%w: %d", ErrInvalidYear, p.Year)
	}
	return nil
}

// Bounds returns the first and the last instant of the month in loc. Both are
// inclusive.
func (p Period) Bounds(loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}

// Contains reports whether t falls within the month in loc.
func (p Period) Contains(t time.Time, loc *time.Location) bool {
	start, end := p.Bounds(loc)
	return !t.Before(start) && !t.After(end)
}

// Previous returns the month before p, wrapping into the previous year.
func (p Period) Previous() Period {
	if p.Month <= 1 {
		return Period{Month: 12, Year: p.Year - 1}
	}
	return Period{Month: p.Month - 1, Year: p.Year}
}

// Next returns the month after p, wrapping into the next year.
func (p Period) Next() Period {
	if p.Month >= 12 {
		return Period{Month: 1, Year: p.Year + 1}
	}
	return Period{Month: p.Month + 1, Year: p.Year}
}

// Before reports whether p is strictly earlier than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// IsFuture reports whether p lies after the month containing now. Future
// months cannot be analysed.
func (p Period) IsFuture(now time.Time) bool {
	return PeriodOf(now).Before(p)
}

// Name returns the Portuguese month name, or an empty string for an invalid
// month.
func (p Period) Name() string {
	if p.Month < 1 || p.Month > 12 {
		return ""
	}
	return monthNames[p.Month-1]
}

// MonthNames returns the month names in calendar order.
func MonthNames() []string {
	return monthNames[:]
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}
