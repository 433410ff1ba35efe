package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is a calendar month.
type Period struct {
	Year  int
	Month int // 1-12
}

// NewPeriod validates year and month.
func NewPeriod(year, month int) (Period, error) {
	if year < 1900 || year > 9999 {
		return Period{}, fmt.Errorf("%w: year %d", ErrInvalidPeriod, year)
	}
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: month %d", ErrInvalidPeriod, month)
	}
	return Period{Year: year, Month: month}, nil
}

// ParsePeriod accepts month values such as "3" and "03".
func ParsePeriod(year, month string) (Period, error) {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return Period{}, fmt.Errorf("%w: year %q", ErrInvalidPeriod, year)
	}
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil {
		return Period{}, fmt.Errorf("%w: month %q", ErrInvalidPeriod, month)
	}
	return NewPeriod(y, m)
}

// ParseStatementPeriod parses "MM-YYYY", the naming used for statement files.
func ParseStatementPeriod(s string) (Period, error) {
	month, year, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok || len(month) != 2 || len(year) != 4 {
		return Period{}, fmt.Errorf("%w: %q (want MM-YYYY)", ErrInvalidPeriod, s)
	}
	return ParsePeriod(year, month)
}

// PeriodOf returns the month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// YearString is the four-digit year used in strftime('%Y') comparisons.
func (p Period) YearString() string {
	return fmt.Sprintf("%04d", p.Year)
}

// MonthString is the zero-padded month used in strftime('%m') comparisons.
func (p Period) MonthString() string {
	return fmt.Sprintf("%02d", p.Month)
}

// FirstDay returns the first day of the month at midnight UTC.
func (p Period) FirstDay() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

func (p Period) String() string {
	return p.YearString() + "-" + p.MonthString()
}
