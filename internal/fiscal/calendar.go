// Package fiscal maps calendar instants to fiscal periods.
//
// Every calendar-component extraction in the application goes through a
// Calendar bound to one fixed IANA zone. The zone of the running process is
// never consulted: two deployments in different zones must agree on the
// fiscal period and the date string of the same instant.
package fiscal

import (
	"fmt"
	"time"

	"condoledger/internal/core"
)

// Calendar converts instants into fiscal periods for one deployment zone.
type Calendar struct {
	loc *time.Location
}

// Period is a derived fiscal coordinate. Month and Quarter are fiscal
// indexes, not calendar ones: Month 1 is whatever calendar month the fiscal
// year starts in.
type Period struct {
	Year    int
	Month   int // 1-12
	Quarter int // 1-4
}

// NewCalendar loads the deployment zone. A bad zone name is fatal
// configuration, not a runtime condition.
func NewCalendar(zone string) (*Calendar, error) {
	if zone == "" {
		return nil, fmt.Errorf("%w: empty time zone", core.ErrInvalidConfig)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("%w: load time zone %q: %v", core.ErrInvalidConfig, zone, err)
	}
	return &Calendar{loc: loc}, nil
}

// Location exposes the fixed zone for formatting paths that need it.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// ToPeriod maps an instant to its fiscal period for an account whose fiscal
// year begins in calendar month startMonth (1-12, 1 = January).
//
// The fiscal year is the calendar year the fiscal year began in: with a July
// start, September 2025 is FY2025 month 3, but May 2025 is FY2024 month 11.
func (c *Calendar) ToPeriod(t time.Time, startMonth int) (Period, error) {
	if startMonth < 1 || startMonth > 12 {
		return Period{}, fmt.Errorf("%w: fiscal year start month %d out of range 1-12", core.ErrInvalidConfig, startMonth)
	}
	local := t.In(c.loc)
	m := int(local.Month())

	fiscalMonth := ((m-startMonth+12)%12 + 1)
	fiscalYear := local.Year()
	if m < startMonth {
		fiscalYear--
	}
	return Period{
		Year:    fiscalYear,
		Month:   fiscalMonth,
		Quarter: (fiscalMonth + 2) / 3,
	}, nil
}

// QuarterMonths returns the three fiscal month indexes of a quarter.
func QuarterMonths(quarter int) ([3]int, error) {
	if quarter < 1 || quarter > 4 {
		return [3]int{}, fmt.Errorf("%w: quarter %d out of range 1-4", core.ErrInvalidConfig, quarter)
	}
	first := (quarter-1)*3 + 1
	return [3]int{first, first + 1, first + 2}, nil
}

func (p Period) String() string {
	return fmt.Sprintf("FY%04d-M%02d", p.Year, p.Month)
}
