package fiscal

import (
	"errors"
	"testing"
	"time"

	"condoledger/internal/core"
)

func TestNewCalendar(t *testing.T) {
	if _, err := NewCalendar("Europe/Rome"); err != nil {
		t.Fatalf("expected valid zone, got %v", err)
	}
	for _, zone := range []string{"", "Mars/Olympus"} {
		_, err := NewCalendar(zone)
		if !errors.Is(err, core.ErrInvalidConfig) {
			t.Fatalf("zone %q: expected ErrInvalidConfig, got %v", zone, err)
		}
	}
}

func TestToPeriod(t *testing.T) {
	cal, err := NewCalendar("UTC")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name       string
		instant    time.Time
		startMonth int
		want       Period
	}{
		{
			// July fiscal start, mid-September: third fiscal month, Q1.
			name:       "july start september instant",
			instant:    time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
			startMonth: 7,
			want:       Period{Year: 2025, Month: 3, Quarter: 1},
		},
		{
			name:       "july start before fiscal new year",
			instant:    time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC),
			startMonth: 7,
			want:       Period{Year: 2024, Month: 11, Quarter: 4},
		},
		{
			name:       "january start matches calendar",
			instant:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			startMonth: 1,
			want:       Period{Year: 2025, Month: 3, Quarter: 1},
		},
		{
			name:       "december instant january start",
			instant:    time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC),
			startMonth: 1,
			want:       Period{Year: 2025, Month: 12, Quarter: 4},
		},
		{
			name:       "start month equals instant month",
			instant:    time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
			startMonth: 7,
			want:       Period{Year: 2025, Month: 1, Quarter: 1},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := cal.ToPeriod(tc.instant, tc.startMonth)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}

	t.Run("invalid start month", func(t *testing.T) {
		for _, m := range []int{0, 13, -1} {
			if _, err := cal.ToPeriod(time.Now(), m); !errors.Is(err, core.ErrInvalidConfig) {
				t.Fatalf("start month %d: expected ErrInvalidConfig, got %v", m, err)
			}
		}
	})
}

// The same instant must land in the same fiscal period no matter what zone
// the process happens to run in; only the calendar's zone matters.
func TestToPeriodZoneStability(t *testing.T) {
	cal, err := NewCalendar("Europe/Rome")
	if err != nil {
		t.Fatal(err)
	}

	// 23:30 UTC on Dec 31 is already Jan 1 in Rome.
	instant := time.Date(2025, 12, 31, 23, 30, 0, 0, time.UTC)

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatal(err)
	}
	for _, view := range []time.Time{instant, instant.In(tokyo), instant.In(time.UTC)} {
		p, err := cal.ToPeriod(view, 1)
		if err != nil {
			t.Fatal(err)
		}
		if p.Year != 2026 || p.Month != 1 {
			t.Fatalf("view %v: got %+v, want FY2026 month 1", view, p)
		}
	}
}

func TestQuarterMonths(t *testing.T) {
	months, err := QuarterMonths(2)
	if err != nil {
		t.Fatal(err)
	}
	if months != [3]int{4, 5, 6} {
		t.Fatalf("got %v", months)
	}
	if _, err := QuarterMonths(5); !errors.Is(err, core.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestPeriodString(t *testing.T) {
	p := Period{Year: 2025, Month: 3, Quarter: 1}
	if got := p.String(); got != "FY2025-M03" {
		t.Fatalf("got %q", got)
	}
}
