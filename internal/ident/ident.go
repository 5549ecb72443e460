// Package ident produces timezone-stable date strings and entry identifiers.
package ident

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"condoledger/internal/fiscal"
)

// Formatter renders dates and identifiers through the deployment calendar's
// zone. An instant stored correctly in absolute time still formats to the
// wrong calendar day if extracted in the process's ambient zone; routing
// everything through the calendar prevents that.
type Formatter struct {
	cal *fiscal.Calendar
}

func NewFormatter(cal *fiscal.Calendar) *Formatter {
	return &Formatter{cal: cal}
}

// FormatDate renders an instant as YYYY-MM-DD in the deployment zone.
func (f *Formatter) FormatDate(t time.Time) string {
	return t.In(f.cal.Location()).Format("2006-01-02")
}

// NewEntryID builds a unique entry identifier: prefix, instant in the
// deployment zone, random suffix. Concurrent calls need no coordination;
// the suffix carries the collision resistance.
func (f *Formatter) NewEntryID(prefix string, t time.Time) string {
	stamp := t.In(f.cal.Location()).Format("20060102T150405")
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("%s-%s-%s", prefix, stamp, suffix)
}
