package dimension

import (
	"time"

	"marketdw/internal/model"
)

// Deriver turns timestamps into date/time dimension attributes. The
// reference location is supplied at construction; a zero timestamp is
// replaced with the current time in that location.
type Deriver struct {
	loc *time.Location
	now func() time.Time
}

// New constructs a Deriver for the given location.
func New(loc *time.Location) Deriver {
	if loc == nil {
		loc = time.UTC
	}
	return Deriver{loc: loc, now: time.Now}
}

// NewWithClock is like New but with an injectable clock.
func NewWithClock(loc *time.Location, now func() time.Time) Deriver {
	d := New(loc)
	if now != nil {
		d.now = now
	}
	return d
}

// Location returns the reference location.
func (d Deriver) Location() *time.Location {
	return d.loc
}

func (d Deriver) resolve(ts time.Time) time.Time {
	if ts.IsZero() {
		return d.now().In(d.loc)
	}
	return ts.In(d.loc)
}

// DateParts derives the calendar attributes for ts.
func (d Deriver) DateParts(ts time.Time) model.DateParts {
	t := d.resolve(ts)
	_, week := t.ISOWeek()
	month := int(t.Month())
	return model.DateParts{
		Date:    time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, d.loc),
		Day:     t.Day(),
		Week:    week,
		Month:   month,
		Quarter: Quarter(month),
		Year:    t.Year(),
	}
}

// TimeParts derives the clock attributes for ts.
func (d Deriver) TimeParts(ts time.Time) model.TimeParts {
	t := d.resolve(ts)
	return model.TimeParts{
		Time:   t,
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
}

// Quarter maps a month (1-12) onto its calendar quarter.
func Quarter(month int) int {
	return (month-1)/3 + 1
}
