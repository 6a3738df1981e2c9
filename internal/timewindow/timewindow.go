// Package timewindow resolves user-local calendar days and Monday-start weeks and translates them to UTC instants.
//
// Calendar dates are represented as [time.Time] values at midnight UTC. They carry no instant semantics; use
// [UTCRange] to obtain the instants that bound a local date range.
package timewindow

import (
	"regexp"
	"sync"
	"time"
	// Embedded zone data so that resolution does not depend on the host.
	_ "time/tzdata"
)

const day = 24 * time.Hour

var (
	tzPattern = regexp.MustCompile(`^[A-Za-z0-9_/+-]+$`)
	locations sync.Map
)

// Sanitize returns tz when it only contains characters allowed in IANA zone names and "UTC" otherwise.
func Sanitize(tz string) string {
	if tz == "" || !tzPattern.MatchString(tz) {
		return "UTC"
	}
	return tz
}

// Location loads the zone named tz. Unsafe or unknown names resolve to UTC.
func Location(tz string) *time.Location {
	tz = Sanitize(tz)
	if loc, ok := locations.Load(tz); ok {
		return loc.(*time.Location) //nolint:forcetypeassert // only *time.Location is stored
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	locations.Store(tz, loc)
	return loc
}

// Resolver answers "today" questions against an injectable clock.
type Resolver struct {
	now func() time.Time
}

// NewResolver returns a Resolver using now as the clock. A nil now uses [time.Now].
func NewResolver(now func() time.Time) Resolver {
	if now == nil {
		now = time.Now
	}
	return Resolver{now: now}
}

// Now returns the current instant.
func (r Resolver) Now() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}

// Today returns the calendar date in tz.
func (r Resolver) Today(tz string) time.Time {
	return LocalDate(r.Now(), Location(tz))
}

// LocalDate returns the calendar date of instant as observed in loc.
func LocalDate(instant time.Time, loc *time.Location) time.Time {
	return Date(instant.In(loc))
}

// Date truncates t to its calendar date using t's own location.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekStart returns the Monday of the week containing d.
func WeekStart(d time.Time) time.Time {
	return Date(d).AddDate(0, 0, -isoWeekdayOffset(d.Weekday()))
}

// LastCompletedWeek returns the Monday and Sunday of the latest week that ended before today.
func LastCompletedWeek(today time.Time) (time.Time, time.Time) {
	end := Date(today).AddDate(0, 0, -(isoWeekdayOffset(today.Weekday()) + 1))
	return end.AddDate(0, 0, -6), end //nolint:mnd // Monday is six days before Sunday.
}

// UTCRange returns the half-open instant range [start, end) covering the local dates start through
// endInclusive in tz.
func UTCRange(tz string, start, endInclusive time.Time) (time.Time, time.Time) {
	loc := Location(tz)
	from := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	to := time.Date(endInclusive.Year(), endInclusive.Month(), endInclusive.Day()+1, 0, 0, 0, 0, loc)
	return from.UTC(), to.UTC()
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)) / day)
}

// InWindow reports whether now, observed in tz, falls on weekday between startHour inclusive and endHour exclusive.
func InWindow(now time.Time, tz string, weekday time.Weekday, startHour, endHour int) bool {
	local := now.In(Location(tz))
	return local.Weekday() == weekday && local.Hour() >= startHour && local.Hour() < endHour
}

// FormatDate renders a calendar date for storage.
func FormatDate(d time.Time) string {
	return d.Format(time.DateOnly)
}

// ParseDate parses a calendar date rendered by [FormatDate].
func ParseDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s) //nolint:wrapcheck // the time error is descriptive
}

func isoWeekdayOffset(w time.Weekday) int {
	return (int(w) + 6) % 7 //nolint:mnd // Monday is offset zero.
}
