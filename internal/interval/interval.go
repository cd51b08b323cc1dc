// Package interval implements the pure time math behind availability
// analysis: decoding merged free/busy strings, merging overlapping busy
// periods, and locating free gaps within a working day.
package interval

import "time"

// MergedFreeBusy digit values. Each character of a merged free/busy
// string covers one slot (30 minutes by convention).
const (
	Free             = '0'
	Tentative        = '1'
	Busy             = '2'
	OutOfOffice      = '3'
	WorkingElsewhere = '4'
)

// DefaultSlot is the merged free/busy slot width.
const DefaultSlot = 30 * time.Minute

// Period is a half-open [Start, End) time span. Status carries the
// free/busy digit for parsed periods and is zero after merging.
type Period struct {
	Start  time.Time
	End    time.Time
	Status byte
}

// Duration returns the period length.
func (p Period) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// ParseMergedFreeBusy decodes a merged free/busy string into busy
// periods. The first character covers [start, start+slot); free slots
// ('0') produce no period, everything else is treated as busy.
// Characters outside the known digit set are kept as busy with their
// literal status, matching the server's "anything not free is busy"
// contract.
func ParseMergedFreeBusy(s string, start time.Time, slot time.Duration) []Period {
	if slot <= 0 {
		slot = DefaultSlot
	}
	var busy []Period
	current := start
	for i := 0; i < len(s); i++ {
		next := current.Add(slot)
		if s[i] != Free {
			busy = append(busy, Period{Start: current, End: next, Status: s[i]})
		}
		current = next
	}
	return busy
}

// Merge coalesces overlapping and touching busy periods into a minimal
// sorted set. Periods that merely touch (one ends exactly when the next
// starts) merge into one, so back-to-back meetings never leave a
// zero-width gap. The input is not modified.
func Merge(periods []Period) []Period {
	if len(periods) == 0 {
		return nil
	}

	sorted := make([]Period, len(periods))
	copy(sorted, periods)
	sortPeriods(sorted)

	merged := []Period{{Start: sorted[0].Start, End: sorted[0].End}}
	for _, p := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !p.Start.After(last.End) {
			if p.End.After(last.End) {
				last.End = p.End
			}
			continue
		}
		merged = append(merged, Period{Start: p.Start, End: p.End})
	}
	return merged
}

func sortPeriods(periods []Period) {
	// Insertion sort keeps equal-start periods in input order, which
	// the merge result does not depend on but tests appreciate.
	for i := 1; i < len(periods); i++ {
		for j := i; j > 0 && periods[j].Start.Before(periods[j-1].Start); j-- {
			periods[j], periods[j-1] = periods[j-1], periods[j]
		}
	}
}

// FindFreeSlots returns the free gaps on the given day between
// startHour and endHour that are at least minDuration long. Busy
// periods are clamped to the working window first; periods from other
// days are ignored. The day is taken from the date portion of day.
func FindFreeSlots(busy []Period, day time.Time, startHour, endHour int, minDuration time.Duration) []Period {
	year, month, date := day.Date()
	dayStart := time.Date(year, month, date, startHour, 0, 0, 0, day.Location())
	dayEnd := time.Date(year, month, date, endHour, 0, 0, 0, day.Location())

	var dayBusy []Period
	for _, p := range busy {
		if DateOf(p.End).Before(DateOf(day)) || DateOf(p.Start).After(DateOf(day)) {
			continue
		}
		start, end := p.Start, p.End
		if start.Before(dayStart) {
			start = dayStart
		}
		if end.After(dayEnd) {
			end = dayEnd
		}
		if start.Before(end) {
			dayBusy = append(dayBusy, Period{Start: start, End: end})
		}
	}

	merged := Merge(dayBusy)

	var free []Period
	current := dayStart
	for _, b := range merged {
		if current.Before(b.Start) && b.Start.Sub(current) >= minDuration {
			free = append(free, Period{Start: current, End: b.Start})
		}
		if b.End.After(current) {
			current = b.End
		}
	}
	if current.Before(dayEnd) && dayEnd.Sub(current) >= minDuration {
		free = append(free, Period{Start: current, End: dayEnd})
	}
	return free
}

// DateOf truncates t to midnight in its own location.
func DateOf(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// IsWorkday reports whether t falls on Monday through Friday.
func IsWorkday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// Workdays counts the weekdays in the half-open range [start, end).
func Workdays(start, end time.Time) int {
	count := 0
	for d := DateOf(start); d.Before(DateOf(end)); d = d.AddDate(0, 0, 1) {
		if IsWorkday(d) {
			count++
		}
	}
	return count
}

// ParseWallClock parses an ISO 8601 timestamp and strips the zone,
// keeping the literal clock fields. Server responses render event
// times already shifted into the requested timezone context, so the
// wall clock is the value that matters and offsets only get in the way
// of comparisons.
func ParseWallClock(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// Some server fields omit the zone entirely.
		t, err = time.Parse("2006-01-02T15:04:05", s)
		if err != nil {
			return time.Time{}, err
		}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
}
