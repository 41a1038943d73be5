// Package occurrence computes the day of month of "the Nth weekday" and
// "the last weekday" of a month.
package occurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Occurrence selects a weekday within a month: 1..n counts from the start
// of the month, Last counts from the end.
type Occurrence int

const (
	First  Occurrence = 1
	Second Occurrence = 2
	Third  Occurrence = 3
	Fourth Occurrence = 4
	Last   Occurrence = -1
)

var (
	ErrInvalidOccurrence = errors.New("invalid occurrence")
	ErrMonthOutOfRange   = errors.New("month index out of range")
)

var tokens = map[string]Occurrence{
	"first":  First,
	"second": Second,
	"third":  Third,
	"fourth": Fourth,
	"last":   Last,
}

// Parse maps an occurrence token ("first".."fourth", "last") to its
// selector. Matching ignores case and surrounding whitespace.
func Parse(token string) (Occurrence, error) {
	if o, ok := tokens[strings.ToLower(strings.TrimSpace(token))]; ok {
		return o, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidOccurrence, token)
}

// String returns the token form for the five named selectors and "#n"
// otherwise.
func (o Occurrence) String() string {
	for k, v := range tokens {
		if v == o {
			return k
		}
	}
	return fmt.Sprintf("#%d", int(o))
}

// Valid reports whether o can be passed to ResolveDay.
func (o Occurrence) Valid() bool {
	return o > 0 || o == Last
}

// DaysIn returns the length of a month (0-based index) in a given year.
func DaysIn(year, monthIndex int) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, time.Month(monthIndex+2), 0, 0, 0, 0, 0, time.UTC).Day()
}

// ResolveDay returns the day of month of the requested occurrence of
// weekday in (year, monthIndex). found is false when the month simply has
// no such occurrence, e.g. a fifth Monday; that is not an error.
func ResolveDay(year, monthIndex int, weekday time.Weekday, occ Occurrence) (day int, found bool, err error) {
	if monthIndex < 0 || monthIndex > 11 {
		return 0, false, fmt.Errorf("%w: %d", ErrMonthOutOfRange, monthIndex)
	}
	if !occ.Valid() {
		return 0, false, fmt.Errorf("%w: %d", ErrInvalidOccurrence, int(occ))
	}

	n := DaysIn(year, monthIndex)
	first := time.Date(year, time.Month(monthIndex+1), 1, 0, 0, 0, 0, time.UTC).Weekday()
	weekdayOf := func(d int) time.Weekday {
		return (first + time.Weekday(d-1)) % 7
	}

	if occ == Last {
		for d := n; d >= 1; d-- {
			if weekdayOf(d) == weekday {
				return d, true, nil
			}
		}
		return 0, false, nil
	}

	remaining := int(occ)
	for d := 1; d <= n; d++ {
		if weekdayOf(d) != weekday {
			continue
		}
		remaining--
		if remaining == 0 {
			return d, true, nil
		}
	}
	return 0, false, nil
}

var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Recurrence expresses a yearly "occ weekday of month" selector as an
// RFC 5545 recurrence rule anchored at dtstart.
func Recurrence(monthIndex int, weekday time.Weekday, occ Occurrence, dtstart time.Time) (*rrule.RRule, error) {
	if monthIndex < 0 || monthIndex > 11 {
		return nil, fmt.Errorf("%w: %d", ErrMonthOutOfRange, monthIndex)
	}
	if !occ.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOccurrence, int(occ))
	}
	return rrule.NewRRule(rrule.ROption{
		Freq:      rrule.YEARLY,
		Dtstart:   dtstart,
		Bymonth:   []int{monthIndex + 1},
		Byweekday: []rrule.Weekday{rruleWeekdays[weekday].Nth(int(occ))},
	})
}
