package ics

import (
	"bytes"
	"errors"
	"sort"

	ical "github.com/arran4/golang-ical"

	appLog "daycal/internal/log"
)

// DecodedEvent is the comparable part of a previously written VEVENT.
// Values are kept in their encoded form; DTSTAMP is ignored.
type DecodedEvent struct {
	UID         string
	Summary     string
	Start       string
	End         string
	Description string
}

// Decode parses a calendar document produced by this package (or any
// RFC 5545 source) into DecodedEvents, in document order.
func Decode(body []byte) ([]DecodedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]DecodedEvent, 0)
	for _, ve := range cal.Events() {
		uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
		if uidProp == nil || uidProp.Value == "" {
			// Log and skip this event, but keep decoding others.
			appLog.Error("ics vevent without UID skipped", errors.New("missing UID"))
			continue
		}
		events = append(events, DecodedEvent{
			UID:         uidProp.Value,
			Summary:     propValue(ve, ical.ComponentPropertySummary),
			Start:       propValue(ve, ical.ComponentPropertyDtStart),
			End:         propValue(ve, ical.ComponentPropertyDtEnd),
			Description: propValue(ve, ical.ComponentPropertyDescription),
		})
	}
	return events, nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}

// Changes lists UIDs that differ between two versions of a document.
type Changes struct {
	Added   []string
	Removed []string
	Changed []string
}

// Empty reports whether the two documents carry the same events.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// Diff compares two decoded documents by UID. UID lists are sorted.
func Diff(before, after []DecodedEvent) Changes {
	old := make(map[string]DecodedEvent, len(before))
	for _, ev := range before {
		old[ev.UID] = ev
	}

	var c Changes
	seen := make(map[string]bool, len(after))
	for _, ev := range after {
		seen[ev.UID] = true
		prev, ok := old[ev.UID]
		switch {
		case !ok:
			c.Added = append(c.Added, ev.UID)
		case prev != ev:
			c.Changed = append(c.Changed, ev.UID)
		}
	}
	for uid := range old {
		if !seen[uid] {
			c.Removed = append(c.Removed, uid)
		}
	}

	sort.Strings(c.Added)
	sort.Strings(c.Removed)
	sort.Strings(c.Changed)
	return c
}
