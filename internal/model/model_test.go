package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventUID(t *testing.T) {
	d := time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC)
	a := EventUID("Red Panda Day", d)
	assert.Equal(t, a, EventUID("Red Panda Day", d))
	assert.True(t, strings.HasSuffix(a, "@dayscalendar"))

	// Names that slug to the same token still get distinct identifiers.
	assert.NotEqual(t, a, EventUID("red-panda day", d))
	assert.NotEqual(t, a, EventUID("Red Panda Day!", d))
	assert.NotEqual(t, a, EventUID("Red Panda Day", d.AddDate(1, 0, 0)))
}

func TestResolvedEventDates(t *testing.T) {
	ev := ResolvedEvent{Name: "World Lemur Day", Year: 2024, Month: 11, Day: 31}
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), ev.Start())
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), ev.End())
	assert.Equal(t, EventUID("World Lemur Day", ev.Start()), ev.UID())
}

func TestOccurrenceTokenPrefersCurrentKey(t *testing.T) {
	assert.Equal(t, "last", Rule{Occurrence: "last", Occurence: "first"}.OccurrenceToken())
	assert.Equal(t, "first", Rule{Occurence: "first"}.OccurrenceToken())
}
