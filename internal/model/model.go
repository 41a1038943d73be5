package model

import (
	"time"

	"github.com/google/uuid"
)

const uidSuffix = "@dayscalendar"

// uidNamespace seeds the name-based UUIDs used as event identifiers.
// Changing it changes every UID ever generated.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("dayscalendar"))

// Rule is a single entry of the commemorative day list: "the <Occurrence>
// <DayName> of <MonthName>". Names are in whatever locale the list was
// written in; resolution happens later against an explicit locale.
type Rule struct {
	Name           string `yaml:"name" json:"name"`
	MonthName      string `yaml:"monthName" json:"monthName"`
	DayName        string `yaml:"dayName" json:"dayName"`
	Occurrence     string `yaml:"occurrence,omitempty" json:"occurrence,omitempty"`
	DescriptionURL string `yaml:"descriptionURL" json:"descriptionURL"`

	// Occurence is the spelling used by older rule files. It is only read
	// when Occurrence is empty.
	Occurence string `yaml:"occurence,omitempty" json:"occurence,omitempty"`
}

// OccurrenceToken returns the occurrence token, honoring the legacy key.
func (r Rule) OccurrenceToken() string {
	if r.Occurrence != "" {
		return r.Occurrence
	}
	return r.Occurence
}

// ResolvedEvent is one concrete whole-day instance of a Rule in a given year.
type ResolvedEvent struct {
	Name           string
	DescriptionURL string

	Year int
	// Month is the 0-based month index (0 = January).
	Month int
	Day   int
}

// Start returns the event date at midnight UTC.
func (e ResolvedEvent) Start() time.Time {
	return time.Date(e.Year, time.Month(e.Month+1), e.Day, 0, 0, 0, 0, time.UTC)
}

// End returns the exclusive end date (the following calendar day).
func (e ResolvedEvent) End() time.Time {
	return e.Start().AddDate(0, 0, 1)
}

// UID is the stable identifier of this event.
func (e ResolvedEvent) UID() string {
	return EventUID(e.Name, e.Start())
}

// EventUID derives a stable identifier from an event's name and start date,
// so regenerating unchanged input yields identical identifiers.
func EventUID(name string, start time.Time) string {
	return uuid.NewSHA1(uidNamespace, []byte(name+"|"+start.Format("20060102"))).String() + uidSuffix
}

// DayMark is the month-view projection of a ResolvedEvent.
type DayMark struct {
	Name           string `json:"name"`
	Day            int    `json:"day"`
	DescriptionURL string `json:"description_url,omitempty"`
}
