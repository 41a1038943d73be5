// Package days expands commemorative day rules into concrete dates.
package days

import (
	"errors"
	"fmt"
	"sort"
	"time"

	appLog "daycal/internal/log"
	"daycal/internal/model"
	"daycal/internal/names"
	"daycal/internal/occurrence"
)

// Compiled is a rule whose names and occurrence token have been resolved
// against a locale.
type Compiled struct {
	Index      int
	Rule       model.Rule
	Month      int
	Weekday    time.Weekday
	Occurrence occurrence.Occurrence
}

// RRule renders the rule as an RFC 5545 yearly recurrence, e.g.
// "FREQ=YEARLY;BYMONTH=5;BYDAY=+2SA".
func (c Compiled) RRule() string {
	r, err := occurrence.Recurrence(c.Month, c.Weekday, c.Occurrence, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return ""
	}
	return r.OrigOptions.RRuleString()
}

// RuleFailure records a rule that could not be resolved. The rule is
// excluded from every year of the expansion.
type RuleFailure struct {
	Index int
	Rule  model.Rule
	Err   error
}

func (f RuleFailure) Error() string {
	return fmt.Sprintf("rule %d (%q): %v", f.Index, f.Rule.Name, f.Err)
}

func (f RuleFailure) Unwrap() error {
	return f.Err
}

// Expansion is the outcome of expanding a rule list over a year range.
type Expansion struct {
	// Events are grouped by rule in input order, then by ascending year.
	Events   []model.ResolvedEvent
	Failures []RuleFailure
}

// Err joins all rule failures, or returns nil when every rule resolved.
func (e Expansion) Err() error {
	if len(e.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Compile resolves every rule against r. Rules that fail are logged and
// reported; they never stop the remaining rules from compiling.
func Compile(rules []model.Rule, r *names.Resolver) ([]Compiled, []RuleFailure) {
	compiled := make([]Compiled, 0, len(rules))
	var failures []RuleFailure

	for i, rule := range rules {
		c, err := compileOne(i, rule, r)
		if err != nil {
			f := RuleFailure{Index: i, Rule: rule, Err: err}
			failures = append(failures, f)
			appLog.Error("commemorative day rule skipped", err, "rule", rule.Name, "index", i, "locale", r.Locale())
			continue
		}
		compiled = append(compiled, c)
	}
	return compiled, failures
}

func compileOne(i int, rule model.Rule, r *names.Resolver) (Compiled, error) {
	month, err := r.MonthIndex(rule.MonthName)
	if err != nil {
		return Compiled{}, err
	}
	weekday, err := r.WeekdayIndex(rule.DayName)
	if err != nil {
		return Compiled{}, err
	}
	occ, err := occurrence.Parse(rule.OccurrenceToken())
	if err != nil {
		return Compiled{}, err
	}
	return Compiled{Index: i, Rule: rule, Month: month, Weekday: weekday, Occurrence: occ}, nil
}

// ExpandCompiled produces at most one event per (rule, year) for years in
// [yearStart, yearEnd]. Years without the requested occurrence are skipped.
func ExpandCompiled(compiled []Compiled, yearStart, yearEnd int) []model.ResolvedEvent {
	if yearEnd < yearStart {
		return nil
	}
	events := make([]model.ResolvedEvent, 0, len(compiled)*(yearEnd-yearStart+1))
	for _, c := range compiled {
		for year := yearStart; year <= yearEnd; year++ {
			day, found, err := occurrence.ResolveDay(year, c.Month, c.Weekday, c.Occurrence)
			if err != nil || !found {
				continue
			}
			events = append(events, model.ResolvedEvent{
				Name:           c.Rule.Name,
				DescriptionURL: c.Rule.DescriptionURL,
				Year:           year,
				Month:          c.Month,
				Day:            day,
			})
		}
	}
	return events
}

// Expand resolves rules under locale and expands them across the inclusive
// year range. Only an unknown locale or an inverted range is an error;
// per-rule problems are reported in Expansion.Failures.
func Expand(rules []model.Rule, yearStart, yearEnd int, locale string) (Expansion, error) {
	if yearEnd < yearStart {
		return Expansion{}, fmt.Errorf("year range is inverted: %d > %d", yearStart, yearEnd)
	}
	r, err := names.For(locale)
	if err != nil {
		return Expansion{}, err
	}

	compiled, failures := Compile(rules, r)
	return Expansion{
		Events:   ExpandCompiled(compiled, yearStart, yearEnd),
		Failures: failures,
	}, nil
}

// InMonth answers "what falls in this month" for calendar display. It is
// the full expansion restricted to (year, monthIndex), ordered by day and
// then by rule order. A month index outside 0..11 yields no days.
func InMonth(rules []model.Rule, year, monthIndex int, locale string) ([]model.DayMark, error) {
	exp, err := Expand(rules, year, year, locale)
	if err != nil {
		return nil, err
	}
	return FilterMonth(exp.Events, year, monthIndex), nil
}

// FilterMonth selects the events of one month and orders them by day.
func FilterMonth(events []model.ResolvedEvent, year, monthIndex int) []model.DayMark {
	marks := make([]model.DayMark, 0)
	for _, ev := range events {
		if ev.Year != year || ev.Month != monthIndex {
			continue
		}
		marks = append(marks, model.DayMark{Name: ev.Name, Day: ev.Day, DescriptionURL: ev.DescriptionURL})
	}
	sort.SliceStable(marks, func(i, j int) bool { return marks[i].Day < marks[j].Day })
	return marks
}
