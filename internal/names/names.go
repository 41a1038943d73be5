// Package names maps human-readable month and weekday names to calendar
// indices using CLDR locale data, so rule lists can be written in any
// supported language without hard-coded name tables.
package names

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/locales"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	ErrNoSuchMonth   = errors.New("there is no such month")
	ErrNoSuchWeekday = errors.New("there is no such weekday")
	ErrUnknownLocale = errors.New("unknown locale")
)

// Resolver holds the folded long-form month and weekday names of one locale.
// It is immutable after construction and safe for concurrent use.
type Resolver struct {
	locale   string
	months   map[string]int
	weekdays map[string]time.Weekday
}

var (
	cacheMu sync.Mutex
	cache   = make(map[string]*Resolver)
)

// For returns the Resolver for a BCP 47 locale tag such as "en-GB" or
// "fr". A region-specific tag without its own data falls back to its base
// language. Resolvers are built once per locale and then reused.
func For(locale string) (*Resolver, error) {
	key, err := canonicalKey(locale)
	if err != nil {
		return nil, err
	}

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if r, ok := cache[key]; ok {
		return r, nil
	}
	r := New(registry[key]())
	cache[key] = r
	return r, nil
}

// New builds a Resolver from a locale translator by rendering each of the
// 12 months and 7 weekdays once.
func New(t locales.Translator) *Resolver {
	fold := cases.Fold()
	r := &Resolver{
		locale:   t.Locale(),
		months:   make(map[string]int, 12),
		weekdays: make(map[string]time.Weekday, 7),
	}
	for i := 0; i < 12; i++ {
		r.months[fold.String(t.MonthWide(time.Month(i+1)))] = i
	}
	if standalone, ok := standaloneMonths[r.locale]; ok {
		for i, name := range standalone {
			r.months[fold.String(name)] = i
		}
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		r.weekdays[fold.String(t.WeekdayWide(d))] = d
	}
	return r
}

// Locale returns the CLDR identifier backing this resolver (e.g. "en_GB").
func (r *Resolver) Locale() string {
	return r.locale
}

// MonthIndex returns the 0-based month index (0 = January) for a full month
// name. Matching is exact after Unicode case folding.
func (r *Resolver) MonthIndex(name string) (int, error) {
	if i, ok := r.months[cases.Fold().String(strings.TrimSpace(name))]; ok {
		return i, nil
	}
	return 0, fmt.Errorf("%w: %q (locale %s)", ErrNoSuchMonth, name, r.locale)
}

// WeekdayIndex returns the weekday (0 = Sunday .. 6 = Saturday) for a full
// weekday name.
func (r *Resolver) WeekdayIndex(name string) (time.Weekday, error) {
	if d, ok := r.weekdays[cases.Fold().String(strings.TrimSpace(name))]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("%w: %q (locale %s)", ErrNoSuchWeekday, name, r.locale)
}

// MonthIndex resolves a month name under the given locale.
func MonthIndex(name, locale string) (int, error) {
	r, err := For(locale)
	if err != nil {
		return 0, err
	}
	return r.MonthIndex(name)
}

// WeekdayIndex resolves a weekday name under the given locale.
func WeekdayIndex(name, locale string) (time.Weekday, error) {
	r, err := For(locale)
	if err != nil {
		return 0, err
	}
	return r.WeekdayIndex(name)
}

// Locales lists the registered locale identifiers in sorted order.
func Locales() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// canonicalKey turns a BCP 47 tag into the registry key, trying the full
// tag first and then its base language.
func canonicalKey(locale string) (string, error) {
	if strings.TrimSpace(locale) == "" {
		return "", fmt.Errorf("%w: empty locale", ErrUnknownLocale)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrUnknownLocale, locale, err)
	}

	key := strings.ReplaceAll(tag.String(), "-", "_")
	if _, ok := registry[key]; ok {
		return key, nil
	}
	base, _ := tag.Base()
	if _, ok := registry[base.String()]; ok {
		return base.String(), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLocale, locale)
}
