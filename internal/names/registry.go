package names

import (
	"github.com/go-playground/locales"
	"github.com/go-playground/locales/de"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/en_GB"
	"github.com/go-playground/locales/en_US"
	"github.com/go-playground/locales/es"
	"github.com/go-playground/locales/fr"
	"github.com/go-playground/locales/it"
	"github.com/go-playground/locales/ja"
	"github.com/go-playground/locales/nl"
	"github.com/go-playground/locales/pt"
	"github.com/go-playground/locales/pt_BR"
	"github.com/go-playground/locales/ru"
	"github.com/go-playground/locales/uk"
)

// registry maps CLDR identifiers to translator constructors.
var registry = map[string]func() locales.Translator{
	"de":    de.New,
	"en":    en.New,
	"en_GB": en_GB.New,
	"en_US": en_US.New,
	"es":    es.New,
	"fr":    fr.New,
	"it":    it.New,
	"ja":    ja.New,
	"nl":    nl.New,
	"pt":    pt.New,
	"pt_BR": pt_BR.New,
	"ru":    ru.New,
	"uk":    uk.New,
}

// standaloneMonths holds nominative month names for locales whose CLDR wide
// month names are the genitive format forms ("мая" rather than "май").
// Both forms are accepted.
var standaloneMonths = map[string][12]string{
	"ru": {
		"январь", "февраль", "март", "апрель", "май", "июнь",
		"июль", "август", "сентябрь", "октябрь", "ноябрь", "декабрь",
	},
	"uk": {
		"січень", "лютий", "березень", "квітень", "травень", "червень",
		"липень", "серпень", "вересень", "жовтень", "листопад", "грудень",
	},
}
