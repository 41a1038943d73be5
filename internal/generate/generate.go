// Package generate runs the full pipeline: load rules, expand them over the
// configured years, encode the calendar and write it to disk.
package generate

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"daycal/internal/config"
	"daycal/internal/days"
	"daycal/internal/ics"
	appLog "daycal/internal/log"
	"daycal/internal/model"
)

// Result summarizes one generation run.
type Result struct {
	Document  string
	Events    int
	Failures  []days.RuleFailure
	StartYear int
	EndYear   int
	// Changes is only set when the output was compared to a previous file.
	Changes *ics.Changes
}

// NewLookup builds the description lookup selected by cfg.
func NewLookup(cfg *config.Config) ics.Lookup {
	if cfg.Lookup.Offline {
		return ics.Fallback{}
	}
	return ics.NewHTTPLookup(cfg.Lookup.CacheDir, time.Duration(cfg.Lookup.TimeoutSeconds)*time.Second)
}

// Build expands rules over cfg's year range and encodes the document. It
// only fails on an unusable locale or year range; bad rules and missing
// descriptions are absorbed.
func Build(ctx context.Context, cfg *config.Config, rules []model.Rule, lookup ics.Lookup) (Result, error) {
	exp, err := days.Expand(rules, cfg.StartYear, cfg.EndYear, cfg.Locale)
	if err != nil {
		return Result{}, err
	}
	return Encode(ctx, cfg, exp, lookup), nil
}

// Encode renders an existing expansion with cfg's product id and lookup
// concurrency.
func Encode(ctx context.Context, cfg *config.Config, exp days.Expansion, lookup ics.Lookup) Result {
	enc := ics.NewEncoder(cfg.ProductID, lookup)
	enc.Concurrency = cfg.Lookup.Concurrency

	return Result{
		Document:  enc.EncodeString(ctx, exp.Events),
		Events:    len(exp.Events),
		Failures:  exp.Failures,
		StartYear: cfg.StartYear,
		EndYear:   cfg.EndYear,
	}
}

// Run loads the rule list, builds the document and writes it atomically to
// cfg.OutputPath. With diff set, the result records what changed compared
// to the file being replaced.
func Run(ctx context.Context, cfg *config.Config, diff bool) (Result, error) {
	rules, err := days.Load(cfg.RulesPath)
	if err != nil {
		return Result{}, err
	}

	res, err := Build(ctx, cfg, rules, NewLookup(cfg))
	if err != nil {
		return Result{}, err
	}

	if diff {
		c, err := compare(cfg.OutputPath, res.Document)
		if err != nil {
			appLog.Error("diff against previous output failed", err, "path", cfg.OutputPath)
		} else {
			res.Changes = &c
		}
	}

	if err := config.WriteFileAtomic(cfg.OutputPath, []byte(res.Document), 0o644); err != nil {
		return res, err
	}

	appLog.Info("calendar written",
		"path", cfg.OutputPath,
		"events", res.Events,
		"start_year", res.StartYear,
		"end_year", res.EndYear,
		"rule_failures", len(res.Failures),
	)
	return res, nil
}

func compare(path, doc string) (ics.Changes, error) {
	after, err := ics.Decode([]byte(doc))
	if err != nil {
		return ics.Changes{}, err
	}

	prev, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ics.Diff(nil, after), nil
	}
	if err != nil {
		return ics.Changes{}, err
	}
	before, err := ics.Decode(prev)
	if err != nil {
		return ics.Changes{}, err
	}
	return ics.Diff(before, after), nil
}
