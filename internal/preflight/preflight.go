package preflight

import (
	"context"

	"patientboard/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks every batch needs. The API check runs only
// when api settings are present or requireAPI is set.
func RunAll(ctx context.Context, cfg *config.Config, requireAPI bool) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Photo root", cfg.Paths.PhotoRoot),
		CheckWritableDir("State directory", cfg.Paths.StateDir),
		CheckWritableDir("Log directory", cfg.Paths.LogDir),
		CheckFonts(cfg),
	}
	if cfg.Template.Background != "" {
		results = append(results, CheckBackground(cfg.Template.Background))
	}
	results = append(results, CheckLedger(ctx, cfg))
	if requireAPI || cfg.RequireAPI() == nil {
		results = append(results, CheckAPI(ctx, cfg))
	}
	return results
}

// Failures returns the results that did not pass.
func Failures(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
