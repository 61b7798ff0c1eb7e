package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"patientboard/internal/batch"
	"patientboard/internal/composer"
	"patientboard/internal/config"
	"patientboard/internal/ledger"
	"patientboard/internal/loader"
	"patientboard/internal/patientapi"
	"patientboard/internal/preflight"
	"patientboard/internal/scanner"
	"patientboard/internal/services"
	"patientboard/internal/uploader"
)

type stages struct {
	assemble bool
	upload   bool
}

// pipeline bundles the components a batch command needs.
type pipeline struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *ledger.Store
	scanner *scanner.Scanner
	runner  *batch.Runner
	closers []io.Closer
}

func (c *commandContext) openPipeline(ctx context.Context, want stages) (*pipeline, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, closer, err := c.logger(true)
	if err != nil {
		return nil, err
	}
	p := &pipeline{cfg: cfg, logger: logger, closers: []io.Closer{closer}}

	if failed := preflight.Failures(preflight.RunAll(ctx, cfg, true)); len(failed) > 0 {
		p.Close()
		return nil, preflightError(failed)
	}

	p.store, err = ledger.Open(cfg)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.closers = append(p.closers, p.store)

	api, err := patientapi.New(cfg, logger)
	if err != nil {
		p.Close()
		return nil, err
	}

	var (
		assembler batch.Assembler
		up        batch.Uploader
	)
	if want.assemble {
		comp, err := composer.New(cfg, api, loader.New(cfg.Workers.ImageLoaders, logger), logger)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.closers = append(p.closers, comp)
		assembler = comp
	}
	if want.upload {
		up = uploader.New(api, logger)
	}

	p.scanner = scanner.New(cfg, p.store)
	p.runner = batch.New(cfg, p.store, p.scanner, assembler, up, logger)
	return p, nil
}

// Close releases resources in reverse order of acquisition.
func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if p.closers[i] != nil {
			_ = p.closers[i].Close()
		}
	}
	p.closers = nil
}

func preflightError(failed []preflight.Result) error {
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "", strings.Join(parts, "; "), nil)
}
