package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"patientboard/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The photo root is created; API settings are left empty unless WithAPI is
// applied.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.PhotoRoot = filepath.Join(base, "photos")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Workers.ImageLoaders = 2
	cfgVal.API.RetryAttempts = 1
	cfgVal.API.TimeoutSeconds = 5
	if err := os.MkdirAll(cfgVal.Paths.PhotoRoot, 0o755); err != nil {
		t.Fatalf("mkdir photo root: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithAPI points the config at a test server.
func WithAPI(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.BaseURL = baseURL
		b.cfg.API.Auth = "Token test"
		b.cfg.API.PatientIDKey = "manager_id"
		b.cfg.API.FilesField = "template"
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. script is the shell body; an empty script exits 0.
func WithStubbedBinaries(script string, names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"rembg"}
		}
		if script == "" {
			script = "exit 0\n"
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		body := []byte("#!/bin/sh\n" + script)
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, body, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
