package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"patientboard/internal/composer"
	"patientboard/internal/config"
	"patientboard/internal/deps"
	"patientboard/internal/header"
	"patientboard/internal/ledger"
	"patientboard/internal/logging"
	"patientboard/internal/patientapi"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckWritableDir creates the directory when needed, then checks access.
func CheckWritableDir(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: create: %v)", path, err)}
	}
	return CheckDirectoryAccess(name, path)
}

// CheckFonts loads the configured header fonts.
func CheckFonts(cfg *config.Config) Result {
	const name = "Header fonts"
	fonts, err := header.LoadFonts(cfg.Template.FontBold, cfg.Template.FontRegular, cfg.Template.FontSize)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	_ = fonts.Close()
	if cfg.Template.FontBold == "" && cfg.Template.FontRegular == "" {
		return Result{Name: name, Passed: true, Detail: "built-in Go fonts"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("size %.0f", cfg.Template.FontSize)}
}

// CheckBackground decodes the template background and checks its size.
func CheckBackground(path string) Result {
	const name = "Template background"
	img, err := composer.LoadBackground(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	b := img.Bounds()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%dx%d)", path, b.Dx(), b.Dy())}
}

// CheckLedger opens the ledger database and pings it.
func CheckLedger(ctx context.Context, cfg *config.Config) Result {
	const name = "Ledger"
	store, err := ledger.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", store.Path(), err)}
	}
	return Result{Name: name, Passed: true, Detail: store.Path()}
}

// CheckAPI verifies the patient service settings and issues one request.
func CheckAPI(ctx context.Context, cfg *config.Config) Result {
	const name = "Patient API"
	client, err := patientapi.New(cfg, logging.NewNop())
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeAPIError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", cfg.API.BaseURL)}
}

// CheckSystemDeps evaluates the external commands patientboard can use.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "rembg",
			Command:     cfg.BGRemove.Command,
			Description: "Removes backgrounds from extra-oral photos (rmbg)",
			Optional:    true,
		},
	})
}

func summarizeAPIError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (patient API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (patient API unreachable)"
	}
	return err.Error()
}
