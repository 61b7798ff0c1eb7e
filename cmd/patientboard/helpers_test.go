package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"patientboard/internal/config"
	"patientboard/internal/testsupport"
)

type fakeAPI struct {
	mu      sync.Mutex
	uploads map[string]string
	server  *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{uploads: map[string]string{}}
	api.server = httptest.NewServer(http.HandlerFunc(api.handle))
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeAPI) baseURL() string {
	return a.server.URL + "/api/requests"
}

func (a *fakeAPI) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/requests":
		body, _ := io.ReadAll(r.Body)
		values, _ := url.ParseQuery(string(body))
		id := values.Get("manager_id")
		if id == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if id == "404" {
			_, _ = io.WriteString(w, "[]")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[{"id": 9%s, "date": "2024-03-15T10:30:00.000000-03:00",
  "patient_datum": {"name": "Ana  Souza", "birthdate": "2010-07-02"},
  "dentist_datum": {"name": "Paulo Reis"}}]`, id)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/api/requests/"):
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		files := r.MultipartForm.File["template"]
		if len(files) != 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		a.mu.Lock()
		a.uploads[strings.TrimPrefix(r.URL.Path, "/api/requests/")] = files[0].Filename
		a.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (a *fakeAPI) uploaded() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string, len(a.uploads))
	for k, v := range a.uploads {
		out[k] = v
	}
	return out
}

type cliTestEnv struct {
	cfg        *config.Config
	api        *fakeAPI
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	api := newFakeAPI(t)
	cfg := testsupport.NewConfig(t, testsupport.WithAPI(api.baseURL()))
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, api: api, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
photo_root = %q
state_dir = %q
log_dir = %q

[api]
base_url = %q
auth = %q
patient_id_key = %q
files_field = %q
retry_attempts = 1

[workers]
image_loaders = 2

[logging]
format = "json"
level = "warn"
`,
		cfg.Paths.PhotoRoot,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.API.BaseURL,
		cfg.API.Auth,
		cfg.API.PatientIDKey,
		cfg.API.FilesField,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
