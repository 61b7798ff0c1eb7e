package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable. API credentials are not
// required here because scanning and background removal work offline; call
// RequireAPI before talking to the patient service.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateTemplate(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPI() error {
	switch c.API.LookupMode {
	case LookupModeForm, LookupModeQuery:
	default:
		return fmt.Errorf("api.lookup_mode must be %q or %q, got %q", LookupModeForm, LookupModeQuery, c.API.LookupMode)
	}
	if c.API.BaseURL != "" {
		parsed, err := url.Parse(c.API.BaseURL)
		if err != nil {
			return fmt.Errorf("api.base_url: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("api.base_url must use http or https, got %q", c.API.BaseURL)
		}
		if parsed.Host == "" {
			return fmt.Errorf("api.base_url is missing a host: %q", c.API.BaseURL)
		}
	}
	if c.API.RetryAttempts > 10 {
		return errors.New("api.retry_attempts must be 10 or fewer")
	}
	return nil
}

func (c *Config) validateTemplate() error {
	if c.Template.JPEGQuality < 1 || c.Template.JPEGQuality > 100 {
		return errors.New("template.jpeg_quality must be between 1 and 100")
	}
	if strings.ContainsAny(c.Template.ObjectiveFolder, `/\`) || c.Template.ObjectiveFolder != filepath.Base(c.Template.ObjectiveFolder) {
		return fmt.Errorf("template.objective_folder must be a folder name, got %q", c.Template.ObjectiveFolder)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

// RequireAPI reports whether the patient service settings needed for lookups
// and uploads are present.
func (c *Config) RequireAPI() error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	var missing []string
	if c.API.BaseURL == "" {
		missing = append(missing, "api.base_url")
	}
	if c.API.Auth == "" {
		missing = append(missing, "api.auth")
	}
	if c.API.PatientIDKey == "" {
		missing = append(missing, "api.patient_id_key")
	}
	if c.API.FilesField == "" {
		missing = append(missing, "api.files_field")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s required. Set PATIENTBOARD_API_URL / PATIENTBOARD_API_AUTH or edit %s (create with 'patientboard config init')",
			strings.Join(missing, ", "), defaultPath)
	}
	return nil
}
