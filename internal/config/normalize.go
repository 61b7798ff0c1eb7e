package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	if err := c.normalizeTemplate(); err != nil {
		return err
	}
	if c.Workers.ImageLoaders <= 0 {
		c.Workers.ImageLoaders = runtime.NumCPU()
	}
	c.normalizeBGRemove()
	if c.Workflow.PollInterval <= 0 {
		c.Workflow.PollInterval = defaultPollInterval
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.PhotoRoot) == "" {
		c.Paths.PhotoRoot = defaultPhotoRoot
	}
	if c.Paths.PhotoRoot, err = expandPath(strings.TrimSpace(c.Paths.PhotoRoot)); err != nil {
		return fmt.Errorf("paths.photo_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	if strings.TrimSpace(c.API.Auth) == "" {
		if value, ok := os.LookupEnv("PATIENTBOARD_API_AUTH"); ok {
			c.API.Auth = value
		}
	}
	if strings.TrimSpace(c.API.BaseURL) == "" {
		if value, ok := os.LookupEnv("PATIENTBOARD_API_URL"); ok {
			c.API.BaseURL = value
		}
	}
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	c.API.Auth = strings.TrimSpace(c.API.Auth)
	c.API.PatientIDKey = strings.TrimSpace(c.API.PatientIDKey)
	c.API.FilesField = strings.TrimSpace(c.API.FilesField)
	c.API.LookupMode = strings.ToLower(strings.TrimSpace(c.API.LookupMode))
	if c.API.LookupMode == "" {
		c.API.LookupMode = defaultLookupMode
	}
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = defaultAPITimeoutSeconds
	}
	if c.API.RetryAttempts <= 0 {
		c.API.RetryAttempts = defaultAPIRetryAttempts
	}
}

func (c *Config) normalizeTemplate() error {
	var err error
	for _, field := range []struct {
		name  string
		value *string
	}{
		{"template.background", &c.Template.Background},
		{"template.font_bold", &c.Template.FontBold},
		{"template.font_regular", &c.Template.FontRegular},
	} {
		trimmed := strings.TrimSpace(*field.value)
		if trimmed == "" {
			*field.value = ""
			continue
		}
		if *field.value, err = expandPath(trimmed); err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
	}
	if c.Template.FontSize <= 0 {
		c.Template.FontSize = defaultFontSize
	}
	if c.Template.JPEGQuality <= 0 {
		c.Template.JPEGQuality = defaultJPEGQuality
	}
	c.Template.ObjectiveFolder = strings.TrimSpace(c.Template.ObjectiveFolder)
	if c.Template.ObjectiveFolder == "" {
		c.Template.ObjectiveFolder = defaultObjectiveFolder
	}
	return nil
}

func (c *Config) normalizeBGRemove() {
	c.BGRemove.Command = strings.TrimSpace(c.BGRemove.Command)
	if c.BGRemove.Command == "" {
		c.BGRemove.Command = defaultBGRemoveCommand
	}
	c.BGRemove.Model = strings.TrimSpace(c.BGRemove.Model)
	if c.BGRemove.Model == "" {
		c.BGRemove.Model = defaultBGRemoveModel
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
