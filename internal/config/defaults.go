package config

import "runtime"

const (
	defaultConfigPath        = "~/.config/patientboard/config.toml"
	defaultPhotoRoot         = "~"
	defaultStateDir          = "~/.local/share/patientboard"
	defaultLogDir            = "~/.local/share/patientboard/logs"
	defaultLookupMode        = LookupModeForm
	defaultAPITimeoutSeconds = 30
	defaultAPIRetryAttempts  = 3
	defaultFontSize          = 55
	defaultJPEGQuality       = 95
	defaultObjectiveFolder   = "OBJETIVA"
	defaultBGRemoveCommand   = "rembg"
	defaultBGRemoveModel     = "u2net_human_seg"
	defaultPollInterval      = 60
	defaultNotifyTimeout     = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30
)

// Lookup modes for the patient API search request.
const (
	LookupModeForm  = "form"
	LookupModeQuery = "query"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			PhotoRoot: defaultPhotoRoot,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
		},
		API: API{
			LookupMode:     defaultLookupMode,
			TimeoutSeconds: defaultAPITimeoutSeconds,
			RetryAttempts:  defaultAPIRetryAttempts,
		},
		Template: Template{
			FontSize:        defaultFontSize,
			JPEGQuality:     defaultJPEGQuality,
			ObjectiveFolder: defaultObjectiveFolder,
		},
		Workers: Workers{
			ImageLoaders: runtime.NumCPU(),
		},
		BGRemove: BGRemove{
			Command:      defaultBGRemoveCommand,
			Model:        defaultBGRemoveModel,
			AlphaMatting: true,
		},
		Workflow: Workflow{
			PollInterval: defaultPollInterval,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
