package config

const (
	defaultWorkspaceDir          = "~/.local/share/resyncd/workspace"
	defaultOutputDir             = "~/.local/share/resyncd/output"
	defaultLogDir                = "~/.local/share/resyncd/logs"
	defaultDatabasePath          = "~/.local/share/resyncd/resyncd.db"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultPriorityWorkers       = 2
	defaultStandardWorkers       = 3
	defaultQueueCapacity         = 64
	defaultMaxOutputSeconds      = 60
	defaultMaxSourceSeconds      = 300
	defaultMaxDownloadSeconds    = 600
	defaultMaxFileBytes          = 100 << 20
	defaultComposeTimeoutSecs    = 300
	defaultAcquireMaxAttempts    = 4
	defaultAcquireBackoffBase    = 2
	defaultAcquireBackoffMax     = 30
	defaultAcquireRequestTimeout = 120
	defaultSampleRate            = 22050
	defaultExcerptSeconds        = 30
	defaultWaveformSearchSecs    = 60
	defaultBeatSearchSecs        = 120
	defaultBeatExcerptSecs       = 20
	defaultTempoSegmentSecs      = 15
	defaultNotifyRequestTimeout  = 10
	defaultNotifyMinInterval     = 5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			OutputDir:    defaultOutputDir,
			LogDir:       defaultLogDir,
			DatabasePath: defaultDatabasePath,
		},
		Queue: Queue{
			PriorityWorkers:  defaultPriorityWorkers,
			StandardWorkers:  defaultStandardWorkers,
			PriorityCapacity: defaultQueueCapacity,
			StandardCapacity: defaultQueueCapacity,
		},
		Limits: Limits{
			MaxOutputSeconds:      defaultMaxOutputSeconds,
			MaxSourceSeconds:      defaultMaxSourceSeconds,
			MaxDownloadSeconds:    defaultMaxDownloadSeconds,
			MaxFileBytes:          defaultMaxFileBytes,
			ComposeTimeoutSeconds: defaultComposeTimeoutSecs,
		},
		Acquire: Acquire{
			MaxAttempts:       defaultAcquireMaxAttempts,
			BackoffBaseSecs:   defaultAcquireBackoffBase,
			BackoffMaxSecs:    defaultAcquireBackoffMax,
			RequestTimeoutSec: defaultAcquireRequestTimeout,
		},
		Analysis: Analysis{
			SampleRate:         defaultSampleRate,
			ExcerptSeconds:     defaultExcerptSeconds,
			WaveformSearchSecs: defaultWaveformSearchSecs,
			BeatSearchSecs:     defaultBeatSearchSecs,
			BeatExcerptSecs:    defaultBeatExcerptSecs,
			TempoSegmentSecs:   defaultTempoSegmentSecs,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyRequestTimeout,
			MinIntervalSeconds: defaultNotifyMinInterval,
			Progress:           true,
			Errors:             true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
