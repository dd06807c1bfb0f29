package config

const (
	defaultConfigPath                = "~/.config/eventarr/config.toml"
	defaultDataDir                   = "~/.local/share/eventarr"
	defaultLogDir                    = "~/.local/share/eventarr/logs"
	defaultCatalogFile               = "~/.config/eventarr/catalog.yaml"
	defaultAPIBind                   = "127.0.0.1:7878"
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultMaxConcurrent             = 3
	defaultSourceTimeoutSeconds      = 30
	defaultCompletedRetentionSeconds = 5
	defaultRecentlyCompletedLimit    = 50
	defaultGrabAttempts              = 3
	defaultBreakerThreshold          = 3
	defaultBreakerCooldownMinutes    = 15
	defaultQualityWeight             = 1000
	defaultMatchThreshold            = 50
	defaultDateWindowDays            = 3
	defaultMaxImportAttempts         = 3
	defaultNotifyTimeoutSeconds      = 10

	SourceKindTorznab = "torznab"
	SourceKindNewznab = "newznab"

	ProtocolTorrent = "torrent"
	ProtocolUsenet  = "usenet"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			CatalogFile: defaultCatalogFile,
			APIBind:     defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Search: Search{
			MaxConcurrent:             defaultMaxConcurrent,
			SourceTimeoutSeconds:      defaultSourceTimeoutSeconds,
			CompletedRetentionSeconds: defaultCompletedRetentionSeconds,
			RecentlyCompletedLimit:    defaultRecentlyCompletedLimit,
			GrabAttempts:              defaultGrabAttempts,
		},
		Breaker: Breaker{
			QueryFailureThreshold: defaultBreakerThreshold,
			GrabFailureThreshold:  defaultBreakerThreshold,
			QueryCooldownMinutes:  defaultBreakerCooldownMinutes,
			GrabCooldownMinutes:   defaultBreakerCooldownMinutes,
		},
		Scoring: Scoring{
			QualityWeight: defaultQualityWeight,
		},
		Matching: Matching{
			Threshold:      defaultMatchThreshold,
			DateWindowDays: defaultDateWindowDays,
			WeightDate:     35,
			WeightTokens:   35,
			WeightRound:    15,
			WeightLeague:   15,
		},
		Retry: Retry{
			MaxImportAttempts: defaultMaxImportAttempts,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
		},
	}
}
