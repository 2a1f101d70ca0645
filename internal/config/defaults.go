package config

const (
	defaultDataDir             = "~/.local/share/quill"
	defaultLogDir              = "~/.local/share/quill/logs"
	defaultAPIBind             = "127.0.0.1:7691"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultQualityThreshold    = 75
	defaultMaxIterations       = 3
	defaultFallbackScore       = 50
	defaultTargetLength        = 1200
	defaultPollInterval        = 5
	defaultErrorRetryInterval  = 10
	defaultHeartbeatInterval   = 15
	defaultHeartbeatTimeout    = 120
	defaultStageTimeoutSeconds = 180
	defaultWorkers             = 1
	defaultProviderTimeout     = 60
	defaultOllamaBaseURL       = "http://127.0.0.1:11434"
	defaultOpenAIBaseURL       = "https://openrouter.ai/api/v1/chat/completions"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Providers: []Provider{
			{
				Name:           "ollama",
				Kind:           "ollama",
				BaseURL:        defaultOllamaBaseURL,
				Model:          "llama3.1",
				Priority:       0,
				Local:          true,
				TimeoutSeconds: defaultProviderTimeout,
			},
			{
				Name:           "openrouter",
				Kind:           "openai_compat",
				BaseURL:        defaultOpenAIBaseURL,
				Model:          "google/gemini-3-flash-preview",
				Priority:       10,
				CostPerKiloTok: 0.15,
				TimeoutSeconds: defaultProviderTimeout,
				RatePerMinute:  30,
			},
		},
		Generation: Generation{
			QualityThreshold: defaultQualityThreshold,
			MaxIterations:    defaultMaxIterations,
			FallbackScore:    defaultFallbackScore,
			DefaultLength:    defaultTargetLength,
		},
		Images: Images{
			TimeoutSeconds: 15,
		},
		SEO: SEO{
			TimeoutSeconds: 15,
		},
		Publish: Publish{
			TimeoutSeconds: 30,
		},
		Executor: Executor{
			PollInterval:        defaultPollInterval,
			ErrorRetryInterval:  defaultErrorRetryInterval,
			HeartbeatInterval:   defaultHeartbeatInterval,
			HeartbeatTimeout:    defaultHeartbeatTimeout,
			StageTimeoutSeconds: defaultStageTimeoutSeconds,
			Workers:             defaultWorkers,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
