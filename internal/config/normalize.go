package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProviders()
	c.normalizeGeneration()
	c.normalizeCollaborators()
	c.normalizeExecutor()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("QUILL_API_TOKEN"); ok {
			c.Paths.APIToken = value
		}
	}
	return nil
}

func (c *Config) normalizeProviders() {
	for i := range c.Providers {
		p := &c.Providers[i]
		p.Name = strings.ToLower(strings.TrimSpace(p.Name))
		p.Kind = strings.ToLower(strings.TrimSpace(p.Kind))
		p.BaseURL = strings.TrimSpace(p.BaseURL)
		p.Model = strings.TrimSpace(p.Model)
		if p.APIKey == "" {
			envKey := "QUILL_" + strings.ToUpper(p.Name) + "_API_KEY"
			if value, ok := os.LookupEnv(envKey); ok {
				p.APIKey = value
			}
		}
		if p.TimeoutSeconds <= 0 {
			p.TimeoutSeconds = defaultProviderTimeout
		}
		if p.Local {
			p.CostPerKiloTok = 0
		}
	}
	// The router tries providers in ascending priority; local zero-cost
	// providers are expected to carry the lowest ranks.
	sort.SliceStable(c.Providers, func(i, j int) bool {
		return c.Providers[i].Priority < c.Providers[j].Priority
	})
}

func (c *Config) normalizeGeneration() {
	if c.Generation.QualityThreshold <= 0 {
		c.Generation.QualityThreshold = defaultQualityThreshold
	}
	if c.Generation.MaxIterations <= 0 {
		c.Generation.MaxIterations = defaultMaxIterations
	}
	if c.Generation.FallbackScore <= 0 {
		c.Generation.FallbackScore = defaultFallbackScore
	}
	if c.Generation.DefaultLength <= 0 {
		c.Generation.DefaultLength = defaultTargetLength
	}
}

func (c *Config) normalizeCollaborators() {
	c.Images.BaseURL = strings.TrimSpace(c.Images.BaseURL)
	c.SEO.BaseURL = strings.TrimSpace(c.SEO.BaseURL)
	c.Publish.BaseURL = strings.TrimSpace(c.Publish.BaseURL)
	if c.Images.TimeoutSeconds <= 0 {
		c.Images.TimeoutSeconds = 15
	}
	if c.SEO.TimeoutSeconds <= 0 {
		c.SEO.TimeoutSeconds = 15
	}
	if c.Publish.TimeoutSeconds <= 0 {
		c.Publish.TimeoutSeconds = 30
	}
	if c.Publish.APIToken == "" {
		if value, ok := os.LookupEnv("QUILL_PUBLISH_TOKEN"); ok {
			c.Publish.APIToken = value
		}
	}
}

func (c *Config) normalizeExecutor() {
	if c.Executor.PollInterval <= 0 {
		c.Executor.PollInterval = defaultPollInterval
	}
	if c.Executor.ErrorRetryInterval <= 0 {
		c.Executor.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Executor.HeartbeatInterval <= 0 {
		c.Executor.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Executor.HeartbeatTimeout <= 0 {
		c.Executor.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Executor.StageTimeoutSeconds <= 0 {
		c.Executor.StageTimeoutSeconds = defaultStageTimeoutSeconds
	}
	if c.Executor.Workers <= 0 {
		c.Executor.Workers = defaultWorkers
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
}
