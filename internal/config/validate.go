package config

import (
	"errors"
	"fmt"
)

var providerKinds = map[string]struct{}{
	"openai_compat": {},
	"ollama":        {},
	"stub":          {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validateCollaborators(); err != nil {
		return err
	}
	if err := c.validateExecutor(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateProviders() error {
	seen := make(map[string]struct{}, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d].name must be set", i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("providers: duplicate name %q", p.Name)
		}
		seen[p.Name] = struct{}{}
		if _, ok := providerKinds[p.Kind]; !ok {
			return fmt.Errorf("providers[%s].kind must be one of openai_compat, ollama, stub", p.Name)
		}
		if p.Kind != "stub" && p.BaseURL == "" {
			return fmt.Errorf("providers[%s].base_url must be set", p.Name)
		}
		if p.Kind == "openai_compat" && p.Model == "" {
			return fmt.Errorf("providers[%s].model must be set", p.Name)
		}
		if p.CostPerKiloTok < 0 {
			return fmt.Errorf("providers[%s].cost_per_kilo_tokens must not be negative", p.Name)
		}
		if p.Local && p.CostPerKiloTok != 0 {
			return fmt.Errorf("providers[%s]: local providers must have zero cost", p.Name)
		}
	}
	return nil
}

func (c *Config) validateGeneration() error {
	if c.Generation.QualityThreshold < 1 || c.Generation.QualityThreshold > 100 {
		return errors.New("generation.quality_threshold must be between 1 and 100")
	}
	if c.Generation.MaxIterations < 1 || c.Generation.MaxIterations > 10 {
		return errors.New("generation.max_iterations must be between 1 and 10")
	}
	if c.Generation.FallbackScore < 0 || c.Generation.FallbackScore > 100 {
		return errors.New("generation.fallback_score must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateCollaborators() error {
	if c.Images.Enabled && c.Images.BaseURL == "" {
		return errors.New("images.base_url must be set when images are enabled")
	}
	if c.SEO.Enabled && c.SEO.BaseURL == "" {
		return errors.New("seo.base_url must be set when seo is enabled")
	}
	if c.Publish.Enabled && c.Publish.BaseURL == "" {
		return errors.New("publish.base_url must be set when publishing is enabled")
	}
	return nil
}

func (c *Config) validateExecutor() error {
	if c.Executor.HeartbeatTimeout <= c.Executor.HeartbeatInterval {
		return errors.New("executor.heartbeat_timeout must exceed executor.heartbeat_interval")
	}
	if c.Executor.Workers > 16 {
		return errors.New("executor.workers must not exceed 16")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
