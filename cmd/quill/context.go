package main

import (
	"fmt"
	"strings"
	"sync"

	"quill/internal/config"
)

// commandContext carries the lazily loaded configuration and the API
// client shared across subcommands.
type commandContext struct {
	apiFlag    *string
	configFlag *string

	mu     sync.Mutex
	cfg    *config.Config
	client *apiClient
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{apiFlag: apiFlag, configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = strings.TrimSpace(*c.configFlag)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) ensureClient() (*apiClient, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	base := ""
	if c.apiFlag != nil {
		base = strings.TrimSpace(*c.apiFlag)
	}
	if base == "" {
		base = "http://" + cfg.Paths.APIBind
	}
	c.client = newAPIClient(base, cfg.Paths.APIToken)
	return c.client, nil
}

func (c *commandContext) configValue() *config.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}
