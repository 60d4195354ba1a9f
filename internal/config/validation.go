package config

import (
	"fmt"
	"time"

	urlutil "github.com/law-makers/pricecrawl/internal/utils/url"
	"github.com/rs/zerolog"
)

func validate(c *Config) error {
	if c.Retailer == "" {
		return fmt.Errorf("retailer is required")
	}
	for _, u := range c.Categories {
		if err := urlutil.ValidateURL(u); err != nil {
			return fmt.Errorf("category %q: %w", u, err)
		}
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("max pages must be >= 1")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must be >= 0")
	}
	if c.MaxConcurrent < 1 || c.MaxConcurrent > MaxConcurrentLimit {
		return fmt.Errorf("max concurrent must be between 1 and %d", MaxConcurrentLimit)
	}
	if c.NavTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be > 0")
	}
	if c.RetryBudget < 1 {
		return fmt.Errorf("retry budget must be >= 1")
	}
	if c.MaxBackoff < 0 {
		return fmt.Errorf("max backoff must be >= 0")
	}
	if c.Engine != EngineDynamic && c.Engine != EngineStatic {
		return fmt.Errorf("engine must be %q or %q, got %q", EngineDynamic, EngineStatic, c.Engine)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("rate limit must be >= 0")
	}
	if len(c.Proxies) > 1 && c.Engine != EngineStatic {
		return fmt.Errorf("the dynamic engine takes a single proxy")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	if c.DatabaseURL == "" && c.DatabasePath == "" {
		return fmt.Errorf("a database URL or path is required")
	}
	return nil
}
