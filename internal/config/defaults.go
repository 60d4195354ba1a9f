package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel       = "info"
	DefaultJSONLog        = false
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultRetailer       = "vea"
	DefaultMaxPages       = 100000
	DefaultDelay          = 1 * time.Second
	DefaultMaxConcurrent  = 10
	MaxConcurrentLimit    = 50
	DefaultNavTimeout     = 30 * time.Second
	DefaultRetryBudget    = 3
	DefaultMaxBackoff     = 30 * time.Second
	DefaultEngine         = EngineDynamic
	DefaultHeadless       = true
	DefaultDatabasePath   = "data/products.db"
	DefaultTimezone       = "UTC"
	DefaultRateLimitRPS   = 0.0 // unlimited; pacing comes from Delay
	DefaultRateLimitBurst = 1
	DefaultEnvFile        = ".env"
)

// Rendering engines
const (
	EngineDynamic = "dynamic"
	EngineStatic  = "static"
)
