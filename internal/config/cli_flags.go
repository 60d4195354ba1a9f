package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	pf := cmd.PersistentFlags()
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	pf.BoolP("quiet", "q", false, "Suppress all output except errors")
	pf.Bool("json", false, "Log in JSON format only")
	pf.String("config", "", "Path to a YAML run file (optional)")
	pf.String("database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	pf.String("db", "", "SQLite database path when no PostgreSQL URL is set")
	pf.String("timezone", "", "IANA zone that defines the calendar day for price dedup")
}

// RegisterRunFlags registers the crawl flags on the run command
func RegisterRunFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	f := cmd.Flags()
	f.String("retailer", "", "Retailer profile to crawl")
	f.StringSlice("category", nil, "Category listing URL (repeatable, replaces the profile's list)")
	f.Int("max-pages", 0, "Maximum listing pages per category")
	f.Duration("delay", 0, "Pause between listing pages and between product chunks")
	f.Int("max-concurrent", 0, "Product pages rendered in parallel")
	f.Duration("nav-timeout", 0, "Hard timeout for a single navigation")
	f.Int("retry-budget", 0, "Consecutive listing failures tolerated per category")
	f.Duration("max-backoff", 0, "Upper bound for the listing retry backoff")
	f.String("engine", "", "Rendering engine: dynamic (Chrome) or static (HTTP only)")
	f.Bool("headless", DefaultHeadless, "Run Chrome headless")
	f.String("chrome-path", "", "Chrome or Chromium binary (default: auto-detect)")
	f.String("user-agent", "", "Custom user agent string")
	f.StringArrayP("header", "H", nil, "Extra request header, e.g. -H \"Accept-Language: es-AR\"")
	f.StringSlice("proxy", nil, "HTTP/SOCKS5 proxy for the static engine (repeatable, rotated)")
	f.Float64("rate-limit", 0, "Navigations per second per host (0 disables)")
}
