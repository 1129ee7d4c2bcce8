// Package config provides 12-factor configuration for the JobPilot service.
//
// Configuration is loaded from environment variables with sensible defaults;
// the CLIs load a .env file first via godotenv. An optional YAML search
// profile can override the scraper settings so keyword lists are versioned
// separately from deployment environment.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Store: PostgreSQL connection settings
//   - Redis: evaluation cache backend (empty addr selects in-memory)
//   - LLM, Governor: completion endpoint and its spend ceilings
//   - Browser, Scraper, Resume, Apply: pipeline stage settings
//   - Export, Notify, Snapshots, Schedule: peripheral outputs
//   - Logging, RateLimit: ambient service concerns
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
package config
