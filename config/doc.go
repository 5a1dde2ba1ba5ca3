// Package config loads diarkit configuration.
//
// Values come from a YAML file (config.yml), then a .env file, then the
// process environment. Environment keys use the DIARKIT_ prefix with
// underscores standing for nesting:
//
//	DIARKIT_SERVER_PORT=9090             -> server.port
//	DIARKIT_ENGINE_MAX_PAUSE_SECONDS=1.5 -> engine.max_pause_seconds
//
// # Usage
//
//	var cfg config.Config
//	if err := config.Load(&cfg, config.WithConfigFile("config.yml")); err != nil { ... }
package config
