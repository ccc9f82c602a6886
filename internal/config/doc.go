// Package config provides centralized configuration management for retailcast.
//
// # Configuration Sources
//
// Values are layered in increasing order of precedence:
//
//	1. Built-in defaults (Default)
//	2. A YAML file: $RETAILCAST_CONFIG, retailcast.yaml, config/retailcast.yaml
//	3. Environment variables, optionally seeded from a .env file
//
// # Environment Variables
//
// All variables use the RETAILCAST_ prefix followed by the section name:
//
//	RETAILCAST_SERVER_PORT=8080
//	RETAILCAST_LOGGING_LEVEL=debug
//	RETAILCAST_FORECAST_PRIMARY=none
//	RETAILCAST_FORECAST_MIN_DISTINCT_DATES=14
//	RETAILCAST_LOADER_DEFAULTS=channel:Online,region:North
//	RETAILCAST_PATHS_BASE_DIR=/srv/retailcast
//
// # Paths
//
// PathsConfig.Resolve produces absolute locations. Relative directories are
// joined to BaseDir, falling back to the executable directory so the binaries
// behave the same regardless of the working directory.
package config
