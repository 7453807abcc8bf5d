// Package config handles configuration loading for promptpal-admin and
// promptpal-devserver.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from PROMPTPAL_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/promptpal/admin.yaml
//  3. ~/.config/promptpal/admin.yaml
//
// A missing file is fine; defaults and environment overrides still apply.
// Files ending in .toml are parsed as TOML, everything else as YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	devserver:
//	  jwt_secret: "${PROMPTPAL_DEV_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Overrides
//
// PROMPTPAL_* variables override file values after expansion:
//
//	PROMPTPAL_ENV           production selects the hosted API as default
//	PROMPTPAL_API_URL       api.base_url
//	PROMPTPAL_API_TIMEOUT   api.timeout
//	PROMPTPAL_SESSION_PATH  session.path
//	PROMPTPAL_LOG_LEVEL     logging.level
//	PROMPTPAL_OTEL_ENDPOINT telemetry.endpoint
//	PROMPTPAL_JWT_SECRET    devserver.jwt_secret
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	api:
//	  timeout: "15s"
//	devserver:
//	  invitation_ttl: "168h"
//	  session_ttl: "24h"
package config
