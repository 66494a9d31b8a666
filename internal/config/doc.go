// Package config loads and validates the dashboard configuration.
//
// # Sources
//
// Values are layered, later sources winning:
//
//	1. Default()
//	2. YAML file: $APS_CONFIG_FILE, config.yaml or configs/config.yaml
//	3. .env in the working directory (never overrides the real environment)
//	4. APS_* environment variables
//
// # Environment Variables
//
// Nested sections map to underscored names:
//
//	APS_SERVER_PORT=8080
//	APS_DATASET_FILE=atendimentos_aps_brasilia.csv
//	APS_PATHS_DATA_DIR=/srv/aps/data
//	APS_FORECAST_DEFAULT_HORIZON=12
//	APS_FORECAST_REQUIRE_SUFFICIENT_DATA=true
//	APS_LOGGING_LEVEL=debug
//	APS_TELEMETRY_TRACE_EXPORTER=stdout
//
// # Validation
//
// Struct tags are checked with go-playground/validator. Logging is forced to
// JSON regardless of the configured format.
package config
