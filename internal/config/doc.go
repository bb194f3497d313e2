// Package config loads and validates the coefficient calculator settings.
//
// # Configuration Sources
//
// Values are layered, later sources winning:
//
//	1. Default()
//	2. A YAML file: $COEF_CONFIG_FILE, config.yaml or configs/config.yaml
//	3. Environment variables prefixed with COEF_
//
// Nested sections map to underscored names:
//
//	COEF_SERVER_PORT=8080
//	COEF_LIMITS_MAX_FILE_BYTES=52428800
//	COEF_CALCULATION_KEYSET=union
//	COEF_LOGGING_LEVEL=debug
//
// # Validation
//
// Every section carries go-playground/validator tags; Load fails on the
// first violation.
//
// # Path Management
//
// Relative directories in PathsConfig resolve against the executable
// directory through NewPaths.
package config
