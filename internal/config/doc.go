// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// An empty path loads the built-in defaults only, which is how the daemon runs
// when the desktop shell starts it without a config file.
package config
