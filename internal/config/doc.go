// Package config defines the application configuration structure and
// handles loading configuration from environment variables and files.
package config
