// Package config defines the application's typed configuration and its
// loading logic. Settings are grouped by concern, loaded with viper from
// an optional YAML file plus PLANFORGE_-prefixed environment variables,
// and validated with struct tags before use.
package config
