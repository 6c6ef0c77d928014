// Package utils hosts the ambient plumbing shared by the nagbuild CLI:
// ConfigurationLoader layers embedded defaults, configuration files,
// environment variables, and command-line flags through Viper, and
// LoggerFactory builds zap loggers in structured or console form.
package utils
