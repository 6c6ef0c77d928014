// Package cli builds the nagbuild command-line interface: a single Cobra
// command that loads layered configuration, creates the zap logger, reads the
// repositories file, and drives the release pipeline for one build version.
package cli
