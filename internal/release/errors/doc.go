// Package errors defines the fatal error taxonomy of a release run. Every
// failing step surfaces as a StepError tagged with a Kind so callers can
// classify failures with KindOf or errors.As.
package errors
