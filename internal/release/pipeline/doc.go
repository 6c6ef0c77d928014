// Package pipeline drives a release run across every configured repository:
// provisioning checkouts, running tests, rewriting version metadata,
// committing and tagging, and publishing upstream. Each phase covers all
// repositories before the next phase starts.
package pipeline
