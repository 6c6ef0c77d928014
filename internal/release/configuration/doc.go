// Package configuration loads the repositories file that drives a release
// run: which repositories to clone, how to test them, and which git identity
// to commit with.
package configuration
