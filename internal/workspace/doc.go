// Package workspace owns the scratch directory that holds every repository
// checkout for a single release run.
package workspace
