// Package changelog rewrites the development heading of a CHANGELOG.md file
// into a release heading.
package changelog
