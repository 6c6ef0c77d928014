// Package gitrepo wraps the git subcommands a release run needs: clone,
// repository-local configuration, commit, annotated tag, and push. Every
// operation runs with an explicit working directory.
package gitrepo
