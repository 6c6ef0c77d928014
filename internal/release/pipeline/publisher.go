package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/nagbuild/internal/release/configuration"
	releaseerrors "github.com/temirov/nagbuild/internal/release/errors"
)

const (
	// DefaultRemoteNameConstant is the remote pushed to when none is configured.
	DefaultRemoteNameConstant = "origin"
	// DefaultBranchNameConstant is the branch pushed when none is configured.
	DefaultBranchNameConstant = "master"

	pushingProgressTemplateConstant = "pushing %s to %s"
	repositoryPushedLogConstant     = "repository pushed"
	logFieldRemoteConstant          = "remote"
	logFieldBranchConstant          = "branch"
)

// PublishOptions selects the push destination.
type PublishOptions struct {
	RemoteName string
	BranchName string
}

// Publisher pushes release commits and tags upstream.
type Publisher struct {
	dependencies Dependencies
}

// NewPublisher constructs a Publisher.
func NewPublisher(dependencies Dependencies) (*Publisher, error) {
	if managerError := dependencies.requireRepositoryManager(); managerError != nil {
		return nil, managerError
	}
	return &Publisher{dependencies: dependencies.withDefaults()}, nil
}

// Publish pushes every repository in configuration order. Repositories pushed
// before a failure stay pushed.
func (publisher *Publisher) Publish(executionContext context.Context, releaseConfiguration configuration.Configuration, options PublishOptions) error {
	remoteName := options.RemoteName
	if len(remoteName) == 0 {
		remoteName = DefaultRemoteNameConstant
	}
	branchName := options.BranchName
	if len(branchName) == 0 {
		branchName = DefaultBranchNameConstant
	}

	for _, repository := range releaseConfiguration.Repositories {
		directoryName := repository.DirectoryName
		scopeError := publisher.dependencies.Workspace.WithDirectory(directoryName, func(repositoryPath string) error {
			publisher.dependencies.Reporter.Progress(directoryName, fmt.Sprintf(pushingProgressTemplateConstant, branchName, remoteName))
			return publisher.dependencies.RepositoryManager.PushWithTags(executionContext, repositoryPath, remoteName, branchName)
		})
		if scopeError != nil {
			return releaseerrors.Push(directoryName, scopeError)
		}
		publisher.dependencies.Logger.Info(
			repositoryPushedLogConstant,
			zap.String(logFieldRepositoryConstant, directoryName),
			zap.String(logFieldRemoteConstant, remoteName),
			zap.String(logFieldBranchConstant, branchName),
		)
	}
	return nil
}
