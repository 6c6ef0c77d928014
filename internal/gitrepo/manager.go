package gitrepo

import (
	"context"
	"errors"
	"strings"

	"github.com/temirov/nagbuild/internal/execshell"
)

const (
	gitCloneSubcommandConstant    = "clone"
	gitConfigSubcommandConstant   = "config"
	gitLocalFlagConstant          = "--local"
	gitCommitSubcommandConstant   = "commit"
	gitAllFlagConstant            = "-a"
	gitMessageFlagConstant        = "-m"
	gitTagSubcommandConstant      = "tag"
	gitAnnotateFlagConstant       = "-a"
	gitPushSubcommandConstant     = "push"
	gitTagsFlagConstant           = "--tags"
	executorRequiredMessage       = "git executor must be provided"
	repositoryPathRequiredMessage = "repository path must be provided"
)

// ErrGitExecutorNotConfigured indicates the manager was built without an executor.
var ErrGitExecutorNotConfigured = errors.New(executorRequiredMessage)

// ErrRepositoryPathRequired indicates an operation was invoked without a working directory.
var ErrRepositoryPathRequired = errors.New(repositoryPathRequiredMessage)

// GitExecutor runs git with the supplied details and fails on a non-zero exit code.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RepositoryManager performs the git operations of a release run.
type RepositoryManager struct {
	executor GitExecutor
}

// NewRepositoryManager constructs a RepositoryManager around executor.
func NewRepositoryManager(executor GitExecutor) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &RepositoryManager{executor: executor}, nil
}

// Clone clones remoteURL into directoryName beneath parentDirectory, streaming git's progress.
func (manager *RepositoryManager) Clone(executionContext context.Context, parentDirectory string, remoteURL string, directoryName string) error {
	if len(strings.TrimSpace(parentDirectory)) == 0 {
		return ErrRepositoryPathRequired
	}
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitCloneSubcommandConstant, remoteURL, directoryName},
		WorkingDirectory: parentDirectory,
		OutputPolicy:     execshell.OutputPolicyInherit,
	})
	return executionError
}

// ConfigureLocal sets a repository-local git configuration value.
func (manager *RepositoryManager) ConfigureLocal(executionContext context.Context, repositoryPath string, key string, value string) error {
	return manager.run(executionContext, repositoryPath, execshell.OutputPolicyCapture, gitConfigSubcommandConstant, gitLocalFlagConstant, key, value)
}

// CommitAll commits every tracked modification with message.
func (manager *RepositoryManager) CommitAll(executionContext context.Context, repositoryPath string, message string) error {
	return manager.run(executionContext, repositoryPath, execshell.OutputPolicyInherit, gitCommitSubcommandConstant, gitAllFlagConstant, gitMessageFlagConstant, message)
}

// CreateAnnotatedTag creates tagName annotated with message at HEAD.
func (manager *RepositoryManager) CreateAnnotatedTag(executionContext context.Context, repositoryPath string, tagName string, message string) error {
	return manager.run(executionContext, repositoryPath, execshell.OutputPolicyCapture, gitTagSubcommandConstant, gitAnnotateFlagConstant, tagName, gitMessageFlagConstant, message)
}

// PushWithTags pushes branch and all tags to remoteName.
func (manager *RepositoryManager) PushWithTags(executionContext context.Context, repositoryPath string, remoteName string, branch string) error {
	return manager.run(executionContext, repositoryPath, execshell.OutputPolicyInherit, gitPushSubcommandConstant, remoteName, branch, gitTagsFlagConstant)
}

func (manager *RepositoryManager) run(executionContext context.Context, repositoryPath string, outputPolicy execshell.OutputPolicy, arguments ...string) error {
	if len(strings.TrimSpace(repositoryPath)) == 0 {
		return ErrRepositoryPathRequired
	}
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: repositoryPath,
		OutputPolicy:     outputPolicy,
	})
	return executionError
}
