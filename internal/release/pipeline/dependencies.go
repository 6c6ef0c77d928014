package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/temirov/nagbuild/internal/execshell"
	releaseerrors "github.com/temirov/nagbuild/internal/release/errors"
	"github.com/temirov/nagbuild/internal/workspace"
)

const (
	executorMissingMessageConstant          = "command executor not configured"
	repositoryManagerMissingMessageConstant = "repository manager not configured"
	workspaceMissingMessageConstant         = "workspace manager not configured"
	logFieldRepositoryConstant              = "repository"
	logFieldVersionConstant                 = "version"
	logFieldPhaseConstant                   = "phase"
	logFieldPathConstant                    = "path"
)

// ErrCommandExecutorNotConfigured indicates a component was built without a command executor.
var ErrCommandExecutorNotConfigured = errors.New(executorMissingMessageConstant)

// ErrRepositoryManagerNotConfigured indicates a component was built without a git repository manager.
var ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerMissingMessageConstant)

// ErrWorkspaceNotConfigured indicates a component was built without a workspace manager.
var ErrWorkspaceNotConfigured = errors.New(workspaceMissingMessageConstant)

// CommandExecutor runs the external programs a release needs.
type CommandExecutor interface {
	Execute(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error)
	ExecuteNPM(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteBower(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	Start(executionContext context.Context, command execshell.ShellCommand) (*execshell.BackgroundProcess, error)
}

// GitRepositoryManager performs the git operations of a release.
type GitRepositoryManager interface {
	Clone(executionContext context.Context, parentDirectory string, remoteURL string, directoryName string) error
	ConfigureLocal(executionContext context.Context, repositoryPath string, key string, value string) error
	CommitAll(executionContext context.Context, repositoryPath string, message string) error
	CreateAnnotatedTag(executionContext context.Context, repositoryPath string, tagName string, message string) error
	PushWithTags(executionContext context.Context, repositoryPath string, remoteName string, branch string) error
}

// ProgressReporter announces release steps to the operator.
type ProgressReporter interface {
	Progress(subject string, message string)
}

// Dependencies enumerates the collaborators shared by every pipeline component.
type Dependencies struct {
	Logger            *zap.Logger
	Executor          CommandExecutor
	RepositoryManager GitRepositoryManager
	Workspace         *workspace.Manager
	Reporter          ProgressReporter
}

type noopProgressReporter struct{}

func (noopProgressReporter) Progress(string, string) {}

func (dependencies Dependencies) withDefaults() Dependencies {
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if dependencies.Reporter == nil {
		dependencies.Reporter = noopProgressReporter{}
	}
	return dependencies
}

func (dependencies Dependencies) requireWorkspace() error {
	if dependencies.Workspace == nil {
		return ErrWorkspaceNotConfigured
	}
	return nil
}

func (dependencies Dependencies) requireRepositoryManager() error {
	if dependencies.RepositoryManager == nil {
		return ErrRepositoryManagerNotConfigured
	}
	return dependencies.requireWorkspace()
}

func (dependencies Dependencies) requireExecutor() error {
	if dependencies.Executor == nil {
		return ErrCommandExecutorNotConfigured
	}
	return dependencies.requireWorkspace()
}

// asStepError keeps classified failures intact and classifies the rest with wrap.
func asStepError(failure error, wrap func(error) releaseerrors.StepError) error {
	if failure == nil {
		return nil
	}
	if _, classified := releaseerrors.KindOf(failure); classified {
		return failure
	}
	return wrap(failure)
}
