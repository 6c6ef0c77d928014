package pipeline

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/nagbuild/internal/changelog"
	"github.com/temirov/nagbuild/internal/release/configuration"
	releaseerrors "github.com/temirov/nagbuild/internal/release/errors"
)

// Phase names a stage of a release run.
type Phase string

// Release phases in the order they are visited.
const (
	PhaseIdle         Phase = "idle"
	PhaseProvisioning Phase = "provisioning"
	PhaseTesting      Phase = "testing"
	PhaseUpdating     Phase = "updating"
	PhasePublishing   Phase = "publishing"
	PhaseTornDown     Phase = "torn-down"
	PhaseDone         Phase = "done"
	PhaseFailed       Phase = "failed"
)

const (
	// DefaultDependencyPrefixConstant marks sibling packages pinned to the release version.
	DefaultDependencyPrefixConstant = "nucleus-angular-"

	buildVersionRequiredMessageConstant = "build version number must be provided"
	workspacePreparedProgressConstant   = "preparing workspace"
	workspaceRemovedProgressConstant    = "removing workspace"
	phaseEnteredLogConstant             = "release phase started"
	releaseCompletedLogConstant         = "release completed"
	releaseFailedLogConstant            = "release failed"
)

// ErrBuildVersionRequired indicates the run was started without a version.
var ErrBuildVersionRequired = errors.New(buildVersionRequiredMessageConstant)

// Options configures a release run.
type Options struct {
	BuildVersion          string
	Push                  bool
	SkipPreparation       bool
	ContinueOnTestFailure bool
	DependencyPrefix      string
	ChangelogMarker       string
	RemoteName            string
	BranchName            string
}

// Result summarizes a completed run.
type Result struct {
	Phases  []Phase
	Updates []UpdateResult
}

// Controller sequences the release phases.
type Controller struct {
	dependencies Dependencies
	provisioner  *Provisioner
	testExecutor *TestExecutor
	updater      *Updater
	publisher    *Publisher
	phases       []Phase
}

// NewController constructs a Controller and its phase components.
func NewController(dependencies Dependencies) (*Controller, error) {
	provisioner, provisionerError := NewProvisioner(dependencies)
	if provisionerError != nil {
		return nil, provisionerError
	}
	testExecutor, testExecutorError := NewTestExecutor(dependencies)
	if testExecutorError != nil {
		return nil, testExecutorError
	}
	updater, updaterError := NewUpdater(dependencies)
	if updaterError != nil {
		return nil, updaterError
	}
	publisher, publisherError := NewPublisher(dependencies)
	if publisherError != nil {
		return nil, publisherError
	}
	return &Controller{
		dependencies: dependencies.withDefaults(),
		provisioner:  provisioner,
		testExecutor: testExecutor,
		updater:      updater,
		publisher:    publisher,
		phases:       []Phase{PhaseIdle},
	}, nil
}

// Phases returns the phases visited by the most recent run.
func (controller *Controller) Phases() []Phase {
	return append([]Phase(nil), controller.phases...)
}

// Run executes a release. Without SkipPreparation the workspace is rebuilt
// and every repository is provisioned, tested, and updated. With Push every
// repository is pushed and the workspace is removed afterwards. The first
// failure aborts the run and is returned.
func (controller *Controller) Run(executionContext context.Context, releaseConfiguration configuration.Configuration, options Options) (Result, error) {
	controller.phases = []Phase{PhaseIdle}
	options = options.withDefaults()

	result, runError := controller.run(executionContext, releaseConfiguration, options)
	if runError != nil {
		controller.enter(PhaseFailed)
		controller.dependencies.Logger.Error(releaseFailedLogConstant, zap.String(logFieldVersionConstant, options.BuildVersion), zap.Error(runError))
		result.Phases = controller.Phases()
		return result, runError
	}

	controller.enter(PhaseDone)
	controller.dependencies.Logger.Info(releaseCompletedLogConstant, zap.String(logFieldVersionConstant, options.BuildVersion))
	result.Phases = controller.Phases()
	return result, nil
}

func (controller *Controller) run(executionContext context.Context, releaseConfiguration configuration.Configuration, options Options) (Result, error) {
	var result Result
	if len(options.BuildVersion) == 0 {
		return result, releaseerrors.Config(releaseerrors.OperationLoadConfiguration, ErrBuildVersionRequired)
	}

	if !options.SkipPreparation {
		controller.enter(PhaseProvisioning)
		controller.dependencies.Reporter.Progress("", workspacePreparedProgressConstant)
		if setupError := controller.dependencies.Workspace.Setup(); setupError != nil {
			return result, releaseerrors.Provision(releaseerrors.OperationWorkspace, "", setupError)
		}
		if provisionError := controller.provisioner.Provision(executionContext, releaseConfiguration); provisionError != nil {
			return result, provisionError
		}

		controller.enter(PhaseTesting)
		if testError := controller.testExecutor.RunTests(executionContext, releaseConfiguration, options.ContinueOnTestFailure); testError != nil {
			return result, testError
		}

		controller.enter(PhaseUpdating)
		updates, updateError := controller.updater.Update(executionContext, releaseConfiguration, UpdateOptions{
			BuildVersion:     options.BuildVersion,
			DependencyPrefix: options.DependencyPrefix,
			ChangelogMarker:  options.ChangelogMarker,
		})
		result.Updates = updates
		if updateError != nil {
			return result, updateError
		}
	}

	if !options.Push {
		return result, nil
	}

	controller.enter(PhasePublishing)
	if publishError := controller.publisher.Publish(executionContext, releaseConfiguration, PublishOptions{
		RemoteName: options.RemoteName,
		BranchName: options.BranchName,
	}); publishError != nil {
		return result, publishError
	}

	controller.enter(PhaseTornDown)
	controller.dependencies.Reporter.Progress("", workspaceRemovedProgressConstant)
	if teardownError := controller.dependencies.Workspace.Teardown(); teardownError != nil {
		return result, releaseerrors.New(releaseerrors.KindPush, releaseerrors.OperationWorkspace, "", teardownError)
	}
	return result, nil
}

func (controller *Controller) enter(phase Phase) {
	controller.phases = append(controller.phases, phase)
	controller.dependencies.Logger.Info(phaseEnteredLogConstant, zap.String(logFieldPhaseConstant, string(phase)))
}

func (options Options) withDefaults() Options {
	options.BuildVersion = strings.TrimSpace(options.BuildVersion)
	if len(options.DependencyPrefix) == 0 {
		options.DependencyPrefix = DefaultDependencyPrefixConstant
	}
	if len(options.ChangelogMarker) == 0 {
		options.ChangelogMarker = changelog.DefaultMarkerConstant
	}
	if len(options.RemoteName) == 0 {
		options.RemoteName = DefaultRemoteNameConstant
	}
	if len(options.BranchName) == 0 {
		options.BranchName = DefaultBranchNameConstant
	}
	return options
}
