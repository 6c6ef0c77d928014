package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/nagbuild/internal/execshell"
	"github.com/temirov/nagbuild/internal/release/configuration"
	releaseerrors "github.com/temirov/nagbuild/internal/release/errors"
	"github.com/temirov/nagbuild/internal/workspace"
)

const (
	// PackageManifestFileNameConstant names the npm manifest.
	PackageManifestFileNameConstant = "package.json"
	// BowerManifestFileNameConstant names the bower manifest.
	BowerManifestFileNameConstant = "bower.json"

	installSubcommandConstant        = "install"
	gitUserNameKeyConstant           = "user.name"
	gitUserEmailKeyConstant          = "user.email"
	cloningProgressTemplateConstant  = "cloning %s"
	npmInstallProgressConstant       = "installing npm dependencies"
	bowerInstallProgressConstant     = "installing bower dependencies"
	gitIdentityProgressConstant      = "configuring git identity"
	repositoryProvisionedLogConstant = "repository provisioned"
)

// Provisioner clones repositories, installs their dependencies, and sets the
// local git identity used for release commits.
type Provisioner struct {
	dependencies Dependencies
}

// NewProvisioner constructs a Provisioner.
func NewProvisioner(dependencies Dependencies) (*Provisioner, error) {
	if executorError := dependencies.requireExecutor(); executorError != nil {
		return nil, executorError
	}
	if managerError := dependencies.requireRepositoryManager(); managerError != nil {
		return nil, managerError
	}
	return &Provisioner{dependencies: dependencies.withDefaults()}, nil
}

// Provision prepares every repository in configuration order and stops at the first failure.
func (provisioner *Provisioner) Provision(executionContext context.Context, releaseConfiguration configuration.Configuration) error {
	for _, repository := range releaseConfiguration.Repositories {
		if provisionError := provisioner.ProvisionRepository(executionContext, releaseConfiguration, repository); provisionError != nil {
			return provisionError
		}
	}
	return nil
}

// ProvisionRepository clones one repository into the workspace and prepares it.
func (provisioner *Provisioner) ProvisionRepository(executionContext context.Context, releaseConfiguration configuration.Configuration, repository configuration.Repository) error {
	directoryName := repository.DirectoryName
	provisioner.dependencies.Reporter.Progress(directoryName, fmt.Sprintf(cloningProgressTemplateConstant, repository.GitURL))
	if cloneError := provisioner.dependencies.RepositoryManager.Clone(executionContext, provisioner.dependencies.Workspace.Root(), repository.GitURL, directoryName); cloneError != nil {
		return releaseerrors.Provision(releaseerrors.OperationClone, directoryName, cloneError)
	}

	scopeError := provisioner.dependencies.Workspace.WithDirectory(directoryName, func(repositoryPath string) error {
		if installError := provisioner.installDependencies(executionContext, directoryName, repositoryPath); installError != nil {
			return installError
		}
		return provisioner.configureIdentity(executionContext, releaseConfiguration, directoryName, repositoryPath)
	})
	if scopeError != nil {
		return asStepError(scopeError, func(cause error) releaseerrors.StepError {
			return releaseerrors.Provision(releaseerrors.OperationClone, directoryName, cause)
		})
	}

	provisioner.dependencies.Logger.Info(repositoryProvisionedLogConstant, zap.String(logFieldRepositoryConstant, directoryName))
	return nil
}

func (provisioner *Provisioner) installDependencies(executionContext context.Context, directoryName string, repositoryPath string) error {
	fileSystem := provisioner.dependencies.Workspace.FileSystem()
	installDetails := execshell.CommandDetails{
		Arguments:        []string{installSubcommandConstant},
		WorkingDirectory: repositoryPath,
		OutputPolicy:     execshell.OutputPolicyInherit,
	}

	if workspace.FileExists(fileSystem, filepath.Join(repositoryPath, PackageManifestFileNameConstant)) {
		provisioner.dependencies.Reporter.Progress(directoryName, npmInstallProgressConstant)
		if _, installError := provisioner.dependencies.Executor.ExecuteNPM(executionContext, installDetails); installError != nil {
			return releaseerrors.Provision(releaseerrors.OperationDependencyInstall, directoryName, installError)
		}
	}

	if workspace.FileExists(fileSystem, filepath.Join(repositoryPath, BowerManifestFileNameConstant)) {
		provisioner.dependencies.Reporter.Progress(directoryName, bowerInstallProgressConstant)
		if _, installError := provisioner.dependencies.Executor.ExecuteBower(executionContext, installDetails); installError != nil {
			return releaseerrors.Provision(releaseerrors.OperationDependencyInstall, directoryName, installError)
		}
	}

	return nil
}

func (provisioner *Provisioner) configureIdentity(executionContext context.Context, releaseConfiguration configuration.Configuration, directoryName string, repositoryPath string) error {
	if len(releaseConfiguration.GitUserName) == 0 && len(releaseConfiguration.GitUserEmail) == 0 {
		return nil
	}
	provisioner.dependencies.Reporter.Progress(directoryName, gitIdentityProgressConstant)

	if len(releaseConfiguration.GitUserName) > 0 {
		if configureError := provisioner.dependencies.RepositoryManager.ConfigureLocal(executionContext, repositoryPath, gitUserNameKeyConstant, releaseConfiguration.GitUserName); configureError != nil {
			return releaseerrors.Provision(releaseerrors.OperationGitUserName, directoryName, configureError)
		}
	}
	if len(releaseConfiguration.GitUserEmail) > 0 {
		if configureError := provisioner.dependencies.RepositoryManager.ConfigureLocal(executionContext, repositoryPath, gitUserEmailKeyConstant, releaseConfiguration.GitUserEmail); configureError != nil {
			return releaseerrors.Provision(releaseerrors.OperationGitUserEmail, directoryName, configureError)
		}
	}
	return nil
}
