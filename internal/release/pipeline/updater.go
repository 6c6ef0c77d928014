package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/nagbuild/internal/changelog"
	"github.com/temirov/nagbuild/internal/manifest"
	"github.com/temirov/nagbuild/internal/release/configuration"
	releaseerrors "github.com/temirov/nagbuild/internal/release/errors"
	"github.com/temirov/nagbuild/internal/workspace"
)

const (
	releaseCommitMessageTemplateConstant = "releasing %s"
	tagMessageTemplateConstant           = "Version %s"
	revertCommitMessageConstant          = "update dependencies back for development"
	updatingProgressTemplateConstant     = "updating version to %s"
	committingProgressConstant           = "committing release"
	taggingProgressTemplateConstant      = "tagging %s"
	revertingProgressConstant            = "restoring development dependencies"
	readFileErrorTemplateConstant        = "unable to read %s: %w"
	parseFileErrorTemplateConstant       = "unable to parse %s: %w"
	writeFileErrorTemplateConstant       = "unable to write %s: %w"
	pinnedDependenciesLogConstant        = "pinned sibling dependencies"
	changelogUpdatedLogConstant          = "changelog heading released"
	repositoryReleasedLogConstant        = "repository released"
	logFieldDependenciesConstant         = "dependencies"
	defaultFilePermissionsConstant       = fs.FileMode(0o644)
)

// UpdateOptions configures the version rewrite of a release.
type UpdateOptions struct {
	BuildVersion     string
	DependencyPrefix string
	ChangelogMarker  string
}

// UpdateResult reports what the updater changed in one repository.
type UpdateResult struct {
	DirectoryName      string
	PinnedDependencies []string
	ChangelogUpdated   bool
	RevertCommitted    bool
}

// Updater rewrites manifests and changelogs, then commits and tags the release.
type Updater struct {
	dependencies Dependencies
}

// NewUpdater constructs an Updater.
func NewUpdater(dependencies Dependencies) (*Updater, error) {
	if managerError := dependencies.requireRepositoryManager(); managerError != nil {
		return nil, managerError
	}
	return &Updater{dependencies: dependencies.withDefaults()}, nil
}

// Update releases every repository in configuration order.
func (updater *Updater) Update(executionContext context.Context, releaseConfiguration configuration.Configuration, options UpdateOptions) ([]UpdateResult, error) {
	results := make([]UpdateResult, 0, len(releaseConfiguration.Repositories))
	for _, repository := range releaseConfiguration.Repositories {
		result, updateError := updater.UpdateRepository(executionContext, repository, options)
		if updateError != nil {
			return results, updateError
		}
		results = append(results, result)
	}
	return results, nil
}

// UpdateRepository sets the release version in the manifests, releases the
// changelog heading, commits, tags, and commits the restored development
// dependencies when pinning changed them.
func (updater *Updater) UpdateRepository(executionContext context.Context, repository configuration.Repository, options UpdateOptions) (UpdateResult, error) {
	directoryName := repository.DirectoryName
	result := UpdateResult{DirectoryName: directoryName}

	scopeError := updater.dependencies.Workspace.WithDirectory(directoryName, func(repositoryPath string) error {
		updater.dependencies.Reporter.Progress(directoryName, fmt.Sprintf(updatingProgressTemplateConstant, options.BuildVersion))

		bowerPath := filepath.Join(repositoryPath, BowerManifestFileNameConstant)
		bower, bowerError := updater.releaseBowerManifest(bowerPath, options)
		if bowerError != nil {
			return releaseerrors.Manifest(releaseerrors.OperationUpdateManifest, directoryName, bowerError)
		}
		result.PinnedDependencies = bower.pinned

		if packageError := updater.releasePackageManifest(filepath.Join(repositoryPath, PackageManifestFileNameConstant), options); packageError != nil {
			return releaseerrors.Manifest(releaseerrors.OperationUpdateManifest, directoryName, packageError)
		}

		changelogUpdated, changelogError := updater.releaseChangelog(filepath.Join(repositoryPath, changelog.FileNameConstant), options)
		if changelogError != nil {
			return releaseerrors.Manifest(releaseerrors.OperationUpdateChangelog, directoryName, changelogError)
		}
		result.ChangelogUpdated = changelogUpdated

		updater.dependencies.Reporter.Progress(directoryName, committingProgressConstant)
		if commitError := updater.dependencies.RepositoryManager.CommitAll(executionContext, repositoryPath, fmt.Sprintf(releaseCommitMessageTemplateConstant, options.BuildVersion)); commitError != nil {
			return releaseerrors.Commit(releaseerrors.OperationCommitRelease, directoryName, commitError)
		}

		updater.dependencies.Reporter.Progress(directoryName, fmt.Sprintf(taggingProgressTemplateConstant, options.BuildVersion))
		if tagError := updater.dependencies.RepositoryManager.CreateAnnotatedTag(executionContext, repositoryPath, options.BuildVersion, fmt.Sprintf(tagMessageTemplateConstant, options.BuildVersion)); tagError != nil {
			return releaseerrors.Tag(directoryName, tagError)
		}

		if !bower.present || bower.released.DependencyFieldsEqual(bower.original) {
			return nil
		}

		updater.dependencies.Reporter.Progress(directoryName, revertingProgressConstant)
		if writeError := updater.writeDocument(bowerPath, bower.released.WithDependencyFieldsFrom(bower.original)); writeError != nil {
			return releaseerrors.Manifest(releaseerrors.OperationUpdateManifest, directoryName, writeError)
		}
		if commitError := updater.dependencies.RepositoryManager.CommitAll(executionContext, repositoryPath, revertCommitMessageConstant); commitError != nil {
			return releaseerrors.Commit(releaseerrors.OperationCommitRevert, directoryName, commitError)
		}
		result.RevertCommitted = true
		return nil
	})
	if scopeError != nil {
		return result, asStepError(scopeError, func(cause error) releaseerrors.StepError {
			return releaseerrors.Manifest(releaseerrors.OperationUpdateManifest, directoryName, cause)
		})
	}

	updater.dependencies.Logger.Info(
		repositoryReleasedLogConstant,
		zap.String(logFieldRepositoryConstant, directoryName),
		zap.String(logFieldVersionConstant, options.BuildVersion),
	)
	return result, nil
}

type bowerRelease struct {
	present  bool
	original manifest.Document
	released manifest.Document
	pinned   []string
}

// releaseBowerManifest writes the release copy of bower.json and keeps the
// original document for restoring development dependencies.
func (updater *Updater) releaseBowerManifest(bowerPath string, options UpdateOptions) (bowerRelease, error) {
	original, present, readError := updater.readDocument(bowerPath)
	if readError != nil || !present {
		return bowerRelease{}, readError
	}

	released, pinned, pinError := original.WithVersion(options.BuildVersion).WithPinnedDependencies(options.DependencyPrefix, options.BuildVersion)
	if pinError != nil {
		return bowerRelease{}, fmt.Errorf(parseFileErrorTemplateConstant, bowerPath, pinError)
	}
	if len(pinned) > 0 {
		updater.dependencies.Logger.Debug(pinnedDependenciesLogConstant, zap.String(logFieldPathConstant, bowerPath), zap.Strings(logFieldDependenciesConstant, pinned))
	}

	if writeError := updater.writeDocument(bowerPath, released); writeError != nil {
		return bowerRelease{}, writeError
	}
	return bowerRelease{present: true, original: original, released: released, pinned: pinned}, nil
}

func (updater *Updater) releasePackageManifest(packagePath string, options UpdateOptions) error {
	original, present, readError := updater.readDocument(packagePath)
	if readError != nil || !present {
		return readError
	}
	return updater.writeDocument(packagePath, original.WithVersion(options.BuildVersion))
}

func (updater *Updater) releaseChangelog(changelogPath string, options UpdateOptions) (bool, error) {
	fileSystem := updater.dependencies.Workspace.FileSystem()
	if !workspace.FileExists(fileSystem, changelogPath) {
		return false, nil
	}
	contents, readError := fileSystem.ReadFile(changelogPath)
	if readError != nil {
		return false, fmt.Errorf(readFileErrorTemplateConstant, changelogPath, readError)
	}

	rewritten, replaced := changelog.Rewrite(string(contents), options.ChangelogMarker, options.BuildVersion)
	if !replaced {
		return false, nil
	}
	if writeError := fileSystem.WriteFile(changelogPath, []byte(rewritten), filePermissions(fileSystem, changelogPath)); writeError != nil {
		return false, fmt.Errorf(writeFileErrorTemplateConstant, changelogPath, writeError)
	}
	updater.dependencies.Logger.Debug(changelogUpdatedLogConstant, zap.String(logFieldPathConstant, changelogPath))
	return true, nil
}

func (updater *Updater) readDocument(documentPath string) (manifest.Document, bool, error) {
	fileSystem := updater.dependencies.Workspace.FileSystem()
	if !workspace.FileExists(fileSystem, documentPath) {
		return manifest.Document{}, false, nil
	}
	contents, readError := fileSystem.ReadFile(documentPath)
	if readError != nil {
		return manifest.Document{}, false, fmt.Errorf(readFileErrorTemplateConstant, documentPath, readError)
	}
	document, parseError := manifest.Parse(contents)
	if parseError != nil {
		return manifest.Document{}, false, fmt.Errorf(parseFileErrorTemplateConstant, documentPath, parseError)
	}
	return document, true, nil
}

func (updater *Updater) writeDocument(documentPath string, document manifest.Document) error {
	encoded, encodeError := document.Marshal()
	if encodeError != nil {
		return fmt.Errorf(writeFileErrorTemplateConstant, documentPath, encodeError)
	}
	fileSystem := updater.dependencies.Workspace.FileSystem()
	if writeError := fileSystem.WriteFile(documentPath, encoded, filePermissions(fileSystem, documentPath)); writeError != nil {
		return fmt.Errorf(writeFileErrorTemplateConstant, documentPath, writeError)
	}
	return nil
}

func filePermissions(fileSystem workspace.FileSystem, path string) fs.FileMode {
	fileInfo, statError := fileSystem.Stat(path)
	if statError != nil {
		return defaultFilePermissionsConstant
	}
	return fileInfo.Mode().Perm()
}
