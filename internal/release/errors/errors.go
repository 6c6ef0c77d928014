package errors

import (
	stdErrors "errors"
	"fmt"
)

// Kind classifies a release failure.
type Kind string

// Failure kinds.
const (
	KindConfig    Kind = "ConfigError"
	KindProvision Kind = "ProvisionError"
	KindTest      Kind = "TestFailure"
	KindManifest  Kind = "ManifestError"
	KindCommit    Kind = "CommitError"
	KindTag       Kind = "TagError"
	KindPush      Kind = "PushError"
)

// Operation names the step that failed within a kind.
type Operation string

// Provisioning operations.
const (
	OperationClone             Operation = "clone"
	OperationDependencyInstall Operation = "dependencyInstall"
	OperationGitUserName       Operation = "gitUserName"
	OperationGitUserEmail      Operation = "gitUserEmail"
)

// Remaining operations.
const (
	OperationLoadConfiguration Operation = "loadConfiguration"
	OperationRunTests          Operation = "runTests"
	OperationStartService      Operation = "startService"
	OperationUpdateManifest    Operation = "updateManifest"
	OperationUpdateChangelog   Operation = "updateChangelog"
	OperationCommitRelease     Operation = "commitRelease"
	OperationCommitRevert      Operation = "commitRevert"
	OperationCreateTag         Operation = "createTag"
	OperationPush              Operation = "push"
	OperationWorkspace         Operation = "workspace"
)

const (
	stepErrorTemplateConstant               = "%s (%s)"
	stepErrorWithRepositoryTemplateConstant = "%s (%s) in %s"
	stepErrorWithCauseTemplateConstant      = "%s: %v"
)

// StepError reports a fatal failure of one release step.
type StepError struct {
	Kind       Kind
	Operation  Operation
	Repository string
	Cause      error
}

// Error describes the failure.
func (stepError StepError) Error() string {
	var description string
	if len(stepError.Repository) == 0 {
		description = fmt.Sprintf(stepErrorTemplateConstant, stepError.Kind, stepError.Operation)
	} else {
		description = fmt.Sprintf(stepErrorWithRepositoryTemplateConstant, stepError.Kind, stepError.Operation, stepError.Repository)
	}
	if stepError.Cause == nil {
		return description
	}
	return fmt.Sprintf(stepErrorWithCauseTemplateConstant, description, stepError.Cause)
}

// Unwrap exposes the underlying cause.
func (stepError StepError) Unwrap() error {
	return stepError.Cause
}

// New constructs a StepError.
func New(kind Kind, operation Operation, repository string, cause error) StepError {
	return StepError{Kind: kind, Operation: operation, Repository: repository, Cause: cause}
}

// Config reports an unusable repositories file or application setting.
func Config(operation Operation, cause error) StepError {
	return New(KindConfig, operation, "", cause)
}

// Provision reports a clone, dependency install, or git identity failure.
func Provision(operation Operation, repository string, cause error) StepError {
	return New(KindProvision, operation, repository, cause)
}

// Test reports a failing test command or auxiliary service.
func Test(operation Operation, repository string, cause error) StepError {
	return New(KindTest, operation, repository, cause)
}

// Manifest reports an unreadable or unwritable manifest file.
func Manifest(operation Operation, repository string, cause error) StepError {
	return New(KindManifest, operation, repository, cause)
}

// Commit reports a failed git commit.
func Commit(operation Operation, repository string, cause error) StepError {
	return New(KindCommit, operation, repository, cause)
}

// Tag reports a failed git tag.
func Tag(repository string, cause error) StepError {
	return New(KindTag, OperationCreateTag, repository, cause)
}

// Push reports a failed git push.
func Push(repository string, cause error) StepError {
	return New(KindPush, OperationPush, repository, cause)
}

// KindOf returns the kind of the first StepError in the chain of err.
func KindOf(err error) (Kind, bool) {
	var stepError StepError
	if !stdErrors.As(err, &stepError) {
		return "", false
	}
	return stepError.Kind, true
}

// OperationOf returns the operation of the first StepError in the chain of err.
func OperationOf(err error) (Operation, bool) {
	var stepError StepError
	if !stdErrors.As(err, &stepError) {
		return "", false
	}
	return stepError.Operation, true
}
