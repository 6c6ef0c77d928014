package workspace

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	workspaceDirectoryPermissionsConstant = 0o755
	workspaceRootRequiredMessageConstant  = "workspace root must be provided"
	workspaceRemoveErrorTemplateConstant  = "failed to remove workspace %s: %w"
	workspaceCreateErrorTemplateConstant  = "failed to create workspace %s: %w"
	workspaceResolveErrorTemplateConstant = "failed to resolve workspace %s: %w"
	invalidDirectoryNameTemplateConstant  = "invalid repository directory name %q"
	missingCheckoutTemplateConstant       = "repository checkout %s does not exist: %w"
	currentDirectorySegmentConstant       = "."
	parentDirectorySegmentConstant        = ".."
)

// ErrWorkspaceRootRequired indicates a Manager was built without a root path.
var ErrWorkspaceRootRequired = errors.New(workspaceRootRequiredMessageConstant)

// Manager owns the scratch workspace lifecycle. The workspace root is resolved
// to an absolute path once, so callers never depend on the process working directory.
type Manager struct {
	root       string
	fileSystem FileSystem
}

// NewManager resolves root to an absolute path and constructs a Manager.
func NewManager(root string, fileSystem FileSystem) (*Manager, error) {
	trimmedRoot := strings.TrimSpace(root)
	if len(trimmedRoot) == 0 {
		return nil, ErrWorkspaceRootRequired
	}
	if fileSystem == nil {
		fileSystem = OSFileSystem{}
	}

	absoluteRoot, absoluteError := fileSystem.Abs(trimmedRoot)
	if absoluteError != nil {
		return nil, fmt.Errorf(workspaceResolveErrorTemplateConstant, trimmedRoot, absoluteError)
	}

	return &Manager{root: absoluteRoot, fileSystem: fileSystem}, nil
}

// Root returns the absolute workspace path.
func (manager *Manager) Root() string {
	return manager.root
}

// FileSystem returns the filesystem the manager operates on.
func (manager *Manager) FileSystem() FileSystem {
	return manager.fileSystem
}

// Teardown removes the workspace recursively. It is idempotent.
func (manager *Manager) Teardown() error {
	if removeError := manager.fileSystem.RemoveAll(manager.root); removeError != nil {
		return fmt.Errorf(workspaceRemoveErrorTemplateConstant, manager.root, removeError)
	}
	return nil
}

// Setup tears down any previous workspace and creates a fresh, empty one.
func (manager *Manager) Setup() error {
	if teardownError := manager.Teardown(); teardownError != nil {
		return teardownError
	}
	if createError := manager.fileSystem.MkdirAll(manager.root, workspaceDirectoryPermissionsConstant); createError != nil {
		return fmt.Errorf(workspaceCreateErrorTemplateConstant, manager.root, createError)
	}
	return nil
}

// RepositoryPath returns the absolute checkout path for directoryName.
func (manager *Manager) RepositoryPath(directoryName string) (string, error) {
	if !ValidDirectoryName(directoryName) {
		return "", fmt.Errorf(invalidDirectoryNameTemplateConstant, directoryName)
	}
	return filepath.Join(manager.root, directoryName), nil
}

// WithDirectory runs operation with the absolute checkout path of directoryName.
// The path is handed to operation explicitly; the process working directory is
// never changed, so a failing operation leaves no directory state to restore.
func (manager *Manager) WithDirectory(directoryName string, operation func(repositoryPath string) error) error {
	repositoryPath, pathError := manager.RepositoryPath(directoryName)
	if pathError != nil {
		return pathError
	}
	if _, statError := manager.fileSystem.Stat(repositoryPath); statError != nil {
		return fmt.Errorf(missingCheckoutTemplateConstant, repositoryPath, statError)
	}
	return operation(repositoryPath)
}

// ValidDirectoryName reports whether name is usable as a single path segment.
func ValidDirectoryName(name string) bool {
	if len(name) == 0 || strings.TrimSpace(name) != name {
		return false
	}
	if name == currentDirectorySegmentConstant || name == parentDirectorySegmentConstant {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return filepath.Base(name) == name
}
