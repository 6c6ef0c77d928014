package gitrepo

import (
	"fmt"
	"strings"
)

const (
	pathSeparatorConstant               = "/"
	scpPathDelimiterConstant            = ":"
	gitSuffixConstant                   = ".git"
	schemeSeparatorConstant             = "://"
	remoteURLParseErrorTemplateConstant = "%s: %s"
	invalidRemoteURLMessageConstant     = "cannot derive a checkout directory from remote url"
	requiredValueMessageConstant        = "remote url must be provided"
)

// RemoteURLParseError indicates a remote string could not be interpreted.
type RemoteURLParseError struct {
	Input   string
	Message string
}

// Error describes the parse failure.
func (parseError RemoteURLParseError) Error() string {
	return fmt.Sprintf(remoteURLParseErrorTemplateConstant, parseError.Input, parseError.Message)
}

// CheckoutDirectoryName returns the directory git clone creates for remote
// when no destination is given: the last path component without a .git suffix.
func CheckoutDirectoryName(remote string) (string, error) {
	trimmedRemote := strings.TrimSpace(remote)
	if len(trimmedRemote) == 0 {
		return "", RemoteURLParseError{Input: remote, Message: requiredValueMessageConstant}
	}

	pathPortion := trimmedRemote
	if schemeIndex := strings.Index(pathPortion, schemeSeparatorConstant); schemeIndex >= 0 {
		pathPortion = pathPortion[schemeIndex+len(schemeSeparatorConstant):]
		hostSeparatorIndex := strings.Index(pathPortion, pathSeparatorConstant)
		if hostSeparatorIndex == -1 {
			return "", RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
		}
		pathPortion = pathPortion[hostSeparatorIndex+1:]
	} else if delimiterIndex := strings.Index(pathPortion, scpPathDelimiterConstant); delimiterIndex >= 0 && !strings.Contains(pathPortion[:delimiterIndex], pathSeparatorConstant) {
		pathPortion = pathPortion[delimiterIndex+1:]
	}

	pathPortion = strings.TrimRight(pathPortion, pathSeparatorConstant)
	pathPortion = strings.TrimSuffix(pathPortion, pathSeparatorConstant+gitSuffixConstant)
	pathPortion = strings.TrimRight(pathPortion, pathSeparatorConstant)

	lastSeparatorIndex := strings.LastIndex(pathPortion, pathSeparatorConstant)
	directoryName := strings.TrimSuffix(pathPortion[lastSeparatorIndex+1:], gitSuffixConstant)
	if len(directoryName) == 0 || directoryName == "." || directoryName == ".." {
		return "", RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
	return directoryName, nil
}
