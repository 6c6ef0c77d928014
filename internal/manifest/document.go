package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
)

const (
	// VersionFieldName is the manifest field holding the project version.
	VersionFieldName = "version"
	// DependenciesFieldName is the manifest field holding runtime dependency constraints.
	DependenciesFieldName = "dependencies"
	// DevDependenciesFieldName is the manifest field holding development dependency constraints.
	DevDependenciesFieldName = "devDependencies"

	nullLiteralConstant             = "null"
	indentationConstant             = "  "
	trailingNewlineConstant         = "\n"
	objectOpenDelimiterConstant     = json.Delim('{')
	objectCloseDelimiterConstant    = json.Delim('}')
	notAnObjectMessageConstant      = "manifest must be a JSON object"
	trailingDataMessageConstant     = "unexpected data after manifest object"
	unexpectedKeyTemplateConstant   = "unexpected object key token %v"
	parseErrorTemplateConstant      = "invalid manifest: %v"
	encodeErrorTemplateConstant     = "failed to encode manifest: %w"
	dependencyErrorTemplateConstant = "invalid %s mapping: %w"
)

// ErrNotAnObject indicates the manifest (or a dependency mapping) is not a JSON object.
var ErrNotAnObject = errors.New(notAnObjectMessageConstant)

// ParseError reports malformed manifest content.
type ParseError struct {
	Cause error
}

// Error describes the parse failure.
func (parseError ParseError) Error() string {
	return fmt.Sprintf(parseErrorTemplateConstant, parseError.Cause)
}

// Unwrap exposes the underlying cause.
func (parseError ParseError) Unwrap() error {
	return parseError.Cause
}

// DependencyFieldNames lists the mappings that carry dependency constraints.
var DependencyFieldNames = []string{DependenciesFieldName, DevDependenciesFieldName}

type member struct {
	key   string
	value json.RawMessage
}

// Document is an immutable JSON object whose member order is preserved.
type Document struct {
	members []member
}

// Parse decodes data into a Document.
func Parse(data []byte) (Document, error) {
	members, parseError := parseObject(data)
	if parseError != nil {
		return Document{}, ParseError{Cause: parseError}
	}
	return Document{members: members}, nil
}

// Marshal encodes the document with two-space indentation and a trailing newline.
func (document Document) Marshal() ([]byte, error) {
	compactObject, encodeError := encodeObject(document.members)
	if encodeError != nil {
		return nil, fmt.Errorf(encodeErrorTemplateConstant, encodeError)
	}
	var indented bytes.Buffer
	if indentError := json.Indent(&indented, compactObject, "", indentationConstant); indentError != nil {
		return nil, fmt.Errorf(encodeErrorTemplateConstant, indentError)
	}
	indented.WriteString(trailingNewlineConstant)
	return indented.Bytes(), nil
}

// Keys returns the top-level member names in document order.
func (document Document) Keys() []string {
	keys := make([]string, 0, len(document.members))
	for _, documentMember := range document.members {
		keys = append(keys, documentMember.key)
	}
	return keys
}

// Field returns the raw JSON value stored under key.
func (document Document) Field(key string) (json.RawMessage, bool) {
	memberIndex := indexOf(document.members, key)
	if memberIndex < 0 {
		return nil, false
	}
	return append(json.RawMessage(nil), document.members[memberIndex].value...), true
}

// Version returns the version string, or an empty string when absent or not a string.
func (document Document) Version() string {
	rawVersion, exists := document.Field(VersionFieldName)
	if !exists {
		return ""
	}
	var version string
	if json.Unmarshal(rawVersion, &version) != nil {
		return ""
	}
	return version
}

// WithVersion returns a copy whose version field equals version. A missing
// field is appended after the existing members.
func (document Document) WithVersion(version string) Document {
	return Document{members: setMember(document.members, VersionFieldName, encodeString(version))}
}

// Dependencies returns the named dependency mapping as ordered name/constraint
// pairs. A missing or null mapping reports false.
func (document Document) Dependencies(fieldName string) ([]Dependency, bool, error) {
	rawMapping, exists := document.Field(fieldName)
	if !exists || isNull(rawMapping) {
		return nil, false, nil
	}
	mappingMembers, parseError := parseObject(rawMapping)
	if parseError != nil {
		return nil, true, fmt.Errorf(dependencyErrorTemplateConstant, fieldName, parseError)
	}
	dependencies := make([]Dependency, 0, len(mappingMembers))
	for _, mappingMember := range mappingMembers {
		var constraint string
		if json.Unmarshal(mappingMember.value, &constraint) != nil {
			constraint = string(mappingMember.value)
		}
		dependencies = append(dependencies, Dependency{Name: mappingMember.key, Constraint: constraint})
	}
	return dependencies, true, nil
}

// WithPinnedDependencies returns a copy in which every dependency and
// devDependency whose name starts with prefix is constrained to exactly
// version, together with the names it pinned. An empty prefix pins nothing.
func (document Document) WithPinnedDependencies(prefix string, version string) (Document, []string, error) {
	updatedMembers := cloneMembers(document.members)
	var pinnedNames []string
	if len(prefix) == 0 {
		return Document{members: updatedMembers}, nil, nil
	}

	for _, fieldName := range DependencyFieldNames {
		memberIndex := indexOf(updatedMembers, fieldName)
		if memberIndex < 0 || isNull(updatedMembers[memberIndex].value) {
			continue
		}
		mappingMembers, parseError := parseObject(updatedMembers[memberIndex].value)
		if parseError != nil {
			return Document{}, nil, ParseError{Cause: fmt.Errorf(dependencyErrorTemplateConstant, fieldName, parseError)}
		}
		changed := false
		for mappingIndex := range mappingMembers {
			if !strings.HasPrefix(mappingMembers[mappingIndex].key, prefix) {
				continue
			}
			mappingMembers[mappingIndex].value = encodeString(version)
			pinnedNames = append(pinnedNames, mappingMembers[mappingIndex].key)
			changed = true
		}
		if !changed {
			continue
		}
		encodedMapping, encodeError := encodeObject(mappingMembers)
		if encodeError != nil {
			return Document{}, nil, fmt.Errorf(encodeErrorTemplateConstant, encodeError)
		}
		updatedMembers[memberIndex].value = encodedMapping
	}

	return Document{members: updatedMembers}, pinnedNames, nil
}

// WithDependencyFieldsFrom returns a copy whose dependency mappings are taken
// from source. A mapping absent from source is removed.
func (document Document) WithDependencyFieldsFrom(source Document) Document {
	updatedMembers := cloneMembers(document.members)
	for _, fieldName := range DependencyFieldNames {
		sourceValue, sourceHasField := source.Field(fieldName)
		if !sourceHasField {
			updatedMembers = removeMember(updatedMembers, fieldName)
			continue
		}
		updatedMembers = setMember(updatedMembers, fieldName, sourceValue)
	}
	return Document{members: updatedMembers}
}

// DependencyFieldsEqual reports whether both documents carry structurally equal
// dependency mappings. Member order is ignored.
func (document Document) DependencyFieldsEqual(other Document) bool {
	for _, fieldName := range DependencyFieldNames {
		if !fieldsEqual(document, other, fieldName) {
			return false
		}
	}
	return true
}

// Equal reports whether both documents are structurally equal.
func (document Document) Equal(other Document) bool {
	if len(document.members) != len(other.members) {
		return false
	}
	for _, documentMember := range document.members {
		if !fieldsEqual(document, other, documentMember.key) {
			return false
		}
	}
	return true
}

// Dependency is a single name/constraint pair from a dependency mapping.
type Dependency struct {
	Name       string
	Constraint string
}

func fieldsEqual(left Document, right Document, fieldName string) bool {
	leftValue, leftExists := left.Field(fieldName)
	rightValue, rightExists := right.Field(fieldName)
	if leftExists != rightExists {
		return false
	}
	if !leftExists {
		return true
	}
	var leftDecoded any
	var rightDecoded any
	if json.Unmarshal(leftValue, &leftDecoded) != nil || json.Unmarshal(rightValue, &rightDecoded) != nil {
		return bytes.Equal(leftValue, rightValue)
	}
	return reflect.DeepEqual(leftDecoded, rightDecoded)
}

// isNull reports whether a raw value is the JSON null literal, which marks a
// dependency mapping as absent.
func isNull(data json.RawMessage) bool {
	return string(bytes.TrimSpace(data)) == nullLiteralConstant
}

func parseObject(data []byte) ([]member, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	openingToken, tokenError := decoder.Token()
	if tokenError != nil {
		return nil, tokenError
	}
	if openingToken != objectOpenDelimiterConstant {
		return nil, ErrNotAnObject
	}

	var members []member
	for decoder.More() {
		keyToken, keyError := decoder.Token()
		if keyError != nil {
			return nil, keyError
		}
		key, isString := keyToken.(string)
		if !isString {
			return nil, fmt.Errorf(unexpectedKeyTemplateConstant, keyToken)
		}
		var value json.RawMessage
		if decodeError := decoder.Decode(&value); decodeError != nil {
			return nil, decodeError
		}
		members = setMember(members, key, value)
	}

	closingToken, closingError := decoder.Token()
	if closingError != nil {
		return nil, closingError
	}
	if closingToken != objectCloseDelimiterConstant {
		return nil, ErrNotAnObject
	}
	if _, trailingError := decoder.Token(); !errors.Is(trailingError, io.EOF) {
		return nil, errors.New(trailingDataMessageConstant)
	}
	return members, nil
}

func encodeObject(members []member) ([]byte, error) {
	var buffer bytes.Buffer
	buffer.WriteByte('{')
	for memberIndex, objectMember := range members {
		if memberIndex > 0 {
			buffer.WriteByte(',')
		}
		buffer.Write(encodeString(objectMember.key))
		buffer.WriteByte(':')
		if compactError := json.Compact(&buffer, objectMember.value); compactError != nil {
			return nil, compactError
		}
	}
	buffer.WriteByte('}')
	return buffer.Bytes(), nil
}

func encodeString(value string) json.RawMessage {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(value)
	return json.RawMessage(bytes.TrimRight(buffer.Bytes(), trailingNewlineConstant))
}

func indexOf(members []member, key string) int {
	for memberIndex := range members {
		if members[memberIndex].key == key {
			return memberIndex
		}
	}
	return -1
}

func cloneMembers(members []member) []member {
	cloned := make([]member, len(members))
	for memberIndex, objectMember := range members {
		cloned[memberIndex] = member{key: objectMember.key, value: append(json.RawMessage(nil), objectMember.value...)}
	}
	return cloned
}

func setMember(members []member, key string, value json.RawMessage) []member {
	updated := cloneMembers(members)
	if memberIndex := indexOf(updated, key); memberIndex >= 0 {
		updated[memberIndex].value = value
		return updated
	}
	return append(updated, member{key: key, value: value})
}

func removeMember(members []member, key string) []member {
	memberIndex := indexOf(members, key)
	if memberIndex < 0 {
		return members
	}
	return append(members[:memberIndex:memberIndex], members[memberIndex+1:]...)
}
