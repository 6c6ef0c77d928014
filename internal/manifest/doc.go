// Package manifest models package.json and bower.json style project manifests
// as immutable, order-preserving JSON documents.
//
// A Document is never mutated in place: WithVersion, WithPinnedDependencies and
// WithDependencyFieldsFrom each return a new Document, so a release can derive
// both the release-pinned copy and the development-reverted copy from one
// original value.
package manifest
