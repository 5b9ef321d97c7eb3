// Package core decides whether a packaged function bundle still matches its inputs.
//
// The package is read-only with respect to the filesystem. Every call walks the
// inputs from scratch; nothing is cached between invocations.
//
// # Data Flow
//
//	filesystem -> FileHasher / DirectoryHasher -> FingerprintAggregator
//	           -> IdentityResolver -> Result
//
// # Core Types
//
// Digest: an opaque hash value, rendered as lowercase hex at the boundary.
// FileEntry: a file observed during a tree walk, keyed by its root-relative path.
// Query: the flat string map received from the infrastructure tool.
// ResolvedArtifact: the output path an artifact with the current inputs should have.
//
// # Determinism
//
// Identical inputs produce an identical fingerprint regardless of process,
// machine, or filesystem enumeration order. The artifact identifier is the one
// exception: when no single matching artifact exists it is minted from the
// current UTC time and is therefore different on every call.
package core
