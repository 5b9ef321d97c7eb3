// Package packaging builds the deployment bundle for a function.
//
// A run stages the project tree, the optional library tree, and the optional
// dependency manifest into a private working directory, runs an install
// script inside a runtime container, and archives the resulting .dist
// directory as a zip at the configured output path.
//
// Every input comes from Config. Nothing is read from the process
// environment; the container binary inherits it only so it can locate its
// daemon.
//
// # Determinism
//
// The archive lists entries in lexicographic order with a fixed modification
// time, so an identical .dist tree always yields identical bytes. The archive
// is written to a temporary file and renamed into place, so a failed run
// never leaves a partial file at the output path.
package packaging
