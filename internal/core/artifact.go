package core

import (
	"path/filepath"
	"strings"
)

// IdentifierLength is the number of characters in an artifact identifier.
const IdentifierLength = 16

// artifactExt is the extension of every packaged bundle.
const artifactExt = ".zip"

// ArtifactFilename returns "{name}_{identifier}.zip".
func ArtifactFilename(name, identifier string) string {
	return name + "_" + identifier + artifactExt
}

// ArtifactPath returns "{outputDir}/{name}_{identifier}.zip". outputDir is
// used verbatim.
func ArtifactPath(outputDir, name, identifier string) string {
	return outputDir + "/" + ArtifactFilename(name, identifier)
}

// ParseIdentifier extracts the identifier from an artifact filename produced
// for name. ok is false if filename does not follow the pattern.
func ParseIdentifier(filename, name string) (identifier string, ok bool) {
	base := filepath.Base(filename)
	prefix := name + "_"
	if !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, artifactExt) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(base, prefix), artifactExt), true
}

// ResolvedArtifact is the output path an artifact built from the current
// inputs should have.
type ResolvedArtifact struct {
	// Path is {output_dir}/{name}_{identifier}.zip.
	Path string

	// Identifier is the token embedded in Path.
	Identifier string

	// Reused is true when Path names an existing file that was found on disk,
	// false when the identifier was freshly minted.
	Reused bool

	// Candidates lists every file that matched the search pattern, sorted.
	// More than one candidate means the output directory was ambiguous.
	Candidates []string
}

// Ambiguous reports whether more than one existing artifact matched.
func (r ResolvedArtifact) Ambiguous() bool {
	return len(r.Candidates) > 1
}
