package core

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// isoLayout and isoLayoutMicro render UTC time the way stored identifiers were
// derived: no zone suffix, and six fractional digits only when the
// microsecond field is non-zero.
const (
	isoLayout      = "2006-01-02T15:04:05"
	isoLayoutMicro = "2006-01-02T15:04:05.000000"
)

// IdentityResolver locates the existing artifact for a function, or mints a
// new identifier when there is no single match.
//
// The identifier is a stable handle, not a content hash: downstream
// configuration may reference the artifact path by name, so the path is kept
// across content changes and only minted when no artifact exists.
type IdentityResolver struct {
	Clock Clock

	// Strict reports more than one matching artifact as an AmbiguousArtifact
	// error instead of minting a fresh identifier.
	Strict bool
}

// NewIdentityResolver creates an IdentityResolver with the given clock.
// A nil clock selects RealClock.
func NewIdentityResolver(clock Clock) *IdentityResolver {
	if clock == nil {
		clock = RealClock()
	}
	return &IdentityResolver{Clock: clock}
}

// Resolve searches outputDir for files named {name}_*.zip.
//
// The directory part of every returned path is outputDir as written, never
// cleaned, so "./dist" yields "./dist/{name}_{id}.zip".
//
//   - Exactly one match: its path is returned and Reused is true.
//   - Zero matches, or more than one: a new identifier is minted from the
//     current UTC time and name. The file is not created.
//
// With Strict set, more than one match is an AmbiguousArtifact error.
func (r *IdentityResolver) Resolve(outputDir, name string) (ResolvedArtifact, error) {
	pattern := escapeGlob(outputDir) + "/" + escapeGlob(name) + "_*" + artifactExt
	found, err := filepath.Glob(pattern)
	if err != nil {
		return ResolvedArtifact{}, internalf(err, "invalid artifact pattern %q", pattern)
	}
	// Glob cleans what it returns; re-root each match under outputDir as given.
	matches := make([]string, 0, len(found))
	for _, m := range found {
		matches = append(matches, matchDir(outputDir)+"/"+filepath.Base(m))
	}
	sort.Strings(matches)

	if len(matches) == 1 {
		id, _ := ParseIdentifier(matches[0], name)
		return ResolvedArtifact{
			Path:       matches[0],
			Identifier: id,
			Reused:     true,
			Candidates: matches,
		}, nil
	}

	if len(matches) > 1 && r.Strict {
		return ResolvedArtifact{Candidates: matches}, &Error{
			Kind:  KindAmbiguousArtifact,
			Field: KeyOutputPath,
			Msg:   fmt.Sprintf("%d artifacts match %s: %s", len(matches), pattern, strings.Join(matches, ", ")),
		}
	}

	id := MintIdentifier(r.clock().Now(), name)
	return ResolvedArtifact{
		Path:       ArtifactPath(outputDir, name, id),
		Identifier: id,
		Reused:     false,
		Candidates: matches,
	}, nil
}

// matchDir is the directory prefix of a reused match: outputDir verbatim,
// less any trailing slashes.
func matchDir(outputDir string) string {
	return strings.TrimRight(outputDir, "/")
}

func (r *IdentityResolver) clock() Clock {
	if r.Clock == nil {
		return RealClock()
	}
	return r.Clock
}

// MintIdentifier derives a 16-character, URL- and filesystem-safe identifier
// from the UTC form of now concatenated with name.
//
// SHA-1 is used regardless of the configured fingerprint algorithm.
func MintIdentifier(now time.Time, name string) string {
	base := formatUTC(now) + name
	sum := sha1.Sum([]byte(base))
	return base64.URLEncoding.EncodeToString(sum[:])[:IdentifierLength]
}

func formatUTC(t time.Time) string {
	t = t.UTC().Truncate(time.Microsecond)
	if t.Nanosecond() == 0 {
		return t.Format(isoLayout)
	}
	return t.Format(isoLayoutMicro)
}

// escapeGlob quotes glob metacharacters so literal path parts match exactly.
// filepath.Match has no escape character on Windows, so the input is
// returned unchanged there.
func escapeGlob(s string) string {
	if filepath.Separator == '\\' {
		return s
	}
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
