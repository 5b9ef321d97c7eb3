package core

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mintedPath = regexp.MustCompile(`^myFn_[A-Za-z0-9_-]{16}\.zip$`)

func fixedAt(t time.Time) Clock { return FixedClock{T: t} }

func TestResolve_ReusesSingleExistingArtifact(t *testing.T) {
	out := t.TempDir()
	writeTree(t, out, map[string]string{
		"myFn_abcd1234efgh5678.zip":    "zip",
		"otherFn_zzzzzzzzzzzzzzzz.zip": "zip",
		"myFn_notes.txt":               "",
	})

	got, err := NewIdentityResolver(nil).Resolve(out, "myFn")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "myFn_abcd1234efgh5678.zip"), got.Path)
	assert.Equal(t, "abcd1234efgh5678", got.Identifier)
	assert.True(t, got.Reused)
	assert.False(t, got.Ambiguous())
}

func TestResolve_MintsWhenNoArtifact(t *testing.T) {
	out := t.TempDir()

	r1 := NewIdentityResolver(fixedAt(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	first, err := r1.Resolve(out, "myFn")
	require.NoError(t, err)

	r2 := NewIdentityResolver(fixedAt(time.Date(2024, 1, 2, 3, 4, 6, 0, time.UTC)))
	second, err := r2.Resolve(out, "myFn")
	require.NoError(t, err)

	for _, got := range []ResolvedArtifact{first, second} {
		assert.False(t, got.Reused)
		assert.Equal(t, out, filepath.Dir(got.Path))
		assert.Regexp(t, mintedPath, filepath.Base(got.Path))
		assert.Len(t, got.Identifier, IdentifierLength)
	}
	assert.NotEqual(t, first.Identifier, second.Identifier)

	// Resolution never creates the file.
	matches, _ := filepath.Glob(filepath.Join(out, "*"))
	assert.Empty(t, matches)
}

func TestResolve_AmbiguousMintsFreshIdentifier(t *testing.T) {
	out := t.TempDir()
	writeTree(t, out, map[string]string{
		"myFn_aaaaaaaaaaaaaaaa.zip": "",
		"myFn_bbbbbbbbbbbbbbbb.zip": "",
	})

	got, err := NewIdentityResolver(fixedAt(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))).Resolve(out, "myFn")
	require.NoError(t, err)

	assert.False(t, got.Reused)
	assert.True(t, got.Ambiguous())
	assert.Equal(t, filepath.Join(out, "myFn_1GeXsW9mR-EPMNfv.zip"), got.Path)
	assert.Len(t, got.Candidates, 2)
}

func TestResolve_StrictRejectsAmbiguity(t *testing.T) {
	out := t.TempDir()
	writeTree(t, out, map[string]string{
		"myFn_aaaaaaaaaaaaaaaa.zip": "",
		"myFn_bbbbbbbbbbbbbbbb.zip": "",
	})

	r := NewIdentityResolver(nil)
	r.Strict = true
	_, err := r.Resolve(out, "myFn")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmbiguousArtifact))
	assert.Equal(t, KindAmbiguousArtifact, KindOf(err))
}

func TestResolve_StrictStillReusesSingleMatch(t *testing.T) {
	out := t.TempDir()
	writeTree(t, out, map[string]string{"myFn_abcd1234efgh5678.zip": ""})

	r := NewIdentityResolver(nil)
	r.Strict = true
	got, err := r.Resolve(out, "myFn")
	require.NoError(t, err)
	assert.True(t, got.Reused)
}

func TestResolve_NameIsMatchedLiterally(t *testing.T) {
	out := t.TempDir()
	writeTree(t, out, map[string]string{
		"fn1_aaaaaaaaaaaaaaaa.zip":   "",
		"fn[1]_bbbbbbbbbbbbbbbb.zip": "",
	})

	got, err := NewIdentityResolver(nil).Resolve(out, "fn[1]")
	require.NoError(t, err)
	assert.True(t, got.Reused)
	assert.Equal(t, "bbbbbbbbbbbbbbbb", got.Identifier)
}

func TestResolve_MissingOutputDirMints(t *testing.T) {
	out := filepath.Join(t.TempDir(), "not-yet-created")
	got, err := NewIdentityResolver(nil).Resolve(out, "myFn")
	require.NoError(t, err)
	assert.False(t, got.Reused)
	assert.Regexp(t, mintedPath, filepath.Base(got.Path))
}

func TestResolve_KeepsOutputDirVerbatim(t *testing.T) {
	chdir(t, t.TempDir())
	r := NewIdentityResolver(fixedAt(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))

	tests := []struct {
		dir    string
		minted string
		reused string
	}{
		{dir: "./dist", minted: "./dist/myFn_1GeXsW9mR-EPMNfv.zip", reused: "./dist/myFn_abcd1234efgh5678.zip"},
		{dir: "dist/", minted: "dist//myFn_1GeXsW9mR-EPMNfv.zip", reused: "dist/myFn_abcd1234efgh5678.zip"},
		{dir: "./a/../dist", minted: "./a/../dist/myFn_1GeXsW9mR-EPMNfv.zip", reused: "./a/../dist/myFn_abcd1234efgh5678.zip"},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			require.NoError(t, os.RemoveAll("dist"))
			require.NoError(t, os.MkdirAll("a", 0o755))

			got, err := r.Resolve(tt.dir, "myFn")
			require.NoError(t, err)
			assert.False(t, got.Reused)
			assert.Equal(t, tt.minted, got.Path)

			writeTree(t, "dist", map[string]string{"myFn_abcd1234efgh5678.zip": ""})
			got, err = r.Resolve(tt.dir, "myFn")
			require.NoError(t, err)
			assert.True(t, got.Reused)
			assert.Equal(t, tt.reused, got.Path)
			assert.Equal(t, []string{tt.reused}, got.Candidates)
			assert.Equal(t, "abcd1234efgh5678", got.Identifier)
		})
	}
}

func TestArtifactPath_DoesNotClean(t *testing.T) {
	assert.Equal(t, "./out/fn_id.zip", ArtifactPath("./out", "fn", "id"))
	assert.Equal(t, "out//fn_id.zip", ArtifactPath("out/", "fn", "id"))

	assert.Equal(t, "./out", matchDir("./out"))
	assert.Equal(t, "out", matchDir("out//"))
	assert.Equal(t, "", matchDir("/"))
}

func TestMintIdentifier_StoredValues(t *testing.T) {
	assert.Equal(t, "1GeXsW9mR-EPMNfv", MintIdentifier(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), "myFn"))
	assert.Equal(t, "RtE_NnLtg1NG7C_5", MintIdentifier(time.Date(2024, 1, 2, 3, 4, 5, 123000, time.UTC), "myFn"))
}

func TestMintIdentifier_UsesUTC(t *testing.T) {
	utc := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	local := utc.In(time.FixedZone("east", 5*3600))
	assert.Equal(t, MintIdentifier(utc, "myFn"), MintIdentifier(local, "myFn"))
}

func TestFormatUTC(t *testing.T) {
	assert.Equal(t, "2024-01-02T03:04:05", formatUTC(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.Equal(t, "2024-01-02T03:04:05.000123", formatUTC(time.Date(2024, 1, 2, 3, 4, 5, 123456, time.UTC)))
	assert.Equal(t, "2024-01-02T03:04:05.500000", formatUTC(time.Date(2024, 1, 2, 3, 4, 5, 500000000, time.UTC)))
}

func TestParseIdentifier(t *testing.T) {
	id, ok := ParseIdentifier("/out/myFn_abcd.zip", "myFn")
	assert.True(t, ok)
	assert.Equal(t, "abcd", id)

	_, ok = ParseIdentifier("/out/other_abcd.zip", "myFn")
	assert.False(t, ok)
}
