package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	icl "lambdahash/internal/cli"
	"lambdahash/internal/core"
	"lambdahash/internal/packaging"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func queryJSON(t *testing.T, q map[string]any) string {
	t.Helper()
	b, err := json.Marshal(q)
	require.NoError(t, err)
	return string(b)
}

type runOutput struct {
	res    icl.CLIResult
	err    error
	stdout string
	stderr string
}

func run(t *testing.T, stdin string, args []string, opts ...icl.Option) runOutput {
	t.Helper()
	var stdout, stderr bytes.Buffer
	res, err := icl.Run(context.Background(), args, icl.Streams{
		Stdin:  strings.NewReader(stdin),
		Stdout: &stdout,
		Stderr: &stderr,
	}, opts...)
	return runOutput{res: res, err: err, stdout: stdout.String(), stderr: stderr.String()}
}

func decodeStdout(t *testing.T, out runOutput) map[string]string {
	t.Helper()
	var m map[string]string
	require.NoError(t, json.Unmarshal([]byte(out.stdout), &m), "stdout: %q", out.stdout)
	return m
}

func TestNeedsRebuild_EndToEnd(t *testing.T) {
	project := t.TempDir()
	out := t.TempDir()
	writeTree(t, project, map[string]string{"a.txt": "x"})
	stdin := queryJSON(t, map[string]any{"project_path": project, "name": "fn", "output_path": out})

	first := run(t, stdin, nil)
	require.NoError(t, first.err)
	assert.Equal(t, icl.ExitSuccess, first.res.ExitCode)
	assert.Empty(t, first.stderr, "default log level must keep stderr quiet")

	rec := decodeStdout(t, first)
	assert.Len(t, rec, 3)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{40}$`), rec["sha"])
	assert.Equal(t, out, filepath.Dir(rec["output_filepath"]))
	assert.Regexp(t, regexp.MustCompile(`^fn_[A-Za-z0-9_-]{16}\.zip$`), filepath.Base(rec["output_filepath"]))
	_, err := time.Parse(time.RFC3339Nano, rec["isodate"])
	require.NoError(t, err)
	assert.Equal(t, rec, first.res.Output)

	second := run(t, stdin, []string{"needs-rebuild"})
	require.NoError(t, second.err)
	assert.Equal(t, rec["sha"], decodeStdout(t, second)["sha"])
}

func TestNeedsRebuild_ReusesArtifactAndFixedClock(t *testing.T) {
	project := t.TempDir()
	out := t.TempDir()
	writeTree(t, project, map[string]string{"a.txt": "x"})
	stdin := queryJSON(t, map[string]any{"project_path": project, "name": "myFn", "output_path": out})

	clock := icl.WithClock(core.FixedClock{T: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)})
	minted := run(t, stdin, nil, clock)
	require.NoError(t, minted.err)
	assert.Equal(t, filepath.Join(out, "myFn_1GeXsW9mR-EPMNfv.zip"), decodeStdout(t, minted)["output_filepath"])
	assert.Equal(t, "2024-01-02T03:04:05.000000Z", decodeStdout(t, minted)["isodate"])

	writeTree(t, out, map[string]string{"myFn_abcd1234efgh5678.zip": ""})
	reused := run(t, stdin, nil, clock)
	require.NoError(t, reused.err)
	assert.Equal(t, filepath.Join(out, "myFn_abcd1234efgh5678.zip"), decodeStdout(t, reused)["output_filepath"])
}

func TestNeedsRebuild_Failures(t *testing.T) {
	project := t.TempDir()
	out := t.TempDir()
	writeTree(t, project, map[string]string{"a.txt": "x"})
	writeTree(t, out, map[string]string{"fn_aaaaaaaaaaaaaaaa.zip": "", "fn_bbbbbbbbbbbbbbbb.zip": ""})

	cases := []struct {
		name     string
		stdin    string
		args     []string
		exitCode int
		prefix   string
	}{
		{
			name:     "missing project",
			stdin:    queryJSON(t, map[string]any{"project_path": filepath.Join(project, "gone"), "name": "fn", "output_path": out}),
			exitCode: icl.ExitNotFound,
			prefix:   "NotFound: ",
		},
		{
			name:     "missing name",
			stdin:    queryJSON(t, map[string]any{"project_path": project, "output_path": out}),
			exitCode: icl.ExitInvalidInvocation,
			prefix:   "MalformedQuery: ",
		},
		{
			name:     "non-string value",
			stdin:    queryJSON(t, map[string]any{"project_path": project, "name": "fn", "output_path": out, "memory": 128}),
			exitCode: icl.ExitInvalidInvocation,
			prefix:   "MalformedQuery: Values must be strings.",
		},
		{
			name:     "strict ambiguity",
			stdin:    queryJSON(t, map[string]any{"project_path": project, "name": "fn", "output_path": out}),
			args:     []string{"--strict-artifacts"},
			exitCode: icl.ExitAmbiguousArtifact,
			prefix:   "AmbiguousArtifact: ",
		},
		{
			name:     "unknown flag",
			args:     []string{"--frobnicate"},
			exitCode: icl.ExitInvalidInvocation,
			prefix:   "InvalidInvocation: ",
		},
		{
			name:     "missing config",
			args:     []string{"--config", filepath.Join(project, "absent.yaml")},
			exitCode: icl.ExitConfigError,
			prefix:   "ConfigError: ",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := run(t, tc.stdin, tc.args)
			require.Error(t, got.err)
			assert.Equal(t, tc.exitCode, got.res.ExitCode)
			assert.Empty(t, got.stdout, "no output record on failure")
			assert.Nil(t, got.res.Output)

			lines := strings.Split(strings.TrimRight(got.stderr, "\n"), "\n")
			require.Len(t, lines, 1, "stderr: %q", got.stderr)
			assert.True(t, strings.HasPrefix(lines[0], tc.prefix), "stderr line %q", lines[0])
		})
	}
}

func TestNeedsRebuild_LenientAmbiguityWarns(t *testing.T) {
	project := t.TempDir()
	out := t.TempDir()
	writeTree(t, project, map[string]string{"a.txt": "x"})
	writeTree(t, out, map[string]string{"fn_aaaaaaaaaaaaaaaa.zip": "", "fn_bbbbbbbbbbbbbbbb.zip": ""})

	got := run(t, queryJSON(t, map[string]any{"project_path": project, "name": "fn", "output_path": out}), nil)
	require.NoError(t, got.err)
	assert.Contains(t, got.stderr, "multiple artifacts match")
	assert.Contains(t, got.stderr, `"invocation_id"`)
	assert.Equal(t, 1, strings.Count(got.stderr, `"component":`), "stderr: %s", got.stderr)
	assert.Contains(t, got.stderr, `"component":"core"`)
	assert.NotEmpty(t, decodeStdout(t, got)["output_filepath"])
}

func TestNeedsRebuild_ConfigFileAndFlagOverride(t *testing.T) {
	project := t.TempDir()
	out := t.TempDir()
	writeTree(t, project, map[string]string{"a.txt": "x"})
	cfgPath := filepath.Join(t.TempDir(), "lambdahash.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("hash:\n  algorithm: blake3\n"), 0o600))
	stdin := queryJSON(t, map[string]any{"project_path": project, "name": "fn", "output_path": out})

	fromFile := run(t, stdin, []string{"--config", cfgPath})
	require.NoError(t, fromFile.err)
	assert.Len(t, decodeStdout(t, fromFile)["sha"], 64)

	overridden := run(t, stdin, []string{"--config", cfgPath, "--algorithm", "sha1"})
	require.NoError(t, overridden.err)
	assert.Len(t, decodeStdout(t, overridden)["sha"], 40)
}

func TestNeedsRebuild_DebugLogging(t *testing.T) {
	project := t.TempDir()
	out := t.TempDir()
	writeTree(t, project, map[string]string{"a.txt": "x"})
	stdin := queryJSON(t, map[string]any{"project_path": project, "name": "fn", "output_path": out})

	got := run(t, stdin, []string{"--log-level", "debug"})
	require.NoError(t, got.err)
	assert.Contains(t, got.stderr, "hashed project directory")
	assert.Contains(t, got.stderr, "resolved artifact")
	// stdout stays a single clean JSON object regardless of logging.
	decodeStdout(t, got)
}

func TestFileHash(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"requirements.txt": "abc"})
	path := filepath.Join(dir, "requirements.txt")

	got := run(t, queryJSON(t, map[string]any{"file_path": path}), []string{"file-hash"})
	require.NoError(t, got.err)
	assert.Equal(t, map[string]string{
		"filename": "requirements.txt",
		"path":     path,
		"sha256":   "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		"md5":      "900150983cd24fb0d6963f7d28e17f72",
	}, decodeStdout(t, got))
}

func TestFileHash_MissingFileHasEmptyDigests(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.txt")
	got := run(t, queryJSON(t, map[string]any{"file_path": path}), []string{"file-hash"})
	require.NoError(t, got.err)
	rec := decodeStdout(t, got)
	assert.Equal(t, "absent.txt", rec["filename"])
	assert.Equal(t, "", rec["sha256"])
	assert.Equal(t, "", rec["md5"])
}

func TestFileHash_RequiresFilePath(t *testing.T) {
	got := run(t, `{}`, []string{"file-hash"})
	require.Error(t, got.err)
	assert.Equal(t, icl.ExitInvalidInvocation, got.res.ExitCode)
	assert.Contains(t, got.stderr, "MalformedQuery: file_path")
}

func TestVersion(t *testing.T) {
	got := run(t, "", []string{"version"})
	require.NoError(t, got.err)
	assert.Equal(t, map[string]string{"version": icl.Version}, decodeStdout(t, got))
}

type distRunner struct {
	calls []packaging.ContainerCommand
}

func (d *distRunner) Run(_ context.Context, cmd packaging.ContainerCommand) error {
	d.calls = append(d.calls, cmd)
	dist := filepath.Join(cmd.Workdir, packaging.DistDirName)
	if err := os.MkdirAll(dist, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dist, "handler.py"), []byte("def handler(e, c): pass"), 0o644)
}

func TestPackage_UsesConfigAndFlags(t *testing.T) {
	project := t.TempDir()
	writeTree(t, project, map[string]string{"handler.py": "def handler(e, c): pass"})
	outFile := filepath.Join(t.TempDir(), "fn_abcd1234efgh5678.zip")

	cfgPath := filepath.Join(t.TempDir(), "lambdahash.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"package:\n  project_path: "+project+"\n  runtime: python3.9\n  container_binary: podman\n"), 0o600))

	runner := &distRunner{}
	got := run(t, "", []string{
		"--config", cfgPath,
		"package",
		"--output-filepath", outFile,
		"--runtime", "python3.12",
	}, icl.WithContainerRunner(runner))
	require.NoError(t, got.err, "stderr: %s", got.stderr)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "podman", runner.calls[0].Binary)
	assert.Equal(t, "lambci/lambda:build-python3.12", runner.calls[0].Image)

	rec := decodeStdout(t, got)
	assert.Equal(t, outFile, rec["output_filepath"])
	assert.Equal(t, "1", rec["entries"])
	assert.FileExists(t, outFile)
}

func TestPackage_IncompleteConfigIsConfigError(t *testing.T) {
	got := run(t, "", []string{"package", "--runtime", "python3.12"}, icl.WithContainerRunner(&distRunner{}))
	require.Error(t, got.err)
	assert.Equal(t, icl.ExitConfigError, got.res.ExitCode)
	assert.True(t, strings.HasPrefix(got.stderr, "ConfigError: "), got.stderr)
	assert.Empty(t, got.stdout)
}
