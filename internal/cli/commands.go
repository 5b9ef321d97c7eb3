package cli

import (
	"context"
	"crypto/md5"
	"errors"
	"io"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"lambdahash/internal/core"
	"lambdahash/internal/packaging"
	"lambdahash/internal/platform/config"
	"lambdahash/internal/platform/validate"
)

// Version is stamped at build time with -ldflags "-X lambdahash/internal/cli.Version=...".
var Version = "dev"

// KeyFilePath is the only key read by the file-hash command.
const KeyFilePath = "file_path"

// env is what a command needs from Run.
type env struct {
	cfg    config.File
	inv    CLIInvocation
	stdin  io.Reader
	stderr io.Writer
	log    zerolog.Logger

	// base has no component field; services add their own.
	base zerolog.Logger

	// clock and runner are replaced in tests.
	clock  core.Clock
	runner packaging.ContainerRunner
}

type commandFunc func(ctx context.Context, e env) (map[string]string, error)

var commands = map[Command]commandFunc{
	CommandNeedsRebuild: runNeedsRebuild,
	CommandFileHash:     runFileHash,
	CommandPackage:      runPackage,
	CommandVersion:      runVersion,
}

// runNeedsRebuild answers the external data query on stdin with the
// fingerprint of its inputs and the artifact path that matches it.
func runNeedsRebuild(ctx context.Context, e env) (map[string]string, error) {
	q, err := ReadQuery(e.stdin)
	if err != nil {
		return nil, err
	}
	svc := core.NewService(core.Options{
		Algorithm:       e.cfg.Algorithm(),
		StrictArtifacts: e.cfg.Artifacts.Strict,
		Clock:           e.clock,
		Logger:          &e.base,
	})
	res, err := svc.Decide(ctx, q)
	if err != nil {
		return nil, err
	}
	return res.Map(), nil
}

// runFileHash reports the sha256 and md5 of one file. A missing file yields
// empty digests rather than an error so the caller can diff on absence.
func runFileHash(ctx context.Context, e env) (map[string]string, error) {
	q, err := ReadQuery(e.stdin)
	if err != nil {
		return nil, err
	}
	path, ok := q[KeyFilePath]
	if !ok || path == "" {
		return nil, malformed(KeyFilePath, "%s is a required field", KeyFilePath)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := map[string]string{
		"filename": filepath.Base(path),
		"path":     path,
		"sha256":   "",
		"md5":      "",
	}

	sha, err := core.NewFileHasher(core.AlgorithmSHA256).Hash(path, nil)
	switch {
	case err == nil:
	case core.KindOf(err) == core.KindNotFound:
		e.log.Debug().Str("path", path).Msg("file absent; returning empty digests")
		return out, nil
	default:
		return nil, err
	}

	sum := md5.New()
	if err := core.NewFileHasher(core.AlgorithmSHA256).Feed(sum, path); err != nil {
		return nil, err
	}

	out["sha256"] = sha.String()
	out["md5"] = core.Digest(sum.Sum(nil)).String()
	return out, nil
}

// runPackage builds the bundle described by the package section of the
// configuration, overlaid with the package flags.
func runPackage(ctx context.Context, e env) (map[string]string, error) {
	cfg := e.inv.Package.Apply(e.cfg.Package)

	p := packaging.New(cfg, e.runner, &e.base)
	p.Output = e.stderr

	report, err := p.Run(ctx)
	if err != nil {
		var issue *validate.Issue
		if errors.As(err, &issue) {
			return nil, configErrorf("%v", err)
		}
		return nil, err
	}

	out := map[string]string{
		"output_filepath": report.ArchivePath,
		"entries":         strconv.Itoa(report.Entries),
	}
	if report.Workdir != "" {
		out["workdir"] = report.Workdir
	}
	return out, nil
}

func runVersion(_ context.Context, _ env) (map[string]string, error) {
	return map[string]string{"version": Version}, nil
}
