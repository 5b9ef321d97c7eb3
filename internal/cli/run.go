package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"lambdahash/internal/core"
	"lambdahash/internal/packaging"
	"lambdahash/internal/platform/config"
	"lambdahash/internal/platform/logger"
)

// Streams are the process standard streams.
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// StdStreams returns the streams of the current process.
func StdStreams() Streams {
	return Streams{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

type CLIResult struct {
	ExitCode int

	// Output is the record written to stdout, nil on failure.
	Output map[string]string
}

// Option adjusts a Run, mainly for tests.
type Option func(*env)

// WithClock fixes the time seen by identity minting.
func WithClock(c core.Clock) Option {
	return func(e *env) { e.clock = c }
}

// WithContainerRunner replaces the container CLI used by the package command.
func WithContainerRunner(r packaging.ContainerRunner) Option {
	return func(e *env) { e.runner = r }
}

// Run is a high-level CLI entrypoint suitable for black-box tests.
// It accepts the argument slice (excluding argv[0]) and returns the semantic
// exit code plus any error.
//
// On success exactly one JSON object is written to Stdout. On failure nothing
// is written to Stdout and exactly one "<Kind>: <message>" line (after any
// log records) is written to Stderr.
func Run(ctx context.Context, args []string, streams Streams, opts ...Option) (res CLIResult, err error) {
	if streams.Stdin == nil {
		streams.Stdin = bytes.NewReader(nil)
	}
	if streams.Stdout == nil {
		streams.Stdout = io.Discard
	}
	if streams.Stderr == nil {
		streams.Stderr = io.Discard
	}

	defer func() {
		if err != nil {
			res = CLIResult{ExitCode: ExitCode(err)}
			fmt.Fprintln(streams.Stderr, ErrorLine(err))
		}
	}()

	inv, err := ParseInvocation(args)
	if err != nil {
		return res, err
	}

	cfg, err := loadConfig(inv)
	if err != nil {
		return res, err
	}

	invocationID := uuid.NewString()
	ctx = logger.WithInvocation(ctx, invocationID)
	base := logger.From(ctx, logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Writer: streams.Stderr,
	}))
	log := logger.Named(&base, "cli")
	log.Debug().Str("command", string(inv.Command)).Str("algorithm", string(cfg.Algorithm())).
		Bool("strict_artifacts", cfg.Artifacts.Strict).Msg("invocation parsed")

	e := env{
		cfg:    cfg,
		inv:    inv,
		stdin:  streams.Stdin,
		stderr: streams.Stderr,
		log:    log,
		base:   base,
	}
	for _, opt := range opts {
		opt(&e)
	}

	cmd, ok := commands[inv.Command]
	if !ok {
		return res, invalidInvocationf("unknown command %q", inv.Command)
	}
	out, err := cmd(ctx, e)
	if err != nil {
		if ExitCode(err) == ExitInternalError {
			log.Error().Stack().Err(err).Msg("command failed")
		}
		return res, err
	}

	// Output is buffered by WriteResult so a failure never leaves a partial record.
	if err := WriteResult(streams.Stdout, out); err != nil {
		return res, err
	}
	return CLIResult{ExitCode: ExitSuccess, Output: out}, nil
}

// loadConfig reads the configuration file, if any, and applies the global
// flag overrides.
func loadConfig(inv CLIInvocation) (config.File, error) {
	cfg := config.Default()
	if inv.ConfigPath != "" {
		loaded, err := config.Load(inv.ConfigPath)
		if err != nil {
			return cfg, configErrorf("%v", err)
		}
		cfg = loaded
	}

	if inv.LogLevel != nil {
		cfg.Log.Level = *inv.LogLevel
	}
	if inv.LogFormat != nil {
		cfg.Log.Format = *inv.LogFormat
	}
	if inv.Algorithm != nil {
		cfg.Hash.Algorithm = *inv.Algorithm
	}
	if inv.StrictArtifacts != nil {
		cfg.Artifacts.Strict = *inv.StrictArtifacts
	}

	if err := cfg.Validate(); err != nil {
		return cfg, invalidInvocationf("%v", err)
	}
	return cfg, nil
}
