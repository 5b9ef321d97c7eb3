package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"lambdahash/internal/core"
	"lambdahash/internal/packaging"
)

const (
	ExitSuccess           = 0
	ExitNotFound          = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
	ExitAmbiguousArtifact = 5
)

// Error kinds raised by the CLI itself. Core failures use core.Kind.
const (
	KindInvalidInvocation = "InvalidInvocation"
	KindConfigError       = "ConfigError"
)

type Command string

const (
	CommandNeedsRebuild Command = "needs-rebuild"
	CommandFileHash     Command = "file-hash"
	CommandPackage      Command = "package"
	CommandVersion      Command = "version"
)

// DefaultCommand runs when no command is named, so the binary can be used
// directly as an external data program.
const DefaultCommand = CommandNeedsRebuild

// CLIInvocation is the parsed command line.
//
// Only flags the caller actually set are recorded as overrides; unset flags
// leave the configuration file (or its defaults) in charge.
type CLIInvocation struct {
	Command    Command
	ConfigPath string

	LogLevel        *string
	LogFormat       *string
	Algorithm       *string
	StrictArtifacts *bool

	// Package holds package-only overrides. A nil field was not set.
	Package PackageOverrides
}

// PackageOverrides are the flag values for the package command.
type PackageOverrides struct {
	ProjectPath      *string
	LibPath          *string
	RequirementsFile *string
	OutputFilepath   *string
	Runtime          *string
	Image            *string
	ContainerBinary  *string
	KeepWorkdir      *bool
}

// Apply writes the set overrides onto cfg.
func (o PackageOverrides) Apply(cfg packaging.Config) packaging.Config {
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setStr(&cfg.ProjectPath, o.ProjectPath)
	setStr(&cfg.LibPath, o.LibPath)
	setStr(&cfg.RequirementsFile, o.RequirementsFile)
	setStr(&cfg.OutputFilepath, o.OutputFilepath)
	setStr(&cfg.Runtime, o.Runtime)
	setStr(&cfg.Image, o.Image)
	setStr(&cfg.ContainerBinary, o.ContainerBinary)
	if o.KeepWorkdir != nil {
		cfg.KeepWorkdir = *o.KeepWorkdir
	}
	return cfg
}

type InvocationError struct {
	ExitCode int
	Kind     string
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Kind: KindInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

func configErrorf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitConfigError, Kind: KindConfigError, Message: fmt.Sprintf(format, args...)}
}

var packageFlags = []string{
	"project-path", "lib-path", "requirements-file", "output-filepath",
	"runtime", "image", "container-binary", "keep-workdir",
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("lambdahash", pflag.ContinueOnError)
	fs.SetOutput(io.Discard) // parsing errors are returned, not printed
	fs.SortFlags = false

	fs.String("config", "", "YAML configuration file (optional).")
	fs.String("log-level", "", "Log level: trace|debug|info|warn|error|disabled (default warn).")
	fs.String("log-format", "", "Log format on stderr: json|console (default json).")
	fs.String("algorithm", "", "Digest algorithm: sha1|sha256|blake3 (default sha1).")
	fs.Bool("strict-artifacts", false, "Fail when more than one artifact matches instead of minting a new identifier.")

	fs.String("project-path", "", "package: project directory.")
	fs.String("lib-path", "", "package: library directory (optional).")
	fs.String("requirements-file", "", "package: dependency manifest (optional).")
	fs.String("output-filepath", "", "package: archive path.")
	fs.String("runtime", "", "package: function runtime, e.g. python3.12.")
	fs.String("image", "", "package: build image (default lambci/lambda:build-<runtime>).")
	fs.String("container-binary", "", "package: container CLI (default docker).")
	fs.Bool("keep-workdir", false, "package: keep the staging directory.")
	return fs
}

// Usage renders the flag help.
func Usage() string {
	var b strings.Builder
	b.WriteString("usage: lambdahash [flags] [needs-rebuild|file-hash|package|version]\n\n")
	b.WriteString(newFlagSet().FlagUsages())
	return b.String()
}

// ParseInvocation parses CLI flags into a CLIInvocation.
//
// Determinism goals:
//   - Does not read env vars.
//   - Does not read/assume the process CWD.
func ParseInvocation(args []string) (CLIInvocation, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return CLIInvocation{}, invalidInvocationf("%s", strings.TrimSpace(Usage()))
		}
		return CLIInvocation{}, invalidInvocationf("%v", err)
	}

	inv := CLIInvocation{Command: DefaultCommand}
	switch fs.NArg() {
	case 0:
	case 1:
		cmd, err := parseCommand(fs.Arg(0))
		if err != nil {
			return CLIInvocation{}, err
		}
		inv.Command = cmd
	default:
		return CLIInvocation{}, invalidInvocationf("unexpected positional arguments: %q", strings.Join(fs.Args()[1:], " "))
	}

	inv.ConfigPath, _ = fs.GetString("config")
	if fs.Changed("config") && strings.TrimSpace(inv.ConfigPath) == "" {
		return CLIInvocation{}, invalidInvocationf("--config must not be empty")
	}

	inv.LogLevel = changedString(fs, "log-level")
	inv.LogFormat = changedString(fs, "log-format")
	inv.Algorithm = changedString(fs, "algorithm")
	inv.StrictArtifacts = changedBool(fs, "strict-artifacts")

	if inv.Algorithm != nil {
		if _, err := core.ParseAlgorithm(*inv.Algorithm); err != nil {
			return CLIInvocation{}, invalidInvocationf("invalid --algorithm: %v", err)
		}
	}

	if inv.Command != CommandPackage {
		for _, name := range packageFlags {
			if fs.Changed(name) {
				return CLIInvocation{}, invalidInvocationf("--%s only applies to the package command", name)
			}
		}
		return inv, nil
	}

	inv.Package = PackageOverrides{
		ProjectPath:      changedString(fs, "project-path"),
		LibPath:          changedString(fs, "lib-path"),
		RequirementsFile: changedString(fs, "requirements-file"),
		OutputFilepath:   changedString(fs, "output-filepath"),
		Runtime:          changedString(fs, "runtime"),
		Image:            changedString(fs, "image"),
		ContainerBinary:  changedString(fs, "container-binary"),
		KeepWorkdir:      changedBool(fs, "keep-workdir"),
	}
	return inv, nil
}

func parseCommand(raw string) (Command, error) {
	switch Command(strings.ToLower(strings.TrimSpace(raw))) {
	case CommandNeedsRebuild:
		return CommandNeedsRebuild, nil
	case CommandFileHash:
		return CommandFileHash, nil
	case CommandPackage:
		return CommandPackage, nil
	case CommandVersion:
		return CommandVersion, nil
	default:
		return "", invalidInvocationf("unknown command %q (expected needs-rebuild|file-hash|package|version)", raw)
	}
}

func changedString(fs *pflag.FlagSet, name string) *string {
	if !fs.Changed(name) {
		return nil
	}
	v, _ := fs.GetString(name)
	return &v
}

func changedBool(fs *pflag.FlagSet, name string) *bool {
	if !fs.Changed(name) {
		return nil
	}
	v, _ := fs.GetBool(name)
	return &v
}

// ExitCode maps an error to a semantic process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	switch core.KindOf(err) {
	case core.KindNotFound:
		return ExitNotFound
	case core.KindMalformedQuery:
		return ExitInvalidInvocation
	case core.KindAmbiguousArtifact:
		return ExitAmbiguousArtifact
	default:
		return ExitInternalError
	}
}

// ErrorKind names the failure class printed before the message.
func ErrorKind(err error) string {
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil && invErr.Kind != "" {
		return invErr.Kind
	}
	return string(core.KindOf(err))
}
