package packaging

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"lambdahash/internal/platform/logger"
)

// Report summarizes a completed run.
type Report struct {
	// ArchivePath is where the bundle was written.
	ArchivePath string `json:"archive_path"`

	// Entries is the number of files in the bundle.
	Entries int `json:"entries"`

	// Workdir is the staging directory, set only when it was kept.
	Workdir string `json:"workdir,omitempty"`
}

// Pipeline builds one bundle from a Config.
type Pipeline struct {
	Config Config
	Runner ContainerRunner

	// TempDir is the parent of the staging directory. Empty means the
	// system temporary directory.
	TempDir string

	// Output receives the container's stdout and stderr.
	Output io.Writer

	log zerolog.Logger
}

// New returns a pipeline for cfg. A nil runner runs the container CLI.
func New(cfg Config, runner ContainerRunner, log *zerolog.Logger) *Pipeline {
	if runner == nil {
		runner = NewExecRunner()
	}
	return &Pipeline{
		Config: cfg.WithDefaults(),
		Runner: runner,
		log:    logger.Named(log, "packaging"),
	}
}

// Run stages the inputs, runs the install script, and writes the archive.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	cfg := p.Config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	workdir, err := os.MkdirTemp(p.TempDir, "lambdahash-build-")
	if err != nil {
		return nil, errors.Wrap(err, "create staging directory")
	}
	report := &Report{ArchivePath: cfg.ArchivePath()}
	if cfg.KeepWorkdir {
		report.Workdir = workdir
	} else {
		defer func() {
			if rmErr := os.RemoveAll(workdir); rmErr != nil {
				p.log.Warn().Err(rmErr).Str("workdir", workdir).Msg("staging directory not removed")
			}
		}()
	}

	if err := p.stage(cfg, workdir); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "packaging cancelled")
	}

	cmd := ContainerCommand{
		Binary:  cfg.ContainerBinary,
		Image:   cfg.ImageRef(),
		Workdir: workdir,
		Script:  InstallScriptName,
		Stdout:  p.Output,
		Stderr:  p.Output,
	}
	p.log.Info().Str("command", cmd.String()).Msg("running install script")
	if err := p.Runner.Run(ctx, cmd); err != nil {
		return nil, errors.Wrap(err, "install script failed")
	}

	dist := filepath.Join(workdir, DistDirName)
	if fi, err := os.Stat(dist); err != nil || !fi.IsDir() {
		return nil, errors.Errorf("install script produced no %s directory", DistDirName)
	}

	n, err := writeArchive(dist, report.ArchivePath)
	if err != nil {
		return nil, err
	}
	report.Entries = n
	p.log.Info().Str("archive", report.ArchivePath).Int("entries", n).Msg("bundle written")
	return report, nil
}

// stage lays out the working directory: project files at the root, the
// manifest as requirements.txt, the library tree under lib/, and the script.
func (p *Pipeline) stage(cfg Config, workdir string) error {
	n, err := copyTree(cfg.ProjectPath, workdir)
	if err != nil {
		return errors.Wrap(err, "stage project")
	}
	p.log.Debug().Str("src", cfg.ProjectPath).Int("files", n).Msg("staged project")

	if cfg.HasRequirements() {
		fi, err := os.Stat(cfg.RequirementsFile)
		if err != nil {
			return errors.Wrap(err, "stage requirements")
		}
		if err := copyFile(cfg.RequirementsFile, filepath.Join(workdir, ManifestName), fi.Mode().Perm()); err != nil {
			return errors.Wrap(err, "stage requirements")
		}
		p.log.Debug().Str("src", cfg.RequirementsFile).Msg("staged requirements")
	}

	if cfg.HasLib() {
		n, err := copyTree(cfg.LibPath, filepath.Join(workdir, LibDirName))
		if err != nil {
			return errors.Wrap(err, "stage library")
		}
		p.log.Debug().Str("src", cfg.LibPath).Int("files", n).Msg("staged library")
	}

	script := InstallScript(cfg.Runtime, cfg.HasRequirements(), cfg.HasLib())
	if err := os.WriteFile(filepath.Join(workdir, InstallScriptName), []byte(script), 0o755); err != nil {
		return errors.Wrap(err, "write install script")
	}
	return nil
}
