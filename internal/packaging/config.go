package packaging

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"lambdahash/internal/platform/validate"
)

// Defaults applied by Config.WithDefaults.
const (
	DefaultContainerBinary = "docker"
	DefaultImageTemplate   = "lambci/lambda:build-%s"
)

// Config is the explicit input of one packaging run.
type Config struct {
	ProjectPath      string `yaml:"project_path" validate:"required"`
	LibPath          string `yaml:"lib_path"`
	RequirementsFile string `yaml:"requirements_file"`
	OutputFilepath   string `yaml:"output_filepath" validate:"required"`
	Runtime          string `yaml:"runtime" validate:"required,basename"`

	// Image overrides the build image derived from Runtime.
	Image string `yaml:"image"`

	ContainerBinary string `yaml:"container_binary"`

	// KeepWorkdir leaves the staging directory behind for inspection.
	KeepWorkdir bool `yaml:"keep_workdir"`
}

// WithDefaults returns c with empty optional fields filled in.
func (c Config) WithDefaults() Config {
	if c.ContainerBinary == "" {
		c.ContainerBinary = DefaultContainerBinary
	}
	if c.Image == "" && c.Runtime != "" {
		c.Image = fmt.Sprintf(DefaultImageTemplate, c.Runtime)
	}
	return c
}

// Validate reports the first missing or invalid field.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "package config")
	}
	return nil
}

// HasLib reports whether a library tree is declared.
func (c Config) HasLib() bool { return declared(c.LibPath) }

// HasRequirements reports whether a dependency manifest is declared.
func (c Config) HasRequirements() bool { return declared(c.RequirementsFile) }

// ImageRef is the container image the install script runs in.
func (c Config) ImageRef() string { return c.WithDefaults().Image }

// ArchivePath is OutputFilepath with its extension replaced by .zip.
func (c Config) ArchivePath() string {
	out := filepath.Clean(c.OutputFilepath)
	return strings.TrimSuffix(out, filepath.Ext(out)) + ".zip"
}

func declared(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != "null"
}
