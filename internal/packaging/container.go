package packaging

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

// ContainerCommand describes one install run inside the build image.
type ContainerCommand struct {
	// Binary is the container CLI (docker, podman).
	Binary string

	// Image is the build image reference.
	Image string

	// Workdir is the host staging directory, mounted at /work.
	Workdir string

	// Script is the script name relative to Workdir.
	Script string

	Stdout io.Writer
	Stderr io.Writer
}

// Args returns the argument vector passed to Binary.
func (c ContainerCommand) Args() []string {
	return []string{
		"run", "--rm",
		"-v", c.Workdir + ":/work",
		"-w", "/work",
		c.Image,
		"bash", "-e", c.Script,
	}
}

// String renders the command line for logs.
func (c ContainerCommand) String() string {
	return c.Binary + " " + strings.Join(c.Args(), " ")
}

// ContainerRunner runs the install script. Implementations must leave the
// .dist directory under Workdir on success.
type ContainerRunner interface {
	Run(ctx context.Context, cmd ContainerCommand) error
}

// ExitError reports a container run that finished with a non-zero status.
type ExitError struct {
	Command  string
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
}

// ExecRunner runs the container CLI as a child process.
type ExecRunner struct{}

// NewExecRunner returns a runner backed by os/exec.
func NewExecRunner() *ExecRunner { return &ExecRunner{} }

// Run starts the container CLI in its own process group and waits for it.
// Cancelling ctx kills the whole group.
func (r *ExecRunner) Run(ctx context.Context, c ContainerCommand) error {
	return runProcess(ctx, c.Binary, c.Args(), c.Stdout, c.Stderr)
}

func runProcess(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	if name == "" {
		return errors.New("container binary is empty")
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "container run cancelled")
	}

	cmd := exec.Command(name, args...)

	// The container CLI needs PATH and its daemon socket settings.
	cmd.Env = os.Environ()

	// Own process group so cancellation reaches the whole tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if cmd.Stdout == nil {
		cmd.Stdout = io.Discard
	}
	if cmd.Stderr == nil {
		cmd.Stderr = io.Discard
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "start %s", name)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var err error
	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			// Negative pid targets the group.
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return errors.Wrap(ctx.Err(), "container run cancelled")
	case err = <-done:
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Command: name, ExitCode: exitErr.ExitCode()}
		}
		return errors.Wrapf(err, "run %s", name)
	}
	return nil
}
