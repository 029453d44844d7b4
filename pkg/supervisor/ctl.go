package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cloudboss/runvault/pkg/constants"
	"github.com/spf13/afero"
)

const (
	execBits = 0111
)

var (
	ErrMissingDependency = errors.New("missing dependency")
	ErrReload            = errors.New("reload error")
)

// Controller talks to the supervision daemon.
type Controller interface {
	CheckInstalled() error
	Reread(ctx context.Context) error
	Update(ctx context.Context) error
}

// Ctl controls supervisord with supervisorctl.
type Ctl struct {
	Fs      afero.Fs
	PathEnv string
	Stdout  io.Writer
	Stderr  io.Writer

	executable string
}

func NewCtl() *Ctl {
	pathEnv := os.Getenv("PATH")
	if len(pathEnv) == 0 {
		pathEnv = constants.PathEnvDefault
	}
	return &Ctl{
		Fs:      afero.NewOsFs(),
		PathEnv: pathEnv,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// CheckInstalled returns an error if supervisorctl cannot be found.
func (c *Ctl) CheckInstalled() error {
	executable, err := findExecutableInPath(c.Fs, constants.FileSupervisorctl, c.PathEnv)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMissingDependency, err)
	}
	c.executable = executable
	return nil
}

// Reread makes supervisord load changed program descriptors without
// applying them.
func (c *Ctl) Reread(ctx context.Context) error {
	return c.run(ctx, "reread")
}

// Update applies changed program descriptors, starting new programs and
// restarting changed ones.
func (c *Ctl) Update(ctx context.Context) error {
	return c.run(ctx, "update")
}

func (c *Ctl) run(ctx context.Context, args ...string) error {
	if len(c.executable) == 0 {
		if err := c.CheckInstalled(); err != nil {
			return err
		}
	}

	slog.Debug("Running supervisorctl", "executable", c.executable, "args", args)

	cmd := exec.CommandContext(ctx, c.executable, args...)
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	err := cmd.Run()
	if err != nil {
		return fmt.Errorf("%w: error running '%s %s': %w", ErrReload,
			constants.FileSupervisorctl, strings.Join(args, " "), err)
	}
	return nil
}

func findExecutableInPath(fs afero.Fs, executable, pathEnv string) (string, error) {
	for _, dir := range filepath.SplitList(pathEnv) {
		if len(dir) == 0 {
			continue
		}
		findPath := filepath.Join(dir, executable)
		fi, err := fs.Stat(findPath)
		if err != nil {
			continue
		}
		if !fi.IsDir() && fi.Mode()&execBits != 0 {
			return findPath, nil
		}
	}
	return "", fmt.Errorf("executable %s not found in %s", executable, pathEnv)
}
