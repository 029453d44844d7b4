package runvault

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/cloudboss/runvault/pkg/constants"
	"github.com/cloudboss/runvault/pkg/login"
	"github.com/cloudboss/runvault/pkg/metadata"
	"github.com/cloudboss/runvault/pkg/params"
	"github.com/cloudboss/runvault/pkg/supervisor"
	"github.com/cloudboss/runvault/pkg/vaultconfig"
	"github.com/spf13/afero"
)

// Runner configures Vault and supervisord in a single pass.
type Runner struct {
	Fs         afero.Fs
	Metadata   metadata.Client
	Supervisor supervisor.Controller
	Owner      params.OwnerFunc
	InstallDir string
	Defaults   params.Defaults
}

// NewRunner returns a Runner that works on the real host.
func NewRunner() (*Runner, error) {
	installDir, err := params.InstallDir()
	if err != nil {
		return nil, err
	}
	fs := afero.NewOsFs()
	return &Runner{
		Fs:         fs,
		Metadata:   metadata.NewClient(),
		Supervisor: supervisor.NewCtl(),
		Owner: func(path string) (string, error) {
			return login.Owner(fs, constants.FileEtcPasswd, path)
		},
		InstallDir: installDir,
		Defaults:   params.NewDefaults(),
	}, nil
}

// Run stops at the first error. Nothing after the failed step is done, and
// whether supervisord actually starts Vault is not checked.
func (r *Runner) Run(ctx context.Context, opts params.Options) error {
	slog.Info("Starting run-vault")

	err := params.Validate(opts)
	if err != nil {
		return err
	}

	err = r.Supervisor.CheckInstalled()
	if err != nil {
		return err
	}

	env := params.Env{
		Fs:         r.Fs,
		InstallDir: r.InstallDir,
		Owner:      r.Owner,
	}
	p, err := params.Resolve(opts, env, r.Defaults)
	if err != nil {
		return err
	}
	slog.Debug("Resolved parameters", "parameters", p)

	if p.SkipConfig {
		slog.Info("Skipping Vault configuration", "flag", params.FlagSkipVaultConfig)
	} else {
		address, err := r.Metadata.GetInstanceAddress(ctx, r.Defaults.InterfaceIndex)
		if err != nil {
			return err
		}
		path := filepath.Join(p.ConfigDir, r.Defaults.FileServerConfig)
		slog.Info("Creating Vault configuration", "path", path, "address", address)
		err = vaultconfig.Generate(r.Fs, path, p, address)
		if err != nil {
			return err
		}
	}

	program := supervisor.NewProgram(p.ConfigDir, p.BinDir, p.LogDir, p.LogLevel, p.User)
	slog.Info("Creating supervisor configuration", "path", r.Defaults.FileSupervisorConfig)
	err = supervisor.Generate(r.Fs, r.Defaults.FileSupervisorConfig, program)
	if err != nil {
		return err
	}

	slog.Info("Reloading supervisor configuration and starting Vault")
	err = r.Supervisor.Reread(ctx)
	if err != nil {
		return fmt.Errorf("unable to start Vault: %w", err)
	}
	err = r.Supervisor.Update(ctx)
	if err != nil {
		return fmt.Errorf("unable to start Vault: %w", err)
	}

	slog.Info("Vault is running under supervision", "program", program.SectionName())
	return nil
}
