package tree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudboss/runvault/pkg/constants"
	"github.com/cloudboss/runvault/pkg/params"
	"github.com/cloudboss/runvault/pkg/runvault"
	"github.com/spf13/cobra"
)

var (
	rootCfg = &rootConfig{}
	RootCmd = &cobra.Command{
		Use:   "run-vault",
		Short: "Configure Vault and run it under supervisord",
		Long: `Configure Vault and run it under supervisord.

Writes a Vault server configuration backed by Google Cloud Storage, with
Consul for high availability and optionally Cloud KMS for auto-unseal, and
a supervisord program that runs Vault with it. supervisord is then told to
reload its configuration, which starts or restarts Vault.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: %s", params.ErrUnrecognizedArgument, args[0])
			}
			return nil
		},
		SilenceErrors: true,
		PreRun: func(cmd *cobra.Command, args []string) {
			if rootCfg.debug {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			}
			rootCfg.options.ClusterPortSet = cmd.Flags().Changed(params.FlagClusterPort)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := runvault.NewRunner()
			if err != nil {
				cmd.SilenceUsage = true
				return err
			}
			err = runner.Run(cmd.Context(), rootCfg.options)
			// Usage is only useful when a required option is missing.
			cmd.SilenceUsage = !errors.Is(err, params.ErrMissingRequiredField)
			return err
		},
	}
)

type rootConfig struct {
	options params.Options
	debug   bool
}

func init() {
	RootCmd.AddCommand(VersionCmd)

	RootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", params.ErrUnrecognizedArgument, err)
	})

	opts := &rootCfg.options
	flags := RootCmd.Flags()

	flags.StringVar(&opts.GCSBucket, params.FlagGCSBucket, "",
		"The name of the Google Cloud Storage bucket where Vault data is stored. Required.")
	flags.StringVar(&opts.TLSCertFile, params.FlagTLSCertFile, "",
		"The path to the certificate file to use for TLS. Required.")
	flags.StringVar(&opts.TLSKeyFile, params.FlagTLSKeyFile, "",
		"The path to the private key file to use for TLS. Required.")
	flags.StringVar(&opts.GCPCredsFile, params.FlagGCPCredsFile, "",
		"The path to a Google Cloud credentials file. If not set, the instance's credentials are used.")
	flags.IntVar(&opts.Port, params.FlagPort, constants.DefaultPort,
		"The port for Vault to listen on.")
	flags.IntVar(&opts.ClusterPort, params.FlagClusterPort, 0,
		"The port for Vault to listen on for server-to-server requests. Defaults to --port + 1.")
	flags.StringVar(&opts.ConfigDir, params.FlagConfigDir, "",
		"The path to the Vault config folder. Defaults to the config folder next to the install directory.")
	flags.StringVar(&opts.BinDir, params.FlagBinDir, "",
		"The path to the folder with the vault binary. Defaults to the directory of this executable.")
	flags.StringVar(&opts.LogDir, params.FlagLogDir, "",
		"The path to the Vault log folder. Defaults to the log folder next to the install directory.")
	flags.StringVar(&opts.LogLevel, params.FlagLogLevel, constants.DefaultLogLevel,
		"The log verbosity to use with Vault.")
	flags.StringVar(&opts.User, params.FlagUser, "",
		"The user to run Vault as. Defaults to the owner of --config-dir.")
	flags.BoolVar(&opts.SkipConfig, params.FlagSkipVaultConfig, false,
		"Do not write the Vault configuration. Use this when the configuration is managed elsewhere.")
	flags.BoolVar(&opts.EnableUI, params.FlagEnableUI, false,
		"Enable the Vault web UI.")
	flags.BoolVar(&opts.EnableAutoUnseal, params.FlagEnableAutoUnseal, false,
		"Enable auto-unseal with Google Cloud KMS. Requires all of the --auto-unseal-* flags.")
	flags.StringVar(&opts.AutoUnsealProjectID, params.FlagAutoUnsealProjectID, "",
		"The Google Cloud project that owns the auto-unseal key ring.")
	flags.StringVar(&opts.AutoUnsealRegion, params.FlagAutoUnsealRegion, "",
		"The Google Cloud region of the auto-unseal key ring.")
	flags.StringVar(&opts.AutoUnsealKeyRing, params.FlagAutoUnsealKeyRing, "",
		"The name of the Cloud KMS key ring holding the auto-unseal key.")
	flags.StringVar(&opts.AutoUnsealCryptoKeyName, params.FlagAutoUnsealCryptoKeyName, "",
		"The name of the Cloud KMS crypto key used for auto-unseal.")

	flags.BoolVar(&rootCfg.debug, "debug", false, "Enable debug output.")
}

func Execute() error {
	return RootCmd.ExecuteContext(context.Background())
}
