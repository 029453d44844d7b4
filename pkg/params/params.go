package params

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/cloudboss/runvault/pkg/constants"
	"github.com/cloudboss/runvault/pkg/login"
	"github.com/spf13/afero"
)

var (
	ErrMissingRequiredField = errors.New("missing required field")
	ErrPathNotFound         = errors.New("path not found")
	ErrUnrecognizedArgument = errors.New("unrecognized argument")
)

// Flag names, used in error messages so they match what the user typed.
const (
	FlagGCSBucket               = "gcs-bucket"
	FlagTLSCertFile             = "tls-cert-file"
	FlagTLSKeyFile              = "tls-key-file"
	FlagGCPCredsFile            = "gcp-creds-file"
	FlagPort                    = "port"
	FlagClusterPort             = "cluster-port"
	FlagConfigDir               = "config-dir"
	FlagBinDir                  = "bin-dir"
	FlagLogDir                  = "log-dir"
	FlagLogLevel                = "log-level"
	FlagUser                    = "user"
	FlagSkipVaultConfig         = "skip-vault-config"
	FlagEnableUI                = "enable-ui"
	FlagEnableAutoUnseal        = "enable-auto-unseal"
	FlagAutoUnsealProjectID     = "auto-unseal-key-project-id"
	FlagAutoUnsealRegion        = "auto-unseal-key-region"
	FlagAutoUnsealKeyRing       = "auto-unseal-key-ring"
	FlagAutoUnsealCryptoKeyName = "auto-unseal-crypto-key-name"
)

// Options are the raw values given on the command line.
type Options struct {
	GCSBucket    string
	TLSCertFile  string
	TLSKeyFile   string
	GCPCredsFile string
	Port         int
	ClusterPort  int
	// ClusterPortSet is true when the cluster port was given explicitly,
	// in which case it is used as is.
	ClusterPortSet bool
	ConfigDir      string
	BinDir         string
	LogDir         string
	LogLevel       string
	User           string
	SkipConfig     bool
	EnableUI       bool

	EnableAutoUnseal        bool
	AutoUnsealProjectID     string
	AutoUnsealRegion        string
	AutoUnsealKeyRing       string
	AutoUnsealCryptoKeyName string
}

// Defaults holds the fixed values the resolver and generators fall back on.
type Defaults struct {
	Port                 int
	LogLevel             string
	DirConfig            string
	DirLog               string
	FileServerConfig     string
	FileSupervisorConfig string
	InterfaceIndex       int
}

func NewDefaults() Defaults {
	return Defaults{
		Port:                 constants.DefaultPort,
		LogLevel:             constants.DefaultLogLevel,
		DirConfig:            constants.DirConfig,
		DirLog:               constants.DirLog,
		FileServerConfig:     constants.FileServerConfig,
		FileSupervisorConfig: constants.FileSupervisorConfig,
		InterfaceIndex:       0,
	}
}

// OwnerFunc returns the name of the user owning path.
type OwnerFunc func(path string) (string, error)

// Env is the context that defaults are derived from.
type Env struct {
	Fs afero.Fs
	// InstallDir is the directory containing the running executable.
	InstallDir string
	Owner      OwnerFunc
}

type AutoUnseal struct {
	ProjectID     string
	Region        string
	KeyRing       string
	CryptoKeyName string
}

// Parameters are fully resolved and are not modified after Resolve returns.
type Parameters struct {
	TLSCertFile  string
	TLSKeyFile   string
	GCSBucket    string
	GCPCredsFile string
	Port         int
	ClusterPort  int
	ConfigDir    string
	BinDir       string
	LogDir       string
	LogLevel     string
	User         string
	SkipConfig   bool
	EnableUI     bool
	// AutoUnseal is nil unless auto-unseal is enabled.
	AutoUnseal *AutoUnseal
}

type field struct {
	name  string
	value string
}

// Validate checks that required options are present, returning an error
// naming the first one that is missing.
func Validate(opts Options) error {
	required := []field{
		{FlagTLSCertFile, opts.TLSCertFile},
		{FlagTLSKeyFile, opts.TLSKeyFile},
		{FlagGCSBucket, opts.GCSBucket},
	}
	if opts.EnableAutoUnseal {
		required = append(required,
			field{FlagAutoUnsealProjectID, opts.AutoUnsealProjectID},
			field{FlagAutoUnsealRegion, opts.AutoUnsealRegion},
			field{FlagAutoUnsealKeyRing, opts.AutoUnsealKeyRing},
			field{FlagAutoUnsealCryptoKeyName, opts.AutoUnsealCryptoKeyName},
		)
	}
	for _, f := range required {
		if len(f.value) == 0 {
			return fmt.Errorf("%w: the value for '--%s' cannot be empty", ErrMissingRequiredField, f.name)
		}
	}
	return nil
}

// Resolve fills in defaults for everything not given in opts, which must
// already have passed Validate.
func Resolve(opts Options, env Env, defaults Defaults) (*Parameters, error) {
	params := &Parameters{
		TLSCertFile:  opts.TLSCertFile,
		TLSKeyFile:   opts.TLSKeyFile,
		GCSBucket:    opts.GCSBucket,
		GCPCredsFile: opts.GCPCredsFile,
		Port:         opts.Port,
		LogLevel:     opts.LogLevel,
		SkipConfig:   opts.SkipConfig,
		EnableUI:     opts.EnableUI,
	}

	// The vault binary ships in the same directory as this executable, so
	// the default bin directory is the install directory itself rather
	// than a sibling of it.
	dirs := []struct {
		flag     string
		value    string
		fallback string
		dest     *string
	}{
		{FlagConfigDir, opts.ConfigDir, filepath.Join(env.InstallDir, "..", defaults.DirConfig), &params.ConfigDir},
		{FlagBinDir, opts.BinDir, env.InstallDir, &params.BinDir},
		{FlagLogDir, opts.LogDir, filepath.Join(env.InstallDir, "..", defaults.DirLog), &params.LogDir},
	}
	for _, dir := range dirs {
		resolved, err := resolveDir(env.Fs, dir.flag, dir.value, dir.fallback)
		if err != nil {
			return nil, err
		}
		*dir.dest = resolved
	}

	params.User = opts.User
	if len(params.User) == 0 {
		owner, err := env.Owner(params.ConfigDir)
		if errors.Is(err, login.ErrUserNotFound) {
			return nil, fmt.Errorf("unable to determine owner of %s: %w", params.ConfigDir, err)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: unable to determine owner of %s: %w",
				ErrPathNotFound, params.ConfigDir, err)
		}
		params.User = owner
	}

	if params.Port == 0 {
		params.Port = defaults.Port
	}

	params.ClusterPort = opts.ClusterPort
	if !opts.ClusterPortSet {
		params.ClusterPort = params.Port + 1
	}

	if len(params.LogLevel) == 0 {
		params.LogLevel = defaults.LogLevel
	}

	if opts.EnableAutoUnseal {
		params.AutoUnseal = &AutoUnseal{
			ProjectID:     opts.AutoUnsealProjectID,
			Region:        opts.AutoUnsealRegion,
			KeyRing:       opts.AutoUnsealKeyRing,
			CryptoKeyName: opts.AutoUnsealCryptoKeyName,
		}
	}

	return params, nil
}

// resolveDir returns value as an absolute path, or fallback if value is
// empty. Only a fallback is required to exist.
func resolveDir(fs afero.Fs, flag, value, fallback string) (string, error) {
	if len(value) > 0 {
		dir, err := expandPath(value)
		if err != nil {
			return "", fmt.Errorf("unable to expand path %s for '--%s': %w", value, flag, err)
		}
		return dir, nil
	}

	dir, err := filepath.Abs(fallback)
	if err != nil {
		return "", fmt.Errorf("unable to get absolute path of %s: %w", fallback, err)
	}
	exists, err := afero.DirExists(fs, dir)
	if err != nil {
		return "", fmt.Errorf("unable to check status of %s: %w", dir, err)
	}
	if !exists {
		return "", fmt.Errorf("%w: default directory %s for '--%s' does not exist",
			ErrPathNotFound, dir, flag)
	}
	return dir, nil
}

func expandPath(pth string) (string, error) {
	expanded := pth
	if strings.HasPrefix(pth, "~/") {
		me, err := user.Current()
		if err != nil {
			return "", err
		}
		fields := strings.Split(pth, string(filepath.Separator))
		newFields := []string{me.HomeDir}
		newFields = append(newFields, fields[1:]...)
		expanded = filepath.Join(newFields...)
	}

	return filepath.Abs(expanded)
}

// InstallDir returns the directory containing the running executable,
// following symlinks.
func InstallDir() (string, error) {
	this, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("unable to get executable path: %w", err)
	}
	// In case we are a symlink, get the real path.
	realThis, err := filepath.EvalSymlinks(this)
	if err != nil {
		return "", fmt.Errorf("unable to get real path of executable: %w", err)
	}
	return filepath.Abs(filepath.Dir(realThis))
}
