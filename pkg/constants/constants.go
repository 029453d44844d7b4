package constants

const (
	DirConfig = "config"
	DirLog    = "log"

	FileEtcPasswd        = "/etc/passwd"
	FileEtcGroup         = "/etc/group"
	FileServerConfig     = "default.hcl"
	FileSupervisorConfig = "/etc/supervisor/conf.d/run-vault.conf"
	FileVaultBin         = "vault"
	FileSupervisorctl    = "supervisorctl"

	ModeConfig = 0644
	ModeDir    = 0755

	DefaultPort     = 8200
	DefaultLogLevel = "info"

	PathEnvDefault = "/usr/local/bin:/usr/local/sbin:/usr/bin:/usr/sbin:/bin:/sbin"
)

// "Constants" that are defined with ldflags during compile.
var (
	Version = "dev"
)
