package testutil

import (
	"os"
	"path/filepath"

	"github.com/cloudboss/runvault/pkg/constants"
	"github.com/spf13/afero"
)

// Login database shared by tests that chown to the vault user.
const (
	Passwd = "root:x:0:0:root:/root:/bin/sh\nvault:x:999:998::/opt/vault:/bin/false\n"
	Group  = "root:x:0:\nvault:x:998:\n"

	VaultUID = 999
	VaultGID = 998
)

// HostFs creates an in-memory filesystem with the given directories and
// files. files is a map of path -> content.
func HostFs(dirs []string, files map[string]string) (afero.Fs, error) {
	fs := afero.NewMemMapFs()
	for _, dir := range dirs {
		if err := fs.MkdirAll(dir, constants.ModeDir); err != nil {
			return nil, err
		}
	}
	for path, content := range files {
		err := afero.WriteFile(fs, path, []byte(content), constants.ModeConfig)
		if err != nil {
			return nil, err
		}
	}
	return fs, nil
}

// LoginFs is HostFs with /etc/passwd and /etc/group containing the vault user.
func LoginFs(dirs ...string) (afero.Fs, error) {
	return HostFs(dirs, map[string]string{
		constants.FileEtcPasswd: Passwd,
		constants.FileEtcGroup:  Group,
	})
}

// WriteExecutable writes a script named name into dir on the real
// filesystem, for tests that execute programs.
func WriteExecutable(dir, name, content string) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0755); err != nil {
		return "", err
	}
	return path, nil
}
