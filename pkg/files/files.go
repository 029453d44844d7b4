package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudboss/runvault/pkg/login"
	"github.com/spf13/afero"
)

var (
	ErrWrite     = errors.New("write error")
	ErrOwnership = errors.New("ownership error")
)

// DescendingDirs returns an array of directory names where each subsequent
// name in the array is one level deeper than the previous.
func DescendingDirs(dir string) []string {
	return descendingDirs(dir, "")
}

func descendingDirs(dir, acc string) []string {
	if len(dir) == 0 {
		return []string{}
	}
	dirs := strings.Split(dir, string(os.PathSeparator))
	if len(dirs[0]) == 0 {
		// dir is an absolute path.
		dirs[0] = string(os.PathSeparator)
	}
	newAcc := filepath.Join(acc, dirs[0])
	return append([]string{newAcc}, descendingDirs(filepath.Join(dirs[1:]...), newAcc)...)
}

// Mkdirs creates dir and any missing parents with the given mode. Existing
// directories are left as they are.
func Mkdirs(fs afero.Fs, dir string, mode os.FileMode) error {
	for _, d := range DescendingDirs(dir) {
		err := fs.Mkdir(d, mode)
		if !(err == nil || os.IsExist(err)) {
			return fmt.Errorf("%w: unable to create directory %s: %w", ErrWrite, d, err)
		}
	}
	return nil
}

// Write replaces the content of path with content. There is no merge with
// what was there before and no atomic rename.
func Write(fs afero.Fs, path string, content []byte, mode os.FileMode) error {
	err := afero.WriteFile(fs, path, content, mode)
	if err != nil {
		return fmt.Errorf("%w: unable to write %s: %w", ErrWrite, path, err)
	}
	return nil
}

// Chown sets the owner of path to username and its group to groupname,
// resolving both through passwdFile and groupFile.
func Chown(fs afero.Fs, passwdFile, groupFile, path, username, groupname string) error {
	uid, gid, err := login.UserGroupIDs(fs, passwdFile, groupFile, username, groupname)
	if err != nil {
		return fmt.Errorf("%w: unable to look up %s:%s: %w", ErrOwnership, username, groupname, err)
	}
	err = fs.Chown(path, int(uid), int(gid))
	if err != nil {
		return fmt.Errorf("%w: unable to change ownership of %s to %s:%s: %w",
			ErrOwnership, path, username, groupname, err)
	}
	return nil
}
