package files

import (
	"errors"
	"fmt"
	"testing"

	"github.com/cloudboss/runvault/pkg/constants"
	"github.com/cloudboss/runvault/pkg/login"
	"github.com/cloudboss/runvault/pkg/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chownCall struct {
	path string
	uid  int
	gid  int
}

type chownFs struct {
	afero.Fs
	calls []chownCall
	err   error
}

func (c *chownFs) Chown(name string, uid, gid int) error {
	c.calls = append(c.calls, chownCall{name, uid, gid})
	if c.err != nil {
		return c.err
	}
	return c.Fs.Chown(name, uid, gid)
}

func filesSetup(t *testing.T) afero.Fs {
	t.Helper()
	fs, err := testutil.LoginFs()
	require.NoError(t, err)
	return fs
}

func Test_DescendingDirs(t *testing.T) {
	testCases := []struct {
		dir    string
		result []string
	}{
		{
			dir:    "",
			result: []string{},
		},
		{
			dir:    "etc",
			result: []string{"etc"},
		},
		{
			dir:    "etc/supervisor//conf.d",
			result: []string{"etc", "etc/supervisor", "etc/supervisor/conf.d"},
		},
		{
			dir:    "////",
			result: []string{"/"},
		},
		{
			dir:    "/etc/supervisor/conf.d",
			result: []string{"/", "/etc", "/etc/supervisor", "/etc/supervisor/conf.d"},
		},
	}
	for _, tc := range testCases {
		actual := DescendingDirs(tc.dir)
		assert.Equal(t, tc.result, actual)
	}
}

func Test_Mkdirs(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/etc", 0700))

	err := Mkdirs(fs, "/etc/supervisor/conf.d", 0755)
	require.NoError(t, err)

	for _, dir := range []string{"/etc", "/etc/supervisor", "/etc/supervisor/conf.d"} {
		t.Run(fmt.Sprintf("directory %s", dir), func(t *testing.T) {
			dirExists, err := afero.DirExists(fs, dir)
			assert.NoError(t, err)
			assert.True(t, dirExists, "directory %s does not exist", dir)
		})
	}

	// Existing directories keep their mode.
	fi, err := fs.Stat("/etc")
	require.NoError(t, err)
	assert.Equal(t, "drwx------", fi.Mode().String())

	err = Mkdirs(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/var/lib", 0755)
	assert.ErrorIs(t, err, ErrWrite)
}

func Test_Write(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/opt/vault/config", 0755))
	path := "/opt/vault/config/default.hcl"

	require.NoError(t, Write(fs, path, []byte("a much longer first version\n"), 0644))
	require.NoError(t, Write(fs, path, []byte("second\n"), 0644))

	content, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(content))

	err = Write(afero.NewReadOnlyFs(fs), path, []byte("third\n"), 0644)
	assert.ErrorIs(t, err, ErrWrite)
}

func Test_Chown(t *testing.T) {
	testCases := []struct {
		name      string
		username  string
		groupname string
		chownErr  error
		calls     []chownCall
		err       error
		cause     error
	}{
		{
			name:      "Known user and group",
			username:  "vault",
			groupname: "vault",
			calls:     []chownCall{{"/f", testutil.VaultUID, testutil.VaultGID}},
		},
		{
			name:      "Unknown user",
			username:  "consul",
			groupname: "vault",
			err:       ErrOwnership,
			cause:     login.ErrUserNotFound,
		},
		{
			name:      "Unknown group",
			username:  "vault",
			groupname: "consul",
			err:       ErrOwnership,
			cause:     login.ErrGroupNotFound,
		},
		{
			name:      "Chown not permitted",
			username:  "vault",
			groupname: "vault",
			chownErr:  errors.New("operation not permitted"),
			calls:     []chownCall{{"/f", testutil.VaultUID, testutil.VaultGID}},
			err:       ErrOwnership,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := &chownFs{Fs: filesSetup(t), err: tc.chownErr}
			require.NoError(t, afero.WriteFile(fs, "/f", []byte("x"), 0644))

			err := Chown(fs, constants.FileEtcPasswd, constants.FileEtcGroup, "/f",
				tc.username, tc.groupname)
			assert.Equal(t, tc.calls, fs.calls)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				if tc.cause != nil {
					assert.ErrorIs(t, err, tc.cause)
				}
				return
			}
			assert.NoError(t, err)
		})
	}
}
