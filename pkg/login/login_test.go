package login

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudboss/runvault/pkg/constants"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPasswd = `root:x:0:0:root:/root:/bin/bash
# comment line
vault:x:999:998:Vault:/opt/vault:/bin/false
other:x:1000:1000::/home/other:/bin/sh
dup:x:999:998:Duplicate:/nonexistent:/bin/false
`
	testGroup = `root:x:0:
vault:x:998:vault
other:x:1000:other,vault
`
)

func loginSetup(passwd, group *string) afero.Fs {
	fs := afero.NewMemMapFs()
	if passwd != nil {
		afero.WriteFile(fs, constants.FileEtcPasswd, []byte(*passwd), 0644)
	}
	if group != nil {
		afero.WriteFile(fs, constants.FileEtcGroup, []byte(*group), 0644)
	}
	return fs
}

func p[T any](v T) *T {
	return &v
}

func TestParsePasswd(t *testing.T) {
	fs := loginSetup(p(testPasswd), nil)

	passwd, err := ParsePasswd(fs, constants.FileEtcPasswd)
	require.NoError(t, err)

	assert.Len(t, passwd.ByName, 4)
	assert.Len(t, passwd.ByUID, 3)
	assert.Equal(t, "vault", passwd.ByUID[999].Username)
	assert.Equal(t, uint32(998), passwd.ByName["vault"].GID)
	assert.Equal(t, "/opt/vault", passwd.ByName["vault"].HomeDir)
	assert.Equal(t, "vault:x:999:998:Vault:/opt/vault:/bin/false", passwd.ByName["vault"].String())
}

func TestParsePasswdErrors(t *testing.T) {
	testCases := []struct {
		name   string
		passwd *string
		errMsg string
	}{
		{
			name:   "Missing file",
			passwd: nil,
			errMsg: "unable to open /etc/passwd",
		},
		{
			name:   "Too few fields",
			passwd: p("root:x:0:0:root:/root\n"),
			errMsg: "unexpected number of fields in /etc/passwd: 6",
		},
		{
			name:   "Bad UID",
			passwd: p("root:x:zero:0:root:/root:/bin/sh\n"),
			errMsg: "error parsing third field of line in /etc/passwd",
		},
		{
			name:   "Bad GID",
			passwd: p("root:x:0:zero:root:/root:/bin/sh\n"),
			errMsg: "error parsing fourth field of line in /etc/passwd",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := loginSetup(tc.passwd, nil)
			_, err := ParsePasswd(fs, constants.FileEtcPasswd)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestParseGroup(t *testing.T) {
	fs := loginSetup(nil, p(testGroup))

	group, err := ParseGroup(fs, constants.FileEtcGroup)
	require.NoError(t, err)

	assert.Len(t, group.ByName, 3)
	assert.Equal(t, []string{}, group.ByName["root"].Users)
	assert.Equal(t, []string{"other", "vault"}, group.ByGID[1000].Users)
	assert.Equal(t, "vault:x:998:vault", group.ByName["vault"].String())
}

func TestUsername(t *testing.T) {
	testCases := []struct {
		name     string
		uid      uint32
		expected string
		err      error
	}{
		{
			name:     "Root",
			uid:      0,
			expected: "root",
		},
		{
			name:     "First entry wins for duplicate UID",
			uid:      999,
			expected: "vault",
		},
		{
			name: "Unknown UID",
			uid:  4242,
			err:  ErrUserNotFound,
		},
	}
	fs := loginSetup(p(testPasswd), nil)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			username, err := Username(fs, constants.FileEtcPasswd, tc.uid)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, username)
		})
	}
}

func TestUserGroupIDs(t *testing.T) {
	testCases := []struct {
		name      string
		username  string
		groupname string
		uid       uint32
		gid       uint32
		err       error
	}{
		{
			name:      "Same user and group name",
			username:  "vault",
			groupname: "vault",
			uid:       999,
			gid:       998,
		},
		{
			name:      "Different group",
			username:  "vault",
			groupname: "other",
			uid:       999,
			gid:       1000,
		},
		{
			name:      "Empty username",
			username:  "",
			groupname: "vault",
			err:       ErrUsernameLength,
		},
		{
			name:      "Empty group name",
			username:  "vault",
			groupname: "",
			err:       ErrGroupnameLength,
		},
		{
			name:      "Unknown user",
			username:  "nobody",
			groupname: "vault",
			err:       ErrUserNotFound,
		},
		{
			name:      "Unknown group",
			username:  "dup",
			groupname: "dup",
			err:       ErrGroupNotFound,
		},
	}
	fs := loginSetup(p(testPasswd), p(testGroup))
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			uid, gid, err := UserGroupIDs(fs, constants.FileEtcPasswd, constants.FileEtcGroup,
				tc.username, tc.groupname)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.uid, uid)
			assert.Equal(t, tc.gid, gid)
		})
	}
}

func TestOwner(t *testing.T) {
	dir := t.TempDir()
	passwd := fmt.Sprintf("root:x:0:0:root:/root:/bin/sh\ntester:x:%d:%d::/tmp:/bin/sh\n",
		os.Getuid(), os.Getgid())
	if os.Getuid() == 0 {
		passwd = "root:x:0:0:tester:/root:/bin/sh\n"
	}
	fs := loginSetup(p(passwd), nil)

	owner, err := Owner(fs, constants.FileEtcPasswd, dir)
	require.NoError(t, err)
	if os.Getuid() == 0 {
		assert.Equal(t, "root", owner)
	} else {
		assert.Equal(t, "tester", owner)
	}

	_, err = Owner(fs, constants.FileEtcPasswd, filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
