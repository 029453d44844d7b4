package login

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrGroupNotFound   = errors.New("group not found")
	ErrUsernameLength  = errors.New("username must be longer than 0")
	ErrGroupnameLength = errors.New("group name must be longer than 0")
)

type PasswdEntry struct {
	Username string
	Password string
	UID      uint32
	GID      uint32
	Comment  string
	HomeDir  string
	Shell    string
}

func (p PasswdEntry) String() string {
	return fmt.Sprintf("%s:%s:%d:%d:%s:%s:%s",
		p.Username, p.Password, p.UID, p.GID, p.Comment, p.HomeDir, p.Shell)
}

type GroupEntry struct {
	Groupname string
	Password  string
	GID       uint32
	Users     []string
}

func (g GroupEntry) String() string {
	return fmt.Sprintf("%s:%s:%d:%s",
		g.Groupname, g.Password, g.GID, strings.Join(g.Users, ","))
}

// Passwd is the parsed content of an /etc/passwd file, indexed by UID and name.
type Passwd struct {
	ByUID  map[uint32]*PasswdEntry
	ByName map[string]*PasswdEntry
}

// Group is the parsed content of an /etc/group file, indexed by GID and name.
type Group struct {
	ByGID  map[uint32]*GroupEntry
	ByName map[string]*GroupEntry
}

func ParsePasswd(fs afero.Fs, passwdFile string) (*Passwd, error) {
	passwd := &Passwd{
		ByUID:  make(map[uint32]*PasswdEntry),
		ByName: make(map[string]*PasswdEntry),
	}

	err := scanEntries(fs, passwdFile, 7, func(fields []string) error {
		uid, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return fmt.Errorf("error parsing third field of line in %s: %w",
				passwdFile, err)
		}

		gid, err := strconv.ParseUint(fields[3], 10, 32)
		if err != nil {
			return fmt.Errorf("error parsing fourth field of line in %s: %w",
				passwdFile, err)
		}

		pwent := &PasswdEntry{
			Username: fields[0],
			Password: fields[1],
			UID:      uint32(uid),
			GID:      uint32(gid),
			Comment:  fields[4],
			HomeDir:  fields[5],
			Shell:    fields[6],
		}
		// The first entry wins, as with getpwuid(3).
		if _, ok := passwd.ByUID[pwent.UID]; !ok {
			passwd.ByUID[pwent.UID] = pwent
		}
		if _, ok := passwd.ByName[pwent.Username]; !ok {
			passwd.ByName[pwent.Username] = pwent
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return passwd, nil
}

func ParseGroup(fs afero.Fs, groupFile string) (*Group, error) {
	group := &Group{
		ByGID:  make(map[uint32]*GroupEntry),
		ByName: make(map[string]*GroupEntry),
	}

	err := scanEntries(fs, groupFile, 4, func(fields []string) error {
		gid, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return fmt.Errorf("error parsing third field of line in %s: %w",
				groupFile, err)
		}

		groupEntry := &GroupEntry{
			Groupname: fields[0],
			Password:  fields[1],
			GID:       uint32(gid),
			Users:     nonEmptyStrings(strings.Split(fields[3], ",")),
		}
		if _, ok := group.ByGID[groupEntry.GID]; !ok {
			group.ByGID[groupEntry.GID] = groupEntry
		}
		if _, ok := group.ByName[groupEntry.Groupname]; !ok {
			group.ByName[groupEntry.Groupname] = groupEntry
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return group, nil
}

// Username returns the name of the user with the given UID.
func Username(fs afero.Fs, passwdFile string, uid uint32) (string, error) {
	passwd, err := ParsePasswd(fs, passwdFile)
	if err != nil {
		return "", err
	}
	entry, ok := passwd.ByUID[uid]
	if !ok {
		return "", fmt.Errorf("%w: no entry for UID %d in %s", ErrUserNotFound, uid, passwdFile)
	}
	return entry.Username, nil
}

// UserGroupIDs returns the UID of username and the GID of groupname, in the
// way chown(1) resolves an argument of the form user:group.
func UserGroupIDs(fs afero.Fs, passwdFile, groupFile, username, groupname string) (uint32, uint32, error) {
	if len(username) == 0 {
		return 0, 0, ErrUsernameLength
	}
	if len(groupname) == 0 {
		return 0, 0, ErrGroupnameLength
	}

	passwd, err := ParsePasswd(fs, passwdFile)
	if err != nil {
		return 0, 0, err
	}
	pwent, ok := passwd.ByName[username]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}

	group, err := ParseGroup(fs, groupFile)
	if err != nil {
		return 0, 0, err
	}
	grent, ok := group.ByName[groupname]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrGroupNotFound, groupname)
	}

	return pwent.UID, grent.GID, nil
}

func scanEntries(fs afero.Fs, path string, nFields int, fn func([]string) error) error {
	f, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("unable to open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if len(strings.TrimSpace(line)) == 0 || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, ":")
		if len(fields) != nFields {
			return fmt.Errorf("unexpected number of fields in %s: %d",
				path, len(fields))
		}

		if err := fn(fields); err != nil {
			return err
		}
	}

	if err = scanner.Err(); err != nil {
		return fmt.Errorf("unable to read %s: %w", path, err)
	}

	return nil
}

func nonEmptyStrings(strs []string) []string {
	nonEmpty := []string{}
	for _, s := range strs {
		if len(s) > 0 {
			nonEmpty = append(nonEmpty, s)
		}
	}
	return nonEmpty
}

// Owner returns the name of the user owning path. The UID comes from
// stat(2) on the real filesystem and is mapped to a name through passwdFile
// in fs.
func Owner(fs afero.Fs, passwdFile, path string) (string, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return "", fmt.Errorf("unable to stat %s: %w", path, err)
	}
	return Username(fs, passwdFile, st.Uid)
}
