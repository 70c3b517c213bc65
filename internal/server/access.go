package server

import (
	"strings"

	"github.com/inesosoares6/shopping-list-v2/internal/errors"
	"github.com/inesosoares6/shopping-list-v2/internal/remote"
)

// checkAccess applies the tree's rules for uid:
//   - the root and paths whose first segment starts with "_" are private
//   - users/{id} and below belong to that user alone
//   - lists are shared by everyone who knows the id
func checkAccess(uid, path string) error {
	segs := remote.Split(path)
	if len(segs) == 0 {
		return errors.Forbidden("the root cannot be accessed")
	}
	if strings.HasPrefix(segs[0], "_") {
		return errors.Forbiddenf("%s is private", segs[0])
	}
	if segs[0] == remote.UsersRoot && (len(segs) < 2 || segs[1] != uid) {
		return errors.Forbidden("other users' data cannot be accessed")
	}
	return nil
}

// checkWrite is checkAccess for writes. Lists are written one at a time:
// the lists root itself is read-only.
func checkWrite(uid, path string) error {
	if err := checkAccess(uid, path); err != nil {
		return err
	}
	if segs := remote.Split(path); segs[0] == remote.ListsRoot && len(segs) < 2 {
		return errors.Forbidden("lists can only be written one at a time")
	}
	return nil
}

// checkUpdate checks every path an update touches.
func checkUpdate(uid, base string, fields map[string]any) error {
	if len(fields) == 0 {
		return checkWrite(uid, base)
	}
	for key := range fields {
		if err := checkWrite(uid, remote.Join(base, key)); err != nil {
			return err
		}
	}
	return nil
}
