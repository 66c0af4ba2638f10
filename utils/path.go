package utils

import (
	"path"
	"strings"
)

// CleanRemotePath normalises a remote path to an absolute, slash separated
// form without a trailing slash. The empty path is the root.
func CleanRemotePath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + strings.TrimLeft(p, "/"))
}

// SplitRemotePath returns the parent directory and base name of p.
// Top-level entries have "/" as their parent; the root has no name.
func SplitRemotePath(p string) (dir, name string) {
	p = CleanRemotePath(p)
	if p == "/" {
		return "/", ""
	}
	return path.Dir(p), path.Base(p)
}

// ParentDir returns the parent directory of p
func ParentDir(p string) string {
	dir, _ := SplitRemotePath(p)
	return dir
}

// MoveDestination splits a move target into the destination directory and
// the new name. The filemanager API addresses the root as "", not "/".
func MoveDestination(target string) (dest, newname string) {
	dest, newname = SplitRemotePath(target)
	if dest == "/" {
		dest = ""
	}
	return dest, newname
}
