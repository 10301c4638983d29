// Package resolver implements the path resolver and parent-cloning
// logic of spec.md §4.D: enumerating which branches already hold a
// unified path, and reproducing a missing ancestor directory hierarchy
// on a target branch before a create operation can proceed there.
//
// Grounded on rclone's upstream.Fs existence probing (an Lstat
// against the wrapped remote) generalized from "one remote" to "one
// branch root", plus mergerfs's own documented clone-parents behavior
// (mode/owner/timestamp reproduction, not content) which has no direct
// analogue in rclone's union backend — rclone's remotes never need a
// directory pre-created before a file lands in it the way a local POSIX
// mkdir chain does, so this half of the package is original, built in
// rclone's idiom of small single-purpose exported functions over
// the wrapped resource (cf. upstream.Fs's Resolve/Features methods).
package resolver

import (
	"fmt"
	"os"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/mergerfs-go/mergerfs/internal/branch"
	"github.com/mergerfs-go/mergerfs/internal/policy"
)

// LstatExistence is the production policy.ExistenceChecker, backed by
// os.Lstat against each branch's backing path. It lives here rather than
// in the policy package so the policy package stays free of filesystem
// imports and is trivially testable with a fake.
type LstatExistence struct{}

func (LstatExistence) Exists(b branch.Branch, unifiedPath string) (bool, time.Time, error) {
	fi, err := os.Lstat(b.FullPath(unifiedPath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, time.Time{}, nil
		}
		return false, time.Time{}, err
	}
	return true, fi.ModTime(), nil
}

// Enumerate scans branches in order and returns the indices (into the
// bs slice, not the registry) where unifiedPath exists as any entry
// type, per spec.md §4.D step 1.
func Enumerate(bs []branch.Branch, unifiedPath string, exists policy.ExistenceChecker) ([]int, error) {
	var out []int
	for i, b := range bs {
		ok, _, err := exists.Exists(b, unifiedPath)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, i)
		}
	}
	return out, nil
}

func ancestors(unifiedPath string) []string {
	clean := path.Clean("/" + unifiedPath)
	parts := strings.Split(strings.Trim(clean, "/"), "/")
	if len(parts) <= 1 {
		return nil
	}
	var out []string
	cur := ""
	for _, p := range parts[:len(parts)-1] {
		cur += "/" + p
		out = append(out, cur)
	}
	return out
}

// CloneParents ensures every ancestor directory of unifiedPath exists on
// target, in root-to-leaf order. For each missing ancestor it searches
// sources (in order) for a branch already holding that ancestor and
// reproduces its mode, owner and timestamps via mkdir + chmod + chown +
// chtimes on target. If no source branch holds a given ancestor, it
// fails with a "parent missing" error naming the ancestor, per spec.md
// §4.D ("no partial-clone rollback is performed — a subsequent retry
// will skip the already-created ancestors").
func CloneParents(target branch.Branch, sources []branch.Branch, unifiedPath string) error {
	for _, anc := range ancestors(unifiedPath) {
		targetPath := target.FullPath(anc)
		if fi, err := os.Lstat(targetPath); err == nil {
			if !fi.IsDir() {
				return fmt.Errorf("resolver: ancestor %q exists on branch %q but is not a directory", anc, target.Path)
			}
			continue
		} else if !os.IsNotExist(err) {
			return err
		}

		srcInfo, srcBranch, err := findAncestor(sources, anc)
		if err != nil {
			return fmt.Errorf("resolver: parent missing: no branch has ancestor %q: %w", anc, err)
		}

		if err := os.Mkdir(targetPath, srcInfo.Mode().Perm()); err != nil && !os.IsExist(err) {
			return fmt.Errorf("resolver: cloning ancestor %q from %q to %q: %w", anc, srcBranch.Path, target.Path, err)
		}
		if st, ok := srcInfo.Sys().(*syscall.Stat_t); ok {
			_ = os.Chown(targetPath, int(st.Uid), int(st.Gid))
		}
		_ = os.Chmod(targetPath, srcInfo.Mode().Perm())
		mtime := srcInfo.ModTime()
		_ = os.Chtimes(targetPath, mtime, mtime)
	}
	return nil
}

func findAncestor(sources []branch.Branch, anc string) (os.FileInfo, branch.Branch, error) {
	for _, b := range sources {
		fi, err := os.Lstat(b.FullPath(anc))
		if err == nil && fi.IsDir() {
			return fi, b, nil
		}
	}
	return nil, branch.Branch{}, os.ErrNotExist
}
