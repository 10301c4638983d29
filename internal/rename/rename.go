// Package rename implements the multi-branch rename engine (spec.md
// §4.I): the sharpest edge of a union filesystem, selectable between a
// path-preserving strategy (default) and a create-policy strategy
// (ignorepponrename=true).
//
// Grounded on rclone's union.Fs.Move/DirMove (backend/union/union.go):
// the same "try the rename on every relevant upstream, remember
// per-upstream failures, don't roll back partial success" shape,
// specialized to local POSIX rename(2) instead of a remote fs.Mover.
package rename

import (
	"io"
	"os"
	"syscall"

	"github.com/mergerfs-go/mergerfs/internal/branch"
	"github.com/mergerfs-go/mergerfs/internal/multierr"
	"github.com/mergerfs-go/mergerfs/internal/policy"
	"github.com/mergerfs-go/mergerfs/internal/resolver"
)

// Engine bundles the collaborators the rename strategies need.
type Engine struct {
	PolicyEngine     *policy.Engine
	IgnorePPOnRename bool
}

// Rename implements spec.md §4.I in full: a no-op if source and
// destination unified paths are identical, otherwise dispatches to the
// configured strategy.
func (e *Engine) Rename(branches []branch.Branch, createPolicyName, src, dst string) error {
	if src == dst {
		return nil
	}
	if err := checkTypeConflict(branches, src, dst); err != nil {
		return err
	}
	if e.IgnorePPOnRename {
		return e.renameCreatePolicy(branches, createPolicyName, src, dst)
	}
	return e.renamePathPreserving(branches, src, dst)
}

// checkTypeConflict rejects renaming a directory over a file or vice
// versa, per POSIX and spec.md §4.I ("rejected with EISDIR/ENOTDIR").
func checkTypeConflict(branches []branch.Branch, src, dst string) error {
	var srcIsDir, dstExists, dstIsDir bool
	for _, b := range branches {
		if fi, err := os.Lstat(b.FullPath(src)); err == nil {
			srcIsDir = fi.IsDir()
			break
		}
	}
	for _, b := range branches {
		if fi, err := os.Lstat(b.FullPath(dst)); err == nil {
			dstExists, dstIsDir = true, fi.IsDir()
			break
		}
	}
	if !dstExists {
		return nil
	}
	if srcIsDir && !dstIsDir {
		return syscall.ENOTDIR
	}
	if !srcIsDir && dstIsDir {
		return syscall.EISDIR
	}
	return nil
}

// renamePathPreserving implements spec.md §4.I's default strategy: for
// each branch that contains src, atomically rename src -> dst on that
// branch, cloning dst's parent first if missing. Branches lacking src
// are skipped. If any branch rename fails but others succeeded, the
// first failure is returned but earlier successes are not rolled back.
func (e *Engine) renamePathPreserving(branches []branch.Branch, src, dst string) error {
	var errs multierr.Errors
	succeeded := false
	for _, b := range branches {
		exists, _, err := e.PolicyEngine.Exists.Exists(b, src)
		if err != nil || !exists {
			continue
		}
		if err := resolver.CloneParents(b, branches, dst); err != nil {
			errs = append(errs, &multierr.BranchError{BranchPath: b.Path, Err: err})
			continue
		}
		if err := os.Rename(b.FullPath(src), b.FullPath(dst)); err != nil {
			errs = append(errs, &multierr.BranchError{BranchPath: b.Path, Err: err})
			continue
		}
		succeeded = true
	}
	if first := errs.First(); first != nil {
		return first
	}
	if succeeded {
		return nil
	}
	return syscall.ENOENT
}

// renameCreatePolicy implements spec.md §4.I's ignorepponrename=true
// strategy: resolve the destination branch via the create policy (as if
// dst were being newly created), move src there (copy+unlink if src
// lives on a different branch), and unlink src from every other branch.
func (e *Engine) renameCreatePolicy(branches []branch.Branch, createPolicyName, src, dst string) error {
	cp, err := policy.GetCreate(createPolicyName)
	if err != nil {
		return err
	}
	destBranches, err := cp.Create(e.PolicyEngine, branches, dst)
	if err != nil {
		return err
	}
	destBranch := destBranches[0]

	if err := resolver.CloneParents(destBranch, branches, dst); err != nil {
		return err
	}

	srcExistsOnDest, _, _ := e.PolicyEngine.Exists.Exists(destBranch, src)
	if srcExistsOnDest {
		if err := os.Rename(destBranch.FullPath(src), destBranch.FullPath(dst)); err != nil {
			return err
		}
	} else {
		if err := copyAcrossBranches(branches, destBranch, src, dst); err != nil {
			return err
		}
	}

	var errs multierr.Errors
	for _, b := range branches {
		if b.Index == destBranch.Index {
			continue
		}
		exists, _, err := e.PolicyEngine.Exists.Exists(b, src)
		if err != nil || !exists {
			continue
		}
		if err := os.Remove(b.FullPath(src)); err != nil {
			errs = append(errs, &multierr.BranchError{BranchPath: b.Path, Err: err})
		}
	}
	return errs.First()
}

func copyAcrossBranches(branches []branch.Branch, destBranch branch.Branch, src, dst string) error {
	var srcBranch *branch.Branch
	for i := range branches {
		if fi, err := os.Lstat(branches[i].FullPath(src)); err == nil && !fi.IsDir() {
			srcBranch = &branches[i]
			break
		}
	}
	if srcBranch == nil {
		return syscall.ENOENT
	}
	in, err := os.Open(srcBranch.FullPath(src))
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(destBranch.FullPath(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return nil
}
