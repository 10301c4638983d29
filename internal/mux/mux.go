// Package mux implements the operation multiplexer (spec.md §4.G), the
// largest component: for every filesystem request it selects branches
// via the policy engine, prepares target paths via the resolver, drives
// the backing POSIX syscalls, and post-processes (fan-out, ENOSPC
// migration, reply merging).
//
// Grounded on rclone's union.Fs method bodies (backend/union/union.go):
// the same "pick policy → act on upstream(s) → merge result" shape,
// generalized from rclone's fs.Object/fs.Directory remote operations to
// direct POSIX syscalls against branch.Branch paths. The multiplexer is
// deliberately transport-agnostic — it knows nothing about go-fuse — so
// internal/fsnode can adapt it to the kernel protocol binding without
// this package importing a FUSE library at all, mirroring the way
// union.Fs itself has no knowledge of whatever consumes the fs.Fs
// interface it implements.
package mux

import (
	"errors"
	"os"
	"syscall"

	"github.com/mergerfs-go/mergerfs/internal/branch"
	"github.com/mergerfs-go/mergerfs/internal/config"
	"github.com/mergerfs-go/mergerfs/internal/handle"
	"github.com/mergerfs-go/mergerfs/internal/inodecalc"
	"github.com/mergerfs-go/mergerfs/internal/logging"
	"github.com/mergerfs-go/mergerfs/internal/policy"
	"github.com/mergerfs-go/mergerfs/internal/resolver"
	"github.com/mergerfs-go/mergerfs/internal/space"
)

// ControlFilePath is the unified path of the virtual runtime
// configuration entry (spec.md §4.H).
const ControlFilePath = "/.mergerfs"

// Multiplexer holds every collaborator a request handler needs. It is
// safe for concurrent use: the branch registry is immutable, the config
// store and handle table have their own internal locking, and the
// multiplexer itself keeps no per-request state.
type Multiplexer struct {
	Branches *branch.Registry
	Config   *config.Store
	Handles  *handle.Table
	Prober   space.Prober
	Exists   policy.ExistenceChecker
}

// New builds a Multiplexer wired to the live filesystem (os.Lstat-backed
// existence checks, statfs(2)-backed free-space probing).
func New(branches *branch.Registry, cfg *config.Store) *Multiplexer {
	return &Multiplexer{
		Branches: branches,
		Config:   cfg,
		Handles:  handle.NewTable(),
		Prober:   space.Statfs{},
		Exists:   resolver.LstatExistence{},
	}
}

func (m *Multiplexer) engine() *policy.Engine {
	return &policy.Engine{Prober: m.Prober, Exists: m.Exists, MinFreeSpace: policy.MinFreeSpaceReserve}
}

// IsControlFile reports whether unifiedPath addresses the virtual
// runtime-configuration entry, which Lookup and the attribute and xattr
// operations special-case before touching any branch (spec.md §4.H).
func IsControlFile(unifiedPath string) bool { return unifiedPath == ControlFilePath }

// searchPolicy/createPolicy/actionPolicy fetch the currently configured
// named policy from the live config snapshot. A lookup failure (name
// unset to something unregistered — should not happen once the control
// file validates on setxattr, but defense in depth) falls back to the
// mergerfs-documented default for that category.
func (m *Multiplexer) searchPolicy() policy.SearchPolicy {
	rec := m.Config.Get()
	p, err := policy.GetSearch(rec.SearchPolicy)
	if err != nil {
		p, _ = policy.GetSearch("ff")
	}
	return p
}

func (m *Multiplexer) createPolicy() policy.CreatePolicy {
	rec := m.Config.Get()
	p, err := policy.GetCreate(rec.CreatePolicy)
	if err != nil {
		p, _ = policy.GetCreate("epmfs")
	}
	return p
}

func (m *Multiplexer) actionPolicy() policy.ActionPolicy {
	rec := m.Config.Get()
	p, err := policy.GetAction(rec.ActionPolicy)
	if err != nil {
		p, _ = policy.GetAction("epall")
	}
	return p
}

// Errno translates a Go error from a backing syscall into the errno the
// kernel protocol binding should report. Wrapped errors (os.PathError,
// os.LinkError, multierr.BranchError, %w chains) are unwrapped to the
// syscall.Errno they carry; anything else maps to EIO, matching rclone's
// fallback of turning unrecognized errors into a generic failure rather
// than panicking the request.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	if policy.IsNoExistingPath(err) {
		return syscall.ENOENT
	}
	if policy.IsNoCandidates(err) {
		return syscall.ENOSPC
	}
	logging.Debugf("mux: unrecognized error mapped to EIO: %v", err)
	return syscall.EIO
}

// Stat describes the merged attributes the multiplexer hands back for a
// lookup/getattr, with the backing inode already translated by E.
type Stat struct {
	BranchIndex int
	Ino         uint64
	Size        int64
	Mode        os.FileMode
	Uid, Gid    uint32
	Atime, Mtime, Ctime int64 // seconds
	Nlink       uint32
}

// Lookup implements spec.md §4.G "Lookup / getattr": search policy →
// first existing → stat → translate inode via E. The control file is
// reported as a zero-size read-only regular file held by no branch.
func (m *Multiplexer) Lookup(unifiedPath string) (Stat, error) {
	if IsControlFile(unifiedPath) {
		return Stat{Mode: 0o444, Nlink: 1}, nil
	}
	sp := m.searchPolicy()
	bs, err := sp.Search(m.engine(), m.Branches.All(), unifiedPath)
	if err != nil {
		return Stat{}, err
	}
	b := bs[0]
	fi, err := os.Lstat(b.FullPath(unifiedPath))
	if err != nil {
		return Stat{}, err
	}
	return m.statFromFileInfo(b, unifiedPath, fi), nil
}

func (m *Multiplexer) statFromFileInfo(b branch.Branch, unifiedPath string, fi os.FileInfo) Stat {
	st := Stat{BranchIndex: b.Index, Size: fi.Size(), Mode: fi.Mode()}
	var backingIno uint64
	if sys, ok := fi.Sys().(*syscall.Stat_t); ok {
		backingIno = sys.Ino
		st.Uid, st.Gid = sys.Uid, sys.Gid
		st.Nlink = uint32(sys.Nlink)
		st.Atime = sys.Atim.Sec
		st.Ctime = sys.Ctim.Sec
	}
	st.Mtime = fi.ModTime().Unix()
	rec := m.Config.Get()
	st.Ino = inodecalc.Calculate(rec.InodeCalc, inodecalc.Input{
		BranchIndex: b.Index,
		BackingIno:  backingIno,
		UnifiedPath: unifiedPath,
		IsDir:       fi.IsDir(),
	})
	return st
}

// Access implements spec.md §4.G "Access": effective permissions are
// computed against the first branch the search policy locates.
func (m *Multiplexer) Access(unifiedPath string, mode uint32) error {
	sp := m.searchPolicy()
	bs, err := sp.Search(m.engine(), m.Branches.All(), unifiedPath)
	if err != nil {
		return err
	}
	return unixAccess(bs[0].FullPath(unifiedPath), mode)
}
