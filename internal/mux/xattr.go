package mux

import (
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mergerfs-go/mergerfs/internal/controlfile"
	"github.com/mergerfs-go/mergerfs/internal/multierr"
)

// fanOutAction applies fn to every branch the action policy selects for
// unifiedPath, implementing spec.md §4.G's shared partial-failure rule:
// if any branch succeeds, the operation succeeds overall; the first
// per-branch error is returned only if none did.
func (m *Multiplexer) fanOutAction(unifiedPath string, fn func(fullPath string) error) error {
	ap := m.actionPolicy()
	bs, err := ap.Action(m.engine(), m.Branches.All(), unifiedPath)
	if err != nil {
		return err
	}
	var errs multierr.Errors
	succeeded := false
	for _, b := range bs {
		if err := fn(b.FullPath(unifiedPath)); err != nil {
			errs = append(errs, &multierr.BranchError{BranchPath: b.Path, Err: err})
			continue
		}
		succeeded = true
	}
	if succeeded {
		return nil
	}
	return errs.First()
}

// Chmod implements spec.md §4.G "Chmod": action policy fan-out, except
// on the virtual control file, which has no mode to change and is a
// silent no-op (it is never fanned out to any branch).
func (m *Multiplexer) Chmod(unifiedPath string, mode os.FileMode) error {
	if IsControlFile(unifiedPath) {
		return nil
	}
	return m.fanOutAction(unifiedPath, func(fullPath string) error {
		return os.Chmod(fullPath, mode)
	})
}

// Chown implements spec.md §4.G "Chown": action policy fan-out.
func (m *Multiplexer) Chown(unifiedPath string, uid, gid int) error {
	if IsControlFile(unifiedPath) {
		return nil
	}
	return m.fanOutAction(unifiedPath, func(fullPath string) error {
		return os.Lchown(fullPath, uid, gid)
	})
}

// Utimens implements spec.md §4.G "utimens": action policy fan-out.
func (m *Multiplexer) Utimens(unifiedPath string, atime, mtime time.Time) error {
	if IsControlFile(unifiedPath) {
		return nil
	}
	return m.fanOutAction(unifiedPath, func(fullPath string) error {
		return os.Chtimes(fullPath, atime, mtime)
	})
}

// Truncate implements spec.md §4.G "truncate": action policy fan-out.
func (m *Multiplexer) Truncate(unifiedPath string, size int64) error {
	if IsControlFile(unifiedPath) {
		return nil
	}
	return m.fanOutAction(unifiedPath, func(fullPath string) error {
		return os.Truncate(fullPath, size)
	})
}

// Setxattr implements spec.md §4.G "setxattr" / §4.H: on the control
// file, mutate the configuration record in-process and return; on a
// normal entry, action policy fan-out to the backing setxattr.
func (m *Multiplexer) Setxattr(unifiedPath, name string, value []byte) error {
	if IsControlFile(unifiedPath) {
		if err := controlfile.Set(m.Config, name, string(value)); err != nil {
			if _, ok := err.(*controlfile.ErrUnknownKey); ok {
				return syscall.ENODATA
			}
			if _, ok := err.(*controlfile.ErrReadOnlyKey); ok {
				return syscall.EROFS
			}
			return syscall.EINVAL
		}
		return nil
	}
	return m.fanOutAction(unifiedPath, func(fullPath string) error {
		return unix.Setxattr(fullPath, name, value, 0)
	})
}

// Removexattr implements spec.md §4.G "removexattr": action policy
// fan-out; not meaningful on the control file's synthetic keys, which
// cannot be removed (mergerfs does not allow unsetting the
// configuration surface, only overwriting it), so that case returns
// EROFS, matching the read-only-key behavior on setxattr.
func (m *Multiplexer) Removexattr(unifiedPath, name string) error {
	if IsControlFile(unifiedPath) {
		return syscall.EROFS
	}
	return m.fanOutAction(unifiedPath, func(fullPath string) error {
		return unix.Removexattr(fullPath, name)
	})
}

// Getxattr implements spec.md §4.G "getxattr": search policy → first
// existing → delegate to backing; virtual attributes on the control
// file are served from the configuration record without touching any
// branch.
func (m *Multiplexer) Getxattr(unifiedPath, name string) ([]byte, error) {
	if IsControlFile(unifiedPath) {
		v, err := controlfile.Get(m.Config, name)
		if err != nil {
			return nil, syscall.ENODATA
		}
		return []byte(v), nil
	}
	sp := m.searchPolicy()
	bs, err := sp.Search(m.engine(), m.Branches.All(), unifiedPath)
	if err != nil {
		return nil, err
	}
	size, err := unix.Getxattr(bs[0].FullPath(unifiedPath), name, nil)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	n, err := unix.Getxattr(bs[0].FullPath(unifiedPath), name, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Listxattr implements spec.md §4.G "listxattr", with the control
// file's recognized key set reported instead of a real xattr listing.
func (m *Multiplexer) Listxattr(unifiedPath string) ([]string, error) {
	if IsControlFile(unifiedPath) {
		return controlfile.Keys(), nil
	}
	sp := m.searchPolicy()
	bs, err := sp.Search(m.engine(), m.Branches.All(), unifiedPath)
	if err != nil {
		return nil, err
	}
	size, err := unix.Listxattr(bs[0].FullPath(unifiedPath), nil)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	n, err := unix.Listxattr(bs[0].FullPath(unifiedPath), buf)
	if err != nil {
		return nil, err
	}
	return splitXattrNames(buf[:n]), nil
}
