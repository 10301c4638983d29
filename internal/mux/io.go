package mux

import (
	"io"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mergerfs-go/mergerfs/internal/branch"
	"github.com/mergerfs-go/mergerfs/internal/handle"
	"github.com/mergerfs-go/mergerfs/internal/logging"
	"github.com/mergerfs-go/mergerfs/internal/policy"
)

// Read implements spec.md §4.G "Read": handle table lookup → backing
// pread on the handle's fd → reply.
func (m *Multiplexer) Read(handleID uint64, buf []byte, offset int64) (int, error) {
	h, ok := m.Handles.Get(handleID)
	if !ok {
		return 0, syscall.EBADF
	}
	n, err := syscall.Pread(h.ActiveFd(), buf, offset)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Write implements spec.md §4.G "Write": handle table lookup → backing
// pwrite → on ENOSPC/EDQUOT with moveonenospc enabled, run the ENOSPC
// migration protocol and retry once; otherwise surface the error
// unchanged. Successful short writes are surfaced unchanged.
func (m *Multiplexer) Write(handleID uint64, data []byte, offset int64) (int, error) {
	h, ok := m.Handles.Get(handleID)
	if !ok {
		return 0, syscall.EBADF
	}

	n, err := syscall.Pwrite(h.ActiveFd(), data, offset)
	if err == nil {
		return n, nil
	}
	if err != syscall.ENOSPC && err != syscall.EDQUOT {
		return 0, err
	}

	rec := m.Config.Get()
	if !rec.MoveOnENOSPC.Enabled {
		return 0, err
	}

	migrateErr := m.migrateOnENOSPC(h, rec.MoveOnENOSPC.CreatePolicy)
	if migrateErr != nil {
		logging.Debugf("mux: enospc migration failed for handle %d: %v", handleID, migrateErr)
		return 0, err
	}

	n, retryErr := syscall.Pwrite(h.ActiveFd(), data, offset)
	if retryErr != nil {
		return 0, retryErr
	}
	return n, nil
}

// migrateOnENOSPC implements spec.md §4.G's ENOSPC migration protocol:
// copy the handle's backing file to a new branch chosen by
// createPolicyName (excluding the originating branch), preserving
// content, mode, owner, timestamps and xattrs; atomically swap the
// handle's fd; unlink the original. Concurrent readers keep using the
// old fd (via h.ActiveFd()) until the swap, at which point they observe
// the new one — no lock is held across the copy itself.
func (m *Multiplexer) migrateOnENOSPC(h *handle.Handle, createPolicyName string) error {
	cp, err := policy.GetCreate(createPolicyName)
	if err != nil {
		return err
	}

	origBranch, ok := m.Branches.At(h.BranchIndex)
	if !ok {
		return syscall.EINVAL
	}

	var candidates []branch.Branch
	for _, b := range m.Branches.All() {
		if b.Index != origBranch.Index {
			candidates = append(candidates, b)
		}
	}
	picked, err := cp.Create(m.engine(), candidates, h.Path)
	if err != nil {
		return err
	}
	destBranch := picked[0]

	destPath := destBranch.FullPath(h.Path)
	if err := mkdirAllParent(destPath); err != nil {
		return err
	}

	srcFi, err := os.Fstat(h.ActiveFd())
	if err != nil {
		return err
	}

	destFd, err := syscall.Open(destPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, uint32(srcFi.Mode().Perm()))
	if err != nil {
		return err
	}

	if err := copyFdContents(h.ActiveFd(), destFd); err != nil {
		syscall.Close(destFd)
		return err
	}
	atime := srcFi.ModTime()
	if st, ok := srcFi.Sys().(*syscall.Stat_t); ok {
		_ = syscall.Fchown(destFd, int(st.Uid), int(st.Gid))
		atime = time.Unix(int64(st.Atim.Sec), int64(st.Atim.Nsec))
	}
	_ = syscall.Fchmod(destFd, uint32(srcFi.Mode().Perm()))
	copyXattrs(origBranch.FullPath(h.Path), destPath)
	_ = os.Chtimes(destPath, atime, srcFi.ModTime())

	oldFd := h.Migrate(destFd, destBranch.Index)
	syscall.Close(oldFd)
	_ = os.Remove(origBranch.FullPath(h.Path))
	return nil
}

func copyFdContents(srcFd, dstFd int) error {
	if _, err := syscall.Seek(srcFd, 0, io.SeekStart); err != nil {
		return err
	}
	src := os.NewFile(uintptr(srcFd), "enospc-src")
	dst := os.NewFile(uintptr(dstFd), "enospc-dst")
	_, err := io.Copy(dst, src)
	return err
}

func mkdirAllParent(fullPath string) error {
	dir := fullPath[:lastSlash(fullPath)]
	if dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return 0
}

func copyXattrs(srcPath, dstPath string) {
	size, err := unix.Listxattr(srcPath, nil)
	if err != nil || size <= 0 {
		return
	}
	buf := make([]byte, size)
	n, err := unix.Listxattr(srcPath, buf)
	if err != nil {
		return
	}
	for _, name := range splitXattrNames(buf[:n]) {
		vsz, err := unix.Getxattr(srcPath, name, nil)
		if err != nil || vsz <= 0 {
			continue
		}
		val := make([]byte, vsz)
		vn, err := unix.Getxattr(srcPath, name, val)
		if err != nil {
			continue
		}
		_ = unix.Setxattr(dstPath, name, val[:vn], 0)
	}
}

func splitXattrNames(buf []byte) []string {
	var out []string
	start := 0
	for i, b := range buf {
		if b == 0 {
			if i > start {
				out = append(out, string(buf[start:i]))
			}
			start = i + 1
		}
	}
	return out
}

// Release implements the release half of open/create: drop the handle
// and close its backing fd.
func (m *Multiplexer) Release(handleID uint64) error {
	h, ok := m.Handles.Remove(handleID)
	if !ok {
		return syscall.EBADF
	}
	return syscall.Close(h.ActiveFd())
}

// Fallocate implements spec.md §4.G "Fallocate": handle table lookup →
// backing fallocate with the requested mode/offset/length.
func (m *Multiplexer) Fallocate(handleID uint64, mode uint32, offset, length int64) error {
	h, ok := m.Handles.Get(handleID)
	if !ok {
		return syscall.EBADF
	}
	return unix.Fallocate(h.ActiveFd(), mode, offset, length)
}

// Flush fsyncs the backing fd on every flush, whatever cache.files is
// set to — matching rclone's own preference for correctness over
// performance in ambiguous cases.
func (m *Multiplexer) Flush(handleID uint64) error {
	h, ok := m.Handles.Get(handleID)
	if !ok {
		return syscall.EBADF
	}
	return syscall.Fsync(h.ActiveFd())
}
