package mux

import (
	"os"
	"syscall"

	"github.com/mergerfs-go/mergerfs/internal/handle"
	"github.com/mergerfs-go/mergerfs/internal/resolver"
)

// Create implements spec.md §4.G "Create / mknod": create policy →
// single branch → clone parents on that branch if missing → backing
// create → register handle → reply with the new synthetic inode.
func (m *Multiplexer) Create(unifiedPath string, flags int, mode os.FileMode) (*handle.Handle, Stat, error) {
	return m.createFile(unifiedPath, flags|os.O_CREATE, mode)
}

func (m *Multiplexer) createFile(unifiedPath string, flags int, mode os.FileMode) (*handle.Handle, Stat, error) {
	cp := m.createPolicy()
	bs, err := cp.Create(m.engine(), m.Branches.All(), unifiedPath)
	if err != nil {
		return nil, Stat{}, err
	}
	target := bs[0]

	if err := resolver.CloneParents(target, m.Branches.All(), unifiedPath); err != nil {
		return nil, Stat{}, err
	}

	fullPath := target.FullPath(unifiedPath)
	fd, err := syscall.Open(fullPath, flags, uint32(mode.Perm()))
	if err != nil {
		return nil, Stat{}, err
	}

	fi, err := os.Lstat(fullPath)
	if err != nil {
		syscall.Close(fd)
		return nil, Stat{}, err
	}
	st := m.statFromFileInfo(target, unifiedPath, fi)
	h := m.Handles.Insert(fd, target.Index, unifiedPath, flags)
	return h, st, nil
}

// Mkdir implements spec.md §4.G "Mkdir": create policy → one branch →
// clone parents → backing mkdir.
func (m *Multiplexer) Mkdir(unifiedPath string, mode os.FileMode) (Stat, error) {
	cp := m.createPolicy()
	bs, err := cp.Create(m.engine(), m.Branches.All(), unifiedPath)
	if err != nil {
		return Stat{}, err
	}
	target := bs[0]
	if err := resolver.CloneParents(target, m.Branches.All(), unifiedPath); err != nil {
		return Stat{}, err
	}
	fullPath := target.FullPath(unifiedPath)
	if err := os.Mkdir(fullPath, mode.Perm()); err != nil {
		return Stat{}, err
	}
	fi, err := os.Lstat(fullPath)
	if err != nil {
		return Stat{}, err
	}
	return m.statFromFileInfo(target, unifiedPath, fi), nil
}

// Symlink implements spec.md §4.G "Symlink": create policy → one branch
// → clone parents → backing symlink with the literal, never-resolved
// target string.
func (m *Multiplexer) Symlink(unifiedPath, linkTarget string) (Stat, error) {
	cp := m.createPolicy()
	bs, err := cp.Create(m.engine(), m.Branches.All(), unifiedPath)
	if err != nil {
		return Stat{}, err
	}
	target := bs[0]
	if err := resolver.CloneParents(target, m.Branches.All(), unifiedPath); err != nil {
		return Stat{}, err
	}
	fullPath := target.FullPath(unifiedPath)
	if err := os.Symlink(linkTarget, fullPath); err != nil {
		return Stat{}, err
	}
	fi, err := os.Lstat(fullPath)
	if err != nil {
		return Stat{}, err
	}
	return m.statFromFileInfo(target, unifiedPath, fi), nil
}

// Open implements spec.md §4.G "Open": if O_CREAT|O_EXCL, behave as
// create. Otherwise search policy → first existing → backing open →
// register handle.
func (m *Multiplexer) Open(unifiedPath string, flags int) (*handle.Handle, Stat, error) {
	if flags&os.O_CREATE != 0 && flags&os.O_EXCL != 0 {
		return m.createFile(unifiedPath, flags, 0o644)
	}

	sp := m.searchPolicy()
	bs, err := sp.Search(m.engine(), m.Branches.All(), unifiedPath)
	if err != nil {
		if flags&os.O_CREATE != 0 {
			return m.createFile(unifiedPath, flags, 0o644)
		}
		return nil, Stat{}, err
	}
	b := bs[0]
	fullPath := b.FullPath(unifiedPath)
	fd, err := syscall.Open(fullPath, flags, 0)
	if err != nil {
		return nil, Stat{}, err
	}
	fi, err := os.Lstat(fullPath)
	if err != nil {
		syscall.Close(fd)
		return nil, Stat{}, err
	}
	st := m.statFromFileInfo(b, unifiedPath, fi)
	h := m.Handles.Insert(fd, b.Index, unifiedPath, flags)
	return h, st, nil
}
