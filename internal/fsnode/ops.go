package fsnode

import (
	"context"
	"os"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/mergerfs-go/mergerfs/internal/mux"
)

func (n *Node) newChildInode(ctx context.Context, st mux.Stat, out *fuse.EntryOut) *fs.Inode {
	applyAttr(&out.Attr, st)
	child := &Node{mux: n.mux}
	stable := fs.StableAttr{Mode: toStableMode(uint32(st.Mode)), Ino: st.Ino}
	return n.NewInode(ctx, child, stable)
}

// Create implements spec.md §4.G "Create".
func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	path := childPath(n.unifiedPath(), name)
	h, st, err := n.mux.Create(path, int(flags), os.FileMode(mode&0o7777))
	if err != nil {
		return nil, nil, 0, mux.Errno(err)
	}
	child := n.newChildInode(ctx, st, out)
	var fuseFlags uint32
	if n.mux.Config.Get().DirectIO {
		fuseFlags |= fuse.FOPEN_DIRECT_IO
	}
	return child, &fileHandle{m: n.mux, id: h.ID}, fuseFlags, 0
}

// Mkdir implements spec.md §4.G "Mkdir".
func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	path := childPath(n.unifiedPath(), name)
	st, err := n.mux.Mkdir(path, os.FileMode(mode&0o7777))
	if err != nil {
		return nil, mux.Errno(err)
	}
	return n.newChildInode(ctx, st, out), 0
}

// Unlink implements spec.md §4.G "Unlink".
func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	path := childPath(n.unifiedPath(), name)
	return mux.Errno(n.mux.Unlink(path))
}

// Rmdir implements spec.md §4.G "Rmdir".
func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	path := childPath(n.unifiedPath(), name)
	return mux.Errno(n.mux.Rmdir(path))
}

// Rename implements spec.md §4.I: the newParent embedder is always a
// *Node in this tree (the only InodeEmbedder fsnode ever constructs), so
// its unifiedPath is used directly rather than threading branch
// information through the kernel's Inode graph.
func (n *Node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	src := childPath(n.unifiedPath(), name)
	destNode, ok := newParent.(*Node)
	if !ok {
		return syscall.EINVAL
	}
	dst := childPath(destNode.unifiedPath(), newName)
	return mux.Errno(n.mux.Rename(src, dst))
}

// Link implements spec.md §4.G "Link".
func (n *Node) Link(ctx context.Context, target fs.InodeEmbedder, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	srcNode, ok := target.(*Node)
	if !ok {
		return nil, syscall.EINVAL
	}
	dst := childPath(n.unifiedPath(), name)
	st, err := n.mux.Link(srcNode.unifiedPath(), dst)
	if err != nil {
		return nil, mux.Errno(err)
	}
	return n.newChildInode(ctx, st, out), 0
}

// Symlink implements spec.md §4.G "Symlink".
func (n *Node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	path := childPath(n.unifiedPath(), name)
	st, err := n.mux.Symlink(path, target)
	if err != nil {
		return nil, mux.Errno(err)
	}
	return n.newChildInode(ctx, st, out), 0
}

// Readlink implements spec.md §4.G "Readlink".
func (n *Node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	target, err := n.mux.Readlink(n.unifiedPath())
	if err != nil {
		return nil, mux.Errno(err)
	}
	return []byte(target), 0
}

// Open implements spec.md §4.G "Open".
func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	h, _, err := n.mux.Open(n.unifiedPath(), int(flags))
	if err != nil {
		return nil, 0, mux.Errno(err)
	}
	var fuseFlags uint32
	if n.mux.Config.Get().DirectIO {
		fuseFlags |= fuse.FOPEN_DIRECT_IO
	}
	return &fileHandle{m: n.mux, id: h.ID}, fuseFlags, 0
}

// Opendir implements spec.md §4.G "Opendir": a permission sanity check
// only, the actual listing happens in Readdir.
func (n *Node) Opendir(ctx context.Context) syscall.Errno {
	dh, err := n.mux.Opendir(n.unifiedPath())
	if err != nil {
		return mux.Errno(err)
	}
	dh.Releasedir()
	return 0
}

// Readdir implements spec.md §4.G "Readdir / releasedir".
func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	dh, err := n.mux.Opendir(n.unifiedPath())
	if err != nil {
		return nil, mux.Errno(err)
	}
	entries, err := dh.Readdir()
	if err != nil {
		dh.Releasedir()
		return nil, mux.Errno(err)
	}
	return &dirStream{dh: dh, entries: entries}, 0
}

// Getxattr implements spec.md §4.G "getxattr" / §4.H control-file reads.
func (n *Node) Getxattr(ctx context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	v, err := n.mux.Getxattr(n.unifiedPath(), attr)
	if err != nil {
		return 0, mux.Errno(err)
	}
	if len(dest) < len(v) {
		return uint32(len(v)), syscall.ERANGE
	}
	return uint32(copy(dest, v)), 0
}

// Setxattr implements spec.md §4.G "setxattr" / §4.H control-file writes.
func (n *Node) Setxattr(ctx context.Context, attr string, data []byte, flags uint32) syscall.Errno {
	return mux.Errno(n.mux.Setxattr(n.unifiedPath(), attr, data))
}

// Removexattr implements spec.md §4.G "removexattr".
func (n *Node) Removexattr(ctx context.Context, attr string) syscall.Errno {
	return mux.Errno(n.mux.Removexattr(n.unifiedPath(), attr))
}

// Listxattr implements spec.md §4.G "listxattr" / §4.H's key enumeration.
func (n *Node) Listxattr(ctx context.Context, dest []byte) (uint32, syscall.Errno) {
	names, err := n.mux.Listxattr(n.unifiedPath())
	if err != nil {
		return 0, mux.Errno(err)
	}
	var total int
	for _, name := range names {
		total += len(name) + 1
	}
	if len(dest) < total {
		return uint32(total), syscall.ERANGE
	}
	off := 0
	for _, name := range names {
		off += copy(dest[off:], name)
		dest[off] = 0
		off++
	}
	return uint32(total), 0
}

// Access implements spec.md §4.G "Access".
func (n *Node) Access(ctx context.Context, mask uint32) syscall.Errno {
	return mux.Errno(n.mux.Access(n.unifiedPath(), mask))
}

// Statfs implements spec.md §4.G "Statfs": the aggregated, deduplicated,
// block-size-normalized union of every contributing branch.
func (n *Node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	agg, err := n.mux.Statfs()
	if err != nil {
		return mux.Errno(err)
	}
	out.Blocks = agg.BlocksTotal
	out.Bfree = agg.BlocksFree
	out.Bavail = agg.BlocksAvailable
	out.Bsize = uint32(agg.BlockSize)
	out.Files = agg.InodesTotal
	out.Ffree = agg.InodesFree
	return 0
}
