// Package fsnode adapts the transport-agnostic multiplexer (internal/mux)
// to github.com/hanwen/go-fuse/v2's Inode-based fs package: the concrete
// kernel↔userspace protocol binding spec.md §1 explicitly places out of
// scope for the core, and the one dependency in the whole pack whose
// InodeEmbedder/Node*er interface set is broad enough to carry every
// operation §4.G names (xattr, statfs, rename, link, fallocate —
// jacobsa/fuse, used by the GoogleCloudPlatform-gcsfuse example, has
// none of these).
//
// Grounded on other_examples' go-fuse fs package reference (the
// InodeEmbedder/NodeLookuper/NodeCreater/... interface definitions) for
// exact method signatures, since the retrieval pack's copy of rclone's
// own go-fuse v2 mount path (cmd/mount2) was filtered down to test-only
// files. Every Node method is a thin translation: unpack the fuse.* args,
// call the corresponding internal/mux.Multiplexer method, repack the
// result or map the error via mux.Errno.
package fsnode

import (
	"context"
	"os"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/mergerfs-go/mergerfs/internal/mux"
)

// Node is the InodeEmbedder for every entry in the union namespace —
// directory, regular file, or symlink alike, the same way rclone's
// union.Directory/union.Object pair collapses into one fs.Fs-facing
// abstraction rather than one Go type per entry kind.
type Node struct {
	fs.Inode
	mux *mux.Multiplexer
}

// NewRoot builds the root Node for fs.NewNodeFS.
func NewRoot(m *mux.Multiplexer) *Node {
	return &Node{mux: m}
}

var (
	_ fs.InodeEmbedder  = (*Node)(nil)
	_ fs.NodeLookuper   = (*Node)(nil)
	_ fs.NodeGetattrer  = (*Node)(nil)
	_ fs.NodeSetattrer  = (*Node)(nil)
	_ fs.NodeCreater    = (*Node)(nil)
	_ fs.NodeMkdirer    = (*Node)(nil)
	_ fs.NodeUnlinker   = (*Node)(nil)
	_ fs.NodeRmdirer    = (*Node)(nil)
	_ fs.NodeRenamer    = (*Node)(nil)
	_ fs.NodeLinker     = (*Node)(nil)
	_ fs.NodeSymlinker  = (*Node)(nil)
	_ fs.NodeReadlinker = (*Node)(nil)
	_ fs.NodeOpener     = (*Node)(nil)
	_ fs.NodeOpendirer  = (*Node)(nil)
	_ fs.NodeReaddirer  = (*Node)(nil)
	_ fs.NodeGetxattrer = (*Node)(nil)
	_ fs.NodeSetxattrer = (*Node)(nil)
	_ fs.NodeListxattrer = (*Node)(nil)
	_ fs.NodeRemovexattrer = (*Node)(nil)
	_ fs.NodeAccesser   = (*Node)(nil)
	_ fs.NodeStatfser   = (*Node)(nil)
)

// unifiedPath returns n's location in the unified namespace, "/"-rooted,
// the form every internal/mux method expects.
func (n *Node) unifiedPath() string {
	p := n.Path(nil)
	if p == "" {
		return "/"
	}
	return "/" + p
}

func childPath(parent string, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

func toStableMode(mode uint32) uint32 {
	switch mode & syscall.S_IFMT {
	case syscall.S_IFDIR, syscall.S_IFREG, syscall.S_IFLNK:
		return mode & syscall.S_IFMT
	default:
		return syscall.S_IFREG
	}
}

func applyAttr(out *fuse.Attr, st mux.Stat) {
	out.Ino = st.Ino
	out.Size = uint64(st.Size)
	out.Mode = uint32(st.Mode)
	out.Uid = st.Uid
	out.Gid = st.Gid
	out.Nlink = st.Nlink
	if out.Nlink == 0 {
		out.Nlink = 1
	}
	out.Atime = uint64(st.Atime)
	out.Mtime = uint64(st.Mtime)
	out.Ctime = uint64(st.Ctime)
}

func (n *Node) statEntry(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	path := childPath(n.unifiedPath(), name)
	st, err := n.mux.Lookup(path)
	if err != nil {
		return nil, mux.Errno(err)
	}
	applyAttr(&out.Attr, st)
	child := &Node{mux: n.mux}
	stable := fs.StableAttr{Mode: toStableMode(uint32(st.Mode)), Ino: st.Ino}
	return n.NewInode(ctx, child, stable), 0
}

// Lookup implements spec.md §4.G "Lookup / getattr".
func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	return n.statEntry(ctx, name, out)
}

// Getattr re-stats the node live (spec.md §9: no caching beyond what the
// kernel itself performs) rather than trusting any previously cached
// attribute.
func (n *Node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	st, err := n.mux.Lookup(n.unifiedPath())
	if err != nil {
		return mux.Errno(err)
	}
	applyAttr(&out.Attr, st)
	return 0
}

// Setattr implements chmod/chown/utimens/truncate (spec.md §4.G),
// dispatching on whichever of SetAttrIn's optional fields the kernel
// actually set (mirrors the GetMode/GetUID/GetGID/GetATime/GetMTime/
// GetSize accessor pattern every go-fuse v2 Setattr implementation in
// the pack uses).
func (n *Node) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	path := n.unifiedPath()

	if mode, ok := in.GetMode(); ok {
		if err := n.mux.Chmod(path, os.FileMode(mode&0o7777)); err != nil {
			return mux.Errno(err)
		}
	}

	uid, uok := in.GetUID()
	gid, gok := in.GetGID()
	if uok || gok {
		chownUID, chownGID := -1, -1
		if uok {
			chownUID = int(uid)
		}
		if gok {
			chownGID = int(gid)
		}
		if err := n.mux.Chown(path, chownUID, chownGID); err != nil {
			return mux.Errno(err)
		}
	}

	if size, ok := in.GetSize(); ok {
		if err := n.mux.Truncate(path, int64(size)); err != nil {
			return mux.Errno(err)
		}
	}

	mtime, mok := in.GetMTime()
	atime, aok := in.GetATime()
	if mok || aok {
		if err := n.mux.Utimens(path, atime, mtime); err != nil {
			return mux.Errno(err)
		}
	}

	st, err := n.mux.Lookup(path)
	if err != nil {
		return mux.Errno(err)
	}
	applyAttr(&out.Attr, st)
	return 0
}
