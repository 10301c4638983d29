package fsnode

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/mergerfs-go/mergerfs/internal/mux"
)

// fileHandle is the FileHandle the kernel keeps a reference to for the
// lifetime of an open file descriptor; it carries nothing but the
// multiplexer handle ID, every read/write/release/fallocate/flush being
// a thin call into internal/mux using that ID.
type fileHandle struct {
	m  *mux.Multiplexer
	id uint64
}

var (
	_ fs.FileHandle    = (*fileHandle)(nil)
	_ fs.FileReader    = (*fileHandle)(nil)
	_ fs.FileWriter    = (*fileHandle)(nil)
	_ fs.FileFlusher   = (*fileHandle)(nil)
	_ fs.FileReleaser  = (*fileHandle)(nil)
	_ fs.FileGetattrer = (*fileHandle)(nil)
	_ fs.FileAllocater = (*fileHandle)(nil)
)

func (fh *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := fh.m.Read(fh.id, dest, off)
	if err != nil {
		return nil, mux.Errno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (fh *fileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	n, err := fh.m.Write(fh.id, data, off)
	if err != nil {
		return 0, mux.Errno(err)
	}
	return uint32(n), 0
}

func (fh *fileHandle) Flush(ctx context.Context) syscall.Errno {
	if err := fh.m.Flush(fh.id); err != nil {
		return mux.Errno(err)
	}
	return 0
}

func (fh *fileHandle) Release(ctx context.Context) syscall.Errno {
	if err := fh.m.Release(fh.id); err != nil {
		return mux.Errno(err)
	}
	return 0
}

func (fh *fileHandle) Allocate(ctx context.Context, off uint64, size uint64, mode uint32) syscall.Errno {
	if err := fh.m.Fallocate(fh.id, mode, int64(off), int64(size)); err != nil {
		return mux.Errno(err)
	}
	return 0
}

func (fh *fileHandle) Getattr(ctx context.Context, out *fuse.AttrOut) syscall.Errno {
	h, ok := fh.m.Handles.Get(fh.id)
	if !ok {
		return syscall.EBADF
	}
	st, err := fh.m.Lookup(h.Path)
	if err != nil {
		return mux.Errno(err)
	}
	applyAttr(&out.Attr, st)
	return 0
}

// dirStream adapts mux.DirHandle's batch Readdir to go-fuse's
// HasNext/Next/Close streaming protocol by materializing the merged
// listing once and walking it with a cursor.
type dirStream struct {
	dh      *mux.DirHandle
	entries []mux.DirEntry
	pos     int
}

var _ fs.DirStream = (*dirStream)(nil)

func (ds *dirStream) HasNext() bool {
	return ds.pos < len(ds.entries)
}

func (ds *dirStream) Next() (fuse.DirEntry, syscall.Errno) {
	e := ds.entries[ds.pos]
	ds.pos++
	mode := uint32(syscall.S_IFREG)
	if e.IsDir {
		mode = syscall.S_IFDIR
	}
	return fuse.DirEntry{Name: e.Name, Mode: mode}, 0
}

func (ds *dirStream) Close() {
	ds.dh.Releasedir()
}
