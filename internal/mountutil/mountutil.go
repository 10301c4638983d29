// Package mountutil wires internal/fsnode's InodeEmbedder root to
// go-fuse's kernel mount entry point, the same "build a config record,
// log, mount, return a joinable handle" shape as
// GoogleCloudPlatform-gcsfuse's cmd/mount.go mountWithArgs/mountWithConn,
// adapted from fuse.MountConfig/fuse.Mount (jacobsa/fuse) to
// fs.Options/fs.Mount (hanwen/go-fuse/v2), the dependency SPEC_FULL.md
// §0 picked for its full Node*er interface surface.
package mountutil

import (
	"fmt"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/mergerfs-go/mergerfs/internal/fsnode"
	"github.com/mergerfs-go/mergerfs/internal/logging"
	"github.com/mergerfs-go/mergerfs/internal/mux"
)

// Options governs the mount itself, distinct from mux's runtime
// configuration record (spec.md §4.H): these are kernel/session-level
// settings fixed for the lifetime of the mount rather than live-tunable
// through the control file.
type Options struct {
	AllowOther bool
	Debug      bool
	FsName     string
}

// Server is a joinable handle to a live mount, mirroring
// GoogleCloudPlatform-gcsfuse's *fuse.MountedFileSystem role.
type Server struct {
	srv *fuse.Server
}

// Mount attaches m's union namespace at mountPoint and returns once the
// kernel handshake has completed; the returned Server's Wait blocks
// until the filesystem is unmounted.
func Mount(mountPoint string, m *mux.Multiplexer, opts Options) (*Server, error) {
	root := fsnode.NewRoot(m)

	entryTimeout := time.Duration(0)
	attrTimeout := time.Duration(0)

	fsOpts := &fs.Options{
		EntryTimeout: &entryTimeout,
		AttrTimeout:  &attrTimeout,
		MountOptions: fuse.MountOptions{
			AllowOther: opts.AllowOther,
			Debug:      opts.Debug,
			FsName:     opts.FsName,
			Name:       "mergerfs",
		},
	}

	logging.Infof("mountutil: mounting %s at %s", opts.FsName, mountPoint)
	srv, err := fs.Mount(mountPoint, root, fsOpts)
	if err != nil {
		return nil, fmt.Errorf("mountutil: mount %s: %w", mountPoint, err)
	}
	return &Server{srv: srv}, nil
}

// Wait blocks until the filesystem is unmounted, either by the kernel
// (fusermount -u) or by an explicit Unmount call.
func (s *Server) Wait() { s.srv.Wait() }

// Unmount requests the kernel tear down the mount.
func (s *Server) Unmount() error { return s.srv.Unmount() }
