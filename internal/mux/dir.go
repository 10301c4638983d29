package mux

import (
	"io"
	"os"
	"syscall"

	"github.com/mergerfs-go/mergerfs/internal/policy"
)

// DirEntry is one deduplicated child name in a merged directory listing.
type DirEntry struct {
	Name  string
	IsDir bool
}

// DirHandle is the lazily-enumerated union of children across every
// branch where a directory exists (spec.md §4.G "Opendir / readdir /
// releasedir"). It holds one backing *os.File per contributing branch
// so Fsyncdir can fsync each.
type DirHandle struct {
	UnifiedPath string
	dirs        []*os.File
}

// Opendir implements spec.md §4.G "Opendir": search policy's "all"
// variant underneath (every branch where the directory exists, not just
// the first) regardless of the configured search policy, since a
// directory listing must merge every branch's contribution — the
// control-file-style narrowing the plain search policy performs for
// file lookups does not apply here.
func (m *Multiplexer) Opendir(unifiedPath string) (*DirHandle, error) {
	all, err := policy.GetSearch("all")
	if err != nil {
		return nil, err
	}
	bs, err := all.Search(m.engine(), m.Branches.All(), unifiedPath)
	if err != nil {
		return nil, err
	}
	dh := &DirHandle{UnifiedPath: unifiedPath}
	for _, b := range bs {
		f, err := os.Open(b.FullPath(unifiedPath))
		if err != nil {
			continue
		}
		dh.dirs = append(dh.dirs, f)
	}
	if len(dh.dirs) == 0 {
		return nil, syscall.ENOENT
	}
	return dh, nil
}

// Readdir enumerates the deduplicated union of children across every
// backing directory fd the handle holds. Ordering is not guaranteed, as
// spec.md §4.G allows.
func (dh *DirHandle) Readdir() ([]DirEntry, error) {
	seen := map[string]bool{}
	var out []DirEntry
	for _, f := range dh.dirs {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			continue
		}
		entries, err := f.ReadDir(-1)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if seen[e.Name()] {
				continue
			}
			seen[e.Name()] = true
			out = append(out, DirEntry{Name: e.Name(), IsDir: e.IsDir()})
		}
	}
	return out, nil
}

// Fsyncdir implements spec.md §4.G "Fsyncdir": fsyncs every backing
// directory fd the handle holds.
func (dh *DirHandle) Fsyncdir() error {
	var firstErr error
	for _, f := range dh.dirs {
		if err := f.Sync(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Releasedir frees the directory handle's backing descriptors.
func (dh *DirHandle) Releasedir() error {
	var firstErr error
	for _, f := range dh.dirs {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
