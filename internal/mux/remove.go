package mux

import (
	"os"
	"syscall"

	"github.com/mergerfs-go/mergerfs/internal/multierr"
)

// Unlink implements spec.md §4.G "Unlink": action policy → every
// targeted branch → backing unlink on each. A branch reporting "not
// found" is silently skipped; any other per-branch error is remembered.
// Success on at least one branch means overall success; otherwise the
// first remembered error is returned.
func (m *Multiplexer) Unlink(unifiedPath string) error {
	ap := m.actionPolicy()
	bs, err := ap.Action(m.engine(), m.Branches.All(), unifiedPath)
	if err != nil {
		return err
	}

	var errs multierr.Errors
	succeeded := false
	for _, b := range bs {
		if err := os.Remove(b.FullPath(unifiedPath)); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			errs = append(errs, &multierr.BranchError{BranchPath: b.Path, Err: err})
			continue
		}
		succeeded = true
	}
	if succeeded {
		return nil
	}
	if first := errs.First(); first != nil {
		return first
	}
	return nil
}

// Rmdir implements spec.md §4.G "Rmdir": as unlink, but a non-empty
// instance on any targeted branch aborts the whole operation with
// ENOTEMPTY rather than partially removing.
func (m *Multiplexer) Rmdir(unifiedPath string) error {
	ap := m.actionPolicy()
	bs, err := ap.Action(m.engine(), m.Branches.All(), unifiedPath)
	if err != nil {
		return err
	}

	for _, b := range bs {
		entries, err := os.ReadDir(b.FullPath(unifiedPath))
		if err != nil {
			continue
		}
		if len(entries) > 0 {
			return syscall.ENOTEMPTY
		}
	}

	var errs multierr.Errors
	succeeded := false
	for _, b := range bs {
		if err := os.Remove(b.FullPath(unifiedPath)); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			errs = append(errs, &multierr.BranchError{BranchPath: b.Path, Err: err})
			continue
		}
		succeeded = true
	}
	if succeeded {
		return nil
	}
	if first := errs.First(); first != nil {
		return first
	}
	return nil
}
