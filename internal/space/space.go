// Package space implements the live free-space probe (§4.B). Unlike
// rclone's backend/union/upstream.Fs, which caches About() results for
// opt.CacheTime seconds, every call here issues a fresh statfs(2) —
// spec.md §9 is explicit that policy decisions must never be made
// against a stale snapshot.
package space

import (
	"golang.org/x/sys/unix"
)

// Snapshot is the per-branch tuple described in spec.md §3.
type Snapshot struct {
	BlocksTotal     uint64
	BlocksFree      uint64
	BlocksAvailable uint64
	BlockSize       uint64
	InodesTotal     uint64
	InodesFree      uint64
}

// UsedBytes returns (blocks_total - blocks_available) * block_size, the
// quantity the `lus` policy minimizes.
func (s Snapshot) UsedBytes() uint64 {
	return (s.BlocksTotal - s.BlocksAvailable) * s.BlockSize
}

// AvailableBytes returns blocks_available * block_size, the quantity the
// `mfs`/`lfs`/`pfrd` policies compare.
func (s Snapshot) AvailableBytes() uint64 {
	return s.BlocksAvailable * s.BlockSize
}

// Prober probes live free-space for a branch root path. It is an
// interface so the policy engine's tests can substitute a fake without
// touching the real filesystem.
type Prober interface {
	Probe(path string) (Snapshot, error)
}

// Statfs is the production Prober, backed by unix.Statfs.
type Statfs struct{}

// Probe issues a fresh statfs(2) against path and normalizes the result
// to bytes.
func (Statfs) Probe(path string) (Snapshot, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Snapshot{}, err
	}
	// Bsize on Linux is an int64 on some architectures; normalize to
	// uint64 the way every block-count field below already is.
	bsize := uint64(st.Bsize)
	return Snapshot{
		BlocksTotal:     st.Blocks,
		BlocksFree:      st.Bfree,
		BlocksAvailable: st.Bavail,
		BlockSize:       bsize,
		InodesTotal:     st.Files,
		InodesFree:      st.Ffree,
	}, nil
}
