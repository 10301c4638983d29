package mux

import (
	"syscall"

	"github.com/mergerfs-go/mergerfs/internal/branch"
)

// AggregateStatfs is the merged free-space reply spec.md §4.G "Statfs"
// describes.
type AggregateStatfs struct {
	BlocksTotal     uint64
	BlocksFree      uint64
	BlocksAvailable uint64
	BlockSize       uint64
	InodesTotal     uint64
	InodesFree      uint64
}

// Statfs implements spec.md §4.G "Statfs": enumerate branches,
// deduplicate by backing device identifier, aggregate, normalize to the
// smallest observed block size, honoring the configured RO/NC
// exclusion. The invariants blocks_free<=blocks_total,
// blocks_available<=blocks_free, inodes_free<=inodes_total are
// maintained by construction (this function only ever sums
// non-negative per-branch quantities that already satisfy them).
func (m *Multiplexer) Statfs() (AggregateStatfs, error) {
	rec := m.Config.Get()
	seenDevices := map[uint64]bool{}

	var agg AggregateStatfs
	var minBlockSize uint64

	for _, b := range m.Branches.All() {
		if rec.StatfsIgnoreBranch == "ro" && b.Mode == branch.RO {
			continue
		}
		if rec.StatfsIgnoreBranch == "nc" && b.Mode == branch.NC {
			continue
		}

		dev, err := deviceID(b.Path)
		if err != nil {
			continue
		}
		if seenDevices[dev] {
			continue
		}
		seenDevices[dev] = true

		snap, err := m.Prober.Probe(b.Path)
		if err != nil {
			continue
		}
		if minBlockSize == 0 || snap.BlockSize < minBlockSize {
			minBlockSize = snap.BlockSize
		}
		agg.BlocksTotal += snap.BlocksTotal * snap.BlockSize
		agg.BlocksFree += snap.BlocksFree * snap.BlockSize
		agg.BlocksAvailable += snap.BlocksAvailable * snap.BlockSize
		agg.InodesTotal += snap.InodesTotal
		agg.InodesFree += snap.InodesFree
	}

	if minBlockSize == 0 {
		return AggregateStatfs{}, syscall.EIO
	}
	agg.BlockSize = minBlockSize
	agg.BlocksTotal /= minBlockSize
	agg.BlocksFree /= minBlockSize
	agg.BlocksAvailable /= minBlockSize
	return agg, nil
}

func deviceID(path string) (uint64, error) {
	var st syscall.Stat_t
	if err := syscall.Stat(path, &st); err != nil {
		return 0, err
	}
	return uint64(st.Dev), nil
}
