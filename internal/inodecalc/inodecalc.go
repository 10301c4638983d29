// Package inodecalc implements the synthetic inode calculator (spec.md
// §4.E): a pure function from (mode, branch index, backing inode, unified
// path, is-directory) to a 64-bit identifier reported to the kernel.
//
// Grounded on rclone's use of content hashing for dedup
// (rclone vendors cespare/xxhash/v2 for exactly this — a fast,
// well-distributed, non-cryptographic 64-bit hash); spec.md §9 leaves the
// exact hash function unspecified beyond that requirement, so rclone's
// own choice of hash library is reused here rather than introducing a
// new dependency the pack never shows.
package inodecalc

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Mode selects one of the seven calculation strategies of spec.md §4.E.
type Mode int

const (
	Passthrough Mode = iota
	PathHash
	PathHash32
	DevinoHash
	DevinoHash32
	HybridHash // default
	HybridHash32
)

// String renders the mode the way it is read back through
// user.mergerfs.inodecalc.
func (m Mode) String() string {
	switch m {
	case Passthrough:
		return "passthrough"
	case PathHash:
		return "path-hash"
	case PathHash32:
		return "path-hash32"
	case DevinoHash:
		return "devino-hash"
	case DevinoHash32:
		return "devino-hash32"
	case HybridHash:
		return "hybrid-hash"
	case HybridHash32:
		return "hybrid-hash32"
	default:
		return "unknown"
	}
}

// ParseMode parses one of the seven mode names, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "passthrough":
		return Passthrough, nil
	case "path-hash":
		return PathHash, nil
	case "path-hash32":
		return PathHash32, nil
	case "devino-hash":
		return DevinoHash, nil
	case "devino-hash32":
		return DevinoHash32, nil
	case "hybrid-hash":
		return HybridHash, nil
	case "hybrid-hash32":
		return HybridHash32, nil
	default:
		return HybridHash, fmt.Errorf("inodecalc: unknown mode %q", s)
	}
}

// Input is the tuple the calculator is a pure function of.
type Input struct {
	BranchIndex int
	BackingIno  uint64
	UnifiedPath string
	IsDir       bool
}

// Calculate computes the synthetic inode for in under mode. Identical
// (mode, Input) always yields an identical result — spec.md §4.E's
// purity invariant — so Calculate takes no hidden state beyond mode
// itself, which the caller re-reads from configuration on every call.
func Calculate(mode Mode, in Input) uint64 {
	switch mode {
	case Passthrough:
		return in.BackingIno
	case PathHash:
		return hash64(in.UnifiedPath)
	case PathHash32:
		return uint64(hash32(in.UnifiedPath))
	case DevinoHash:
		return hashDevIno(in.BranchIndex, in.BackingIno)
	case DevinoHash32:
		return uint64(uint32(hashDevIno(in.BranchIndex, in.BackingIno)))
	case HybridHash:
		if in.IsDir {
			return hash64(in.UnifiedPath)
		}
		return hashDevIno(in.BranchIndex, in.BackingIno)
	case HybridHash32:
		if in.IsDir {
			return uint64(hash32(in.UnifiedPath))
		}
		return uint64(uint32(hashDevIno(in.BranchIndex, in.BackingIno)))
	default:
		return in.BackingIno
	}
}

func hash64(s string) uint64 {
	return xxhash.Sum64String(s)
}

// hash32 truncates the 64-bit digest to 32 bits by xor-folding the two
// halves, rather than simple truncation, so both halves of the digest
// contribute to collision resistance in the 32-bit space.
func hash32(s string) uint32 {
	sum := xxhash.Sum64String(s)
	return uint32(sum) ^ uint32(sum>>32)
}

func hashDevIno(branchIndex int, ino uint64) uint64 {
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(branchIndex))
	binary.LittleEndian.PutUint64(buf[4:12], ino)
	return xxhash.Sum64(buf[:])
}
