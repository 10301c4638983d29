// Package config implements the single in-process runtime configuration
// record described in spec.md §3/§4.H/§9: the active create/search/action
// policy names, the ENOSPC move policy, cache-files mode, inode-calc
// mode, and a handful of scalar flags, guarded by a reader-writer
// discipline with atomic swap.
//
// New relative to rclone: rclone's union.Fs (backend/union/union.go)
// picks its three policies once in NewFs and never again — there is no
// live-mutation surface. spec.md §4.H requires one, so this package is
// original, built in rclone's general idiom of a small struct
// guarded by a sync.RWMutex (the same discipline rclone's own cache
// backend and vfs layer use elsewhere in the pack for similar "read-
// mostly, rarely-written" records).
package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mergerfs-go/mergerfs/internal/inodecalc"
)

// CacheFilesMode is the `user.mergerfs.cache.files` surface (spec.md
// §4.H). The values are recognized and round-tripped through the control
// file; nothing else reads the field, so it sets no open flags. The
// filesystem itself performs no content caching beyond what the kernel
// page cache already does on behalf of any FUSE filesystem (Non-goals,
// §1/§13 of SPEC_FULL.md).
type CacheFilesMode int

const (
	CacheLibfuse CacheFilesMode = iota
	CacheOff
	CachePartial
	CacheFull
	CacheAutoFull
	CachePerProcess
)

func (m CacheFilesMode) String() string {
	switch m {
	case CacheLibfuse:
		return "libfuse"
	case CacheOff:
		return "off"
	case CachePartial:
		return "partial"
	case CacheFull:
		return "full"
	case CacheAutoFull:
		return "auto-full"
	case CachePerProcess:
		return "per-process"
	default:
		return "unknown"
	}
}

func ParseCacheFilesMode(s string) (CacheFilesMode, error) {
	switch strings.ToLower(s) {
	case "libfuse":
		return CacheLibfuse, nil
	case "off":
		return CacheOff, nil
	case "partial":
		return CachePartial, nil
	case "full":
		return CacheFull, nil
	case "auto-full":
		return CacheAutoFull, nil
	case "per-process":
		return CachePerProcess, nil
	default:
		return CacheLibfuse, fmt.Errorf("config: unknown cache.files mode %q", s)
	}
}

// MoveOnENOSPC holds the ENOSPC migration policy: either disabled, or a
// create-policy name ("ff", "mfs", "lfs", "lus", "rand", "pfrd") used to
// pick the destination branch for the migration copy (spec.md §4.H).
type MoveOnENOSPC struct {
	Enabled      bool
	CreatePolicy string
}

func ParseMoveOnENOSPC(s string) (MoveOnENOSPC, error) {
	switch strings.ToLower(s) {
	case "false", "0", "no", "off":
		return MoveOnENOSPC{Enabled: false}, nil
	case "true", "1", "yes", "on", "pfrd":
		return MoveOnENOSPC{Enabled: true, CreatePolicy: "pfrd"}, nil
	case "ff", "mfs", "lfs", "lus", "rand":
		return MoveOnENOSPC{Enabled: true, CreatePolicy: strings.ToLower(s)}, nil
	default:
		return MoveOnENOSPC{}, fmt.Errorf("config: unknown moveonenospc value %q", s)
	}
}

func (m MoveOnENOSPC) String() string {
	if !m.Enabled {
		return "false"
	}
	return m.CreatePolicy
}

// StatfsMode is the `user.mergerfs.statfs` value, recognized and
// round-tripped through the control file. The aggregate statfs reply
// does not consult it; RO/NC exclusion there is governed by
// Record.StatfsIgnoreBranch.
type StatfsMode int

const (
	StatfsFull StatfsMode = iota
	StatfsIgnoreRO
)

func (m StatfsMode) String() string {
	if m == StatfsIgnoreRO {
		return "ignore"
	}
	return "base"
}

// Record is the full runtime configuration snapshot. It is copied by
// value on every Get and replaced by value on every Set, so callers
// never hold a pointer into mutable state.
type Record struct {
	CreatePolicy string
	SearchPolicy string
	ActionPolicy string

	MoveOnENOSPC MoveOnENOSPC

	CacheFiles CacheFilesMode
	InodeCalc  inodecalc.Mode

	DirectIO          bool
	IgnorePPOnRename   bool
	StatfsMode         StatfsMode
	StatfsIgnoreBranch string // "" | "ro" | "nc"
}

// Default returns the record mergerfs itself documents as its defaults.
func Default() Record {
	return Record{
		CreatePolicy: "epmfs",
		SearchPolicy: "ff",
		ActionPolicy: "epall",
		MoveOnENOSPC: MoveOnENOSPC{Enabled: false},
		CacheFiles:   CacheLibfuse,
		InodeCalc:    inodecalc.HybridHash,
		DirectIO:     false,
	}
}

// Store is the process-wide configuration cell: a sync.RWMutex guarding
// a single Record value, swapped atomically on Set (spec.md §5 "Shared-
// resource policy" / §9).
type Store struct {
	mu      sync.RWMutex
	record  Record
	version string
	pid     int
}

// NewStore builds a Store seeded with rec, plus the two read-only
// identity fields surfaced at user.mergerfs.version/pid.
func NewStore(rec Record, version string, pid int) *Store {
	return &Store{record: rec, version: version, pid: pid}
}

// Get returns a snapshot of the current record. The returned value is a
// copy; mutating it has no effect on the store.
func (s *Store) Get() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record
}

// Set atomically replaces the record. Operations already in flight may
// have already read the old snapshot via Get and will run to completion
// against it — spec.md §5's "observed by any operation that starts
// after the mutation returns" guarantee, not a mid-flight one.
func (s *Store) Set(rec Record) {
	s.mu.Lock()
	s.record = rec
	s.mu.Unlock()
}

// Version returns the read-only version identity string.
func (s *Store) Version() string { return s.version }

// PID returns the read-only process-identity integer.
func (s *Store) PID() int { return s.pid }

// ParseBool implements spec.md §4.H's boolean parsing:
// {true, 1, yes, on} / {false, 0, no, off}.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("config: unknown boolean value %q", s)
	}
}

// FormatBool renders a bool the way getxattr reports it back.
func FormatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
