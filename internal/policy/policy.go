// Package policy implements the pure functional policy engine (spec.md
// §4.C): given the current branch list, a unified path, and the category
// of operation, it selects the branch(es) the multiplexer should act on.
//
// Grounded on rclone's backend/union/policy package: the same
// registry-of-named-policies shape (registerPolicy/Get), the same ten
// algorithm names (ff, mfs, lfs, lus, rand, pfrd, epff, epmfs, eplfs,
// all) with identical semantics. Two differences from rclone:
//
//   - rclone's Policy interface carries Create/Search/Action/
//     *Entries methods on every registered policy symmetrically, because
//     any rclone remote backend can be a union upstream and the union
//     backend is free to apply any named policy in any of the three
//     roles. spec.md §4.C is narrower — only a fixed subset of names is
//     valid per category (e.g. "newest" is search-only, "epall" is
//     action-only) — so here each category has its own interface and
//     registry.
//   - candidate filtering (RO/NC exclusion, minimum free space, existing
//     parent) is expressed against branch.Branch + an injected Prober/
//     ExistenceChecker instead of against upstream.Fs + fs.Fs.List,
//     since branches are local directories, not rclone remotes.
package policy

import (
	"fmt"
	"time"

	"github.com/mergerfs-go/mergerfs/internal/branch"
	"github.com/mergerfs-go/mergerfs/internal/space"
)

// MinFreeSpaceReserve is the default minimum viable free space a branch
// must report to be a create candidate (spec.md §4.C: "< 4 MiB reserve").
const MinFreeSpaceReserve = 4 * 1024 * 1024

// ExistenceChecker answers whether a unified path exists on a branch, and
// its modification time if so. The multiplexer supplies the real
// implementation (an Lstat against branch.FullPath); policy tests supply
// a fake.
type ExistenceChecker interface {
	Exists(b branch.Branch, unifiedPath string) (exists bool, modTime time.Time, err error)
}

// Engine bundles the collaborators every policy needs: a free-space
// prober and an existence checker. It carries no mutable state of its
// own, keeping every policy a pure function of (Engine, branches, path).
type Engine struct {
	Prober       space.Prober
	Exists       ExistenceChecker
	MinFreeSpace uint64
}

// NewEngine builds an Engine with the default 4 MiB reserve.
func NewEngine(prober space.Prober, exists ExistenceChecker) *Engine {
	return &Engine{Prober: prober, Exists: exists, MinFreeSpace: MinFreeSpaceReserve}
}

// errNoExistingPath is the error the ep* create policies return when no
// candidate branch has the target's parent directory. spec.md §4.C:
// "the policy fails with an error explicitly signaled as 'no existing
// path'. The multiplexer may or may not fall back; that is its choice."
type errNoExistingPath struct{ path string }

func (e *errNoExistingPath) Error() string {
	return fmt.Sprintf("policy: no branch has an existing path for %q", e.path)
}

// ErrNoExistingPath is returned by the ep* create policies (and by Search
// when no branch has the entry) to signal that the candidate set was
// empty because of non-existence rather than a filtering decision.
func ErrNoExistingPath(path string) error { return &errNoExistingPath{path: path} }

// IsNoExistingPath reports whether err was produced by ErrNoExistingPath.
func IsNoExistingPath(err error) bool {
	_, ok := err.(*errNoExistingPath)
	return ok
}

// errNoCandidates signals that every candidate was removed by filtering
// (RO, NC, insufficient space) rather than non-existence; the
// multiplexer maps every such error to ENOSPC, without distinguishing a
// set emptied by branch modes from one emptied by the free-space reserve.
type errNoCandidates struct{ reason string }

func (e *errNoCandidates) Error() string { return "policy: no candidates: " + e.reason }

// ErrNoCandidates is returned when filtering removes every branch.
func ErrNoCandidates(reason string) error { return &errNoCandidates{reason: reason} }

// IsNoCandidates reports whether err was produced by ErrNoCandidates.
func IsNoCandidates(err error) bool {
	_, ok := err.(*errNoCandidates)
	return ok
}

func filterWritable(bs []branch.Branch) []branch.Branch {
	var out []branch.Branch
	for _, b := range bs {
		if b.Writable() {
			out = append(out, b)
		}
	}
	return out
}

func filterCreatable(bs []branch.Branch) []branch.Branch {
	var out []branch.Branch
	for _, b := range bs {
		if b.Creatable() {
			out = append(out, b)
		}
	}
	return out
}

// filterMinFreeSpace drops branches reporting less than the reserve.
// A probe error is treated as "unknown, treat as ineligible" rather than
// infinite, the opposite of rclone's "treat as infinite" choice,
// because for create eligibility erring towards exclusion is safer than
// placing a file on a branch we failed to measure.
func filterMinFreeSpace(eng *Engine, bs []branch.Branch) []branch.Branch {
	var out []branch.Branch
	for _, b := range bs {
		snap, err := eng.Prober.Probe(b.Path)
		if err != nil {
			continue
		}
		if snap.AvailableBytes() >= eng.MinFreeSpace {
			out = append(out, b)
		}
	}
	return out
}

// createCandidates applies the filters common to every create policy:
// RO/NC exclusion followed by minimum free space.
func createCandidates(eng *Engine, bs []branch.Branch) []branch.Branch {
	bs = filterCreatable(bs)
	if len(bs) == 0 {
		return nil
	}
	return filterMinFreeSpace(eng, bs)
}

// existingOn returns the subset of bs on which unifiedPath exists, in the
// same relative order, probing concurrently is unnecessary at this scale
// so it is done sequentially for simplicity and determinism in tests.
func existingOn(eng *Engine, bs []branch.Branch, unifiedPath string) []branch.Branch {
	var out []branch.Branch
	for _, b := range bs {
		exists, _, err := eng.Exists.Exists(b, unifiedPath)
		if err == nil && exists {
			out = append(out, b)
		}
	}
	return out
}

// parentDir returns the unified parent directory of a unified path, the
// empty string denoting the root.
func parentDir(unifiedPath string) string {
	if unifiedPath == "" || unifiedPath == "/" {
		return ""
	}
	i := len(unifiedPath) - 1
	for i > 0 && unifiedPath[i] == '/' {
		i--
	}
	trimmed := unifiedPath[:i+1]
	slash := -1
	for j := len(trimmed) - 1; j >= 0; j-- {
		if trimmed[j] == '/' {
			slash = j
			break
		}
	}
	if slash <= 0 {
		return ""
	}
	return trimmed[:slash]
}
