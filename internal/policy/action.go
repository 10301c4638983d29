package policy

import "github.com/mergerfs-go/mergerfs/internal/branch"

// ActionPolicy locates the branch(es) a modifying operation on an
// existing path must be applied to (spec.md §4.C: chmod, chown, unlink,
// rmdir, truncate, utimens, setxattr/removexattr).
type ActionPolicy interface {
	Name() string
	Action(eng *Engine, branches []branch.Branch, unifiedPath string) ([]branch.Branch, error)
}

// allAction applies the action to every writable branch on which the
// path exists. Grounded on rclone's policy/all.go Action method; under
// it, e.g. unlink removes every copy of a shadowed file rather than
// leaving stale copies behind.
type allAction struct{}

func (allAction) Name() string { return "all" }

func (allAction) Action(eng *Engine, branches []branch.Branch, unifiedPath string) ([]branch.Branch, error) {
	candidates := filterWritable(branches)
	out := existingOn(eng, candidates, unifiedPath)
	if len(out) == 0 {
		return nil, ErrNoExistingPath(unifiedPath)
	}
	return out, nil
}

// epallAction is "existing path, all": spec.md §4.C is explicit that
// this is the default action policy and defines it as identical to
// allAction, existence already implying the "ep" restriction for an
// action (actions by definition never apply to non-existent paths).
// Kept as a distinct registered name, not an alias, because the control
// file's user.mergerfs.func.action surface must round-trip whichever of
// the two names the operator configured.
type epallAction struct{}

func (epallAction) Name() string { return "epall" }

func (epallAction) Action(eng *Engine, branches []branch.Branch, unifiedPath string) ([]branch.Branch, error) {
	return allAction{}.Action(eng, branches, unifiedPath)
}

// epffAction is "existing path, first found": the first writable branch,
// in registry order, on which the path exists. Grounded on rclone's
// policy/epff.go Action method.
type epffAction struct{}

func (epffAction) Name() string { return "epff" }

func (epffAction) Action(eng *Engine, branches []branch.Branch, unifiedPath string) ([]branch.Branch, error) {
	for _, b := range branches {
		if !b.Writable() {
			continue
		}
		exists, _, err := eng.Exists.Exists(b, unifiedPath)
		if err == nil && exists {
			return []branch.Branch{b}, nil
		}
	}
	return nil, ErrNoExistingPath(unifiedPath)
}

func init() {
	registerAction(allAction{})
	registerAction(epallAction{})
	registerAction(epffAction{})
}
