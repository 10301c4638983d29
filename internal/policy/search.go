package policy

import "github.com/mergerfs-go/mergerfs/internal/branch"

// SearchPolicy locates the branch(es) holding an existing path, used for
// read-oriented lookups (spec.md §4.C: getattr, open-for-read, readlink,
// getxattr, opendir).
type SearchPolicy interface {
	Name() string
	Search(eng *Engine, branches []branch.Branch, unifiedPath string) ([]branch.Branch, error)
}

// ffSearch returns the first branch, in registry order, on which the path
// exists. Grounded on rclone's policy/ff.go Search method.
type ffSearch struct{}

func (ffSearch) Name() string { return "ff" }

func (ffSearch) Search(eng *Engine, branches []branch.Branch, unifiedPath string) ([]branch.Branch, error) {
	for _, b := range branches {
		exists, _, err := eng.Exists.Exists(b, unifiedPath)
		if err == nil && exists {
			return []branch.Branch{b}, nil
		}
	}
	return nil, ErrNoExistingPath(unifiedPath)
}

// allSearch returns every branch on which the path exists, in registry
// order. Grounded on rclone's policy/all.go Search method, used by
// mergerfs itself for readdir (the caller must see every branch's
// contribution to merge directory entries).
type allSearch struct{}

func (allSearch) Name() string { return "all" }

func (allSearch) Search(eng *Engine, branches []branch.Branch, unifiedPath string) ([]branch.Branch, error) {
	out := existingOn(eng, branches, unifiedPath)
	if len(out) == 0 {
		return nil, ErrNoExistingPath(unifiedPath)
	}
	return out, nil
}

// newestSearch returns the single branch whose copy of the path has the
// most recent modification time. Grounded on rclone's
// policy/newest.go.
type newestSearch struct{}

func (newestSearch) Name() string { return "newest" }

func (newestSearch) Search(eng *Engine, branches []branch.Branch, unifiedPath string) ([]branch.Branch, error) {
	var best branch.Branch
	found := false
	var bestTime int64
	for _, b := range branches {
		exists, mtime, err := eng.Exists.Exists(b, unifiedPath)
		if err != nil || !exists {
			continue
		}
		t := mtime.UnixNano()
		if !found || t > bestTime {
			best, bestTime, found = b, t, true
		}
	}
	if !found {
		return nil, ErrNoExistingPath(unifiedPath)
	}
	return []branch.Branch{best}, nil
}

func init() {
	registerSearch(ffSearch{})
	registerSearch(allSearch{})
	registerSearch(newestSearch{})
}
