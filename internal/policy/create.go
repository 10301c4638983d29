package policy

import (
	"math/rand"

	"github.com/mergerfs-go/mergerfs/internal/branch"
	"github.com/mergerfs-go/mergerfs/internal/space"
)

// CreatePolicy selects the branch a brand-new entry (file, directory,
// symlink, device node) is placed on (spec.md §4.C create category).
type CreatePolicy interface {
	Name() string
	Create(eng *Engine, branches []branch.Branch, unifiedPath string) ([]branch.Branch, error)
}

// ffCreate is "first found": the first RW branch with enough free space,
// in registry order. Grounded on rclone's policy/ff.go Create.
type ffCreate struct{}

func (ffCreate) Name() string { return "ff" }

func (ffCreate) Create(eng *Engine, branches []branch.Branch, unifiedPath string) ([]branch.Branch, error) {
	cands := createCandidates(eng, branches)
	if len(cands) == 0 {
		return nil, ErrNoCandidates("ff: no RW branch with sufficient free space")
	}
	return cands[:1], nil
}

// mostFree probes every candidate and returns it paired with its
// available-bytes snapshot, dropping any that fail to probe.
func mostFree(eng *Engine, cands []branch.Branch) []struct {
	b    branch.Branch
	snap space.Snapshot
} {
	out := make([]struct {
		b    branch.Branch
		snap space.Snapshot
	}, 0, len(cands))
	for _, b := range cands {
		snap, err := eng.Prober.Probe(b.Path)
		if err != nil {
			continue
		}
		out = append(out, struct {
			b    branch.Branch
			snap space.Snapshot
		}{b, snap})
	}
	return out
}

// mfsCreate is "most free space": the RW branch reporting the largest
// available-bytes. Grounded on rclone's policy/mfs.go Create, which
// compares upstream.Fs.GetFreeSpace results the same way.
type mfsCreate struct{}

func (mfsCreate) Name() string { return "mfs" }

func (mfsCreate) Create(eng *Engine, branches []branch.Branch, unifiedPath string) ([]branch.Branch, error) {
	cands := createCandidates(eng, branches)
	probed := mostFree(eng, cands)
	if len(probed) == 0 {
		return nil, ErrNoCandidates("mfs: no RW branch with sufficient free space")
	}
	best := probed[0]
	for _, p := range probed[1:] {
		if p.snap.AvailableBytes() > best.snap.AvailableBytes() {
			best = p
		}
	}
	return []branch.Branch{best.b}, nil
}

// lfsCreate is "least free space": the RW branch reporting the smallest
// available-bytes that still clears the reserve, packing branches nearly
// full before spilling to the next. Grounded on policy/lfs.go.
type lfsCreate struct{}

func (lfsCreate) Name() string { return "lfs" }

func (lfsCreate) Create(eng *Engine, branches []branch.Branch, unifiedPath string) ([]branch.Branch, error) {
	cands := createCandidates(eng, branches)
	probed := mostFree(eng, cands)
	if len(probed) == 0 {
		return nil, ErrNoCandidates("lfs: no RW branch with sufficient free space")
	}
	best := probed[0]
	for _, p := range probed[1:] {
		if p.snap.AvailableBytes() < best.snap.AvailableBytes() {
			best = p
		}
	}
	return []branch.Branch{best.b}, nil
}

// lusCreate is "least used space": the RW branch reporting the smallest
// used-bytes (total - available), distinct from lfs when branches have
// different total sizes. Grounded on policy/lus.go.
type lusCreate struct{}

func (lusCreate) Name() string { return "lus" }

func (lusCreate) Create(eng *Engine, branches []branch.Branch, unifiedPath string) ([]branch.Branch, error) {
	cands := createCandidates(eng, branches)
	probed := mostFree(eng, cands)
	if len(probed) == 0 {
		return nil, ErrNoCandidates("lus: no RW branch with sufficient free space")
	}
	best := probed[0]
	for _, p := range probed[1:] {
		if p.snap.UsedBytes() < best.snap.UsedBytes() {
			best = p
		}
	}
	return []branch.Branch{best.b}, nil
}

// randCreate picks uniformly at random among eligible RW branches.
// Grounded on policy/rand.go.
type randCreate struct{}

func (randCreate) Name() string { return "rand" }

func (randCreate) Create(eng *Engine, branches []branch.Branch, unifiedPath string) ([]branch.Branch, error) {
	cands := createCandidates(eng, branches)
	if len(cands) == 0 {
		return nil, ErrNoCandidates("rand: no RW branch with sufficient free space")
	}
	return cands[rand.Intn(len(cands)):][:1], nil
}

// pfrdCreate is "proportional fill random distribution": picks among
// eligible RW branches with probability proportional to their available
// free space, so emptier branches receive new files more often without
// starving fuller ones the way `mfs` would. Not present in rclone's
// policy package (rclone's union backend has no probabilistic policy);
// grounded on mergerfs's own documented `pfrd` semantics referenced in
// spec.md §4.C and implemented here with the same free-space probe the
// other create policies use.
type pfrdCreate struct{}

func (pfrdCreate) Name() string { return "pfrd" }

func (pfrdCreate) Create(eng *Engine, branches []branch.Branch, unifiedPath string) ([]branch.Branch, error) {
	cands := createCandidates(eng, branches)
	probed := mostFree(eng, cands)
	if len(probed) == 0 {
		return nil, ErrNoCandidates("pfrd: no RW branch with sufficient free space")
	}
	var total uint64
	for _, p := range probed {
		total += p.snap.AvailableBytes()
	}
	if total == 0 {
		return []branch.Branch{probed[rand.Intn(len(probed))].b}, nil
	}
	pick := uint64(rand.Int63n(int64(total)))
	var cum uint64
	for _, p := range probed {
		cum += p.snap.AvailableBytes()
		if pick < cum {
			return []branch.Branch{p.b}, nil
		}
	}
	return []branch.Branch{probed[len(probed)-1].b}, nil
}

// epCandidates is the shared "existing path" gate used by
// epff/epmfs/eplfs: it keeps the branches on which the unified path's
// parent directory already exists; each ep* policy then delegates to its
// inner create policy, which applies the RW and free-space filters.
// Grounded on rclone's policy/epff.go, policy/epmfs.go,
// policy/eplfs.go, which all wrap the same "path" upstream-filtering
// helper before delegating.
func epCandidates(eng *Engine, branches []branch.Branch, unifiedPath string) ([]branch.Branch, error) {
	parent := parentDir(unifiedPath)
	var withParent []branch.Branch
	for _, b := range branches {
		exists, _, err := eng.Exists.Exists(b, parent)
		if err == nil && exists {
			withParent = append(withParent, b)
		}
	}
	if len(withParent) == 0 {
		return nil, ErrNoExistingPath(parent)
	}
	return withParent, nil
}

type epffCreate struct{}

func (epffCreate) Name() string { return "epff" }

func (epffCreate) Create(eng *Engine, branches []branch.Branch, unifiedPath string) ([]branch.Branch, error) {
	withParent, err := epCandidates(eng, branches, unifiedPath)
	if err != nil {
		return nil, err
	}
	return ffCreate{}.Create(eng, withParent, unifiedPath)
}

type epmfsCreate struct{}

func (epmfsCreate) Name() string { return "epmfs" }

func (epmfsCreate) Create(eng *Engine, branches []branch.Branch, unifiedPath string) ([]branch.Branch, error) {
	withParent, err := epCandidates(eng, branches, unifiedPath)
	if err != nil {
		return nil, err
	}
	return mfsCreate{}.Create(eng, withParent, unifiedPath)
}

type eplfsCreate struct{}

func (eplfsCreate) Name() string { return "eplfs" }

func (eplfsCreate) Create(eng *Engine, branches []branch.Branch, unifiedPath string) ([]branch.Branch, error) {
	withParent, err := epCandidates(eng, branches, unifiedPath)
	if err != nil {
		return nil, err
	}
	return lfsCreate{}.Create(eng, withParent, unifiedPath)
}

func init() {
	registerCreate(ffCreate{})
	registerCreate(mfsCreate{})
	registerCreate(lfsCreate{})
	registerCreate(lusCreate{})
	registerCreate(randCreate{})
	registerCreate(pfrdCreate{})
	registerCreate(epffCreate{})
	registerCreate(epmfsCreate{})
	registerCreate(eplfsCreate{})
}
