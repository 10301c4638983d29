package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mergerfs-go/mergerfs/internal/branch"
	"github.com/mergerfs-go/mergerfs/internal/space"
)

// fakeProber returns a fixed available-bytes figure per branch path,
// set up by the test; any path not registered probes as an error.
type fakeProber struct {
	available map[string]uint64
	total     map[string]uint64
}

func (f *fakeProber) Probe(path string) (space.Snapshot, error) {
	avail, ok := f.available[path]
	if !ok {
		return space.Snapshot{}, assert.AnError
	}
	total := f.total[path]
	if total == 0 {
		total = avail
	}
	const blockSize = 4096
	return space.Snapshot{
		BlocksTotal:     total / blockSize,
		BlocksAvailable: avail / blockSize,
		BlockSize:       blockSize,
	}, nil
}

// fakeExistence reports existence/mtime from an in-memory map keyed by
// branch path + unified path, mirroring rclone's policy tests' use
// of an in-memory fs.Fs fake rather than a real filesystem.
type fakeExistence struct {
	entries map[string]time.Time // key: branchPath + "|" + unifiedPath
}

func (f *fakeExistence) put(branchPath, unifiedPath string, mtime time.Time) {
	if f.entries == nil {
		f.entries = map[string]time.Time{}
	}
	f.entries[branchPath+"|"+unifiedPath] = mtime
}

func (f *fakeExistence) Exists(b branch.Branch, unifiedPath string) (bool, time.Time, error) {
	t, ok := f.entries[b.Path+"|"+unifiedPath]
	return ok, t, nil
}

func mkBranches(modes ...branch.Mode) []branch.Branch {
	bs := make([]branch.Branch, len(modes))
	for i, m := range modes {
		bs[i] = branch.Branch{Index: i, Path: pathFor(i), Mode: m}
	}
	return bs
}

func pathFor(i int) string {
	return []string{"/b0", "/b1", "/b2"}[i]
}

func TestFFCreate_PicksFirstEligible(t *testing.T) {
	bs := mkBranches(branch.RO, branch.RW, branch.RW)
	prober := &fakeProber{available: map[string]uint64{"/b1": 1 << 30, "/b2": 1 << 30}}
	eng := NewEngine(prober, &fakeExistence{})

	got, err := ffCreate{}.Create(eng, bs, "/foo")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/b1", got[0].Path)
}

func TestFFCreate_NoEligibleBranch(t *testing.T) {
	bs := mkBranches(branch.RO, branch.NC)
	eng := NewEngine(&fakeProber{}, &fakeExistence{})

	_, err := ffCreate{}.Create(eng, bs, "/foo")
	require.Error(t, err)
	assert.True(t, IsNoCandidates(err))
}

func TestMFSCreate_PicksMostFree(t *testing.T) {
	bs := mkBranches(branch.RW, branch.RW)
	prober := &fakeProber{available: map[string]uint64{"/b0": 10 << 20, "/b1": 900 << 20}}
	eng := NewEngine(prober, &fakeExistence{})

	got, err := mfsCreate{}.Create(eng, bs, "/foo")
	require.NoError(t, err)
	assert.Equal(t, "/b1", got[0].Path)
}

func TestLFSCreate_PicksLeastFreeAboveReserve(t *testing.T) {
	bs := mkBranches(branch.RW, branch.RW)
	prober := &fakeProber{available: map[string]uint64{"/b0": 10 << 20, "/b1": 900 << 20}}
	eng := NewEngine(prober, &fakeExistence{})

	got, err := lfsCreate{}.Create(eng, bs, "/foo")
	require.NoError(t, err)
	assert.Equal(t, "/b0", got[0].Path)
}

func TestLFSCreate_ExcludesBelowReserve(t *testing.T) {
	bs := mkBranches(branch.RW, branch.RW)
	prober := &fakeProber{available: map[string]uint64{"/b0": 1 << 10, "/b1": 900 << 20}}
	eng := NewEngine(prober, &fakeExistence{})

	got, err := lfsCreate{}.Create(eng, bs, "/foo")
	require.NoError(t, err)
	assert.Equal(t, "/b1", got[0].Path)
}

func TestLUSCreate_PicksLeastUsed(t *testing.T) {
	bs := mkBranches(branch.RW, branch.RW)
	prober := &fakeProber{
		available: map[string]uint64{"/b0": 100 << 20, "/b1": 100 << 20},
		total:     map[string]uint64{"/b0": 200 << 20, "/b1": 1000 << 20},
	}
	eng := NewEngine(prober, &fakeExistence{})

	got, err := lusCreate{}.Create(eng, bs, "/foo")
	require.NoError(t, err)
	// b1 has used=900MB, b0 has used=100MB -> b0 is least used.
	assert.Equal(t, "/b0", got[0].Path)
}

func TestEpffCreate_RequiresExistingParent(t *testing.T) {
	bs := mkBranches(branch.RW, branch.RW)
	exists := &fakeExistence{}
	exists.put("/b1", "/dir", time.Now())
	prober := &fakeProber{available: map[string]uint64{"/b0": 1 << 30, "/b1": 1 << 30}}
	eng := NewEngine(prober, exists)

	got, err := epffCreate{}.Create(eng, bs, "/dir/foo")
	require.NoError(t, err)
	assert.Equal(t, "/b1", got[0].Path)
}

func TestEpffCreate_NoExistingParentFails(t *testing.T) {
	bs := mkBranches(branch.RW, branch.RW)
	eng := NewEngine(&fakeProber{}, &fakeExistence{})

	_, err := epffCreate{}.Create(eng, bs, "/dir/foo")
	require.Error(t, err)
	assert.True(t, IsNoExistingPath(err))
}

func TestFFSearch_FirstExistingWins(t *testing.T) {
	bs := mkBranches(branch.RW, branch.RW, branch.RW)
	exists := &fakeExistence{}
	exists.put("/b1", "/foo", time.Unix(100, 0))
	exists.put("/b2", "/foo", time.Unix(200, 0))
	eng := NewEngine(&fakeProber{}, exists)

	got, err := ffSearch{}.Search(eng, bs, "/foo")
	require.NoError(t, err)
	assert.Equal(t, "/b1", got[0].Path)
}

func TestAllSearch_ReturnsEveryExistingCopy(t *testing.T) {
	bs := mkBranches(branch.RW, branch.RW, branch.RW)
	exists := &fakeExistence{}
	exists.put("/b0", "/foo", time.Unix(1, 0))
	exists.put("/b2", "/foo", time.Unix(1, 0))
	eng := NewEngine(&fakeProber{}, exists)

	got, err := allSearch{}.Search(eng, bs, "/foo")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/b0", got[0].Path)
	assert.Equal(t, "/b2", got[1].Path)
}

func TestNewestSearch_PicksMostRecentMtime(t *testing.T) {
	bs := mkBranches(branch.RW, branch.RW)
	exists := &fakeExistence{}
	exists.put("/b0", "/foo", time.Unix(100, 0))
	exists.put("/b1", "/foo", time.Unix(500, 0))
	eng := NewEngine(&fakeProber{}, exists)

	got, err := newestSearch{}.Search(eng, bs, "/foo")
	require.NoError(t, err)
	assert.Equal(t, "/b1", got[0].Path)
}

func TestAllAction_SkipsReadOnlyBranches(t *testing.T) {
	bs := mkBranches(branch.RO, branch.RW)
	exists := &fakeExistence{}
	exists.put("/b0", "/foo", time.Now())
	exists.put("/b1", "/foo", time.Now())
	eng := NewEngine(&fakeProber{}, exists)

	got, err := allAction{}.Action(eng, bs, "/foo")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/b1", got[0].Path)
}

func TestEpallAction_MatchesAllAction(t *testing.T) {
	bs := mkBranches(branch.RO, branch.RW)
	exists := &fakeExistence{}
	exists.put("/b0", "/foo", time.Now())
	exists.put("/b1", "/foo", time.Now())
	eng := NewEngine(&fakeProber{}, exists)

	got, err := epallAction{}.Action(eng, bs, "/foo")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/b1", got[0].Path)
}

func TestRegistry_LooksUpByName(t *testing.T) {
	for _, name := range CreateNames() {
		p, err := GetCreate(name)
		require.NoErrorf(t, err, "create policy %q", name)
		assert.Equal(t, name, p.Name())
	}
	for _, name := range SearchNames() {
		p, err := GetSearch(name)
		require.NoErrorf(t, err, "search policy %q", name)
		assert.Equal(t, name, p.Name())
	}
	for _, name := range ActionNames() {
		p, err := GetAction(name)
		require.NoErrorf(t, err, "action policy %q", name)
		assert.Equal(t, name, p.Name())
	}
}

func TestRegistry_UnknownNameErrors(t *testing.T) {
	_, err := GetCreate("bogus")
	assert.Error(t, err)
}
