package mux

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mergerfs-go/mergerfs/internal/branch"
	"github.com/mergerfs-go/mergerfs/internal/config"
)

func newMultiplexer(t *testing.T, branches ...branch.Branch) *Multiplexer {
	t.Helper()
	reg, err := branch.New(branches)
	require.NoError(t, err)
	store := config.NewStore(config.Default(), "test", os.Getpid())
	return New(reg, store)
}

func mkBranch(t *testing.T) branch.Branch {
	t.Helper()
	return branch.Branch{Path: t.TempDir(), Mode: branch.RW}
}

func TestCreateAndLookupRoundTrip(t *testing.T) {
	b0 := mkBranch(t)
	m := newMultiplexer(t, b0)

	rec := m.Config.Get()
	rec.CreatePolicy = "ff"
	m.Config.Set(rec)

	h, st, err := m.Create("/foo.txt", os.O_RDWR, 0o644)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.NotZero(t, st.Ino)

	got, err := m.Lookup("/foo.txt")
	require.NoError(t, err)
	assert.Equal(t, st.Ino, got.Ino)

	require.NoError(t, m.Release(h.ID))
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	b0 := mkBranch(t)
	m := newMultiplexer(t, b0)
	rec := m.Config.Get()
	rec.CreatePolicy = "ff"
	m.Config.Set(rec)

	h, _, err := m.Create("/foo.txt", os.O_RDWR, 0o644)
	require.NoError(t, err)

	n, err := m.Write(h.ID, []byte("hello world"), 0)
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	buf := make([]byte, 11)
	n, err = m.Read(h.ID, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(buf[:n]))

	require.NoError(t, m.Release(h.ID))
}

func TestUnlink_RemovesFromAllBranches(t *testing.T) {
	b0 := mkBranch(t)
	b1 := mkBranch(t)
	require.NoError(t, os.WriteFile(filepath.Join(b0.Path, "dup"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(b1.Path, "dup"), []byte("b"), 0o644))

	m := newMultiplexer(t, b0, b1)
	rec := m.Config.Get()
	rec.ActionPolicy = "all"
	m.Config.Set(rec)

	require.NoError(t, m.Unlink("/dup"))

	_, err := os.Lstat(filepath.Join(b0.Path, "dup"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Lstat(filepath.Join(b1.Path, "dup"))
	assert.True(t, os.IsNotExist(err))
}

func TestMkdirAndRmdir(t *testing.T) {
	b0 := mkBranch(t)
	m := newMultiplexer(t, b0)
	rec := m.Config.Get()
	rec.CreatePolicy, rec.ActionPolicy = "ff", "all"
	m.Config.Set(rec)

	_, err := m.Mkdir("/d", 0o755)
	require.NoError(t, err)

	require.NoError(t, m.Rmdir("/d"))

	_, err = os.Lstat(filepath.Join(b0.Path, "d"))
	assert.True(t, os.IsNotExist(err))
}

func TestRmdir_NonEmptyFails(t *testing.T) {
	b0 := mkBranch(t)
	require.NoError(t, os.Mkdir(filepath.Join(b0.Path, "d"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(b0.Path, "d", "child"), []byte("x"), 0o644))

	m := newMultiplexer(t, b0)
	rec := m.Config.Get()
	rec.ActionPolicy = "all"
	m.Config.Set(rec)

	err := m.Rmdir("/d")
	assert.Error(t, err)
}

func TestControlFile_GetxattrListxattr(t *testing.T) {
	b0 := mkBranch(t)
	m := newMultiplexer(t, b0)

	keys, err := m.Listxattr(ControlFilePath)
	require.NoError(t, err)
	assert.Contains(t, keys, "user.mergerfs.version")

	v, err := m.Getxattr(ControlFilePath, "user.mergerfs.func.create")
	require.NoError(t, err)
	assert.Equal(t, m.Config.Get().CreatePolicy, string(v))
}

func TestControlFile_SetxattrMutatesConfig(t *testing.T) {
	b0 := mkBranch(t)
	m := newMultiplexer(t, b0)

	require.NoError(t, m.Setxattr(ControlFilePath, "user.mergerfs.func.create", []byte("mfs")))
	assert.Equal(t, "mfs", m.Config.Get().CreatePolicy)
}

func TestStatfs_AggregatesBranches(t *testing.T) {
	b0 := mkBranch(t)
	b1 := mkBranch(t)
	m := newMultiplexer(t, b0, b1)

	agg, err := m.Statfs()
	require.NoError(t, err)
	assert.LessOrEqual(t, agg.BlocksFree, agg.BlocksTotal)
	assert.LessOrEqual(t, agg.BlocksAvailable, agg.BlocksFree)
	assert.LessOrEqual(t, agg.InodesFree, agg.InodesTotal)
}

func TestOpendirReaddir_MergesBranches(t *testing.T) {
	b0 := mkBranch(t)
	b1 := mkBranch(t)
	require.NoError(t, os.WriteFile(filepath.Join(b0.Path, "a"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(b1.Path, "b"), []byte("x"), 0o644))

	m := newMultiplexer(t, b0, b1)
	dh, err := m.Opendir("/")
	require.NoError(t, err)
	defer dh.Releasedir()

	entries, err := dh.Readdir()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	assert.True(t, names["a"])
	assert.True(t, names["b"])
}

func TestSymlinkAndReadlink(t *testing.T) {
	b0 := mkBranch(t)
	m := newMultiplexer(t, b0)
	rec := m.Config.Get()
	rec.CreatePolicy = "ff"
	m.Config.Set(rec)

	_, err := m.Symlink("/link", "/target/does/not/need/to/exist")
	require.NoError(t, err)

	target, err := m.Readlink("/link")
	require.NoError(t, err)
	assert.Equal(t, "/target/does/not/need/to/exist", target)
}
