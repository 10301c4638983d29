package rename

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mergerfs-go/mergerfs/internal/branch"
	"github.com/mergerfs-go/mergerfs/internal/policy"
	"github.com/mergerfs-go/mergerfs/internal/resolver"
	"github.com/mergerfs-go/mergerfs/internal/space"
)

func mkBranch(t *testing.T, idx int) branch.Branch {
	t.Helper()
	return branch.Branch{Index: idx, Path: t.TempDir(), Mode: branch.RW}
}

func newEngine(branches []branch.Branch) *policy.Engine {
	return policy.NewEngine(space.Statfs{}, resolver.LstatExistence{})
}

func TestRename_NoopWhenPathsIdentical(t *testing.T) {
	b0 := mkBranch(t, 0)
	e := &Engine{PolicyEngine: newEngine(nil)}
	err := e.Rename([]branch.Branch{b0}, "ff", "/same", "/same")
	assert.NoError(t, err)
}

func TestRename_PathPreserving_RenamesOnBranchWhereSourceExists(t *testing.T) {
	b0 := mkBranch(t, 0)
	b1 := mkBranch(t, 1)
	require.NoError(t, os.WriteFile(filepath.Join(b1.Path, "foo"), []byte("x"), 0o644))

	e := &Engine{PolicyEngine: newEngine(nil)}
	err := e.Rename([]branch.Branch{b0, b1}, "ff", "/foo", "/bar")
	require.NoError(t, err)

	_, err = os.Lstat(filepath.Join(b1.Path, "bar"))
	assert.NoError(t, err)
	_, err = os.Lstat(filepath.Join(b1.Path, "foo"))
	assert.True(t, os.IsNotExist(err))
}

func TestRename_PathPreserving_CreatesParentOnTarget(t *testing.T) {
	b0 := mkBranch(t, 0)
	require.NoError(t, os.WriteFile(filepath.Join(b0.Path, "foo"), []byte("x"), 0o644))

	e := &Engine{PolicyEngine: newEngine(nil)}
	err := e.Rename([]branch.Branch{b0}, "ff", "/foo", "/newdir/foo")
	require.NoError(t, err)

	_, err = os.Lstat(filepath.Join(b0.Path, "newdir", "foo"))
	assert.NoError(t, err)
}

func TestRename_TypeConflict_FileOverDirectory(t *testing.T) {
	b0 := mkBranch(t, 0)
	require.NoError(t, os.WriteFile(filepath.Join(b0.Path, "file"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(b0.Path, "dir"), 0o755))

	e := &Engine{PolicyEngine: newEngine(nil)}
	err := e.Rename([]branch.Branch{b0}, "ff", "/file", "/dir")
	assert.Error(t, err)
}

func TestRename_CreatePolicyStrategy_MovesToPolicyChosenBranch(t *testing.T) {
	b0 := mkBranch(t, 0)
	b1 := mkBranch(t, 1)
	require.NoError(t, os.WriteFile(filepath.Join(b0.Path, "foo"), []byte("hello"), 0o644))

	e := &Engine{PolicyEngine: newEngine(nil), IgnorePPOnRename: true}
	err := e.Rename([]branch.Branch{b0, b1}, "ff", "/foo", "/bar")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(b0.Path, "bar"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = os.Lstat(filepath.Join(b0.Path, "foo"))
	assert.True(t, os.IsNotExist(err))
}
