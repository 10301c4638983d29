package controlfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mergerfs-go/mergerfs/internal/config"
)

func newStore() *config.Store {
	return config.NewStore(config.Default(), "1.2.3-test", 4242)
}

func TestGet_ReadOnlyKeys(t *testing.T) {
	s := newStore()
	v, err := Get(s, KeyVersion)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3-test", v)

	v, err = Get(s, KeyPID)
	require.NoError(t, err)
	assert.Equal(t, "4242", v)
}

func TestSet_ReadOnlyKeyFails(t *testing.T) {
	s := newStore()
	err := Set(s, KeyPID, "1")
	require.Error(t, err)
	var roErr *ErrReadOnlyKey
	assert.ErrorAs(t, err, &roErr)
}

func TestSet_UnknownKeyFails(t *testing.T) {
	s := newStore()
	err := Set(s, "user.mergerfs.bogus", "1")
	require.Error(t, err)
	var unkErr *ErrUnknownKey
	assert.ErrorAs(t, err, &unkErr)
}

func TestSetGet_CreatePolicy(t *testing.T) {
	s := newStore()
	require.NoError(t, Set(s, KeyFuncCreate, "mfs"))
	v, err := Get(s, KeyFuncCreate)
	require.NoError(t, err)
	assert.Equal(t, "mfs", v)
}

func TestSet_InvalidPolicyNameIsRejectedWithoutMutating(t *testing.T) {
	s := newStore()
	before := s.Get()
	err := Set(s, KeyFuncCreate, "bogus")
	require.Error(t, err)
	assert.Equal(t, before, s.Get())
}

func TestSetGet_BooleanFlags(t *testing.T) {
	s := newStore()
	require.NoError(t, Set(s, KeyDirectIO, "on"))
	v, err := Get(s, KeyDirectIO)
	require.NoError(t, err)
	assert.Equal(t, "true", v)
}

func TestSetGet_InodeCalc(t *testing.T) {
	s := newStore()
	require.NoError(t, Set(s, KeyInodeCalc, "path-hash32"))
	v, err := Get(s, KeyInodeCalc)
	require.NoError(t, err)
	assert.Equal(t, "path-hash32", v)
}

func TestSetGet_MoveOnENOSPC(t *testing.T) {
	s := newStore()
	require.NoError(t, Set(s, KeyMoveOnENOSPC, "lfs"))
	v, err := Get(s, KeyMoveOnENOSPC)
	require.NoError(t, err)
	assert.Equal(t, "lfs", v)
}

func TestKeys_IncludeEveryDocumentedKey(t *testing.T) {
	keys := Keys()
	for _, want := range []string{
		KeyVersion, KeyPID, KeyFuncCreate, KeyFuncSearch, KeyFuncAction,
		KeyMoveOnENOSPC, KeyCacheFiles, KeyInodeCalc, KeyDirectIO,
		KeyIgnorePPOnRename, KeyStatfs, KeyStatfsIgnore,
	} {
		assert.Contains(t, keys, want)
	}
}
