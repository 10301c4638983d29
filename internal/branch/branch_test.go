package branch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		want Mode
	}{
		{"", RW},
		{"RW", RW},
		{"rw", RW},
		{"RO", RO},
		{"ro", RO},
		{"NC", NC},
		{"nc", NC},
	}
	for _, c := range cases {
		got, err := ParseMode(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}

	_, err := ParseMode("bogus")
	assert.Error(t, err)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "RW", RW.String())
	assert.Equal(t, "RO", RO.String())
	assert.Equal(t, "NC", NC.String())
	assert.Equal(t, "UNKNOWN", Mode(99).String())
}

func TestBranchWritableCreatable(t *testing.T) {
	rw := Branch{Mode: RW}
	ro := Branch{Mode: RO}
	nc := Branch{Mode: NC}

	assert.True(t, rw.Writable())
	assert.True(t, rw.Creatable())

	assert.False(t, ro.Writable())
	assert.False(t, ro.Creatable())

	assert.True(t, nc.Writable())
	assert.False(t, nc.Creatable())
}

func TestJoinUnified(t *testing.T) {
	assert.Equal(t, "/data", JoinUnified("/data", "/"))
	assert.Equal(t, "/data", JoinUnified("/data", ""))
	assert.Equal(t, "/data/a/b", JoinUnified("/data", "/a/b"))
}

func TestBranchFullPath(t *testing.T) {
	b := Branch{Path: "/mnt/disk1"}
	assert.Equal(t, "/mnt/disk1/foo/bar", b.FullPath("/foo/bar"))
}

func TestRegistryNewAssignsIndex(t *testing.T) {
	reg, err := New([]Branch{
		{Path: "/a", Mode: RW, Index: 99},
		{Path: "/b", Mode: RO, Index: 99},
	})
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	all := reg.All()
	assert.Equal(t, 0, all[0].Index)
	assert.Equal(t, 1, all[1].Index)

	b, ok := reg.At(1)
	require.True(t, ok)
	assert.Equal(t, "/b", b.Path)

	_, ok = reg.At(2)
	assert.False(t, ok)
	_, ok = reg.At(-1)
	assert.False(t, ok)
}

func TestRegistryNewRejectsEmpty(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
