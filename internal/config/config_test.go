package config

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetReturnsIndependentCopy(t *testing.T) {
	s := NewStore(Default(), "1.0.0-test", 12345)
	rec := s.Get()
	rec.CreatePolicy = "mutated-locally"

	again := s.Get()
	assert.Equal(t, "epmfs", again.CreatePolicy)
}

func TestStore_SetIsVisibleAfterReturn(t *testing.T) {
	s := NewStore(Default(), "1.0.0-test", 1)
	rec := s.Get()
	rec.CreatePolicy = "mfs"
	s.Set(rec)

	assert.Equal(t, "mfs", s.Get().CreatePolicy)
}

func TestStore_ConcurrentGetSet(t *testing.T) {
	s := NewStore(Default(), "1.0.0-test", 1)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			rec := s.Get()
			rec.CreatePolicy = "ff"
			s.Set(rec)
		}()
		go func() {
			defer wg.Done()
			_ = s.Get()
		}()
	}
	wg.Wait()
}

func TestParseMoveOnENOSPC(t *testing.T) {
	cases := map[string]MoveOnENOSPC{
		"false": {Enabled: false},
		"true":  {Enabled: true, CreatePolicy: "pfrd"},
		"mfs":   {Enabled: true, CreatePolicy: "mfs"},
	}
	for in, want := range cases {
		got, err := ParseMoveOnENOSPC(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestParseMoveOnENOSPC_Unknown(t *testing.T) {
	_, err := ParseMoveOnENOSPC("bogus")
	assert.Error(t, err)
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "1", "yes", "on"} {
		v, err := ParseBool(s)
		require.NoError(t, err)
		assert.True(t, v)
	}
	for _, s := range []string{"false", "0", "no", "off"} {
		v, err := ParseBool(s)
		require.NoError(t, err)
		assert.False(t, v)
	}
	_, err := ParseBool("maybe")
	assert.Error(t, err)
}

func TestParseCacheFilesMode_RoundTrips(t *testing.T) {
	for _, name := range []string{"libfuse", "off", "partial", "full", "auto-full", "per-process"} {
		m, err := ParseCacheFilesMode(name)
		require.NoError(t, err)
		assert.Equal(t, name, m.String())
	}
}
