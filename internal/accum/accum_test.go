package accum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndGet(t *testing.T) {
	s := New()
	require.NoError(t, s.Put("1000", KindItems, []int{1, 2, 3}))

	v, ok := s.Get("1000", KindItems)
	assert.True(t, ok)
	assert.Equal(t, []int{1, 2, 3}, v)
}

func TestPutRejectsOverwrite(t *testing.T) {
	s := New()
	require.NoError(t, s.Put("1000", KindItems, "first"))
	assert.Error(t, s.Put("1000", KindItems, "second"))

	v, _ := s.Get("1000", KindItems)
	assert.Equal(t, "first", v)
}

func TestForceOverwrites(t *testing.T) {
	s := New()
	require.NoError(t, s.Put("1000", KindItems, "first"))
	s.Force("1000", KindItems, "second")

	v, _ := s.Get("1000", KindItems)
	assert.Equal(t, "second", v)
}

func TestNilIsMeaningful(t *testing.T) {
	s := New()
	require.NoError(t, s.Put("1000", KindConsolidated, nil))

	// The stage ran and produced nothing. That is not the same as the
	// stage never having run.
	v, ok := s.Get("1000", KindConsolidated)
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = s.Get("1000", KindEvaluated)
	assert.False(t, ok)
}

func TestEntitiesAreIsolated(t *testing.T) {
	s := New()
	require.NoError(t, s.Put("1000", KindItems, "a"))
	require.NoError(t, s.Put("2000", KindItems, "b"))

	v, _ := s.Get("2000", KindItems)
	assert.Equal(t, "b", v)
}
