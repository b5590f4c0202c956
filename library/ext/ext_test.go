package ext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandInt(t *testing.T) {
	r := NewRand(7)
	for i := 0; i < 1000; i++ {
		v := RandIntWith(r, 1, 7)
		require.GreaterOrEqual(t, v, 1)
		require.Less(t, v, 7)
	}
	assert.Equal(t, 3, RandIntWith(r, 3, 3))
}

func TestShuffleKeepsElements(t *testing.T) {
	in := []string{"a", "b", "c", "d", "e"}
	out := Shuffle(NewRand(42), in)
	assert.ElementsMatch(t, in, out)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, in)
}

func TestDiffAndDeepCopy(t *testing.T) {
	type section struct {
		Level string
		Keys  []string
	}
	old := &section{Level: "info", Keys: []string{"token"}}
	upd := &section{Level: "debug", Keys: []string{"token", "password"}}

	changes, text, err := DiffLog(old, upd)
	require.NoError(t, err)
	assert.NotEmpty(t, changes)
	assert.Contains(t, text, "Level")

	require.NoError(t, DeepCopy(old, upd))
	assert.Equal(t, "debug", old.Level)
	assert.Equal(t, []string{"token", "password"}, old.Keys)

	changes, err = Diff(old, upd)
	require.NoError(t, err)
	assert.Empty(t, changes)
}
