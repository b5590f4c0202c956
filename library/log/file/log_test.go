package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLogWrites(t *testing.T) {
	name := filepath.Join(t.TempDir(), "match_1.log")
	l := NewFileLog(name)

	l.WriteLog("[round] number=%d order=%v", 1, []string{"a", "b"})
	l.Infow("rolled", "player", "a", "rolls", 2)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[round] number=1 order=[a b]")
	assert.Contains(t, string(data), "rolled")
}
