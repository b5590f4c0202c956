package match

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yola1107/pokerdice/internal/conf"
)

func newTestMatchLogs(t *testing.T) (*matchLogs, string) {
	t.Helper()
	dir := t.TempDir()
	l := newMatchLogs(conf.NewLive(&conf.Game{MatchLog: &conf.MatchLog{Open: true, Dir: dir}}))
	t.Cleanup(l.closeAll)
	return l, dir
}

func TestMatchLogsDropWritesAfterClose(t *testing.T) {
	l, dir := newTestMatchLogs(t)
	path := filepath.Join(dir, "match_m1.log")

	l.write("m1", "before %d", 1)
	l.close("m1")
	l.write("m1", "after %d", 2)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "before 1")
	assert.NotContains(t, string(data), "after 2")

	l.mu.Lock()
	af := l.logs["m1"]
	l.mu.Unlock()
	require.NotNil(t, af)
	assert.Nil(t, af.fl)
}

func TestMatchLogsForgetEndedMatches(t *testing.T) {
	l, _ := newTestMatchLogs(t)

	l.write("old", "x")
	l.close("old")
	l.mu.Lock()
	l.logs["old"].endedAt = time.Now().Add(-2 * endedRetention)
	l.mu.Unlock()

	l.write("new", "y")
	l.close("new")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.logs, "old")
	assert.Contains(t, l.logs, "new")
}

func TestMatchLogsConcurrentClose(t *testing.T) {
	l, dir := newTestMatchLogs(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.write("m1", "writer=%d line=%d", i, j)
			}
		}(i)
	}
	l.write("m1", "first")
	l.close("m1")
	wg.Wait()

	_, err := os.Stat(filepath.Join(dir, "match_m1.log"))
	require.NoError(t, err)
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Nil(t, l.logs["m1"].fl)
}

func TestMatchLogsFollowReload(t *testing.T) {
	dir := t.TempDir()
	c := conf.NewLive(&conf.Game{MatchLog: &conf.MatchLog{Open: false, Dir: dir}})
	l := newMatchLogs(c)
	t.Cleanup(l.closeAll)

	l.write("m1", "hidden")
	_, err := os.Stat(filepath.Join(dir, "match_m1.log"))
	assert.True(t, os.IsNotExist(err))

	c.Store(&conf.Game{MatchLog: &conf.MatchLog{Open: true, Dir: dir}})
	l.write("m1", "shown")
	data, err := os.ReadFile(filepath.Join(dir, "match_m1.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "shown")
}
