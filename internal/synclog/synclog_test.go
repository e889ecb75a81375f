package synclog

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "synclog.json")
	l, err := Open(path)
	require.NoError(t, err)
	return l, path
}

func TestRecord_NewestFirstAndPersisted(t *testing.T) {
	l, path := openTemp(t)

	first, err := l.Record(Entry{Outcome: Succeeded, Accepted: 2, Trigger: Manual})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.Timestamp.IsZero())

	_, err = l.Record(Entry{Outcome: Failed, Message: "boom", Trigger: Background})
	require.NoError(t, err)

	last, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, Failed, last.Outcome)

	reopened, err := Open(path)
	require.NoError(t, err)
	entries := reopened.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, Failed, entries[0].Outcome)
	assert.Equal(t, "boom", entries[0].Message)
	assert.Equal(t, first.ID, entries[1].ID)
	assert.Equal(t, 2, entries[1].Accepted)
}

func TestRecord_CapsAtCapacity(t *testing.T) {
	l, path := openTemp(t)

	base := time.Unix(1700000000, 0)
	for i := range Capacity + 5 {
		_, err := l.Record(Entry{Outcome: Succeeded, Accepted: i, Timestamp: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	entries := l.Entries()
	require.Len(t, entries, Capacity)
	assert.Equal(t, Capacity+4, entries[0].Accepted)
	assert.Equal(t, 5, entries[Capacity-1].Accepted, "oldest entries are evicted first")

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Len(t, reopened.Entries(), Capacity)
}

func TestClear(t *testing.T) {
	l, path := openTemp(t)

	_, err := l.Record(Entry{Outcome: Expired, Trigger: Background})
	require.NoError(t, err)
	require.NoError(t, l.Clear())

	_, ok := l.Last()
	assert.False(t, ok)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	// Clearing an already empty log is fine.
	require.NoError(t, l.Clear())
}

func TestOpen_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synclog.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestRecord_TwoHandlesOnOneFile(t *testing.T) {
	daemon, path := openTemp(t)
	cli, err := Open(path)
	require.NoError(t, err)

	_, err = daemon.Record(Entry{Outcome: Succeeded, Accepted: 1, Trigger: Background})
	require.NoError(t, err)
	_, err = cli.Record(Entry{Outcome: Succeeded, Accepted: 2, Trigger: Manual})
	require.NoError(t, err)

	for _, l := range []*Log{daemon, cli} {
		entries := l.Entries()
		require.Len(t, entries, 2)
		assert.Equal(t, 2, entries[0].Accepted)
		assert.Equal(t, 1, entries[1].Accepted)
	}

	require.NoError(t, cli.Clear())
	_, err = daemon.Record(Entry{Outcome: Failed, Message: "boom", Trigger: Background})
	require.NoError(t, err)

	entries := cli.Entries()
	require.Len(t, entries, 1, "cleared entries must stay cleared")
	assert.Equal(t, Failed, entries[0].Outcome)
	last, ok := daemon.Last()
	require.True(t, ok)
	assert.Equal(t, "boom", last.Message)
}

func TestRecord_ConcurrentHandles(t *testing.T) {
	a, path := openTemp(t)
	b, err := Open(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 10 {
		for _, l := range []*Log{a, b} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := l.Record(Entry{Outcome: Succeeded, Accepted: i})
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	assert.Len(t, a.Entries(), 20)
}
