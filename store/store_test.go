package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGet_RoundTrip(t *testing.T) {
	s := openTest(t)

	require.NoError(t, s.Put(RunKey("a"), doc{Name: "a", Count: 3}, 0))

	var got doc
	require.NoError(t, s.Get(RunKey("a"), &got))
	assert.Equal(t, doc{Name: "a", Count: 3}, got)
}

func TestGet_MissingIsNotFound(t *testing.T) {
	s := openTest(t)

	var got doc
	err := s.Get(RunKey("missing"), &got)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.ExpiresAt(RunKey("missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.Put(UserKey("bob"), doc{Name: "bob"}, 0))

	require.NoError(t, s.Delete(UserKey("bob")))
	require.NoError(t, s.Delete(UserKey("bob")), "deleting twice is fine")

	assert.ErrorIs(t, s.Get(UserKey("bob"), &doc{}), ErrNotFound)
}

func TestKeys_ScopedToPrefix(t *testing.T) {
	// GIVEN entries under two prefixes
	s := openTest(t)
	require.NoError(t, s.Put(RunKey("r2"), doc{}, 0))
	require.NoError(t, s.Put(RunKey("r1"), doc{}, 0))
	require.NoError(t, s.Put(DatasetKey("d1"), doc{}, 0))

	// WHEN listing runs
	keys, err := s.Keys(PrefixRun)

	// THEN only runs come back, sorted, without the prefix
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, keys)
}

func TestEach_StopsOnError(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.Put(RunKey("r1"), doc{}, 0))
	require.NoError(t, s.Put(RunKey("r2"), doc{}, 0))

	boom := errors.New("boom")
	calls := 0
	err := s.Each(PrefixRun, func(string, []byte) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestPut_TTL(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.Put(SessionKey("tok"), doc{}, time.Hour))
	require.NoError(t, s.Put(UserKey("u"), doc{}, 0))

	at, err := s.ExpiresAt(SessionKey("tok"))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), at, 5*time.Second)

	at, err = s.ExpiresAt(UserKey("u"))
	require.NoError(t, err)
	assert.True(t, at.IsZero())
}

func TestOpen_OnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, s.Put(DatasetKey("x"), doc{Name: "x"}, 0))
	require.NoError(t, s.Close())

	// THEN data survives a reopen
	s, err = Open(Config{Path: dir})
	require.NoError(t, err)
	defer s.Close()
	var got doc
	require.NoError(t, s.Get(DatasetKey("x"), &got))
	assert.Equal(t, "x", got.Name)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestCreate_RejectsExistingKey(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.Create(UserKey("ann"), doc{Name: "first"}, 0))

	err := s.Create(UserKey("ann"), doc{Name: "second"}, 0)
	assert.ErrorIs(t, err, ErrExists)

	var got doc
	require.NoError(t, s.Get(UserKey("ann"), &got))
	assert.Equal(t, "first", got.Name, "existing value is kept")
}

func TestCreate_ConcurrentCreatorsOneWins(t *testing.T) {
	// GIVEN many goroutines creating the same key at once
	s := openTest(t)
	const n = 16
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Create(UserKey("race"), doc{Count: i}, 0)
		}(i)
	}
	wg.Wait()

	// THEN exactly one succeeds and the stored value is the winner's
	winner := -1
	for i, err := range errs {
		if err == nil {
			assert.Equal(t, -1, winner, "second successful create")
			winner = i
			continue
		}
		assert.ErrorIs(t, err, ErrExists)
	}
	require.NotEqual(t, -1, winner)
	var got doc
	require.NoError(t, s.Get(UserKey("race"), &got))
	assert.Equal(t, winner, got.Count)
}
