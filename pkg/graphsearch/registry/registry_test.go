package registry

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r := New[string, int]()
	require.NotNil(t, r)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Keys())
}

func TestPutIfAbsent(t *testing.T) {
	r := New[string, float64]()

	assert.True(t, r.PutIfAbsent("a|b", 0.5))
	assert.False(t, r.PutIfAbsent("a|b", 0.9), "second write must be rejected")

	v, ok := r.Get("a|b")
	require.True(t, ok)
	assert.Equal(t, 0.5, v, "first writer wins")

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestLoadOrStore(t *testing.T) {
	r := New[string, string]()

	actual, loaded := r.LoadOrStore("k", "first")
	assert.False(t, loaded)
	assert.Equal(t, "first", actual)

	actual, loaded = r.LoadOrStore("k", "second")
	assert.True(t, loaded)
	assert.Equal(t, "first", actual)
	assert.Equal(t, 1, r.Len())
}

func TestHas(t *testing.T) {
	r := New[int, struct{}]()
	r.PutIfAbsent(7, struct{}{})

	assert.True(t, r.Has(7))
	assert.False(t, r.Has(8))
}

// TestInsertionOrder verifies Keys, Values and Range follow first insertion.
func TestInsertionOrder(t *testing.T) {
	r := New[string, int]()
	for i, k := range []string{"c", "a", "b"} {
		r.PutIfAbsent(k, i)
	}
	r.PutIfAbsent("a", 99)

	assert.Equal(t, []string{"c", "a", "b"}, r.Keys())
	assert.Equal(t, []int{0, 1, 2}, r.Values())

	var visited []string
	r.Range(func(k string, _ int) bool {
		visited = append(visited, k)
		return true
	})
	assert.Equal(t, []string{"c", "a", "b"}, visited)
}

func TestRangeEarlyStop(t *testing.T) {
	r := New[string, int]()
	r.PutIfAbsent("one", 1)
	r.PutIfAbsent("two", 2)
	r.PutIfAbsent("three", 3)

	count := 0
	r.Range(func(string, int) bool {
		count++
		return false
	})

	assert.Equal(t, 1, count)
}

func TestRangeAllowsMutation(t *testing.T) {
	r := New[string, int]()
	r.PutIfAbsent("one", 1)
	r.PutIfAbsent("two", 2)

	visited := 0
	r.Range(func(k string, v int) bool {
		visited++
		r.PutIfAbsent("new-"+k, v*10)
		return true
	})

	assert.Equal(t, 2, visited, "snapshot excludes entries added during iteration")
	assert.Equal(t, 4, r.Len())
	assert.Equal(t, []string{"one", "two", "new-one", "new-two"}, r.Keys())
}

func TestGetOrCreate(t *testing.T) {
	r := New[string, int]()

	callCount := 0
	factory := func() int {
		callCount++
		return 42
	}

	assert.Equal(t, 42, r.GetOrCreate("key", factory))
	assert.Equal(t, 42, r.GetOrCreate("key", factory))
	assert.Equal(t, 1, callCount)
}

func TestConcurrentPutIfAbsent(t *testing.T) {
	r := New[string, int]()
	var wg sync.WaitGroup
	var winners atomic.Int32

	for i := range 100 {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			if r.PutIfAbsent("path", v) {
				winners.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load(), "exactly one writer may win")
	assert.Equal(t, 1, r.Len())
}

func TestConcurrentGetOrCreate(t *testing.T) {
	r := New[string, int]()
	var wg sync.WaitGroup
	var callCount atomic.Int32

	factory := func() int {
		callCount.Add(1)
		return 42
	}

	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, 42, r.GetOrCreate("key", factory))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), callCount.Load())
}

func TestConcurrentReadWrite(t *testing.T) {
	r := New[int, int]()
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(2)
		go func(k int) {
			defer wg.Done()
			r.PutIfAbsent(k, k*2)
		}(i)
		go func(k int) {
			defer wg.Done()
			if v, ok := r.Get(k); ok {
				assert.Equal(t, k*2, v)
			}
			_ = r.Keys()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, r.Len())
	assert.Len(t, r.Keys(), 50)
}
