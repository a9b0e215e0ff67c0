package starlark

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestThreadPool_GetPut(t *testing.T) {
	pool := NewThreadPool(5, nil)

	thread := pool.Get("test1")
	require.NotNil(t, thread, "Get returned nil")
	assert.Equal(t, "test1", thread.Name, "thread.Name")

	pool.Put(thread)
	assert.Equal(t, 1, pool.Size(), "pool size after put")

	// reused
	thread2 := pool.Get("test2")
	assert.Equal(t, 0, pool.Size(), "pool size after get")
	assert.Equal(t, "test2", thread2.Name, "thread.Name after reuse")
}

func TestThreadPool_MaxSize(t *testing.T) {
	pool := NewThreadPool(2, nil)

	threads := make([]*starlark.Thread, 3)
	for i := range threads {
		threads[i] = pool.Get("test")
	}
	for _, thread := range threads {
		pool.Put(thread)
	}

	assert.Equal(t, 2, pool.Size(), "pool size should be max (2)")
}

func TestThreadPool_Print(t *testing.T) {
	var got []string
	pool := NewThreadPool(1, func(thread, msg string) {
		got = append(got, thread+": "+msg)
	})

	thread := pool.Get("script")
	_, err := starlark.ExecFile(thread, "print.star", `print("hello")`, nil) //nolint:staticcheck // SA1019: will migrate to ExecFileOptions later
	require.NoError(t, err)
	assert.Equal(t, []string{"script: hello"}, got)
}

func TestThreadPool_Concurrent(t *testing.T) {
	pool := NewThreadPool(10, nil)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Put(pool.Get("concurrent"))
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, pool.Size(), 10, "pool size should not exceed max of 10")
}
