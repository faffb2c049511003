package concurrent

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackPushPopOrder(t *testing.T) {
	var s Stack[int]
	s.Push(1)
	s.Push(2)
	s.Push(3)

	v, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, 3, v)

	v, ok = s.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestStackPopEmpty(t *testing.T) {
	var s Stack[string]
	_, ok := s.Pop()
	assert.False(t, ok)
}

func TestStackConcurrentPushDrainsExactlyOnce(t *testing.T) {
	var s Stack[int]
	const n = 2000

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			s.Push(v)
		}(i)
	}
	wg.Wait()
	require.Equal(t, n, s.Len())

	seen := make(map[int]bool, n)
	var mu sync.Mutex
	var pop sync.WaitGroup
	for w := 0; w < 8; w++ {
		pop.Add(1)
		go func() {
			defer pop.Done()
			for {
				v, ok := s.Pop()
				if !ok {
					return
				}
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	pop.Wait()

	assert.Len(t, seen, n)
	_, ok := s.Pop()
	assert.False(t, ok)
}
