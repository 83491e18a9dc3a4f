package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReturnsChunkSize(t *testing.T) {
	buf := Get()
	defer Put(buf)

	assert.Equal(t, DefaultChunkSize, len(buf))
	assert.Equal(t, DefaultChunkSize, cap(buf))
}

func TestPutAndReuse(t *testing.T) {
	buf1 := Get()
	Put(buf1)

	buf2 := Get()
	Put(buf2)

	assert.Equal(t, cap(buf1), cap(buf2))
}

func TestPutRejectsNilAndWrongSize(t *testing.T) {
	require.NotPanics(t, func() {
		Put(nil)
	})

	require.NotPanics(t, func() {
		Put([]byte{1, 2, 3})
	})
}

func TestGetPutGetSequence(t *testing.T) {
	for i := 0; i < 5; i++ {
		buf := Get()
		assert.Equal(t, DefaultChunkSize, len(buf))
		Put(buf)
	}
}

func TestConcurrentGetAndPut(t *testing.T) {
	const numGoroutines = 10
	const iterations = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()

			for j := 0; j < iterations; j++ {
				buf := Get()
				buf[0] = byte(id)
				Put(buf)
			}
		}(i)
	}

	wg.Wait()
}

func BenchmarkGet(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := Get()
		Put(buf)
	}
}

func BenchmarkGetParallel(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf := Get()
			Put(buf)
		}
	})
}
