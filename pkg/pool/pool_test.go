package pool

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelize(t *testing.T) {
	for _, p := range []*Pool{nil, NewPool(0), NewPool(3)} {
		square := func(i int) int { return i * i }
		results := Parallelize(p, 100, square)
		for i, r := range results {
			assert.Equal(t, i*i, r)
		}
		assert.Empty(t, Parallelize(p, 0, square))
		p.TearDown()
	}
}

func TestParallelizeRunsEveryTask(t *testing.T) {
	p := NewPool(4)
	defer p.TearDown()

	var calls int64
	Parallelize(p, 1000, func(int) struct{} {
		atomic.AddInt64(&calls, 1)
		return struct{}{}
	})
	assert.EqualValues(t, 1000, calls)
	assert.Equal(t, 4, p.Workers())
	assert.Equal(t, 1, (*Pool)(nil).Workers())
}

func TestTearDownTwice(t *testing.T) {
	p := NewPool(1)
	p.TearDown()
	assert.NotPanics(t, p.TearDown)
}
