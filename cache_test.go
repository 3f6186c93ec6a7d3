package intercept

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindingCache_ResolvesExactlyOnce(t *testing.T) {
	var c bindingCache
	var resolves atomic.Int64
	key := beginKey("x", typeOf[*service](), nil)

	const workers = 64
	var wg sync.WaitGroup
	results := make([]*binding, workers)
	start := make(chan struct{})

	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[w] = c.getOrResolve(key, func() binding {
				resolves.Add(1)
				return binding{integration: "x"}
			})
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int64(1), resolves.Load())
	for _, b := range results {
		// All callers observe the identical published binding.
		assert.Same(t, results[0], b)
	}
	assert.Equal(t, 1, c.len())
}

func TestBindingCache_DistinctKeysResolveIndependently(t *testing.T) {
	var c bindingCache
	var resolves atomic.Int64

	keys := []shapeKey{
		beginKey("x", typeOf[*service](), nil),
		beginKey("x", typeOf[*service](), []reflect.Type{typeOf[int]()}),
		beginKey("y", typeOf[*service](), nil),
		endKey("x", typeOf[*service](), typeOf[int]()),
	}
	for _, key := range keys {
		for i := 0; i < 3; i++ {
			c.getOrResolve(key, func() binding {
				resolves.Add(1)
				return binding{}
			})
		}
	}

	assert.Equal(t, int64(len(keys)), resolves.Load())
	assert.Equal(t, len(keys), c.len())
}

func TestShapeKey_OverflowArities(t *testing.T) {
	intT := typeOf[int]()
	strT := typeOf[string]()

	wide := make([]reflect.Type, maxSpecializedArity+2)
	for i := range wide {
		wide[i] = intT
	}
	other := make([]reflect.Type, maxSpecializedArity+2)
	copy(other, wide)
	other[maxSpecializedArity+1] = strT

	a := beginKey("x", typeOf[*service](), wide)
	b := beginKey("x", typeOf[*service](), other)
	assert.NotEqual(t, a, b, "overflow argument types must distinguish keys")

	again := beginKey("x", typeOf[*service](), wide)
	assert.Equal(t, a, again)
}
