// Package mempool recycles the large per-image buffers of the rectifier:
// pixel planes for intermediate filter images and Hough vote arrays.
package mempool

import (
	"sync"
)

// sizeClass rounds n up to the next multiple of 1024, with 1024 as minimum.
func sizeClass(n int) int {
	const step = 1024
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

// sizedPool keeps one sync.Pool per size class.
type sizedPool[T any] struct {
	pools sync.Map // size class (int) -> *sync.Pool
}

func (sp *sizedPool[T]) pool(cls int) *sync.Pool {
	pAny, _ := sp.pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	return pAny.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// get returns a slice of length n. Contents are whatever the previous user
// left behind.
func (sp *sizedPool[T]) get(n int) []T {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	buf, ok := sp.pool(cls).Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	return buf[:n]
}

func (sp *sizedPool[T]) put(buf []T) {
	if buf == nil {
		return
	}
	// Capacities below a class boundary would be handed out too short.
	cls := sizeClass(cap(buf))
	if cap(buf) != cls {
		return
	}
	sp.pool(cls).Put(buf[:cap(buf)]) //nolint:staticcheck // slices are small headers
}

var (
	bytePool  sizedPool[byte]
	int32Pool sizedPool[int32]
)

// GetBytes returns a pixel buffer of length n. It is not zeroed; callers
// must overwrite every element.
func GetBytes(n int) []byte {
	return bytePool.get(n)
}

// PutBytes returns a buffer to the pool. It is safe to pass a nil slice.
func PutBytes(buf []byte) {
	bytePool.put(buf)
}

// GetInt32 returns a zeroed counter buffer of length n.
func GetInt32(n int) []int32 {
	buf := int32Pool.get(n)
	clear(buf)
	return buf
}

// PutInt32 returns a buffer to the pool. It is safe to pass a nil slice.
func PutInt32(buf []int32) {
	int32Pool.put(buf)
}
