package server

import (
	"bytes"
	"sync"
)

// Buffer pools for reducing allocations

// chunkBufferPool holds 1KB buffers for socket reads and file streaming
var chunkBufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, 1024)
		return &buf
	},
}

// requestBufferPool holds 2KB buffers for accumulating request headers
var requestBufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, 2048)
		return &buf
	},
}

// headerBufferPool holds bytes.Buffer for building response headers
var headerBufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// Pool size limits - buffers larger than this are discarded
const (
	maxPoolBufferSize = 16384 // 16KB
)

// getChunk returns a pooled buffer of at least size bytes.
func getChunk(size int) (*[]byte, []byte) {
	ptr := chunkBufferPool.Get().(*[]byte)
	if cap(*ptr) < size {
		buf := make([]byte, size)
		ptr = &buf
	}
	return ptr, (*ptr)[:size]
}

func putChunk(ptr *[]byte) {
	if cap(*ptr) <= maxPoolBufferSize {
		chunkBufferPool.Put(ptr)
	}
}
