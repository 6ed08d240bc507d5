package server

import (
	"strconv"
	"sync"
)

// StoredBufferSize caps the payload kept by write requests.
const StoredBufferSize = 1024

const storedSentinel = "<empty>"

// StoredBuffer holds the last payload submitted by a write request.
type StoredBuffer struct {
	mu   sync.Mutex
	data [StoredBufferSize]byte
	size int
}

// NewStoredBuffer returns a buffer holding the "<empty>" sentinel.
func NewStoredBuffer() *StoredBuffer {
	b := &StoredBuffer{}
	b.size = copy(b.data[:], storedSentinel)
	return b
}

// Store replaces the contents with p, truncated to StoredBufferSize, and
// returns the number of bytes kept.
func (b *StoredBuffer) Store(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.size = copy(b.data[:], p)
	return b.size
}

// Load returns a copy of the current contents.
func (b *StoredBuffer) Load() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, b.size)
	copy(out, b.data[:b.size])
	return out
}

// Stats are the running counters reported by the stats command. They are
// never reset.
type Stats struct {
	mu          sync.Mutex
	requests    int64
	headerBytes int64
	bodyBytes   int64
	errors      int64
	errorBytes  int64
}

// StatsSnapshot is a copy of the counters taken under one lock acquisition.
type StatsSnapshot struct {
	Requests    int64
	HeaderBytes int64
	BodyBytes   int64
	Errors      int64
	ErrorBytes  int64
}

// RecordResponse counts one fully sent success response.
func (s *Stats) RecordResponse(head, body int) {
	s.mu.Lock()
	s.requests++
	s.headerBytes += int64(head)
	s.bodyBytes += int64(body)
	s.mu.Unlock()
}

func (s *Stats) RecordHeader(n int) {
	s.mu.Lock()
	s.headerBytes += int64(n)
	s.mu.Unlock()
}

func (s *Stats) RecordBody(n int) {
	s.mu.Lock()
	s.bodyBytes += int64(n)
	s.mu.Unlock()
}

// RecordRequest counts a streamed response whose bytes were already recorded.
func (s *Stats) RecordRequest() {
	s.mu.Lock()
	s.requests++
	s.mu.Unlock()
}

// RecordError counts one error response of n bytes.
func (s *Stats) RecordError(n int) {
	s.mu.Lock()
	s.errors++
	s.errorBytes += int64(n)
	s.mu.Unlock()
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		Requests:    s.requests,
		HeaderBytes: s.headerBytes,
		BodyBytes:   s.bodyBytes,
		Errors:      s.errors,
		ErrorBytes:  s.errorBytes,
	}
}

// Body renders the snapshot in the stats response format, without a
// trailing newline.
func (s StatsSnapshot) Body() []byte {
	buf := make([]byte, 0, 96)
	buf = append(buf, "Requests: "...)
	buf = strconv.AppendInt(buf, s.Requests, 10)
	buf = append(buf, "\nHeader bytes: "...)
	buf = strconv.AppendInt(buf, s.HeaderBytes, 10)
	buf = append(buf, "\nBody bytes: "...)
	buf = strconv.AppendInt(buf, s.BodyBytes, 10)
	buf = append(buf, "\nErrors: "...)
	buf = strconv.AppendInt(buf, s.Errors, 10)
	buf = append(buf, "\nError bytes: "...)
	buf = strconv.AppendInt(buf, s.ErrorBytes, 10)
	return buf
}
