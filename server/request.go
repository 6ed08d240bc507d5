package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var (
	// ErrNoRequest means the peer went away before sending a full header
	// block. The connection is released without a response.
	ErrNoRequest = errors.New("no request")

	// ErrRequestTooLarge means no header terminator arrived within the
	// request buffer.
	ErrRequestTooLarge = errors.New("request header too large")

	// ErrBadRequest marks malformed input answered with a 400.
	ErrBadRequest = errors.New("bad request")
)

var (
	headerTerminator = []byte("\r\n\r\n")
	lineTerminator   = []byte("\r\n")
	contentLength    = []byte("Content-Length:")
)

// Request is one received header block plus whatever body bytes arrived with it.
type Request struct {
	raw       []byte
	headerEnd int
}

// readRequest reads from r until the header terminator is seen or maxSize
// bytes have been buffered.
func readRequest(r io.Reader, maxSize int) (*Request, error) {
	bufPtr := requestBufferPool.Get().(*[]byte)
	buffer := (*bufPtr)[:0]

	defer func() {
		if cap(buffer) <= maxPoolBufferSize {
			*bufPtr = buffer[:0]
			requestBufferPool.Put(bufPtr)
		}
	}()

	chunkPtr, chunk := getChunk(1024)
	defer putChunk(chunkPtr)

	for {
		if len(buffer) >= maxSize {
			return nil, ErrRequestTooLarge
		}

		limit := min(len(chunk), maxSize-len(buffer))
		n, err := r.Read(chunk[:limit])

		// Only the tail can complete a terminator split across reads.
		from := max(0, len(buffer)-len(headerTerminator)+1)
		buffer = append(buffer, chunk[:n]...)

		if idx := bytes.Index(buffer[from:], headerTerminator); idx >= 0 {
			raw := make([]byte, len(buffer))
			copy(raw, buffer)
			return &Request{raw: raw, headerEnd: from + idx}, nil
		}

		if err != nil {
			if len(buffer) == 0 && err == io.EOF {
				return nil, ErrNoRequest
			}
			return nil, fmt.Errorf("%w: %v", ErrNoRequest, err)
		}
	}
}

// FirstLine returns the request line without its CRLF.
func (r *Request) FirstLine() []byte {
	head := r.raw[:r.headerEnd]
	if i := bytes.Index(head, lineTerminator); i >= 0 {
		return head[:i]
	}
	return head
}

// HeaderBlock returns the bytes between the request line and the
// terminator; empty when the request has no header lines.
func (r *Request) HeaderBlock() []byte {
	head := r.raw[:r.headerEnd]
	i := bytes.Index(head, lineTerminator)
	if i < 0 {
		return nil
	}
	return head[i+len(lineTerminator):]
}

// Body returns the bytes received after the terminator.
func (r *Request) Body() []byte {
	return r.raw[r.headerEnd+len(headerTerminator):]
}

// ContentLength parses the Content-Length header line.
func (r *Request) ContentLength() (int, error) {
	for _, line := range bytes.Split(r.HeaderBlock(), lineTerminator) {
		if !bytes.HasPrefix(line, contentLength) {
			continue
		}
		value := string(bytes.TrimSpace(line[len(contentLength):]))
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: invalid Content-Length %q", ErrBadRequest, value)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: missing Content-Length", ErrBadRequest)
}

// readBody returns exactly n body bytes, reading past the header block from
// r when fewer arrived with it.
func (r *Request) readBody(rd io.Reader, n int) ([]byte, error) {
	have := r.Body()
	if len(have) >= n {
		return have[:n], nil
	}

	body := make([]byte, n)
	copied := copy(body, have)
	if _, err := io.ReadFull(rd, body[copied:]); err != nil {
		return nil, fmt.Errorf("%w: truncated body (%d of %d bytes): %v", ErrBadRequest, copied, n, err)
	}
	return body, nil
}
