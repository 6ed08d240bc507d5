package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/codetesla51/poolserver/logger"
	"github.com/codetesla51/poolserver/metrics"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

// NewFileSystem returns a read-only view of root. Paths that resolve
// outside root fail to open.
func NewFileSystem(root string) afero.Fs {
	return afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), root))
}

// fileName extracts <name> from "GET /<name> HTTP/1.1".
func fileName(first []byte) string {
	name := first[len(filePrefix):]
	if i := bytes.IndexByte(name, ' '); i >= 0 {
		name = name[:i]
	}
	return string(name)
}

// handleFile streams a file: the header with its exact size, then the
// contents in FileChunkSize pieces. Header bytes are counted once, body
// bytes per chunk and the request once the whole body is out.
func (h *Handler) handleFile(c *Conn, req *Request) (string, error) {
	name := fileName(req.FirstLine())
	if name == "" {
		return h.notFound(c)
	}

	f, err := h.files.Open(name)
	if err != nil {
		logger.Debug("file not found", "conn", c.ID, "path", name, "error", err)
		return h.notFound(c)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return h.notFound(c)
	}
	size := info.Size()
	logger.Debug("streaming file", "conn", c.ID, "path", name, "size", humanize.Bytes(uint64(size)))

	head := okHeader(size)
	if err := h.write(c, head); err != nil {
		return "", err
	}
	h.stats.RecordHeader(len(head))
	h.metrics.RecordBytes(metrics.BytesHeader, len(head))

	chunkPtr, chunk := getChunk(h.config.FileChunkSize)
	defer putChunk(chunkPtr)

	var sent int64
	for sent < size {
		limit := int(min(int64(len(chunk)), size-sent))
		n, rerr := f.Read(chunk[:limit])
		if n > 0 {
			if err := h.write(c, chunk[:n]); err != nil {
				return "", err
			}
			sent += int64(n)
			h.stats.RecordBody(n)
			h.metrics.RecordBytes(metrics.BytesBody, n)
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return "", fmt.Errorf("read %s: %w", name, rerr)
		}
	}

	// The declared length cannot be honoured once the header is out.
	if sent != size {
		return "", fmt.Errorf("%s shrank while streaming: sent %d of %d bytes", name, sent, size)
	}

	h.stats.RecordRequest()
	return statusOK, nil
}
