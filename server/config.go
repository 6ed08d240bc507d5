package server

import "time"

// Config holds the per-connection protocol limits and timeouts.
type Config struct {
	// ReadTimeout and WriteTimeout bound each network call; zero disables them
	// and a stalled client then holds its worker until the peer goes away.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxRequestSize bounds the header block received before "\r\n\r\n".
	MaxRequestSize int

	// FileChunkSize is the read size used when streaming files.
	FileChunkSize int

	// FileRoot is the directory file requests resolve against.
	FileRoot string

	// AcceptRate limits accepted connections per second; zero means unlimited.
	AcceptRate  float64
	AcceptBurst int

	EnableLogging bool
}

func DefaultConfig() *Config {
	return &Config{
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxRequestSize: 2048,
		FileChunkSize:  1024,
		FileRoot:       ".",
		EnableLogging:  false,
	}
}
