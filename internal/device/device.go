// Package device provides line-oriented transports for sensor streams: real
// serial ports, virtual socat pairs for bench testing, and any other
// io.ReadWriteCloser.
package device

import (
	"context"
	"errors"
)

var (
	// ErrNotOpen is returned by operations on a closed device.
	ErrNotOpen = errors.New("device not open")
	// ErrStreamEnded wraps the error that terminated a stream. Every read after
	// it fails the same way, so the device must be reopened.
	ErrStreamEnded = errors.New("stream ended")
)

// Device is a newline-delimited text transport.
type Device interface {
	// ReadLine blocks until a full line arrives, the stream ends or ctx is
	// done. The line is returned without its terminator.
	ReadLine(ctx context.Context) (string, error)

	// WriteLine writes s followed by '\n'.
	WriteLine(s string) error

	// Close releases the transport and unblocks pending reads.
	Close() error
}
