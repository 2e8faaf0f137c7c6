package device

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// StreamDevice adapts an io.ReadWriteCloser to Device. A single reader
// goroutine owns the stream so reads abandoned on ctx never lose data.
type StreamDevice struct {
	rwc   io.ReadWriteCloser
	lines chan string

	wmu sync.Mutex

	mu      sync.Mutex
	readErr error
	closed  chan struct{}
	once    sync.Once
}

// NewStreamDevice starts reading lines from rwc immediately.
func NewStreamDevice(rwc io.ReadWriteCloser) *StreamDevice {
	d := &StreamDevice{
		rwc:    rwc,
		lines:  make(chan string, 16),
		closed: make(chan struct{}),
	}
	go d.readLoop()
	return d
}

func (d *StreamDevice) readLoop() {
	defer close(d.lines)
	br := bufio.NewReader(d.rwc)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			select {
			case d.lines <- strings.TrimRight(line, "\r\n"):
			case <-d.closed:
				return
			}
		}
		if err != nil {
			d.mu.Lock()
			d.readErr = err
			d.mu.Unlock()
			return
		}
	}
}

// ReadLine implements Device. Once the stream has ended it returns
// ErrStreamEnded wrapping the terminal read error, io.EOF for a clean end.
func (d *StreamDevice) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-d.closed:
		return "", ErrNotOpen
	default:
	}
	select {
	case line, ok := <-d.lines:
		if !ok {
			return "", d.err()
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-d.closed:
		return "", ErrNotOpen
	}
}

func (d *StreamDevice) err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	select {
	case <-d.closed:
		return ErrNotOpen
	default:
	}
	if d.readErr == nil {
		return fmt.Errorf("%w: %w", ErrStreamEnded, io.EOF)
	}
	return fmt.Errorf("%w: %w", ErrStreamEnded, d.readErr)
}

// WriteLine implements Device.
func (d *StreamDevice) WriteLine(s string) error {
	select {
	case <-d.closed:
		return ErrNotOpen
	default:
	}
	d.wmu.Lock()
	defer d.wmu.Unlock()
	_, err := io.WriteString(d.rwc, s+"\n")
	return err
}

// Close implements Device. It is safe to call more than once.
func (d *StreamDevice) Close() error {
	var err error
	d.once.Do(func() {
		close(d.closed)
		err = d.rwc.Close()
	})
	return err
}
