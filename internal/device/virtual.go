package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// ErrSocatMissing is returned when socat is not installed.
var ErrSocatMissing = errors.New("socat not found in PATH")

// VirtualPair is a socat-created pair of linked pseudo terminals. Lines
// written to one end can be read from the other, which lets the bridge run
// against the line simulator without hardware.
type VirtualPair struct {
	Left, Right string

	logger *slog.Logger
	cmd    *exec.Cmd
	mu     sync.Mutex
	closed bool
}

// StartVirtualPair starts socat linking left and right and waits until both
// links exist.
func StartVirtualPair(ctx context.Context, left, right string, logger *slog.Logger) (*VirtualPair, error) {
	if _, err := exec.LookPath("socat"); err != nil {
		return nil, ErrSocatMissing
	}

	cmd := exec.Command(
		"socat", "-d", "-d",
		fmt.Sprintf("pty,raw,echo=0,link=%s", left),
		fmt.Sprintf("pty,raw,echo=0,link=%s", right),
	)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("socat stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start socat: %w", err)
	}
	go logLines(stderr, logger.With("component", "socat"))

	v := &VirtualPair{Left: left, Right: right, logger: logger, cmd: cmd}
	logger.Info("virtual serial started", "pid", cmd.Process.Pid, "left", left, "right", right)

	waitCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	for !exists(left) || !exists(right) {
		select {
		case <-waitCtx.Done():
			_ = v.Close()
			return nil, fmt.Errorf("socat links not ready: %w", waitCtx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}
	return v, nil
}

// Close stops socat and removes the links. It is safe to call more than once.
func (v *VirtualPair) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true

	if v.cmd.Process != nil {
		_ = v.cmd.Process.Kill()
		_ = v.cmd.Wait()
	}
	for _, path := range []string{v.Left, v.Right} {
		if _, err := os.Lstat(path); err == nil {
			_ = os.Remove(path)
		}
	}
	v.logger.Info("virtual serial stopped", "left", v.Left, "right", v.Right)
	return nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func logLines(r io.Reader, logger *slog.Logger) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		logger.Debug(sc.Text())
	}
}
