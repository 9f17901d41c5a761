package peripheral

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const defaultGPIORoot = "/sys/class/gpio"

// EdgeConfig selects a sysfs GPIO line used as trigger input.
type EdgeConfig struct {
	GPIO      int
	ActiveLow bool          // trigger on transitions to 0 instead of 1
	Debounce  time.Duration // edges closer than this to the last accepted one are ignored
	Root      string        // default /sys/class/gpio
}

// edgeFilter qualifies raw interrupts: only transitions to the active level
// count, and only once per debounce window.
type edgeFilter struct {
	activeLow bool
	debounce  time.Duration
	last      time.Time
}

func (f *edgeFilter) accept(value byte, now time.Time) bool {
	active := value == '1'
	if f.activeLow {
		active = value == '0'
	}
	if !active {
		return false
	}
	if f.debounce > 0 && !f.last.IsZero() && now.Sub(f.last) < f.debounce {
		return false
	}
	f.last = now
	return true
}

// SysfsEdge waits for edges on a GPIO exported through sysfs.
type SysfsEdge struct {
	fd        int
	path      string
	filter    edgeFilter
	done      chan struct{}
	closeOnce sync.Once
	pipeR     int
	pipeW     int
	buf       [2]byte
}

// OpenSysfsEdge exports cfg.GPIO if needed, arms edge interrupts on it and
// opens its value file. Failures wrap ErrNotReady.
func OpenSysfsEdge(cfg EdgeConfig) (*SysfsEdge, error) {
	root := cfg.Root
	if root == "" {
		root = defaultGPIORoot
	}
	dir := filepath.Join(root, "gpio"+strconv.Itoa(cfg.GPIO))

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(filepath.Join(root, "export"), []byte(strconv.Itoa(cfg.GPIO)), 0); err != nil {
			return nil, fmt.Errorf("%w: export gpio%d: %v", ErrNotReady, cfg.GPIO, err)
		}
	}

	edge := "rising"
	if cfg.ActiveLow {
		edge = "falling"
	}
	if err := os.WriteFile(filepath.Join(dir, "direction"), []byte("in"), 0); err != nil {
		return nil, fmt.Errorf("%w: gpio%d direction: %v", ErrNotReady, cfg.GPIO, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "edge"), []byte(edge), 0); err != nil {
		return nil, fmt.Errorf("%w: gpio%d edge: %v", ErrNotReady, cfg.GPIO, err)
	}

	path := filepath.Join(dir, "value")
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrNotReady, path, err)
	}

	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("pipe: %w", err)
	}

	e := &SysfsEdge{
		fd:     fd,
		path:   path,
		filter: edgeFilter{activeLow: cfg.ActiveLow, debounce: cfg.Debounce},
		done:   make(chan struct{}),
		pipeR:  pipeFds[0],
		pipeW:  pipeFds[1],
	}
	// Reading clears the interrupt pending from before we were armed.
	if _, err := e.readValue(); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *SysfsEdge) readValue() (byte, error) {
	n, err := unix.Pread(e.fd, e.buf[:], 0)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", e.path, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("read %s: empty value", e.path)
	}
	return e.buf[0], nil
}

// WaitEdge blocks until the line moves to its active level, outside the
// debounce window.
func (e *SysfsEdge) WaitEdge(ctx context.Context) error {
	for {
		pfd := []unix.PollFd{
			{Fd: int32(e.fd), Events: unix.POLLPRI | unix.POLLERR},
			{Fd: int32(e.pipeR), Events: unix.POLLIN},
		}
		_, err := unix.Poll(pfd, int(pollInterval/time.Millisecond))
		if err != nil && err != unix.EINTR {
			return fmt.Errorf("poll: %w", err)
		}
		select {
		case <-e.done:
			return ErrClosed
		default:
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if pfd[0].Revents&(unix.POLLPRI|unix.POLLERR) == 0 {
			continue
		}
		v, err := e.readValue()
		if err != nil {
			return err
		}
		if e.filter.accept(v, time.Now()) {
			return nil
		}
	}
}

// Close releases the value file and wakes WaitEdge.
func (e *SysfsEdge) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.done)
		unix.Write(e.pipeW, []byte{1})
		err = unix.Close(e.fd)
		unix.Close(e.pipeR)
		unix.Close(e.pipeW)
	})
	return err
}
