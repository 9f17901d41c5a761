package peripheral

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Port drivers accepted by PortConfig.Driver.
const (
	DriverRaw   = "raw"
	DriverBugst = "bugst"
	DriverTarm  = "tarm"
)

// pollInterval bounds how long a poll sleeps before rechecking ctx.
const pollInterval = 50 * time.Millisecond

// PortConfig holds configuration parameters for opening a serial port.
type PortConfig struct {
	Device      string
	BaudRate    int
	Driver      string        // default DriverRaw
	ReadTimeout time.Duration // idle read timeout for stream drivers, default 100ms
}

// RawPort is a Linux serial port driven through raw syscalls. The
// descriptor stays non-blocking: ReadByte never waits and WriteByte polls
// until the byte is accepted.
type RawPort struct {
	fd        int
	done      chan struct{}
	closeOnce sync.Once
	config    PortConfig
	pipeR     int // self-pipe read fd
	pipeW     int // self-pipe write fd

	rbuf    [1]byte
	writeMu sync.Mutex
	wbuf    [1]byte
}

// OpenRaw opens cfg.Device in raw 8N1 mode.
func OpenRaw(cfg PortConfig) (*RawPort, error) {
	fd, err := unix.Open(cfg.Device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0666)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}

	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("get termios: %w", err)
	}

	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB
	termios.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL

	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= baudToUnix(cfg.BaudRate)

	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set termios: %w", err)
	}

	// Self-pipe wakes pollers on Close
	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("pipe: %w", err)
	}

	return &RawPort{
		fd:     fd,
		done:   make(chan struct{}),
		config: cfg,
		pipeR:  pipeFds[0],
		pipeW:  pipeFds[1],
	}, nil
}

// ReadByte reads one byte if one is ready, otherwise returns ErrNoData.
func (p *RawPort) ReadByte() (byte, error) {
	if p.isClosed() {
		return 0, ErrClosed
	}
	n, err := unix.Read(p.fd, p.rbuf[:])
	switch {
	case err == unix.EAGAIN || err == unix.EINTR:
		return 0, ErrNoData
	case err != nil:
		return 0, fmt.Errorf("read: %w", err)
	case n == 0:
		return 0, io.EOF
	}
	return p.rbuf[0], nil
}

// WaitReadable blocks until input is pending, the port is closed or ctx is
// done.
func (p *RawPort) WaitReadable(ctx context.Context) error {
	return p.wait(ctx, unix.POLLIN)
}

// WriteByte writes c, polling while the output queue is full.
func (p *RawPort) WriteByte(c byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.wbuf[0] = c
	for {
		if p.isClosed() {
			return ErrClosed
		}
		n, err := unix.Write(p.fd, p.wbuf[:])
		if n == 1 {
			return nil
		}
		if err != nil && err != unix.EAGAIN && err != unix.EINTR {
			return fmt.Errorf("write: %w", err)
		}
		if err := p.wait(context.Background(), unix.POLLOUT); err != nil {
			return err
		}
	}
}

func (p *RawPort) wait(ctx context.Context, events int16) error {
	for {
		pfd := []unix.PollFd{
			{Fd: int32(p.fd), Events: events},
			{Fd: int32(p.pipeR), Events: unix.POLLIN},
		}
		_, err := unix.Poll(pfd, int(pollInterval/time.Millisecond))
		if err != nil && err != unix.EINTR {
			return fmt.Errorf("poll: %w", err)
		}
		if p.isClosed() || pfd[1].Revents&unix.POLLIN != 0 {
			return ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if pfd[0].Revents&events != 0 {
			return nil
		}
		if pfd[0].Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
			return fmt.Errorf("%s: %w", p.config.Device, io.ErrUnexpectedEOF)
		}
	}
}

func (p *RawPort) isClosed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Close closes the port and unblocks any waiting ReadByte/WriteByte callers.
// Safe to call multiple times; subsequent calls are no-ops.
func (p *RawPort) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		// Wake up poll using self-pipe; the pipe is left readable so every
		// poller sees it.
		unix.Write(p.pipeW, []byte{1})
		err = unix.Close(p.fd)
		unix.Close(p.pipeR)
		unix.Close(p.pipeW)
	})
	return err
}

func baudToUnix(baud int) uint32 {
	switch baud {
	case 1200:
		return unix.B1200
	case 2400:
		return unix.B2400
	case 4800:
		return unix.B4800
	case 9600:
		return unix.B9600
	case 19200:
		return unix.B19200
	case 38400:
		return unix.B38400
	case 57600:
		return unix.B57600
	case 115200:
		return unix.B115200
	case 230400:
		return unix.B230400
	case 460800:
		return unix.B460800
	case 921600:
		return unix.B921600
	default:
		return unix.B115200 // fallback
	}
}
