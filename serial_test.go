package peripheral

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
)

func openPTYPort(t *testing.T) (*RawPort, io.ReadWriteCloser) {
	t.Helper()
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	port, err := OpenRaw(PortConfig{
		Device:   slave.Name(),
		BaudRate: 115200,
	})
	require.NoError(t, err)
	t.Cleanup(func() { port.Close() })
	return port, master
}

func TestRawPort_ChatMasterSlave(t *testing.T) {
	port, master := openPTYPort(t)
	edge := NewManualEdge()

	records := make(chan record, 4)
	dev, err := New(port, port, edge, Config{MaxStringLen: 8, RxBufSize: 16, InitialString: "pong"},
		WithHandler(RecordHandlerFunc(func(data []byte, complete bool) {
			records <- record{data: append([]byte(nil), data...), complete: complete}
		})))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errors := make(chan error, 1)
	go func() { errors <- dev.Run(ctx) }()

	fromSlave := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 5)
		if _, err := io.ReadFull(master, buf); err != nil {
			errors <- err
			return
		}
		fromSlave <- buf
	}()

	// 1. Master writes to slave, the framer should deliver a record
	_, err = master.Write([]byte("ping\x00"))
	require.NoError(t, err)

	select {
	case r := <-records:
		require.True(t, r.complete)
		require.Equal(t, []byte("ping\x00"), r.data)
	case err := <-errors:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for record from master")
	}

	// 2. Trigger edge, master should receive the string and sentinel
	edge.Pulse()

	select {
	case msg := <-fromSlave:
		require.Equal(t, []byte("pong\x00"), msg)
	case err := <-errors:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for master to receive from slave")
	}
}

func TestRawPort_ReadByte(t *testing.T) {
	port, master := openPTYPort(t)

	_, err := port.ReadByte()
	require.ErrorIs(t, err, ErrNoData)

	_, err = master.Write([]byte{0x00, 0xff})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got []byte
	for len(got) < 2 {
		require.NoError(t, port.WaitReadable(ctx))
		for {
			b, err := port.ReadByte()
			if err == ErrNoData {
				break
			}
			require.NoError(t, err)
			got = append(got, b)
		}
	}
	require.Equal(t, []byte{0x00, 0xff}, got)
}

func TestRawPort_WriteByte(t *testing.T) {
	port, master := openPTYPort(t)

	for _, c := range []byte("AB\x00") {
		require.NoError(t, port.WriteByte(c))
	}

	buf := make([]byte, 3)
	_, err := io.ReadFull(master, buf)
	require.NoError(t, err)
	require.Equal(t, []byte("AB\x00"), buf)
}

func TestRawPort_Killability(t *testing.T) {
	port, _ := openPTYPort(t)

	done := make(chan error, 1)
	go func() { done <- port.WaitReadable(context.Background()) }()

	// Give the goroutine a chance to block
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, port.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for WaitReadable to exit after Close")
	}

	// Should be a no-op due to closeOnce
	require.NoError(t, port.Close())
	_, err := port.ReadByte()
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, port.WriteByte('x'), ErrClosed)
}

func TestRawPort_ContextCancel(t *testing.T) {
	port, _ := openPTYPort(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, port.WaitReadable(ctx), context.DeadlineExceeded)
}

func TestRawPort_ErrorPropagation(t *testing.T) {
	port, master := openPTYPort(t)

	dev, err := New(port, port, NewManualEdge(), Config{})
	require.NoError(t, err)

	errors := make(chan error, 1)
	go func() { errors <- dev.Run(context.Background()) }()

	// Simulate device disconnect by closing master
	require.NoError(t, master.Close())

	select {
	case err := <-errors:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for error after device disconnect")
	}
}

func TestOpenPort_Errors(t *testing.T) {
	_, err := OpenPort(PortConfig{Device: "/dev/ttyUSB0", Driver: "carrier-pigeon"})
	require.ErrorContains(t, err, "unknown serial driver")

	for _, driver := range []string{DriverRaw, DriverBugst, DriverTarm} {
		_, err := OpenPort(PortConfig{Device: "/nonexistent/tty", Driver: driver})
		require.Error(t, err, driver)
	}
}

func TestBaudToUnix_Fallback(t *testing.T) {
	require.Equal(t, baudToUnix(115200), baudToUnix(12345))
	require.NotEqual(t, baudToUnix(9600), baudToUnix(115200))
}
