// Package peripheral implements a serial peripheral that frames
// NUL-terminated records arriving one byte at a time and, on an external
// trigger edge, transmits a configured string followed by a NUL.
//
// The two paths share nothing but the Device that owns them:
//   - Framer accumulates bytes in a fixed buffer and delivers each record to
//     a RecordHandler, either complete (ended by NUL) or truncated (buffer
//     full). The buffer is zeroed after every delivery.
//   - Transmitter holds the string to send in fixed storage and writes it,
//     byte by byte, to a ByteSink when the EdgeSource fires.
//
// Transports:
//   - RawPort: raw syscall-based Linux serial I/O, non-blocking reads, polled writes
//   - StreamPort: wraps go.bug.st/serial or github.com/tarm/serial ports
//   - SysfsEdge: GPIO edge interrupts through /sys/class/gpio, with debounce
//   - ManualEdge: software trigger
//   - Self-pipe mechanism for killability
//   - PTY-based tests for reliability
//
// This package does **not** support Windows.
//
// Example usage:
//
//	port, err := peripheral.OpenPort(peripheral.PortConfig{
//	    Device:   "/dev/ttyUSB0",
//	    BaudRate: 115200,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	edge := peripheral.NewManualEdge()
//	dev, err := peripheral.New(port, port, edge, peripheral.Config{
//	    MaxStringLen:  32,
//	    RxBufSize:     128,
//	    InitialString: "hello",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dev.Configure(peripheral.RecordHandlerFunc(func(data []byte, complete bool) {
//	    fmt.Printf("record %q complete=%v\n", data, complete)
//	}))
//
//	go dev.Run(ctx)
//	edge.Pulse() // sends "hello\x00"
package peripheral
