package peripheral

import (
	"fmt"
	"time"

	tarm "github.com/tarm/serial"
	bugst "go.bug.st/serial"
)

const defaultReadTimeout = 100 * time.Millisecond

// OpenPort opens a serial port with the driver named in cfg.Driver.
func OpenPort(cfg PortConfig) (Port, error) {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 115200
	}
	switch cfg.Driver {
	case "", DriverRaw:
		return OpenRaw(cfg)
	case DriverBugst:
		return openBugst(cfg)
	case DriverTarm:
		return openTarm(cfg)
	default:
		return nil, fmt.Errorf("unknown serial driver %q", cfg.Driver)
	}
}

func openBugst(cfg PortConfig) (*StreamPort, error) {
	port, err := bugst.Open(cfg.Device, &bugst.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return NewStreamPort(port, StreamConfig{}), nil
}

func openTarm(cfg PortConfig) (*StreamPort, error) {
	port, err := tarm.OpenPort(&tarm.Config{
		Name:        cfg.Device,
		Baud:        cfg.BaudRate,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	// tarm reports a read timeout as a zero-length read with io.EOF
	return NewStreamPort(port, StreamConfig{IdleOnEOF: true}), nil
}
