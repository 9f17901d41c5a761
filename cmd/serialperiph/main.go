package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	peripheral "github.com/luhtfiimanal/go-serial-peripheral"
)

var (
	configPath = flag.String("config", "", "YAML config file")
	device     = flag.String("device", "", "Serial device path (overrides config)")
	baud       = flag.Int("baud", 0, "Baud rate (overrides config)")
	driver     = flag.String("driver", "", "Serial driver: raw, bugst or tarm (overrides config)")
	gpio       = flag.Int("gpio", -1, "Trigger GPIO number; -1 uses SIGUSR1 (overrides config)")
	text       = flag.String("string", "", "Initial transmit string (overrides config)")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	overrideFromFlags(cfg)

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("peripheral stopped")
	}
}

func overrideFromFlags(cfg *config) {
	if *device != "" {
		cfg.Port.Device = *device
	}
	if *baud != 0 {
		cfg.Port.Baud = *baud
	}
	if *driver != "" {
		cfg.Port.Driver = *driver
	}
	if *gpio >= 0 {
		cfg.Trigger.GPIO = gpio
	}
	if *text != "" {
		cfg.InitialString = *text
	}
}

func run(cfg *config, log zerolog.Logger) error {
	port, err := peripheral.OpenPort(peripheral.PortConfig{
		Device:      cfg.Port.Device,
		BaudRate:    cfg.Port.Baud,
		Driver:      cfg.Port.Driver,
		ReadTimeout: cfg.Port.ReadTimeout,
	})
	if err != nil {
		return err
	}
	defer port.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var edge peripheral.EdgeSource
	if cfg.Trigger.GPIO != nil {
		sysfs, err := peripheral.OpenSysfsEdge(peripheral.EdgeConfig{
			GPIO:      *cfg.Trigger.GPIO,
			ActiveLow: cfg.Trigger.ActiveLow,
			Debounce:  cfg.Trigger.Debounce,
		})
		if err != nil {
			return err
		}
		defer sysfs.Close()
		edge = sysfs
	} else {
		manual := peripheral.NewManualEdge()
		defer manual.Close()
		go pulseOnSignal(ctx, manual, log)
		edge = manual
	}

	tally := peripheral.NewTally(log)
	dev, err := peripheral.New(port, port, edge, peripheral.Config{
		MaxStringLen:  cfg.MaxStringLen,
		RxBufSize:     cfg.RxBufSize,
		InitialString: cfg.InitialString,
	}, peripheral.WithLogger(log), peripheral.WithHandler(tally))
	if err != nil {
		return err
	}

	log.Info().Str("device", cfg.Port.Device).Msg("peripheral running")
	err = dev.Run(ctx)

	st := dev.Stats()
	counts := tally.Counts()
	log.Info().
		Int("strings", counts.Strings).
		Int("overflows", counts.Overflows).
		Uint64("bytes", st.Bytes).
		Uint64("sent", st.Sent).
		Uint64("send_failed", st.Failed).
		Msg("peripheral stopped")
	return err
}

func pulseOnSignal(ctx context.Context, edge *peripheral.ManualEdge, log zerolog.Logger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1)
	defer signal.Stop(sigs)
	for {
		select {
		case <-sigs:
			if !edge.Pulse() {
				log.Debug().Msg("trigger already pending")
			}
		case <-ctx.Done():
			return
		}
	}
}
