package port_reader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/NotCoffee418/p1_bridge/pkg/stream"
	"github.com/NotCoffee418/p1_bridge/pkg/telegram"
	"github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"
)

// NewP1Reader creates a reader for port. Legacy selects DSMR 2.2 framing
// (9600 baud, 7E1, no CRC).
func NewP1Reader(port string, legacy bool, logger *logrus.Logger) *P1Reader {
	return &P1Reader{
		port:       port,
		legacy:     legacy,
		parser:     telegram.NewParser(legacy),
		logger:     logger.WithField("component", "port_reader").WithField("port", port),
		open:       serial.Open,
		retryDelay: defaultRetryDelay,
	}
}

// Options returns the serial settings used to open the port.
func (p *P1Reader) Options() serial.OpenOptions {
	if p.legacy {
		return serial.OpenOptions{
			PortName:        p.port,
			BaudRate:        9600,
			DataBits:        7,
			StopBits:        1,
			ParityMode:      serial.PARITY_EVEN,
			MinimumReadSize: 1,
		}
	}
	return serial.OpenOptions{
		PortName:        p.port,
		BaudRate:        115200,
		DataBits:        8,
		StopBits:        1,
		ParityMode:      serial.PARITY_NONE,
		MinimumReadSize: 1,
	}
}

// Run opens the port and publishes one event per telegram until ctx is done
// or reading fails maxConsecutiveErrors times in a row.
func (p *P1Reader) Run(ctx context.Context, pub stream.Publisher) {
	port, err := p.open(p.Options())
	if err != nil {
		err = fmt.Errorf("failed to open serial port %s: %w", p.port, err)
		p.logger.WithError(err).Error("Connect failed")
		pub.Publish(ctx, stream.ConnectFailedEvent(err))
		return
	}

	var closeOnce sync.Once
	disconnect := func() {
		closeOnce.Do(func() {
			port.Close()
			p.logger.Info("Disconnected from P1 port")
		})
	}
	defer disconnect()

	// Closing the port unblocks a pending read.
	stop := context.AfterFunc(ctx, disconnect)
	defer stop()

	p.logger.Info("Connected to P1 port")
	pub.Publish(ctx, stream.ConnectedEvent(p.port))

	reader := bufio.NewReader(port)
	consecutiveErrors := 0
	var lastError error

	for consecutiveErrors < maxConsecutiveErrors {
		raw, err := p.readTelegram(reader)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			consecutiveErrors++
			lastError = err
			p.logger.WithError(err).Warnf("Error reading telegram (%d/%d)", consecutiveErrors, maxConsecutiveErrors)
			pub.Publish(ctx, stream.ErrorEvent(err))
			if !sleep(ctx, p.retryDelay) {
				return
			}
			continue
		}
		consecutiveErrors = 0

		reading, unknown, err := p.parser.Parse(raw)
		if err != nil {
			p.logger.WithError(err).Warn("Malformed telegram, skipping")
			pub.Publish(ctx, stream.ErrorEvent(fmt.Errorf("malformed telegram: %w", err)))
			continue
		}
		for _, line := range unknown {
			pub.Publish(ctx, stream.RawLineEvent(line))
		}
		pub.Publish(ctx, stream.ReadingEvent(reading))
	}

	err = errors.Join(ErrTooManyErrors, lastError)
	p.logger.WithError(err).Errorf("Too many consecutive errors (%d), stopping reader", maxConsecutiveErrors)
}

func (p *P1Reader) readTelegram(r *bufio.Reader) (string, error) {
	if r == nil {
		return "", ErrNotConnected
	}
	raw, err := telegram.ReadTelegram(r)
	if errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: %w", ErrNotConnected, err)
	}
	return raw, err
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
