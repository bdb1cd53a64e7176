package port_reader

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NotCoffee418/p1_bridge/pkg/stream"
	"github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTelegram = "/ISK5\\2M550T-1012\r\n" +
	"\r\n" +
	"1-3:0.2.8(50)\r\n" +
	"0-0:1.0.0(240301120000W)\r\n" +
	"0-0:96.1.1(4530303434303037313331363530323137)\r\n" +
	"1-0:1.8.1(000050.000*kWh)\r\n" +
	"1-0:1.8.2(000100.000*kWh)\r\n" +
	"1-0:2.8.1(000000.000*kWh)\r\n" +
	"1-0:2.8.2(000000.000*kWh)\r\n" +
	"0-0:96.14.0(0001)\r\n" +
	"1-0:1.7.0(01.200*kW)\r\n" +
	"1-0:2.7.0(00.000*kW)\r\n" +
	"0-0:96.7.21(00010)\r\n" +
	"1-0:32.7.0(231.2*V)\r\n" +
	"1-0:52.7.0(229.8*V)\r\n" +
	"1-0:72.7.0(230.1*V)\r\n" +
	"1-0:31.7.0(002*A)\r\n" +
	"1-0:51.7.0(001*A)\r\n" +
	"1-0:71.7.0(000*A)\r\n" +
	"1-0:21.7.0(00.450*kW)\r\n" +
	"1-0:41.7.0(00.300*kW)\r\n" +
	"1-0:61.7.0(00.450*kW)\r\n" +
	"0-0:99.99.9(42)\r\n" +
	"0-1:24.1.0(003)\r\n" +
	"0-1:24.2.1(240301115500W)(02045.123*m3)\r\n" +
	"!0A4B\r\n"

type fakePort struct {
	io.Reader
	mu     sync.Mutex
	closed bool
}

func (f *fakePort) Write(p []byte) (int, error) { return len(p), nil }

func (f *fakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePort) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type recorder struct {
	mu     sync.Mutex
	events []stream.Event
}

func (r *recorder) Publish(_ context.Context, ev stream.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []stream.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []stream.EventKind
	for _, ev := range r.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func newTestReader(t *testing.T, port io.ReadWriteCloser, openErr error) *P1Reader {
	t.Helper()
	logger, _ := test.NewNullLogger()
	r := NewP1Reader("/dev/fake", false, logger)
	r.retryDelay = time.Millisecond
	r.open = func(serial.OpenOptions) (io.ReadWriteCloser, error) {
		return port, openErr
	}
	return r
}

func TestOptions(t *testing.T) {
	logger, _ := test.NewNullLogger()

	opts := NewP1Reader("/dev/ttyUSB0", false, logger).Options()
	assert.Equal(t, "/dev/ttyUSB0", opts.PortName)
	assert.Equal(t, uint(115200), opts.BaudRate)
	assert.Equal(t, uint(8), opts.DataBits)
	assert.Equal(t, serial.PARITY_NONE, opts.ParityMode)

	legacy := NewP1Reader("/dev/ttyUSB0", true, logger).Options()
	assert.Equal(t, uint(9600), legacy.BaudRate)
	assert.Equal(t, uint(7), legacy.DataBits)
	assert.Equal(t, serial.PARITY_EVEN, legacy.ParityMode)
}

func TestRunPublishesConnectFailed(t *testing.T) {
	r := newTestReader(t, nil, errors.New("no such device"))
	rec := &recorder{}

	r.Run(context.Background(), rec)

	require.Len(t, rec.events, 1)
	ev := rec.events[0]
	assert.Equal(t, stream.EventConnectFailed, ev.Kind)
	assert.ErrorContains(t, ev.Err, "no such device")
	assert.ErrorContains(t, ev.Err, "/dev/fake")
}

func TestRunPublishesTelegram(t *testing.T) {
	port := &fakePort{Reader: strings.NewReader(sampleTelegram)}
	r := newTestReader(t, port, nil)
	rec := &recorder{}

	r.Run(context.Background(), rec)

	kinds := rec.kinds()
	require.GreaterOrEqual(t, len(kinds), 3)
	assert.Equal(t, []stream.EventKind{stream.EventConnected, stream.EventRawLine, stream.EventReading}, kinds[:3])

	// The port is drained after the telegram, so the reader gives up.
	assert.Len(t, kinds[3:], maxConsecutiveErrors)
	for _, k := range kinds[3:] {
		assert.Equal(t, stream.EventError, k)
	}
	assert.ErrorIs(t, rec.events[3].Err, ErrNotConnected)

	assert.Equal(t, "/dev/fake", rec.events[0].Endpoint)
	assert.Equal(t, "0-0:99.99.9(42)", rec.events[1].Line)
	reading := rec.events[2].Reading
	require.NotNil(t, reading)
	assert.Equal(t, "5.0", reading.Version)
	assert.NotNil(t, reading.Gas)
	assert.True(t, port.isClosed())
}

func TestRunReportsBadCRC(t *testing.T) {
	bad := strings.Replace(sampleTelegram, "!0A4B", "!0000", 1)
	port := &fakePort{Reader: strings.NewReader(bad)}
	r := newTestReader(t, port, nil)
	rec := &recorder{}

	r.Run(context.Background(), rec)

	require.GreaterOrEqual(t, len(rec.events), 2)
	assert.Equal(t, stream.EventError, rec.events[1].Kind)
	assert.ErrorContains(t, rec.events[1].Err, "malformed telegram")
	for _, ev := range rec.events {
		assert.NotEqual(t, stream.EventReading, ev.Kind)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	port := &fakePort{Reader: pr}
	r := newTestReader(t, port, nil)
	rec := &recorder{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, rec)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(rec.kinds()) == 1 }, time.Second, time.Millisecond)
	cancel()
	// The fake port does not unblock on Close, the pipe does.
	pw.CloseWithError(io.ErrClosedPipe)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reader did not stop")
	}
	assert.Equal(t, []stream.EventKind{stream.EventConnected}, rec.kinds())
	assert.True(t, port.isClosed())
}
