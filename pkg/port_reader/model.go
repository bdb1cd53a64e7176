package port_reader

import (
	"fmt"
	"io"
	"time"

	"github.com/NotCoffee418/p1_bridge/pkg/telegram"
	"github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotConnected  = fmt.Errorf("serial port not connected")
	ErrTooManyErrors = fmt.Errorf("too many consecutive read errors")
)

const (
	maxConsecutiveErrors = 10
	defaultRetryDelay    = time.Second
)

// P1Reader reads telegrams from the meter's serial P1 port.
type P1Reader struct {
	port   string
	legacy bool
	parser *telegram.Parser
	logger *logrus.Entry

	open       func(serial.OpenOptions) (io.ReadWriteCloser, error)
	retryDelay time.Duration
}
