package telegram

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var ErrIncompleteTelegram = errors.New("incomplete telegram")

// ReadTelegram returns the next complete telegram from r, from the '/'
// header line up to and including the '!' trailer line. Lines before the
// first header are discarded. The same reader must be reused between calls
// or buffered bytes are lost.
func ReadTelegram(r *bufio.Reader) (string, error) {
	var buffer strings.Builder
	var inTelegram bool

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if inTelegram && errors.Is(err, io.EOF) {
				return "", ErrIncompleteTelegram
			}
			return "", err
		}

		if strings.HasPrefix(line, "/") {
			// Start of telegram
			buffer.Reset()
			buffer.WriteString(line)
			inTelegram = true
		} else if inTelegram {
			buffer.WriteString(line)
			if strings.HasPrefix(strings.TrimSpace(line), "!") {
				// End of telegram
				return buffer.String(), nil
			}
		}
	}
}
