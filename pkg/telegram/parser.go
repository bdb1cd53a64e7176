// Package telegram turns DSMR P1 telegrams into readings.
package telegram

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/NotCoffee418/p1_bridge/pkg/types"
)

var ErrInvalidCRC = errors.New("invalid CRC")

const legacyVersion = "2.2"

var (
	linePattern  = regexp.MustCompile(`^(\d+-\d+:\d+\.\d+\.\d+)((?:\([^)]*\))+)$`)
	valuePattern = regexp.MustCompile(`\(([^)]*)\)`)
	gasPattern   = regexp.MustCompile(`^0-\d:24\.2\.[13]$`)
	legacyGas    = regexp.MustCompile(`^0-\d:24\.3\.0$`)
	legacyValue  = regexp.MustCompile(`^\((\d+(?:\.\d+)?)\)$`)
)

// Codes that are valid but carry nothing the reading model keeps.
var ignoredCodes = map[string]bool{
	"0-0:96.1.1":  true, // equipment identifier
	"0-0:96.1.4":  true,
	"0-0:96.3.10": true, // breaker state
	"0-0:17.0.0":  true, // threshold
	"0-0:96.7.21": true, // power failures
	"0-0:96.7.9":  true, // long power failures
	"1-0:99.97.0": true, // failure log
	"1-0:32.32.0": true, // voltage sags
	"1-0:52.32.0": true,
	"1-0:72.32.0": true,
	"1-0:32.36.0": true, // voltage swells
	"1-0:52.36.0": true,
	"1-0:72.36.0": true,
	"0-0:96.13.0": true, // text message
	"0-0:96.13.1": true,
	"0-1:24.1.0":  true, // device type
	"0-1:96.1.0":  true,
	"0-1:24.4.0":  true, // valve state
	"1-0:22.7.0":  true, // delivered power per phase
	"1-0:42.7.0":  true,
	"1-0:62.7.0":  true,
}

// Parser converts telegrams to readings. Legacy mode handles DSMR 2.2
// meters: no CRC, no telegram timestamp, gas value on a separate line.
type Parser struct {
	legacy bool
	now    func() time.Time
}

func NewParser(legacy bool) *Parser {
	return &Parser{legacy: legacy, now: time.Now}
}

// Parse returns the reading in raw together with the lines it did not
// recognise. A bad checksum returns ErrInvalidCRC.
func (p *Parser) Parse(raw string) (*types.Reading, []string, error) {
	if !p.legacy && !ValidateCRC(raw) {
		return nil, nil, ErrInvalidCRC
	}

	b := &builder{receivedAt: p.now()}
	if p.legacy {
		b.reading.Version = legacyVersion
	}

	var unknown []string
	lines := splitLines(raw)
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case line == "" || strings.HasPrefix(line, "!"):
			continue
		case strings.HasPrefix(line, "/"):
			b.reading.Type = strings.TrimPrefix(line, "/")
			continue
		}

		m := linePattern.FindStringSubmatch(line)
		if m == nil {
			unknown = append(unknown, line)
			continue
		}
		code := m[1]
		values := splitValues(m[2])

		if legacyGas.MatchString(code) {
			// 0-1:24.3.0(ts)(00)(60)(1)(0-1:24.2.1)(m3)
			// (00000.000)
			if i+1 < len(lines) {
				if v := legacyValue.FindStringSubmatch(lines[i+1]); v != nil {
					b.setGas(v[1], values[0])
					i++
					continue
				}
			}
			unknown = append(unknown, line)
			continue
		}
		if gasPattern.MatchString(code) {
			if len(values) == 2 {
				b.setGas(values[1], values[0])
				continue
			}
			unknown = append(unknown, line)
			continue
		}

		set, ok := handlers[code]
		if !ok {
			if !ignoredCodes[code] {
				unknown = append(unknown, line)
			}
			continue
		}
		if err := set(b, values[0]); err != nil {
			unknown = append(unknown, line)
		}
	}

	return b.finish(), unknown, nil
}

func splitLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(raw, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return lines
}

func splitValues(s string) []string {
	var values []string
	for _, m := range valuePattern.FindAllStringSubmatch(s, -1) {
		values = append(values, m[1])
	}
	return values
}

// parseNumber reads "000123.456*kWh" style values, dropping the unit.
func parseNumber(s string) (float64, error) {
	if i := strings.IndexByte(s, '*'); i >= 0 {
		s = s[:i]
	}
	return strconv.ParseFloat(s, 64)
}

// parseTimestamp reads YYMMDDhhmmss followed by W (winter, CET) or S
// (summer, CEST). Without a suffix the local zone is used.
func parseTimestamp(s string) (time.Time, error) {
	if len(s) < 12 {
		return time.Time{}, errors.New("short timestamp")
	}
	loc := time.Local
	if len(s) > 12 {
		switch s[12] {
		case 'W':
			loc = time.FixedZone("CET", 3600)
		case 'S':
			loc = time.FixedZone("CEST", 7200)
		}
	}
	return time.ParseInLocation("060102150405", s[:12], loc)
}

// Parse is NewParser(legacy).Parse(raw).
func Parse(raw string, legacy bool) (*types.Reading, []string, error) {
	return NewParser(legacy).Parse(raw)
}
