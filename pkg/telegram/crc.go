package telegram

import (
	"fmt"
	"strings"

	"github.com/sigurn/crc16"
)

var crcTable = crc16.MakeTable(crc16.CRC16_ARC)

// ValidateCRC checks the CRC16/ARC that DSMR 4 and later append after the
// closing '!'. The checksum covers everything from '/' up to and including '!'.
func ValidateCRC(telegram string) bool {
	parts := strings.Split(telegram, "!")
	if len(parts) != 2 || len(parts[1]) < 4 {
		return false
	}

	data := parts[0] + "!"
	givenCRC := parts[1][:4]

	calcCRC := crc16.Checksum([]byte(data), crcTable)
	calcCRCHex := fmt.Sprintf("%04X", calcCRC)

	return strings.ToUpper(givenCRC) == calcCRCHex
}
