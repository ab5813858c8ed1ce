package util

import (
	"strconv"
	"strings"
	"time"
)

// StringToUint64 converts string to uint64
func StringToUint64(str string) (uint64, error) {
	ui64, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return 0, err
	}
	return ui64, nil
}

// Uint64ToString coverts uint64 to string
func Uint64ToString(u uint64) string {
	return strconv.FormatUint(u, 10)
}

// HexToUint64 converts hex string to uint64
func HexToUint64(hexStr string) (uint64, error) {
	intValue, err := strconv.ParseUint(hexStr, 16, 64)
	if err != nil {
		return 0, err
	}
	return intValue, nil
}

const blockTimeLayout = "2006-01-02T15:04:05.999"

// ParseBlockTime parses a chain block timestamp. Nodes emit them without a
// zone suffix; they are UTC.
func ParseBlockTime(str string) (time.Time, error) {
	if strings.HasSuffix(str, "Z") {
		return time.Parse(time.RFC3339, str)
	}
	return time.Parse(blockTimeLayout+"Z07:00", str+"Z")
}
