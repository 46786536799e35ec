package utils

import (
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
)

// ================================================================================
// Serial Number Conversion
// ================================================================================

// NormalizeSerial strips colon separators and upper-cases a hex serial.
// It is the form used for key file names and password table lookups.
func NormalizeSerial(serial string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(serial), ":", ""))
}

// FormatSerial renders a serial number as colon separated upper-case hex pairs.
func FormatSerial(serial *big.Int) string {
	hex := strings.ToUpper(serial.Text(16))
	if len(hex)%2 == 1 {
		hex = "0" + hex
	}
	parts := make([]string, 0, len(hex)/2)
	for i := 0; i < len(hex); i += 2 {
		parts = append(parts, hex[i:i+2])
	}
	return strings.Join(parts, ":")
}

// ParseSerial parses a hex serial with or without colon separators.
func ParseSerial(serial string) (*big.Int, error) {
	normalized := NormalizeSerial(serial)
	n, ok := new(big.Int).SetString(normalized, 16)
	if !ok || normalized == "" {
		return nil, fmt.Errorf("invalid serial %q", serial)
	}
	return n, nil
}

// ================================================================================
// Numeric Helpers
// ================================================================================

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// ================================================================================
// Base64 Conversion
// ================================================================================

// Base64Encode encodes bytes to standard base64 string
func Base64Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Base64Decode decodes standard base64 string to bytes
func Base64Decode(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}

// ================================================================================
// Pointer Helpers
// ================================================================================

// IntPtr returns a pointer to the int value
func IntPtr(i int) *int {
	return &i
}
