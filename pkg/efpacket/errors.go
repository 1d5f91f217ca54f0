// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package efpacket

import (
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrBadPrefix      = errors.New("efpacket: bad prefix")
	ErrTooShort       = errors.New("efpacket: frame too short")
	ErrLengthMismatch = errors.New("efpacket: payload length mismatch")
	ErrCRC16          = errors.New("efpacket: CRC16 mismatch")
	ErrCRC8           = errors.New("efpacket: header CRC8 mismatch")
)

// Check identifies which validation step rejected a frame
type Check int

const (
	CheckPrefix Check = iota
	CheckSize
	CheckLength
	CheckCRC16
	CheckCRC8
)

// Checks lists every check in the order Decode runs them
var Checks = []Check{CheckPrefix, CheckSize, CheckLength, CheckCRC16, CheckCRC8}

// String returns the check name
func (c Check) String() string {
	return FormatCheck(c)
}

// sentinel maps a check onto its sentinel error
func (c Check) sentinel() error {
	switch c {
	case CheckPrefix:
		return ErrBadPrefix
	case CheckSize:
		return ErrTooShort
	case CheckLength:
		return ErrLengthMismatch
	case CheckCRC16:
		return ErrCRC16
	default:
		return ErrCRC8
	}
}

// DecodeError describes a rejected frame. It is a recoverable condition:
// the caller drops the frame and keeps listening.
type DecodeError struct {
	Check    Check
	Expected int
	Actual   int
	Data     []byte
}

func newDecodeError(check Check, expected, actual int, data []byte) *DecodeError {
	return &DecodeError{
		Check:    check,
		Expected: expected,
		Actual:   actual,
		Data:     append([]byte(nil), data...),
	}
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	var detail string
	switch e.Check {
	case CheckPrefix:
		detail = fmt.Sprintf("expected 0x%02X, got 0x%02X", e.Expected, e.Actual)
	case CheckSize:
		detail = fmt.Sprintf("need at least %d bytes, got %d", e.Expected, e.Actual)
	case CheckLength:
		detail = fmt.Sprintf("header declares %d payload bytes, %d available", e.Expected, e.Actual)
	case CheckCRC16:
		detail = fmt.Sprintf("expected 0x%04X, got 0x%04X", e.Expected, e.Actual)
	case CheckCRC8:
		detail = fmt.Sprintf("expected 0x%02X, got 0x%02X", e.Expected, e.Actual)
	}
	return fmt.Sprintf("%v: %s: %s", e.Check.sentinel(), detail, hex.EncodeToString(e.Data))
}

// Unwrap returns the sentinel error for errors.Is
func (e *DecodeError) Unwrap() error {
	return e.Check.sentinel()
}

// Hex returns the offending bytes as a hex string
func (e *DecodeError) Hex() string {
	return hex.EncodeToString(e.Data)
}

// CheckOf extracts the failed check from a decode error
func CheckOf(err error) (Check, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Check, true
	}
	return 0, false
}
