// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rawdata

import "errors"

var (
	// ErrTooShort means the payload cannot hold even the first field.
	// Callers treat it as a framing problem rather than an older firmware.
	ErrTooShort = errors.New("rawdata: payload shorter than first field")

	ErrUnknownField = errors.New("rawdata: unknown field")
	ErrBadValue     = errors.New("rawdata: value does not fit field")
)
