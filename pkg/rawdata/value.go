// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rawdata

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math"
	"strconv"
)

// Value holds one decoded field. The zero Value is absent.
type Value struct {
	kind    Kind
	present bool
	u       uint64
	i       int64
	f       float64
	b       []byte
}

// Absent returns an absent value of the given kind
func Absent(kind Kind) Value {
	return Value{kind: kind}
}

// Present reports whether the field was carried by the payload
func (v Value) Present() bool { return v.present }

// Kind returns the field kind
func (v Value) Kind() Kind { return v.kind }

// Uint returns the value as an unsigned integer; absent values are 0
func (v Value) Uint() uint64 {
	switch {
	case v.kind.Unsigned():
		return v.u
	case v.kind.Signed():
		return uint64(v.i)
	case v.kind.Float():
		return uint64(v.f)
	}
	return 0
}

// Int returns the value as a signed integer; absent values are 0
func (v Value) Int() int64 {
	switch {
	case v.kind.Unsigned():
		return int64(v.u)
	case v.kind.Signed():
		return v.i
	case v.kind.Float():
		return int64(v.f)
	}
	return 0
}

// Float returns the value as a float; absent values are 0
func (v Value) Float() float64 {
	switch {
	case v.kind.Unsigned():
		return float64(v.u)
	case v.kind.Signed():
		return float64(v.i)
	case v.kind.Float():
		return v.f
	}
	return 0
}

// Bytes returns a copy of a byte string value
func (v Value) Bytes() []byte {
	return bytes.Clone(v.b)
}

// Any returns the value as a Go value, or nil when absent.
// Integers come back as int64 (uint64 for Uint64 fields), floats as float64
// and byte strings as []byte.
func (v Value) Any() any {
	if !v.present {
		return nil
	}
	switch {
	case v.kind == Uint64:
		return v.u
	case v.kind.Unsigned():
		return int64(v.u)
	case v.kind.Signed():
		return v.i
	case v.kind.Float():
		return v.f
	default:
		return bytes.Clone(v.b)
	}
}

func (v Value) String() string {
	if !v.present {
		return "<absent>"
	}
	switch {
	case v.kind.Unsigned():
		return strconv.FormatUint(v.u, 10)
	case v.kind.Signed():
		return strconv.FormatInt(v.i, 10)
	case v.kind == Float32:
		return strconv.FormatFloat(v.f, 'g', -1, 32)
	case v.kind == Float64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return hex.EncodeToString(v.b)
	}
}

// unpack reads a field from the start of data, which holds at least f.Width bytes
func unpack(f Field, data []byte) Value {
	v := Value{kind: f.Kind, present: true}
	le := binary.LittleEndian
	switch f.Kind {
	case Uint8:
		v.u = uint64(data[0])
	case Int8:
		v.i = int64(int8(data[0]))
	case Uint16:
		v.u = uint64(le.Uint16(data))
	case Int16:
		v.i = int64(int16(le.Uint16(data)))
	case Uint32:
		v.u = uint64(le.Uint32(data))
	case Int32:
		v.i = int64(int32(le.Uint32(data)))
	case Uint64:
		v.u = le.Uint64(data)
	case Int64:
		v.i = int64(le.Uint64(data))
	case Float32:
		v.f = float64(math.Float32frombits(le.Uint32(data)))
	case Float64:
		v.f = math.Float64frombits(le.Uint64(data))
	case Bytes:
		v.b = bytes.Clone(data[:f.Width])
	}
	return v
}
