// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package rawdata decodes fixed-width little-endian records.
//
// Devices grow their heartbeat structures over firmware releases by appending
// fields. A Schema therefore decodes any payload at least as long as its first
// field: fields that do not fit are dropped from the tail and reported as
// absent on the resulting Record.
package rawdata

import "fmt"

// Kind is the wire type of a field
type Kind uint8

const (
	Uint8 Kind = iota
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Uint64
	Int64
	Float32
	Float64
	Bytes
)

// Size returns the encoded width of fixed-size kinds, 0 for Bytes
func (k Kind) Size() int {
	switch k {
	case Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	case Uint64, Int64, Float64:
		return 8
	default:
		return 0
	}
}

// Signed reports whether the kind is a signed integer
func (k Kind) Signed() bool {
	return k == Int8 || k == Int16 || k == Int32 || k == Int64
}

// Unsigned reports whether the kind is an unsigned integer
func (k Kind) Unsigned() bool {
	return k == Uint8 || k == Uint16 || k == Uint32 || k == Uint64
}

// Float reports whether the kind is a floating point number
func (k Kind) Float() bool {
	return k == Float32 || k == Float64
}

func (k Kind) String() string {
	switch k {
	case Uint8:
		return "u8"
	case Int8:
		return "i8"
	case Uint16:
		return "u16"
	case Int16:
		return "i16"
	case Uint32:
		return "u32"
	case Int32:
		return "i32"
	case Uint64:
		return "u64"
	case Int64:
		return "i64"
	case Float32:
		return "f32"
	case Float64:
		return "f64"
	case Bytes:
		return "bytes"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Field is one named, fixed-width slot of a schema
type Field struct {
	Name  string
	Kind  Kind
	Width int
}

func field(name string, kind Kind) Field {
	return Field{Name: name, Kind: kind, Width: kind.Size()}
}

func U8(name string) Field  { return field(name, Uint8) }
func I8(name string) Field  { return field(name, Int8) }
func U16(name string) Field { return field(name, Uint16) }
func I16(name string) Field { return field(name, Int16) }
func U32(name string) Field { return field(name, Uint32) }
func I32(name string) Field { return field(name, Int32) }
func U64(name string) Field { return field(name, Uint64) }
func I64(name string) Field { return field(name, Int64) }
func F32(name string) Field { return field(name, Float32) }
func F64(name string) Field { return field(name, Float64) }

// Raw declares a fixed-length byte string of n bytes
func Raw(name string, n int) Field {
	return Field{Name: name, Kind: Bytes, Width: n}
}
