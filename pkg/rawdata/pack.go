// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rawdata

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Pack encodes a full-width record. Fields missing from values are zero.
func (s *Schema) Pack(values map[string]any) ([]byte, error) {
	for name := range values {
		if !s.HasField(name) {
			return nil, fmt.Errorf("%w: %s has no field %s", ErrUnknownField, s.name, name)
		}
	}

	data := make([]byte, s.width)
	for i, f := range s.fields {
		v, ok := values[f.Name]
		if !ok || v == nil {
			continue
		}
		if err := put(f, data[s.offsets[i]:], v); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", s.name, f.Name, err)
		}
	}
	return data, nil
}

func put(f Field, dst []byte, v any) error {
	le := binary.LittleEndian

	if f.Kind == Bytes {
		b, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("%w: want []byte, got %T", ErrBadValue, v)
		}
		if len(b) > f.Width {
			return fmt.Errorf("%w: %d bytes into %d", ErrBadValue, len(b), f.Width)
		}
		copy(dst, b)
		return nil
	}

	if f.Kind.Float() {
		x, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("%w: want number, got %T", ErrBadValue, v)
		}
		if f.Kind == Float32 {
			le.PutUint32(dst, math.Float32bits(float32(x)))
		} else {
			le.PutUint64(dst, math.Float64bits(x))
		}
		return nil
	}

	x, ok := toInt(v)
	if !ok {
		return fmt.Errorf("%w: want integer, got %T", ErrBadValue, v)
	}
	if !inRange(f.Kind, x) {
		return fmt.Errorf("%w: %d overflows %s", ErrBadValue, x, f.Kind)
	}
	switch f.Kind.Size() {
	case 1:
		dst[0] = byte(x)
	case 2:
		le.PutUint16(dst, uint16(x))
	case 4:
		le.PutUint32(dst, uint32(x))
	case 8:
		le.PutUint64(dst, uint64(x))
	}
	return nil
}

func inRange(k Kind, x int64) bool {
	switch k {
	case Uint8:
		return x >= 0 && x <= math.MaxUint8
	case Int8:
		return x >= math.MinInt8 && x <= math.MaxInt8
	case Uint16:
		return x >= 0 && x <= math.MaxUint16
	case Int16:
		return x >= math.MinInt16 && x <= math.MaxInt16
	case Uint32:
		return x >= 0 && x <= math.MaxUint32
	case Int32:
		return x >= math.MinInt32 && x <= math.MaxInt32
	case Uint64:
		return x >= 0
	default:
		return true
	}
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	return 0, false
}
