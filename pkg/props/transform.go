// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package props

import (
	"math"
	"reflect"
)

// Transform maps a raw field value to a property value. Transforms only
// ever see present values.
type Transform func(any) any

// Equals yields true when the value equals want. Numbers compare by value
// regardless of their Go type.
func Equals(want any) Transform {
	return func(v any) any {
		a, aok := toFloat(v)
		b, bok := toFloat(want)
		if aok && bok {
			return a == b
		}
		return reflect.DeepEqual(v, want)
	}
}

// Round rounds numbers to places decimals. Other values pass through.
func Round(places int) Transform {
	return func(v any) any {
		f, ok := toFloat(v)
		if !ok {
			return v
		}
		return round(f, places)
	}
}

// Scale multiplies numbers by factor and rounds to places decimals
func Scale(factor float64, places int) Transform {
	return func(v any) any {
		f, ok := toFloat(v)
		if !ok {
			return v
		}
		return round(f*factor, places)
	}
}

// Divide divides numbers by divisor and rounds to places decimals
func Divide(divisor float64, places int) Transform {
	return func(v any) any {
		f, ok := toFloat(v)
		if !ok {
			return v
		}
		return round(f/divisor, places)
	}
}

// Not negates booleans
func Not(v any) any {
	if b, ok := v.(bool); ok {
		return !b
	}
	return v
}

// Chain applies transforms left to right
func Chain(transforms ...Transform) Transform {
	return func(v any) any {
		for _, t := range transforms {
			v = t(v)
		}
		return v
	}
}

func round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
