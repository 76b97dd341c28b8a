package sockettype

import (
	"math"
	"sync"

	"github.com/zclconf/go-cty/cty"
)

// ConvertFunc converts a value of one kind into another kind's domain.
type ConvertFunc func(cty.Value) (cty.Value, error)

// Conversions is the implicit conversion policy between socket kinds.
// It is an explicit table so hosts can swap the policy without touching
// the link validation code.
type Conversions struct {
	mu    sync.RWMutex
	rules map[[2]Kind]ConvertFunc
}

// NewConversions returns an empty table: only identical kinds link.
func NewConversions() *Conversions {
	return &Conversions{rules: make(map[[2]Kind]ConvertFunc)}
}

// Allow registers (or replaces) the conversion from one kind to another.
func (c *Conversions) Allow(from, to Kind, fn ConvertFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules[[2]Kind{from, to}] = fn
}

// Lookup returns the conversion registered for the pair, if any.
func (c *Conversions) Lookup(from, to Kind) (ConvertFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.rules[[2]Kind{from, to}]
	return fn, ok
}

// Pairs returns every registered (from, to) pair.
func (c *Conversions) Pairs() [][2]Kind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([][2]Kind, 0, len(c.rules))
	for k := range c.rules {
		out = append(out, k)
	}
	return out
}

// Luminance weights (Rec. 709) used when a color feeds a scalar.
const (
	lumaR = 0.2126
	lumaG = 0.7152
	lumaB = 0.0722
)

// DefaultConversions returns the conversion matrix shipped with the engine:
//
//	bool, int, float  <-> each other
//	scalar            -> vector (broadcast), color (broadcast, alpha 1)
//	vector            -> scalar (component average), color (alpha 1)
//	color             -> scalar (luminance), vector (drop alpha)
//
// Shader, string and virtual have no implicit conversions.
func DefaultConversions() *Conversions {
	c := NewConversions()
	scalars := []Kind{KindBool, KindInt, KindFloat}

	for _, from := range scalars {
		c.Allow(from, KindBool, func(v cty.Value) (cty.Value, error) {
			return cty.BoolVal(AsFloat(v) != 0), nil
		})
		c.Allow(from, KindInt, func(v cty.Value) (cty.Value, error) {
			return Float(math.Trunc(AsFloat(v))), nil
		})
		c.Allow(from, KindFloat, func(v cty.Value) (cty.Value, error) {
			return Float(AsFloat(v)), nil
		})
		c.Allow(from, KindVector, func(v cty.Value) (cty.Value, error) {
			f := AsFloat(v)
			return Vector(f, f, f), nil
		})
		c.Allow(from, KindColor, func(v cty.Value) (cty.Value, error) {
			f := AsFloat(v)
			return Color(f, f, f, 1), nil
		})
	}

	average := func(v cty.Value) float64 {
		x := AsVector(v)
		return (x[0] + x[1] + x[2]) / 3
	}
	c.Allow(KindVector, KindFloat, func(v cty.Value) (cty.Value, error) {
		return Float(average(v)), nil
	})
	c.Allow(KindVector, KindInt, func(v cty.Value) (cty.Value, error) {
		return Float(math.Trunc(average(v))), nil
	})
	c.Allow(KindVector, KindBool, func(v cty.Value) (cty.Value, error) {
		return cty.BoolVal(average(v) != 0), nil
	})
	c.Allow(KindVector, KindColor, func(v cty.Value) (cty.Value, error) {
		x := AsVector(v)
		return Color(x[0], x[1], x[2], 1), nil
	})

	luma := func(v cty.Value) float64 {
		x := AsColor(v)
		return lumaR*x[0] + lumaG*x[1] + lumaB*x[2]
	}
	c.Allow(KindColor, KindFloat, func(v cty.Value) (cty.Value, error) {
		return Float(luma(v)), nil
	})
	c.Allow(KindColor, KindInt, func(v cty.Value) (cty.Value, error) {
		return Float(math.Trunc(luma(v))), nil
	})
	c.Allow(KindColor, KindBool, func(v cty.Value) (cty.Value, error) {
		return cty.BoolVal(luma(v) != 0), nil
	})
	c.Allow(KindColor, KindVector, func(v cty.Value) (cty.Value, error) {
		x := AsColor(v)
		return Vector(x[0], x[1], x[2]), nil
	})

	return c
}
