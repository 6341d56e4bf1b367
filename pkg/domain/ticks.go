package domain

import (
	"fmt"
	"math"
)

// Ticks is a point or span on the song timeline. Resolution is set by the
// song's PPQ (pulses per quarter note).
type Ticks uint32

// MaxTicks is the last representable tick.
const MaxTicks Ticks = math.MaxUint32

// Uint32 returns the raw tick count.
func (t Ticks) Uint32() uint32 { return uint32(t) }

// Add returns t+d and panics if the sum leaves the tick domain.
func (t Ticks) Add(d Ticks) Ticks {
	sum, ok := t.CheckedAdd(d)
	if !ok {
		panic(InvariantViolation{Detail: fmt.Sprintf("ticks overflow: %d + %d", t, d)})
	}
	return sum
}

// CheckedAdd returns t+d and false when the sum would overflow.
func (t Ticks) CheckedAdd(d Ticks) (Ticks, bool) {
	if d > MaxTicks-t {
		return 0, false
	}
	return t + d, true
}

// Sub returns t-d and panics if d is larger than t.
func (t Ticks) Sub(d Ticks) Ticks {
	if d > t {
		panic(InvariantViolation{Detail: fmt.Sprintf("ticks underflow: %d - %d", t, d)})
	}
	return t - d
}
