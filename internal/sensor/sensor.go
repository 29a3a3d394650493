// Package sensor samples analog readings and renders them as publish content.
package sensor

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	mqtt "github.com/soypat/sensor-mqtt"
)

// MaxRaw is the largest value produced by a 12-bit ADC.
const MaxRaw = 1<<12 - 1

var errOutOfRange = errors.New("sensor: reading out of 12-bit range")

// Reading is a single raw ADC sample.
type Reading struct {
	Raw uint16
	At  time.Time
}

// Reader is implemented by analog sources. Read blocks until a sample is
// available or ctx is done.
type Reader interface {
	Read(ctx context.Context) (Reading, error)
}

// SimulatedADC is a Reader producing a bounded random walk over the 12-bit ADC
// range. Its output is deterministic for a given seed. It is not safe for
// concurrent use.
type SimulatedADC struct {
	rng  *rand.Rand
	raw  int
	step int
	now  func() time.Time
}

// NewSimulatedADC returns a simulated ADC starting at mid scale. Each Read moves
// the value by at most step counts.
func NewSimulatedADC(seed int64, step int) *SimulatedADC {
	if step <= 0 {
		step = 1
	}
	return &SimulatedADC{
		rng:  rand.New(rand.NewSource(seed)),
		raw:  (MaxRaw + 1) / 2,
		step: step,
		now:  time.Now,
	}
}

func (adc *SimulatedADC) Read(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}
	adc.raw += adc.rng.Intn(2*adc.step+1) - adc.step
	if adc.raw < 0 {
		adc.raw = 0
	} else if adc.raw > MaxRaw {
		adc.raw = MaxRaw
	}
	return Reading{Raw: uint16(adc.raw), At: adc.now()}, nil
}

// Format renders r as publish content of the form "adc=1234". The result
// always fits mqtt.MaxContentLen.
func Format(r Reading) ([]byte, error) {
	if r.Raw > MaxRaw {
		return nil, errOutOfRange
	}
	var buf [mqtt.MaxContentLen]byte
	b := append(buf[:0], "adc="...)
	b = strconv.AppendUint(b, uint64(r.Raw), 10)
	return b, nil
}
