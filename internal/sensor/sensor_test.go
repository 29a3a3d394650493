package sensor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mqtt "github.com/soypat/sensor-mqtt"
)

func TestSimulatedADCDeterministic(t *testing.T) {
	a := NewSimulatedADC(1234, 40)
	b := NewSimulatedADC(1234, 40)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		ra, err := a.Read(ctx)
		require.NoError(t, err)
		rb, err := b.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, ra.Raw, rb.Raw)
	}
}

func TestSimulatedADCBounded(t *testing.T) {
	adc := NewSimulatedADC(1, MaxRaw)
	var sawMin, sawMax bool
	for i := 0; i < 1000; i++ {
		r, err := adc.Read(context.Background())
		require.NoError(t, err)
		require.LessOrEqual(t, int(r.Raw), MaxRaw)
		assert.False(t, r.At.IsZero())
		sawMin = sawMin || r.Raw == 0
		sawMax = sawMax || r.Raw == MaxRaw
	}
	assert.True(t, sawMin && sawMax, "full scale steps must clamp at both ends")
}

func TestSimulatedADCStep(t *testing.T) {
	const step = 5
	adc := NewSimulatedADC(99, step)
	prev := (MaxRaw + 1) / 2
	for i := 0; i < 200; i++ {
		r, err := adc.Read(context.Background())
		require.NoError(t, err)
		diff := int(r.Raw) - prev
		assert.True(t, diff >= -step && diff <= step, "step %d out of range", diff)
		prev = int(r.Raw)
	}
}

func TestSimulatedADCCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSimulatedADC(1, 1).Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormat(t *testing.T) {
	for _, test := range []struct {
		raw    uint16
		expect string
	}{
		{raw: 0, expect: "adc=0"},
		{raw: 1234, expect: "adc=1234"},
		{raw: MaxRaw, expect: "adc=4095"},
	} {
		b, err := Format(Reading{Raw: test.raw})
		require.NoError(t, err)
		assert.Equal(t, test.expect, string(b))
		assert.LessOrEqual(t, len(b), mqtt.MaxContentLen)
	}
	_, err := Format(Reading{Raw: MaxRaw + 1})
	assert.Error(t, err)
}
