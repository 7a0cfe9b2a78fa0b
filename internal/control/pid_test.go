package control

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

var stockGains = Gains{Kp: 40, Kd: 800, Ki: 0}

func TestPIDFirstTickIsDerivativeDominated(t *testing.T) {
	p := NewPID(stockGains, 75)

	res := p.Step(55, 50)

	assert.Equal(t, float32(5), res.Error)
	assert.Equal(t, float32(5), res.Derivative)
	assert.Equal(t, float32(5), res.Integral)
	assert.Equal(t, float32(4200), res.Raw)
	assert.Equal(t, 75, res.Output, "4200 maps to 315 and clamps to MAX_PWM")
}

func TestPIDSecondTickUsesPreviousError(t *testing.T) {
	p := NewPID(stockGains, 75)
	p.Step(55, 50)

	res := p.Step(55, 52)

	assert.Equal(t, float32(3), res.Error)
	assert.Equal(t, float32(-2), res.Derivative)
	assert.Equal(t, float32(120-1600), res.Raw)
	assert.Equal(t, -111, res.Output)
}

func TestPIDDeterministic(t *testing.T) {
	measured := []float32{25, 31.5, 40.25, 48, 53.75, 55.5, 56, 54.9}

	a := NewPID(Gains{Kp: 40, Kd: 800, Ki: 0.5}, 75)
	b := NewPID(Gains{Kp: 40, Kd: 800, Ki: 0.5}, 75)
	for i, m := range measured {
		assert.Equal(t, a.Step(55, m), b.Step(55, m), "tick %d", i)
	}
}

func TestPIDIntegralIsUnbounded(t *testing.T) {
	p := NewPID(Gains{Ki: 1}, 75)

	var res PIDResult
	for i := 0; i < 100; i++ {
		res = p.Step(60, 50)
	}

	assert.Equal(t, float32(1000), res.Integral)
	assert.Equal(t, float32(1000), res.Raw)
	assert.Equal(t, 75, res.Output)
}

func TestPIDReset(t *testing.T) {
	p := NewPID(stockGains, 75)
	p.Step(55, 50)
	p.Step(55, 51)

	p.Reset()
	res := p.Step(55, 50)

	assert.Equal(t, float32(5), res.Derivative)
	assert.Equal(t, float32(5), res.Integral)
}

func TestRescale(t *testing.T) {
	tests := []struct {
		name   string
		raw    float32
		maxPWM int
		want   int
	}{
		{"zero", 0, 75, 0},
		{"midrange", 500, 75, 37},
		{"truncates before mapping", 999.9, 75, 74},
		{"full span", 1000, 75, 75},
		{"saturates high", 4200, 75, 75},
		{"negative passes through", -100, 75, -7},
		{"small negative truncates to zero", -13.9, 75, 0},
		{"floor", -5000, 75, OutputFloor},
		{"huge positive", 1e12, 75, 75},
		{"huge negative", -1e12, 75, OutputFloor},
		{"nan", float32(math.NaN()), 75, 0},
		{"full duty range", 1000, 255, 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rescale(tt.raw, tt.maxPWM))
		})
	}
}
