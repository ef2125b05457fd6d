package control

// PID is a single-axis proportional-integral-derivative controller with
// output clamping and a partial anti-windup back-off.
type PID struct {
	Kp float64
	Ki float64
	Kd float64

	outMin float64
	outMax float64

	integral  float64
	prevError float64
}

// NewPID constructs a controller with the given gains and output limits.
func NewPID(kp, ki, kd, outMin, outMax float64) *PID {
	return &PID{Kp: kp, Ki: ki, Kd: kd, outMin: outMin, outMax: outMax}
}

// Reset clears the integral accumulator and the previous error.
func (c *PID) Reset() {
	c.integral = 0
	c.prevError = 0
}

// SetOutputLimits replaces the clamp bounds. Accumulated integral is kept.
func (c *PID) SetOutputLimits(outMin, outMax float64) {
	c.outMin = outMin
	c.outMax = outMax
}

// OutputLimits reports the current clamp bounds.
func (c *PID) OutputLimits() (float64, float64) {
	return c.outMin, c.outMax
}

// Update advances the controller with a new error measurement and returns
// the clamped control output.
//
// When the raw sum saturates the output limits, the integral backs off by
// err*dt*0.5 rather than unwinding fully. The fleet gains are tuned
// against this exact behavior.
func (c *PID) Update(err, dt float64) float64 {
	pTerm := c.Kp * err

	c.integral += err * dt
	iTerm := c.Ki * c.integral

	derivative := 0.0
	if dt > 0 {
		derivative = (err - c.prevError) / dt
	}
	dTerm := c.Kd * derivative

	raw := pTerm + iTerm + dTerm
	output := raw
	if output < c.outMin {
		output = c.outMin
	} else if output > c.outMax {
		output = c.outMax
	}

	if output != raw {
		c.integral -= err * dt * 0.5
	}

	c.prevError = err

	return output
}
