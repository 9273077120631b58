package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidTime is returned for an end time that precedes the begin time.
var ErrInvalidTime = errors.New("invalid time configuration")

// TimeConfiguration is the simulated time window and step length, in seconds.
// A negative begin time becomes 0, a negative end time means unbounded (-1)
// and a non-positive step length becomes 1.
type TimeConfiguration struct {
	beginTime  float64
	endTime    float64
	stepLength float64
}

// DefaultTimeConfiguration starts at 0, never ends and steps by one second.
func DefaultTimeConfiguration() TimeConfiguration {
	return TimeConfiguration{beginTime: 0, endTime: -1, stepLength: 1}
}

// NewTimeConfiguration validates and normalises the given window.
func NewTimeConfiguration(beginTime, endTime, stepLength float64) (TimeConfiguration, error) {
	tc := DefaultTimeConfiguration()
	tc.SetBeginTime(beginTime)
	if err := tc.SetEndTime(endTime); err != nil {
		return TimeConfiguration{}, err
	}
	tc.SetStepLength(stepLength)
	return tc, nil
}

// BeginTime is the first time slot in seconds.
func (tc TimeConfiguration) BeginTime() float64 { return tc.beginTime }

// EndTime is the horizon in seconds, -1 when unbounded.
func (tc TimeConfiguration) EndTime() float64 { return tc.endTime }

// StepLength is the duration of one step in seconds.
func (tc TimeConfiguration) StepLength() float64 { return tc.stepLength }

// HasEndTime reports whether the run is bounded by an end time.
func (tc TimeConfiguration) HasEndTime() bool { return tc.endTime >= 0 }

// SetBeginTime sets the first time slot; negative values become 0.
func (tc *TimeConfiguration) SetBeginTime(v float64) {
	tc.beginTime = max(v, 0)
}

// SetEndTime sets the end of the window; any negative value means unbounded.
func (tc *TimeConfiguration) SetEndTime(v float64) error {
	if v < 0 {
		tc.endTime = -1
		return nil
	}
	if v < tc.beginTime {
		return fmt.Errorf("%w: end time %v before begin time %v", ErrInvalidTime, v, tc.beginTime)
	}
	tc.endTime = v
	return nil
}

// SetStepLength sets the step duration; non-positive values become 1.
func (tc *TimeConfiguration) SetStepLength(v float64) {
	if v <= 0 {
		v = 1
	}
	tc.stepLength = v
}
