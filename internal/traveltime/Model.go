// Package traveltime defines the Model interface relating the traffic load on a
// road segment to the time needed to traverse it, along with built-in
// implementations.
//
// Adding a new congestion function requires only implementing Model and
// registering it in FromParams; edges and the simulation engine never need to change.
package traveltime

import "fmt"

// Model is the congestion contract every travel-time function must satisfy.
// fftv is the free-flow travel time in seconds, load and capacity are vehicle counts.
type Model interface {
	// Name returns the discriminator string of the model.
	Name() string

	// Min returns the travel time on an empty segment.
	Min(fftv float64) float64

	// Max returns the travel time on a saturated segment.
	Max(fftv float64) float64

	// At returns the travel time for the given load. Callers guarantee
	// 0 <= load < capacity; saturation is handled by the edge.
	At(fftv, load float64, capacity int) float64
}

// Params selects a model and overrides its parameters from a JSON or YAML
// document. Unset parameters keep the model defaults.
type Params struct {
	Model string   `json:"model" yaml:"model"`
	Alpha *float64 `json:"alpha,omitempty" yaml:"alpha,omitempty"`
	Beta  *float64 `json:"beta,omitempty" yaml:"beta,omitempty"`
}

// FromParams resolves s into a Model. Nil params yield DefaultBPR.
func FromParams(s *Params) (Model, error) {
	if s == nil {
		return DefaultBPR(), nil
	}
	switch s.Model {
	case BPRModelName, "":
		b := DefaultBPR()
		if s.Alpha != nil {
			b.Alpha = *s.Alpha
		}
		if s.Beta != nil {
			b.Beta = *s.Beta
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown travel time model %q", s.Model)
	}
}
