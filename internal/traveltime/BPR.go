package traveltime

import "math"

// BPRModelName is the JSON discriminator string for the BPR model.
const BPRModelName = "bpr"

// BPR implements Model using the Bureau of Public Roads function
//
//	t = fftv * (1 + alpha * (load/capacity)^beta)
//
// JSON discriminator: "model": "bpr"
type BPR struct {
	Alpha float64 `json:"alpha" yaml:"alpha"`
	Beta  float64 `json:"beta" yaml:"beta"`
}

// DefaultBPR returns the classic parameters alpha=0.15, beta=4.0.
func DefaultBPR() BPR { return BPR{Alpha: 0.15, Beta: 4.0} }

// Name returns BPRModelName.
func (b BPR) Name() string { return BPRModelName }

// Min is the free-flow time.
func (b BPR) Min(fftv float64) float64 { return fftv }

// Max is the travel time at capacity.
func (b BPR) Max(fftv float64) float64 { return fftv * (1 + b.Alpha) }

// At evaluates fftv*(1+alpha*(load/capacity)^beta).
func (b BPR) At(fftv, load float64, capacity int) float64 {
	return fftv * (1 + b.Alpha*math.Pow(load/float64(capacity), b.Beta))
}
