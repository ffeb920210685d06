// Package heat scores how much attention a market is receiving.
package heat

import (
	"errors"
	"math"

	"kalshi_news/internal/domain"
)

// Weights configures the heat formula
//
//	heat = Volume*ln(1+vol/VolumeScale) + OpenInterest*ln(1+oi/OpenInterestScale) + Uncertainty*u(p)
type Weights struct {
	Volume            float64 `yaml:"volume"`
	VolumeScale       float64 `yaml:"volume_scale"`
	OpenInterest      float64 `yaml:"open_interest"`
	OpenInterestScale float64 `yaml:"open_interest_scale"`
	Uncertainty       float64 `yaml:"uncertainty"`
}

// DefaultWeights returns the production weights.
func DefaultWeights() Weights {
	return Weights{
		Volume:            2,
		VolumeScale:       10000,
		OpenInterest:      1,
		OpenInterestScale: 5000,
		Uncertainty:       3,
	}
}

// Validate rejects negative weights and non-positive scales.
func (w Weights) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"heat.volume", w.Volume},
		{"heat.open_interest", w.OpenInterest},
		{"heat.uncertainty", w.Uncertainty},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value < 0 {
			return &domain.ConfigError{Field: f.name, Err: errors.New("weight must be a finite non-negative number")}
		}
	}
	if !(w.VolumeScale > 0) || math.IsInf(w.VolumeScale, 0) {
		return &domain.ConfigError{Field: "heat.volume_scale", Err: errors.New("scale must be positive")}
	}
	if !(w.OpenInterestScale > 0) || math.IsInf(w.OpenInterestScale, 0) {
		return &domain.ConfigError{Field: "heat.open_interest_scale", Err: errors.New("scale must be positive")}
	}
	return nil
}

// Calculator computes heat scores. It is stateless and safe for concurrent use.
type Calculator struct {
	w Weights
}

// NewCalculator validates w and returns a Calculator.
func NewCalculator(w Weights) (*Calculator, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{w: w}, nil
}

// Score returns the non-negative heat score of m.
func (c *Calculator) Score(m domain.Market) float64 {
	vol := float64(max(m.Volume, 0))
	oi := float64(max(m.OpenInterest, 0))

	return c.w.Volume*math.Log1p(vol/c.w.VolumeScale) +
		c.w.OpenInterest*math.Log1p(oi/c.w.OpenInterestScale) +
		c.w.Uncertainty*Uncertainty(m.YesPrice)
}

// Uncertainty maps a YES price in cents to [0,1]: 1 at 50, 0 at 0 and 100.
// Prices outside [0,100] are clamped.
func Uncertainty(price int) float64 {
	p := min(max(price, 0), 100)
	d := p - 50
	if d < 0 {
		d = -d
	}
	return 1 - float64(d)/50
}
