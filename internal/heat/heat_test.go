package heat

import (
	"errors"
	"math"
	"testing"

	"kalshi_news/internal/domain"
)

func newCalc(t *testing.T) *Calculator {
	t.Helper()
	c, err := NewCalculator(DefaultWeights())
	if err != nil {
		t.Fatalf("NewCalculator failed: %v", err)
	}
	return c
}

func TestUncertainty(t *testing.T) {
	tests := []struct {
		price int
		want  float64
	}{
		{50, 1},
		{0, 0},
		{100, 0},
		{25, 0.5},
		{75, 0.5},
		{-10, 0},
		{150, 0},
	}
	for _, tt := range tests {
		if got := Uncertainty(tt.price); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Uncertainty(%d) = %v, want %v", tt.price, got, tt.want)
		}
	}

	for p := 0; p <= 100; p++ {
		if Uncertainty(p) > Uncertainty(50) {
			t.Errorf("Uncertainty(%d) exceeds peak", p)
		}
		if Uncertainty(p) != Uncertainty(100-p) {
			t.Errorf("Uncertainty not symmetric at %d", p)
		}
	}
}

func TestScore_NonNegative(t *testing.T) {
	c := newCalc(t)
	markets := []domain.Market{
		{},
		{YesPrice: 0},
		{YesPrice: 100, Volume: 1},
		{YesPrice: -5, Volume: -100, OpenInterest: -1},
		{YesPrice: 50, Volume: math.MaxInt64, OpenInterest: math.MaxInt64},
	}
	for _, m := range markets {
		if got := c.Score(m); got < 0 || math.IsNaN(got) || math.IsInf(got, 0) {
			t.Errorf("Score(%+v) = %v", m, got)
		}
	}
}

func TestScore_Monotonic(t *testing.T) {
	c := newCalc(t)

	t.Run("volume", func(t *testing.T) {
		prev := -1.0
		for _, vol := range []int64{0, 1, 100, 10_000, 320_000, 10_000_000} {
			got := c.Score(domain.Market{YesPrice: 78, Volume: vol, OpenInterest: 1000})
			if got < prev {
				t.Errorf("volume %d: score %v < previous %v", vol, got, prev)
			}
			prev = got
		}
	})

	t.Run("open interest", func(t *testing.T) {
		prev := -1.0
		for _, oi := range []int64{0, 1, 5_000, 150_000} {
			got := c.Score(domain.Market{YesPrice: 30, Volume: 500, OpenInterest: oi})
			if got < prev {
				t.Errorf("oi %d: score %v < previous %v", oi, got, prev)
			}
			prev = got
		}
	})
}

func TestScore_ZeroVolumeScenario(t *testing.T) {
	c := newCalc(t)

	even := c.Score(domain.Market{YesPrice: 50})
	decided := c.Score(domain.Market{YesPrice: 0})

	if even != DefaultWeights().Uncertainty {
		t.Errorf("price 50, no activity: got %v, want %v", even, DefaultWeights().Uncertainty)
	}
	if decided != 0 {
		t.Errorf("price 0, no activity: got %v, want 0", decided)
	}
	if !(even > decided) {
		t.Errorf("expected %v > %v", even, decided)
	}
}

func TestWeights_Validate(t *testing.T) {
	bad := []Weights{
		{Volume: -1, VolumeScale: 1, OpenInterestScale: 1},
		{OpenInterest: math.NaN(), VolumeScale: 1, OpenInterestScale: 1},
		{Uncertainty: -0.5, VolumeScale: 1, OpenInterestScale: 1},
		{VolumeScale: 0, OpenInterestScale: 1},
		{VolumeScale: 1, OpenInterestScale: -3},
	}
	for _, w := range bad {
		_, err := NewCalculator(w)
		var cfgErr *domain.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("NewCalculator(%+v) error = %v, want ConfigError", w, err)
		}
	}
}
