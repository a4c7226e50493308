package postprocess

import (
	"errors"
	"fmt"
)

// Options configures a Pipeline. The zero value is not usable; start from
// DefaultOptions.
type Options struct {
	LuminosityThreshold float32
	LuminositySmoothing float32
	BloomStrength       float32
	BloomRadius         float32

	// Mips is the number of blur levels. KernelSizes and BaseFactors hold
	// one entry per level.
	Mips        int
	KernelSizes []int
	BaseFactors []float32
}

func DefaultOptions() Options {
	return Options{
		LuminosityThreshold: 0.1,
		LuminositySmoothing: 1.0,
		BloomStrength:       0.3,
		BloomRadius:         0.75,
		Mips:                5,
		KernelSizes:         []int{3, 5, 7, 9, 11},
		BaseFactors:         []float32{1.0, 0.8, 0.6, 0.4, 0.2},
	}
}

func (o Options) Validate() error {
	if o.Mips < 1 {
		return fmt.Errorf("mips must be at least 1, got %d", o.Mips)
	}
	if len(o.KernelSizes) != o.Mips {
		return fmt.Errorf("need %d kernel sizes, got %d", o.Mips, len(o.KernelSizes))
	}
	if len(o.BaseFactors) != o.Mips {
		return fmt.Errorf("need %d base factors, got %d", o.Mips, len(o.BaseFactors))
	}
	for i, k := range o.KernelSizes {
		if k < 1 {
			return fmt.Errorf("kernel size %d of level %d must be at least 1", k, i)
		}
	}
	if o.LuminositySmoothing < 0 {
		return errors.New("luminosity smoothing must not be negative")
	}
	return nil
}

// BloomFactors returns strength * lerp(base[i], 1.2-base[i], radius) for
// every level.
func BloomFactors(base []float32, strength, radius float32) []float32 {
	out := make([]float32, len(base))
	fillBloomFactors(out, base, strength, radius)
	return out
}

func fillBloomFactors(dst, base []float32, strength, radius float32) {
	for i, b := range base {
		dst[i] = strength * lerp(b, 1.2-b, radius)
	}
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}
