package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT returns the discrete Fourier transform of a real signal of any length.
func FFT(data []float64) []complex128 {
	return fft.FFTReal(data)
}

// PowerSpectrum returns the magnitude of the first half of the spectrum.
func PowerSpectrum(data []float64) []float64 {
	spec := FFT(data)
	ps := make([]float64, len(spec)/2)

	for i := range ps {
		ps[i] = cmplx.Abs(spec[i])
	}

	return ps
}

// Padded returns data with its mean removed, zero-padded to a power of two.
func Padded(data []float64) []float64 {
	n := 1
	for n < len(data) {
		n *= 2
	}

	mean := 0.0
	for _, v := range data {
		mean += v
	}
	if len(data) > 0 {
		mean /= float64(len(data))
	}

	out := make([]float64, n)
	for i, v := range data {
		out[i] = v - mean
	}
	return out
}

// DominantFrequency returns the strongest non-DC frequency in data, sampled
// every dt seconds, and its spectral magnitude. It returns 0 for signals too
// short to analyse.
func DominantFrequency(data []float64, dt float64) (freq, power float64) {
	if len(data) < 4 || dt <= 0 {
		return 0, 0
	}

	padded := Padded(data)
	ps := PowerSpectrum(padded)

	maxIdx := 0
	for i := 1; i < len(ps); i++ {
		if ps[i] > power {
			power = ps[i]
			maxIdx = i
		}
	}

	return float64(maxIdx) / (float64(len(padded)) * dt), power
}
