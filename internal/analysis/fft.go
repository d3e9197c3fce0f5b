package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// FFT is the discrete Fourier transform of real data of any length.
func FFT(data []float64) ([]complex128, error) {
	if len(data) == 0 {
		return nil, errors.New("fft of empty data")
	}
	return fft.FFTReal(data), nil
}

// Spectrum is a one-sided amplitude spectrum.
type Spectrum struct {
	Freqs []float64
	Power []float64
}

// PowerSpectrum removes the mean of samples taken every dt seconds and
// returns the amplitude spectrum up to the Nyquist frequency.
func PowerSpectrum(samples []float64, dt float64) (Spectrum, error) {
	if len(samples) < 2 || dt <= 0 {
		return Spectrum{}, errors.Errorf("spectrum needs at least 2 samples and dt > 0, got %d and %g", len(samples), dt)
	}
	n := len(samples)
	centered := make([]float64, n)
	copy(centered, samples)
	floats.AddConst(-floats.Sum(samples)/float64(n), centered)

	out, err := FFT(centered)
	if err != nil {
		return Spectrum{}, err
	}
	s := Spectrum{Freqs: make([]float64, n/2), Power: make([]float64, n/2)}
	for i := range s.Power {
		s.Freqs[i] = float64(i) / (float64(n) * dt)
		s.Power[i] = cmplx.Abs(out[i])
	}
	return s, nil
}

// Dominant is the frequency of the largest non-zero bin.
func (s Spectrum) Dominant() float64 {
	if len(s.Power) < 2 {
		return 0
	}
	return s.Freqs[1+floats.MaxIdx(s.Power[1:])]
}
