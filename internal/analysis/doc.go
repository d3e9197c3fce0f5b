// Package analysis post-processes integrated trajectories.
//
//   - [PowerSpectrum] and [Spectrum.Dominant]: frequency content of a DOF
//   - [ObservedOrder]: order of accuracy measured from a step-size sweep
//
// A second order method run at halving steps should give
//
//	p, _ := analysis.ObservedOrder(dts, errs) // p close to 2
package analysis
