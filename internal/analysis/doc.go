// Package analysis provides frequency-domain inspection of recorded runs.
//
// A poorly tuned loop hunts: feedback and correction oscillate around the
// setpoint instead of settling. [DominantFrequency] finds that oscillation in
// a sampled signal using the power spectrum from [FFT].
package analysis
