// Package audio provides helpers for reading and reshaping the PCM audio
// consumed by the transcription pipeline. All pipeline stages operate on
// mono float32 samples normalised to [-1.0, 1.0]; multi-channel input is
// down-mixed on read.
package audio

// Clip holds decoded mono audio samples and their sample rate.
type Clip struct {
	// Samples are mono float32 samples normalised to [-1.0, 1.0].
	Samples []float32

	// Rate is the sample rate in Hz.
	Rate int
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.Rate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.Rate)
}
