// Package audio describes the PCM streams exchanged with the room:
// microphone capture going out and agent speech coming back.
package audio

const (
	DefaultSampleRate = 48000
	DefaultFormat     = FormatLinear16
)

// Format names a PCM sample encoding.
type Format string

const (
	FormatLinear16 Format = "linear16"
	FormatMulaw    Format = "mulaw"
)

// ByteSize returns the width of one sample in bytes, or -1 for an
// unrecognized format.
func (f Format) ByteSize() int {
	switch f {
	case FormatLinear16:
		return 2
	case FormatMulaw:
		return 1
	}
	return -1
}

// EncodingInfo describes a PCM stream: mono, interleaved, little-endian
// for multi-byte formats.
type EncodingInfo struct {
	SampleRate int
	Format     Format
}

// Default returns the encoding negotiated with the room when nothing else
// is requested.
func Default() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: DefaultFormat}
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format == ""
}

// BytesPerSecond returns the raw throughput of the stream.
func (e EncodingInfo) BytesPerSecond() int {
	return e.SampleRate * e.Format.ByteSize()
}
