package audio

const (
	// DefaultSampleRate is the rate user audio arrives at over the wire.
	DefaultSampleRate = 16000
	// DefaultOutputSampleRate is the rate synthesized speech is requested at.
	DefaultOutputSampleRate = 24000
	DefaultFormat           = "linear16"
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: EncodingLinear16}
}

func GetDefaultOutputEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultOutputSampleRate, Format: EncodingLinear16}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// BytesPerSecond is the byte rate of a mono stream in this encoding.
func (e EncodingInfo) BytesPerSecond() int {
	if size := e.Format.ByteSize(); size > 0 {
		return e.SampleRate * size
	}
	return 0
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	case EncodingLinear16:
		return 0
	}

	return 0
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)
