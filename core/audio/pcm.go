package audio

import (
	"encoding/binary"
	"math"
)

// PCM16ToFloat32 decodes little-endian signed 16-bit samples. A trailing odd
// byte is ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		sample := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		samples[i] = float32(sample) / math.MaxInt16
	}
	return samples
}

// Float32ToPCM16 encodes samples as little-endian signed 16-bit PCM, clipping
// anything outside [-1, 1].
func Float32ToPCM16(samples []float32) []byte {
	pcm := make([]byte, 2*len(samples))
	for i, sample := range samples {
		switch {
		case math.IsNaN(float64(sample)):
			sample = 0
		case sample > 1:
			sample = 1
		case sample < -1:
			sample = -1
		}
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(math.Round(float64(sample)*math.MaxInt16))))
	}
	return pcm
}
