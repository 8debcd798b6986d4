package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

const wavHeaderSize = 44

var ErrInvalidWAV = errors.New("invalid wav data")

// EncodeWAV wraps mono PCM16 samples in a RIFF/WAVE container.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	pcm := Float32ToPCM16(samples)

	const (
		channels      = 1
		bitsPerSample = 16
	)
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// EncodeWAVBase64 is EncodeWAV for JSON payloads. Empty input encodes to an
// empty string rather than a header-only file.
func EncodeWAVBase64(samples []float32, sampleRate int) string {
	if len(samples) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(EncodeWAV(samples, sampleRate))
}

// DecodeWAV reads a mono PCM16 file produced by EncodeWAV.
func DecodeWAV(data []byte) ([]float32, int, error) {
	if len(data) < wavHeaderSize ||
		string(data[0:4]) != "RIFF" ||
		string(data[8:12]) != "WAVE" ||
		string(data[12:16]) != "fmt " {
		return nil, 0, ErrInvalidWAV
	}

	format := binary.LittleEndian.Uint16(data[20:22])
	channels := binary.LittleEndian.Uint16(data[22:24])
	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(data[34:36])
	if format != 1 || channels != 1 || bitsPerSample != 16 {
		return nil, 0, fmt.Errorf("%w: unsupported format %d/%d ch/%d bit", ErrInvalidWAV, format, channels, bitsPerSample)
	}
	if string(data[36:40]) != "data" {
		return nil, 0, ErrInvalidWAV
	}

	size := int(binary.LittleEndian.Uint32(data[40:44]))
	if size > len(data)-wavHeaderSize {
		size = len(data) - wavHeaderSize
	}

	return PCM16ToFloat32(data[wavHeaderSize : wavHeaderSize+size]), int(sampleRate), nil
}
