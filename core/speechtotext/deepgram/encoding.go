package deepgram

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/koscakluka/ema-turns/core/audio"
)

var ErrUnsupportedEncoding = errors.New("unsupported encoding")

type encodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

type encodingFormat string

func (e encodingFormat) Name() string { return string(e) }

const (
	encodingLinear16 encodingFormat = "linear16"
	encodingALaw     encodingFormat = "alaw"
	encodingMulaw    encodingFormat = "mulaw"
)

func convertEncoding(encoding audio.EncodingInfo) (*encodingInfo, error) {
	deepgramEncoding := encodingInfo{}
	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 48000:
		deepgramEncoding.SampleRate = encoding.SampleRate
	default:
		return nil, fmt.Errorf("%w: sample rate %d", ErrUnsupportedEncoding, encoding.SampleRate)
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
		deepgramEncoding.Format = encodingLinear16
	case audio.EncodingALaw, audio.EncodingMulaw:
		deepgramEncoding.Format = encodingFormat(encoding.Format.Name())
		if deepgramEncoding.SampleRate != 8000 {
			return nil, fmt.Errorf("%w: %s needs 8000 Hz", ErrUnsupportedEncoding, encoding.Format.Name())
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, encoding.Format.Name())
	}

	return &deepgramEncoding, nil
}

func (e encodingInfo) setQuery(query url.Values) {
	query.Set("encoding", e.Format.Name())
	query.Set("sample_rate", strconv.Itoa(e.SampleRate))
	query.Set("channels", "1")
}
