package audio

import "context"

// Player plays PCM in the device's EncodingInfo. Play returns once the audio
// has been handed to the device and played out, or ctx is done.
type Player interface {
	Play(ctx context.Context, pcm []byte) error
	ClearBuffer()
	EncodingInfo() EncodingInfo
	Close()
}

// Recorder captures microphone audio in the device's EncodingInfo.
type Recorder interface {
	StartRecording(ctx context.Context, onAudio func(pcm []byte)) error
	StopRecording() error
}

type Device interface {
	Player
	Recorder
}
