package audio

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/dgnsrekt/readaloud/tts"
	"github.com/hajimehoshi/go-mp3"
)

const (
	// Channels is the channel count of decoded audio. The mp3 decoder
	// always produces interleaved stereo.
	Channels = 2
	// BytesPerSample is the size of one signed 16-bit little endian sample.
	BytesPerSample = 2
)

// Clip is a fully decoded PCM buffer.
type Clip struct {
	PCM        []byte
	SampleRate int
}

// Duration returns the playing time of the clip.
func (c *Clip) Duration() time.Duration {
	frame := Channels * BytesPerSample
	if c.SampleRate == 0 {
		return 0
	}
	frames := len(c.PCM) / frame
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// Decode decodes an mp3 payload into memory before anything is played, so
// playback never waits on the decoder.
func Decode(data []byte) (*Clip, error) {
	if len(data) == 0 {
		return nil, tts.NewTTSError(fmt.Errorf("%w: empty payload", tts.ErrInvalidAudio), "audio", "decode")
	}

	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, tts.NewTTSError(fmt.Errorf("%w: %w", tts.ErrInvalidAudio, err), "audio", "decode")
	}

	var buf bytes.Buffer
	if n := dec.Length(); n > 0 {
		buf.Grow(int(n))
	}
	if _, err := io.Copy(&buf, dec); err != nil {
		return nil, tts.NewTTSError(fmt.Errorf("%w: %w", tts.ErrInvalidAudio, err), "audio", "decode")
	}
	if buf.Len() == 0 {
		return nil, tts.NewTTSError(fmt.Errorf("%w: no samples", tts.ErrInvalidAudio), "audio", "decode")
	}

	return &Clip{PCM: buf.Bytes(), SampleRate: dec.SampleRate()}, nil
}
