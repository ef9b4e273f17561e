//go:build !nocgo
// +build !nocgo

package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process. It is opened lazily at the rate
// of the first clip and reused for the life of the program.
var (
	device     *otoDevice
	deviceErr  error
	deviceOnce sync.Once
)

type otoDevice struct {
	ctx  *oto.Context
	rate int
}

func (d *otoDevice) SampleRate() int { return d.rate }

func (d *otoDevice) NewPlayer(r io.Reader) Player {
	return d.ctx.NewPlayer(r)
}

// openDevice returns the process wide output device.
func openDevice(sampleRate int) (Device, error) {
	deviceOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   50 * time.Millisecond,
		}

		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			deviceErr = fmt.Errorf("failed to create audio context: %w", err)
			return
		}
		<-ready
		log.Debug("Audio context ready", "rate", sampleRate, "channels", Channels)
		device = &otoDevice{ctx: ctx, rate: sampleRate}
	})

	if deviceErr != nil {
		return nil, deviceErr
	}
	return device, nil
}
