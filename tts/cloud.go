package tts

// cloudPlayback plays a decoded Azure payload.
type cloudPlayback struct {
	audio AudioHandle
}

func (p *cloudPlayback) Backend() Backend { return BackendCloud }

func (p *cloudPlayback) Play() error { return p.audio.Play() }

func (p *cloudPlayback) Pause() error { return p.audio.Pause() }

func (p *cloudPlayback) Resume() error { return p.audio.Play() }

func (p *cloudPlayback) Stop() error { return p.audio.Close() }

// bind registers the session's handlers on the player. The returned handle
// unregisters them.
func (p *cloudPlayback) bind(h AudioHandlers) Handle {
	p.audio.SetHandlers(h)
	return Handle{
		Name: "audio handlers",
		Release: func() error {
			p.audio.SetHandlers(AudioHandlers{})
			return nil
		},
	}
}
