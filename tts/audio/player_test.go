package audio

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/tts"
)

type fakePlayer struct {
	mu      sync.Mutex
	playing bool
	closed  bool
	err     error
	plays   int
}

func (p *fakePlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
	p.plays++
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
}

func (p *fakePlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *fakePlayer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.playing = false
	return nil
}

// drain simulates the stream reaching its end.
func (p *fakePlayer) drain() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
}

func (p *fakePlayer) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakePlayer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeDevice struct {
	rate int

	mu      sync.Mutex
	players []*fakePlayer
}

func (d *fakeDevice) SampleRate() int { return d.rate }

func (d *fakeDevice) NewPlayer(io.Reader) Player {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := &fakePlayer{}
	d.players = append(d.players, p)
	return p
}

func (d *fakeDevice) last() *fakePlayer {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.players) == 0 {
		return nil
	}
	return d.players[len(d.players)-1]
}

func (d *fakeDevice) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.players)
}

type events struct {
	mu     sync.Mutex
	log    []string
	ended  chan struct{}
	failed chan error
}

func newEvents() *events {
	return &events{ended: make(chan struct{}, 1), failed: make(chan error, 1)}
}

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, s)
}

func (e *events) seen() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

func (e *events) handlers() tts.AudioHandlers {
	return tts.AudioHandlers{
		OnPlay:  func() { e.add("play") },
		OnPause: func() { e.add("pause") },
		OnEnded: func() { e.add("ended"); e.ended <- struct{}{} },
		OnError: func(err error) { e.add("error"); e.failed <- err },
	}
}

func testClip() *Clip {
	return &Clip{PCM: make([]byte, 24000*Channels*BytesPerSample), SampleRate: 24000}
}

func load(t *testing.T, dev *fakeDevice) *Handle {
	t.Helper()
	h, err := NewSinkWithDevice(dev, time.Millisecond).LoadClip(testClip())
	if err != nil {
		t.Fatalf("LoadClip failed: %v", err)
	}
	return h.(*Handle)
}

func TestDecodeRejectsInvalidPayloads(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("this is not an mp3 stream at all"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data)
			if !errors.Is(err, tts.ErrInvalidAudio) {
				t.Fatalf("Expected ErrInvalidAudio, got %v", err)
			}
			if tts.KindOf(err) != tts.KindEngine {
				t.Errorf("Expected an engine error, got %v", tts.KindOf(err))
			}
		})
	}
}

func TestSinkLoadInvalidPayload(t *testing.T) {
	sink := NewSinkWithDevice(&fakeDevice{rate: 24000}, 0)
	if _, err := sink.Load([]byte{0x00, 0x01}); !errors.Is(err, tts.ErrInvalidAudio) {
		t.Errorf("Expected ErrInvalidAudio, got %v", err)
	}
}

func TestClipDuration(t *testing.T) {
	if d := testClip().Duration(); d != time.Second {
		t.Errorf("Duration() = %v, want 1s", d)
	}
	if d := (&Clip{}).Duration(); d != 0 {
		t.Errorf("Expected zero duration, got %v", d)
	}
}

func TestSampleRateMismatch(t *testing.T) {
	sink := NewSinkWithDevice(&fakeDevice{rate: 44100}, 0)
	if _, err := sink.LoadClip(testClip()); !errors.Is(err, tts.ErrInvalidAudio) {
		t.Errorf("Expected ErrInvalidAudio, got %v", err)
	}
}

func TestPlayPauseResume(t *testing.T) {
	dev := &fakeDevice{rate: 24000}
	h := load(t, dev)
	ev := newEvents()
	h.SetHandlers(ev.handlers())

	if dev.count() != 0 {
		t.Fatal("Expected no player before Play")
	}
	if err := h.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if !dev.last().IsPlaying() {
		t.Fatal("Expected the player to be playing")
	}
	if err := h.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	// a paused player must not be reported as finished
	time.Sleep(10 * time.Millisecond)
	if err := h.Play(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	if dev.count() != 1 {
		t.Errorf("Expected resume to reuse the player, got %d players", dev.count())
	}
	want := []string{"play", "pause", "play"}
	if got := ev.seen(); len(got) != len(want) {
		t.Errorf("Events = %v, want %v", got, want)
	}
	_ = h.Close()
}

func TestEndedFiresOnce(t *testing.T) {
	dev := &fakeDevice{rate: 24000}
	h := load(t, dev)
	ev := newEvents()
	h.SetHandlers(ev.handlers())

	_ = h.Play()
	p := dev.last()
	p.drain()

	select {
	case <-ev.ended:
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for ended")
	}
	if !p.isClosed() {
		t.Error("Expected the finished player to be closed")
	}

	// playing again starts over with a fresh player
	_ = h.Play()
	if dev.count() != 2 {
		t.Errorf("Expected a new player, got %d", dev.count())
	}
	_ = h.Close()
}

func TestPlayerErrorReported(t *testing.T) {
	dev := &fakeDevice{rate: 24000}
	h := load(t, dev)
	ev := newEvents()
	h.SetHandlers(ev.handlers())

	_ = h.Play()
	dev.last().fail(errors.New("device unplugged"))

	select {
	case err := <-ev.failed:
		if !errors.Is(err, tts.ErrEngine) {
			t.Errorf("Expected ErrEngine, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for error")
	}
	_ = h.Close()
}

func TestCloseReleasesAndIsIdempotent(t *testing.T) {
	dev := &fakeDevice{rate: 24000}
	h := load(t, dev)
	ev := newEvents()
	h.SetHandlers(ev.handlers())
	_ = h.Play()

	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
	if !dev.last().isClosed() || !h.Closed() {
		t.Error("Expected the player to be released")
	}
	if got := ev.seen(); got[len(got)-1] != "pause" {
		t.Errorf("Expected a pause event on close, got %v", got)
	}
	if err := h.Play(); !errors.Is(err, tts.ErrAssetClosed) {
		t.Errorf("Expected ErrAssetClosed, got %v", err)
	}
	if err := h.Pause(); !errors.Is(err, tts.ErrAssetClosed) {
		t.Errorf("Expected ErrAssetClosed, got %v", err)
	}
}

func TestClearedHandlersAreSilent(t *testing.T) {
	dev := &fakeDevice{rate: 24000}
	h := load(t, dev)
	ev := newEvents()
	h.SetHandlers(ev.handlers())
	h.SetHandlers(tts.AudioHandlers{})

	_ = h.Play()
	_ = h.Close()
	if got := ev.seen(); len(got) != 0 {
		t.Errorf("Expected no events, got %v", got)
	}
}
