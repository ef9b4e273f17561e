// Package mock provides fake speech backends for testing.
package mock

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/readaloud/tts"
)

// Synthesizer is a fake cloud synthesizer.
type Synthesizer struct {
	mu           sync.Mutex
	audio        []byte
	failureError error
	gate         chan struct{}
	callCount    int
	lastText     string
	lastSettings tts.Settings
}

// NewSynthesizer creates a synthesizer that returns a short fake payload.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{audio: []byte("ID3-mock-mp3")}
}

// SetError makes every following call fail with err. Nil clears it.
func (s *Synthesizer) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failureError = err
}

// Hold makes following calls block until Release.
func (s *Synthesizer) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
}

// Release unblocks held calls.
func (s *Synthesizer) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
}

// Synthesize implements tts.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, settings tts.Settings) ([]byte, error) {
	s.mu.Lock()
	s.callCount++
	s.lastText = text
	s.lastSettings = settings
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failureError != nil {
		return nil, s.failureError
	}
	return append([]byte(nil), s.audio...), nil
}

// CallCount returns the number of Synthesize calls.
func (s *Synthesizer) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

// LastText returns the text of the last call.
func (s *Synthesizer) LastText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastText
}

// Sink is a fake audio sink. Its handles fire events synchronously.
type Sink struct {
	mu        sync.Mutex
	failLoad  error
	handles   []*Audio
	loadCount int
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// SetLoadError makes Load fail with err.
func (s *Sink) SetLoadError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLoad = err
}

// Load implements tts.AudioSink.
func (s *Sink) Load(data []byte) (tts.AudioHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadCount++
	if s.failLoad != nil {
		return nil, s.failLoad
	}
	a := &Audio{data: data}
	s.handles = append(s.handles, a)
	return a, nil
}

// Open returns the number of handles not yet closed.
func (s *Sink) Open() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.handles {
		if !h.Closed() {
			n++
		}
	}
	return n
}

// Handles returns every handle loaded so far.
func (s *Sink) Handles() []*Audio {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Audio(nil), s.handles...)
}

// Last returns the most recently loaded handle, or nil.
func (s *Sink) Last() *Audio {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.handles) == 0 {
		return nil
	}
	return s.handles[len(s.handles)-1]
}

// Audio is a fake decoded asset.
type Audio struct {
	mu       sync.Mutex
	data     []byte
	handlers tts.AudioHandlers
	playing  bool
	closed   bool
	plays    int
}

// SetHandlers implements tts.AudioHandle.
func (a *Audio) SetHandlers(h tts.AudioHandlers) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers = h
}

// Play implements tts.AudioHandle.
func (a *Audio) Play() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return tts.ErrAssetClosed
	}
	a.playing = true
	a.plays++
	h := a.handlers.OnPlay
	a.mu.Unlock()

	if h != nil {
		h()
	}
	return nil
}

// Pause implements tts.AudioHandle.
func (a *Audio) Pause() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return tts.ErrAssetClosed
	}
	a.playing = false
	h := a.handlers.OnPause
	a.mu.Unlock()

	if h != nil {
		h()
	}
	return nil
}

// Close implements tts.AudioHandle. Like a real player it reports a pause
// when closed mid-playback.
func (a *Audio) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	wasPlaying := a.playing
	a.closed = true
	a.playing = false
	a.data = nil
	h := a.handlers.OnPause
	a.mu.Unlock()

	if wasPlaying && h != nil {
		h()
	}
	return nil
}

// End simulates playback reaching the end.
func (a *Audio) End() {
	a.mu.Lock()
	a.playing = false
	h := a.handlers.OnEnded
	a.mu.Unlock()

	if h != nil {
		h()
	}
}

// Fail simulates a decoder or device error.
func (a *Audio) Fail(err error) {
	a.mu.Lock()
	h := a.handlers.OnError
	a.mu.Unlock()

	if h != nil {
		h(err)
	}
}

// Closed reports whether the asset was released.
func (a *Audio) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Playing reports whether the asset is playing.
func (a *Audio) Playing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playing
}

// Plays returns how often Play succeeded.
func (a *Audio) Plays() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.plays
}

// HasHandlers reports whether any handler is registered.
func (a *Audio) HasHandlers() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	h := a.handlers
	return h.OnPlay != nil || h.OnPause != nil || h.OnEnded != nil || h.OnError != nil
}

// ErrEngineDown is returned by Engine when it is made unavailable.
var ErrEngineDown = errors.New("mock engine unavailable")

// Engine is a fake system speech engine. Handlers fire synchronously.
type Engine struct {
	mu         sync.Mutex
	available  bool
	voices     []tts.Voice
	listeners  map[int]func()
	nextID     int
	current    *tts.UtteranceHandlers
	currentID  tts.UtteranceID
	lastID     tts.UtteranceID
	speaking   bool
	paused     bool
	pauseError error
	spoken     []tts.Utterance

	cancelCount int
	pauseCount  int
	resumeCount int
}

// NewEngine creates an available engine with an empty catalog.
func NewEngine() *Engine {
	return &Engine{available: true, listeners: make(map[int]func())}
}

// SetAvailable sets whether the engine can speak.
func (e *Engine) SetAvailable(available bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.available = available
}

// SetPauseError makes Pause and Resume fail with err.
func (e *Engine) SetPauseError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauseError = err
}

// SetVoices replaces the catalog and notifies listeners.
func (e *Engine) SetVoices(voices []tts.Voice) {
	e.mu.Lock()
	e.voices = voices
	var fns []func()
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Available implements tts.SpeechEngine.
func (e *Engine) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.available
}

// Voices implements tts.SpeechEngine.
func (e *Engine) Voices() []tts.Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]tts.Voice(nil), e.voices...)
}

// OnVoicesChanged implements tts.SpeechEngine.
func (e *Engine) OnVoicesChanged(fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// Listeners returns the number of registered catalog listeners.
func (e *Engine) Listeners() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// Speak implements tts.SpeechEngine.
func (e *Engine) Speak(u tts.Utterance, h tts.UtteranceHandlers) (tts.UtteranceID, error) {
	e.mu.Lock()
	if !e.available {
		e.mu.Unlock()
		return 0, ErrEngineDown
	}
	e.spoken = append(e.spoken, u)
	e.lastID++
	id := e.lastID
	e.current = &h
	e.currentID = id
	e.speaking = true
	e.paused = false
	e.mu.Unlock()

	if h.OnStart != nil {
		h.OnStart()
	}
	return id, nil
}

// Pause implements tts.SpeechEngine.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pauseError != nil {
		return e.pauseError
	}
	e.pauseCount++
	e.paused = true
	return nil
}

// Resume implements tts.SpeechEngine.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pauseError != nil {
		return e.pauseError
	}
	e.resumeCount++
	e.paused = false
	return nil
}

// Cancel implements tts.SpeechEngine. Only the utterance in progress can be
// cancelled; stale ids are ignored and not counted.
func (e *Engine) Cancel(id tts.UtteranceID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil || e.currentID != id {
		return nil
	}
	e.cancelCount++
	e.current = nil
	e.currentID = 0
	e.speaking = false
	e.paused = false
	return nil
}

// Current returns the text and id of the utterance in progress.
func (e *Engine) Current() (string, tts.UtteranceID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return "", 0
	}
	return e.spoken[len(e.spoken)-1].Text, e.currentID
}

// Finish simulates the current utterance ending.
func (e *Engine) Finish() {
	e.mu.Lock()
	h := e.current
	e.current = nil
	e.currentID = 0
	e.speaking = false
	e.mu.Unlock()

	if h != nil && h.OnEnd != nil {
		h.OnEnd()
	}
}

// Fail simulates the current utterance failing.
func (e *Engine) Fail(err error) {
	e.mu.Lock()
	h := e.current
	e.current = nil
	e.currentID = 0
	e.speaking = false
	e.mu.Unlock()

	if h != nil && h.OnError != nil {
		h.OnError(err)
	}
}

// Spoken returns every utterance started so far.
func (e *Engine) Spoken() []tts.Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]tts.Utterance(nil), e.spoken...)
}

// Speaking reports whether an utterance is in progress.
func (e *Engine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speaking
}

// Paused reports whether the engine is paused.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Counts returns how often Pause, Resume and Cancel succeeded.
func (e *Engine) Counts() (pause, resume, cancel int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pauseCount, e.resumeCount, e.cancelCount
}

// Recorder collects controller messages.
type Recorder struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

// Notify records msg. It satisfies tts.Notifier.
func (r *Recorder) Notify(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

// Notices returns the text of every notice in order.
func (r *Recorder) Notices() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.msgs {
		if n, ok := m.(tts.NoticeMsg); ok {
			out = append(out, n.Text)
		}
	}
	return out
}

// Errors returns the errors carried by notices.
func (r *Recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []error
	for _, m := range r.msgs {
		if n, ok := m.(tts.NoticeMsg); ok && n.Err != nil {
			out = append(out, n.Err)
		}
	}
	return out
}

// Transport returns every transport change in order.
func (r *Recorder) Transport() []tts.TransportMsg {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []tts.TransportMsg
	for _, m := range r.msgs {
		if t, ok := m.(tts.TransportMsg); ok {
			out = append(out, t)
		}
	}
	return out
}
