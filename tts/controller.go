// Package tts reads text aloud through Azure neural voices or the system
// speech engine.
package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// User-facing notices.
const (
	NoticeNoText        = "No text to read from the current position."
	NoticeSynthesizing  = "Synthesizing speech..."
	NoticeStopped       = "Playback stopped."
	NoticeFinished      = "Finished reading."
	NoticeFallback      = "Azure rate limit reached. Reading with the system voice instead."
	NoticeNothingToRedo = "Nothing has been read yet."
	NoticeCloudChanges  = "Voice changes apply to the next reading."
)

// ControllerConfig holds configuration for the session controller.
type ControllerConfig struct {
	SynthesisTimeout time.Duration // Upper bound for one Azure request
}

// DefaultControllerConfig returns a sensible default configuration.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		SynthesisTimeout: 30 * time.Second,
	}
}

// Controller owns the single playback session. All methods are safe for
// concurrent use.
type Controller struct {
	// State management
	mu         sync.Mutex
	session    *Session
	generation uint64 // Bumped by every start and stop; tags in-flight requests
	lastText   string
	closed     bool

	// Collaborators
	settings  func() Settings
	cloud     Synthesizer
	audio     AudioSink
	local     *LocalBackend
	cache     AudioCache
	fallback  *FallbackPolicy
	transport *Transport
	notify    Notifier
	newID     func() string

	config ControllerConfig
}

// Option configures a Controller.
type Option func(*Controller)

// WithSettings sets the settings source read at the start of every session.
func WithSettings(fn func() Settings) Option {
	return func(c *Controller) { c.settings = fn }
}

// WithSynthesizer sets the cloud synthesizer.
func WithSynthesizer(s Synthesizer) Option {
	return func(c *Controller) { c.cloud = s }
}

// WithAudioSink sets the player for synthesized audio.
func WithAudioSink(a AudioSink) Option {
	return func(c *Controller) { c.audio = a }
}

// WithSpeechEngine sets the system speech engine.
func WithSpeechEngine(e SpeechEngine) Option {
	return func(c *Controller) { c.local = NewLocalBackend(e) }
}

// WithCache sets the store for synthesized audio.
func WithCache(cache AudioCache) Option {
	return func(c *Controller) { c.cache = cache }
}

// WithNotifier sets the receiver of notices and transport changes.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notify = n }
}

// WithConfig sets the controller configuration.
func WithConfig(cfg ControllerConfig) Option {
	return func(c *Controller) { c.config = cfg }
}

// NewController creates a controller with no live session.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		settings: DefaultSettings,
		fallback: &FallbackPolicy{},
		notify:   discard,
		newID:    newSessionID,
		config:   DefaultControllerConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notify == nil {
		c.notify = discard
	}
	if c.local == nil {
		c.local = NewLocalBackend(nil)
	}
	c.transport = NewTransport(c.notify)
	return c
}

func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Local returns the system engine backend.
func (c *Controller) Local() *LocalBackend {
	return c.local
}

// Transport returns the transport controls.
func (c *Controller) Transport() *Transport {
	return c.transport
}

// Fallbacks returns the number of utterances read locally after a cloud
// rate limit.
func (c *Controller) Fallbacks() int {
	return c.fallback.Count()
}

// Current returns the live session, or nil.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// State returns the playback state of the live session, Stopped when idle.
func (c *Controller) State() PlaybackState {
	if s := c.Current(); s != nil {
		return s.State()
	}
	return Stopped
}

// LastText returns the text of the most recent reading.
func (c *Controller) LastText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastText
}

// Held returns the number of resource handles the live session holds.
func (c *Controller) Held() int {
	if s := c.Current(); s != nil {
		return s.Held()
	}
	return 0
}

// ReadFromEditor reads e from its selection or cursor to the end.
func (c *Controller) ReadFromEditor(ctx context.Context, e Editor) error {
	text := ReadingText(e)
	if c.settings().StripMarkdown {
		text = PlainText(text)
	}
	return c.Read(ctx, text)
}

// Read handles a read request for text. Re-reading the text the system
// engine is speaking pauses or resumes it; any other text replaces the
// live session.
func (c *Controller) Read(ctx context.Context, text string) error {
	if s := c.Current(); s != nil && s.Backend == BackendLocal {
		if s.Text == text {
			return c.Toggle()
		}
		return c.Supersede(ctx, text)
	}
	return c.StartSession(ctx, text)
}

// Supersede stops the live session and reads text instead.
func (c *Controller) Supersede(ctx context.Context, text string) error {
	c.halt()
	return c.StartSession(ctx, text)
}

// StartSession disposes the live session, if any, and reads text with the
// configured backend.
func (c *Controller) StartSession(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		c.notify(NoticeMsg{Text: NoticeNoText})
		return ErrEmptyText
	}

	old, gen, err := c.begin(text)
	if err != nil {
		return err
	}
	// the previous session is gone before anything new is acquired
	c.dispose(old)

	s := c.settings()
	log.Debug("Starting speech session", "backend", s.Backend, "generation", gen, "chars", len(text))

	if s.Backend == BackendLocal {
		return c.startLocal(gen, text, s, false)
	}
	return c.startCloud(ctx, gen, text, s)
}

// ApplyChanges restarts the last reading with the current system engine
// settings.
func (c *Controller) ApplyChanges(ctx context.Context) error {
	s := c.settings()
	if s.Backend != BackendLocal {
		c.notify(NoticeMsg{Text: NoticeCloudChanges})
		return nil
	}

	text := c.LastText()
	if text == "" {
		c.notify(NoticeMsg{Text: NoticeNothingToRedo})
		return ErrNoSession
	}
	return c.Supersede(ctx, text)
}

// Toggle pauses a playing session and resumes a paused one.
func (c *Controller) Toggle() error {
	s := c.Current()
	if s == nil {
		return ErrNoSession
	}
	if s.State() == Paused {
		return c.resume(s)
	}
	return c.pause(s)
}

// Pause pauses the live session.
func (c *Controller) Pause() error {
	s := c.Current()
	if s == nil {
		return ErrNoSession
	}
	return c.pause(s)
}

// Resume resumes the live session.
func (c *Controller) Resume() error {
	s := c.Current()
	if s == nil {
		return ErrNoSession
	}
	return c.resume(s)
}

// Stop ends the live session and discards any synthesis still in flight.
// It is safe to call at any time.
func (c *Controller) Stop() {
	if c.halt() {
		c.notify(NoticeMsg{Text: NoticeStopped})
	}
}

// Close stops playback and rejects further sessions.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.halt()
}

// halt detaches and disposes the live session. It reports whether there
// was one.
func (c *Controller) halt() bool {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.generation++
	c.mu.Unlock()

	if s == nil {
		return false
	}
	c.dispose(s)
	return true
}

func (c *Controller) begin(text string) (*Session, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, 0, ErrControllerDone
	}
	old := c.session
	c.session = nil
	c.generation++
	c.lastText = text
	return old, c.generation, nil
}

// install makes s the live session if no newer request has started.
func (c *Controller) install(s *Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || s.Generation != c.generation {
		return false
	}
	c.session = s
	return true
}

func (c *Controller) isCurrent(s *Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session == s
}

func (c *Controller) isCurrentGeneration(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && gen == c.generation
}

// detach removes s as the live session. It reports false if s was already
// replaced or stopped.
func (c *Controller) detach(s *Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != s {
		return false
	}
	c.session = nil
	return true
}

func (c *Controller) dispose(s *Session) {
	if s == nil {
		return
	}
	if err := s.dispose(); err != nil {
		log.Warn("Releasing speech session", "session", s.ID, "err", err)
	}
}

func (c *Controller) startCloud(ctx context.Context, gen uint64, text string, s Settings) error {
	if c.cloud == nil || c.audio == nil {
		return c.fail(gen, NewTTSError(ErrNotConfigured, "controller", "start cloud").WithContext("reason", "no synthesizer"))
	}
	if err := s.ValidateCloud(); err != nil {
		return c.fail(gen, err)
	}

	c.notify(NoticeMsg{Text: NoticeSynthesizing, Busy: true})

	data, err := c.synthesize(ctx, text, s)
	if err != nil {
		if !c.isCurrentGeneration(gen) {
			log.Debug("Discarding failed synthesis of a superseded request", "generation", gen, "err", err)
			return ErrStaleSession
		}
		if c.fallback.Allow(err, c.local) {
			c.notify(NoticeMsg{Text: NoticeFallback, Err: err, Kind: KindRateLimit})
			return c.startLocal(gen, text, s, true)
		}
		return c.fail(gen, err)
	}

	if !c.isCurrentGeneration(gen) {
		log.Debug("Discarding synthesis result of a superseded request", "generation", gen)
		return ErrStaleSession
	}

	handle, err := c.audio.Load(data)
	if err != nil {
		return c.fail(gen, fmt.Errorf("%w: %w", ErrInvalidAudio, err))
	}

	sess := newSession(c.newID(), gen, BackendCloud, text)
	pb := &cloudPlayback{audio: handle}
	sess.playback = pb
	sess.acquire(Handle{Name: "audio", Release: pb.Stop})

	if !c.install(sess) {
		log.Debug("Discarding decoded audio of a superseded request", "generation", gen)
		c.dispose(sess)
		return ErrStaleSession
	}

	sess.acquire(pb.bind(AudioHandlers{
		OnPlay:  func() { c.transition(sess, Playing) },
		OnPause: func() { c.transition(sess, Paused) },
		OnEnded: func() { c.finish(sess) },
		OnError: func(err error) { c.failSession(sess, fmt.Errorf("%w: %w", ErrEngine, err)) },
	}))
	c.show(sess)

	if err := pb.Play(); err != nil {
		return c.failSession(sess, fmt.Errorf("%w: %w", ErrEngine, err))
	}
	return nil
}

func (c *Controller) synthesize(ctx context.Context, text string, s Settings) ([]byte, error) {
	key := CacheKey(s, text)
	if c.cache != nil {
		if data, err := c.cache.Get(key); err == nil {
			log.Debug("Using cached speech", "key", key[:12], "bytes", len(data))
			return data, nil
		}
	}

	if c.config.SynthesisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.SynthesisTimeout)
		defer cancel()
	}

	data, err := c.cloud.Synthesize(ctx, text, s)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Put(key, data); err != nil {
			log.Warn("Could not cache speech", "err", err)
		}
	}
	return data, nil
}

func (c *Controller) startLocal(gen uint64, text string, s Settings, fallback bool) error {
	if !c.local.Available() {
		return c.fail(gen, NewTTSError(ErrUnsupported, "local", "speak"))
	}

	sess := newSession(c.newID(), gen, BackendLocal, text)
	sess.Fallback = fallback
	pb := c.local.playback(c.local.Utterance(text, s), UtteranceHandlers{
		OnStart: func() { c.transition(sess, Playing) },
		OnEnd:   func() { c.finish(sess) },
		OnError: func(err error) { c.failSession(sess, fmt.Errorf("%w: %w", ErrEngine, err)) },
	})
	sess.playback = pb

	if !c.install(sess) {
		return ErrStaleSession
	}

	sess.acquire(Handle{Name: "utterance", Release: pb.Stop})
	c.show(sess)

	if err := pb.Play(); err != nil {
		if !errors.Is(err, ErrEngine) && !errors.Is(err, ErrUnsupported) {
			err = fmt.Errorf("%w: %w", ErrEngine, err)
		}
		return c.failSession(sess, err)
	}
	return nil
}

// show binds the transport controls to s for as long as s lives.
func (c *Controller) show(s *Session) {
	c.transport.Show(s.ID, s.Backend)
	s.acquire(Handle{
		Name: "transport",
		Release: func() error {
			c.transport.Hide(s.ID)
			return nil
		},
	})
}

func (c *Controller) pause(s *Session) error {
	if err := s.playback.Pause(); err != nil {
		return c.failSession(s, err)
	}
	c.transition(s, Paused)
	return nil
}

func (c *Controller) resume(s *Session) error {
	if err := s.playback.Resume(); err != nil {
		return c.failSession(s, err)
	}
	c.transition(s, Playing)
	return nil
}

func (c *Controller) transition(s *Session, state PlaybackState) {
	if !c.isCurrent(s) || !s.setState(state) {
		return
	}
	switch state {
	case Playing:
		c.transport.Set(s.ID, TransportPlaying)
	case Paused:
		c.transport.Set(s.ID, TransportPaused)
	}
}

// finish ends s after it played to the end.
func (c *Controller) finish(s *Session) {
	if !c.detach(s) {
		return
	}
	log.Debug("Speech session finished", "session", s.ID, "backend", s.Backend)
	c.dispose(s)
	c.notify(NoticeMsg{Text: NoticeFinished})
}

// fail reports err for the request tagged gen, which has not installed a
// session yet.
func (c *Controller) fail(gen uint64, err error) error {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		log.Debug("Ignoring failure of a superseded request", "generation", gen, "err", err)
		return ErrStaleSession
	}
	s := c.session
	c.session = nil
	c.mu.Unlock()

	c.dispose(s)
	c.report(err)
	return err
}

// failSession tears down s after a backend failure.
func (c *Controller) failSession(s *Session, err error) error {
	if !c.detach(s) {
		c.dispose(s)
		log.Debug("Ignoring failure of a disposed session", "session", s.ID, "err", err)
		return ErrStaleSession
	}
	c.dispose(s)
	c.report(err)
	return err
}

func (c *Controller) report(err error) {
	kind := KindOf(err)
	log.Error("Speech session failed", "kind", kind, "err", err)
	c.notify(NoticeMsg{Text: Describe(err), Err: err, Kind: kind})
}
