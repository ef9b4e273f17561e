package system

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/tts"
)

// shellDriver speaks by running a shell snippet.
type shellDriver struct {
	script string

	mu     sync.Mutex
	voices []tts.Voice
	err    error
}

func (d *shellDriver) Name() string { return "shell" }

func (d *shellDriver) Command(tts.Utterance) *exec.Cmd {
	return exec.Command("sh", "-c", d.script)
}

func (d *shellDriver) Voices(context.Context) ([]tts.Voice, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.voices, d.err
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found")
	}
}

type outcome struct {
	started chan struct{}
	ended   chan struct{}
	failed  chan error
}

func newOutcome() *outcome {
	return &outcome{
		started: make(chan struct{}, 1),
		ended:   make(chan struct{}, 1),
		failed:  make(chan error, 1),
	}
}

func (o *outcome) handlers() tts.UtteranceHandlers {
	return tts.UtteranceHandlers{
		OnStart: func() { o.started <- struct{}{} },
		OnEnd:   func() { o.ended <- struct{}{} },
		OnError: func(err error) { o.failed <- err },
	}
}

func TestUnavailableEngine(t *testing.T) {
	e := New(nil)
	if e.Available() {
		t.Fatal("Expected a nil driver to be unavailable")
	}
	_, err := e.Speak(tts.Utterance{Text: "hi"}, tts.UtteranceHandlers{})
	if !errors.Is(err, tts.ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported, got %v", err)
	}
	if err := e.CancelAll(); err != nil {
		t.Errorf("Cancel on idle engine failed: %v", err)
	}
}

func TestSpeakRunsToCompletion(t *testing.T) {
	requireShell(t)
	e := New(&shellDriver{script: "exit 0"})
	o := newOutcome()

	if _, err := e.Speak(tts.Utterance{Text: "hi"}, o.handlers()); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	select {
	case <-o.started:
	default:
		t.Fatal("Expected OnStart before Speak returns")
	}

	select {
	case <-o.ended:
	case err := <-o.failed:
		t.Fatalf("Unexpected error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for OnEnd")
	}
}

func TestSpeakReportsFailure(t *testing.T) {
	requireShell(t)
	e := New(&shellDriver{script: "exit 3"})
	o := newOutcome()

	_, _ = e.Speak(tts.Utterance{Text: "hi"}, o.handlers())
	select {
	case err := <-o.failed:
		if err == nil {
			t.Error("Expected an error")
		}
	case <-o.ended:
		t.Fatal("Expected OnError, got OnEnd")
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for OnError")
	}
}

func TestCancelSuppressesHandlers(t *testing.T) {
	requireShell(t)
	e := New(&shellDriver{script: "sleep 30"})
	o := newOutcome()

	id, _ := e.Speak(tts.Utterance{Text: "hi"}, o.handlers())
	if !e.Speaking() {
		t.Fatal("Expected an utterance in progress")
	}
	if err := e.Cancel(id); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if e.Speaking() {
		t.Error("Expected no utterance after Cancel")
	}

	select {
	case <-o.ended:
		t.Error("OnEnd fired for a cancelled utterance")
	case <-o.failed:
		t.Error("OnError fired for a cancelled utterance")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSpeakCancelsPrevious(t *testing.T) {
	requireShell(t)
	e := New(&shellDriver{script: "sleep 30"})
	first := newOutcome()
	second := newOutcome()

	one, _ := e.Speak(tts.Utterance{Text: "one"}, first.handlers())
	two, _ := e.Speak(tts.Utterance{Text: "two"}, second.handlers())
	if one == two || one == 0 {
		t.Fatalf("Expected distinct utterance ids, got %d and %d", one, two)
	}

	select {
	case <-first.ended:
		t.Error("The superseded utterance must stay silent")
	case <-first.failed:
		t.Error("The superseded utterance must stay silent")
	case <-time.After(50 * time.Millisecond):
	}
	_ = e.Cancel(two)
}

func TestCancelIgnoresReplacedUtterance(t *testing.T) {
	requireShell(t)
	e := New(&shellDriver{script: "sleep 30"})
	first := newOutcome()
	second := newOutcome()

	one, _ := e.Speak(tts.Utterance{Text: "one"}, first.handlers())
	two, _ := e.Speak(tts.Utterance{Text: "two"}, second.handlers())
	defer e.Cancel(two) //nolint:errcheck

	// a late teardown of the first utterance leaves the second running
	if err := e.Cancel(one); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !e.Speaking() {
		t.Error("Expected the second utterance to keep speaking")
	}
	select {
	case <-second.ended:
		t.Error("The second utterance ended early")
	case <-second.failed:
		t.Error("The second utterance failed")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPauseResume(t *testing.T) {
	requireShell(t)
	e := New(&shellDriver{script: "sleep 30"})

	// pausing with nothing to pause is a no-op
	if err := e.Pause(); err != nil {
		t.Fatalf("Idle pause failed: %v", err)
	}

	id, _ := e.Speak(tts.Utterance{Text: "hi"}, tts.UtteranceHandlers{})
	defer e.Cancel(id) //nolint:errcheck

	if err := e.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if !e.Paused() {
		t.Error("Expected the engine to be paused")
	}
	if err := e.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if e.Paused() {
		t.Error("Expected the engine to be resumed")
	}

	// a paused process can still be cancelled
	_ = e.Pause()
	if err := e.Cancel(id); err != nil {
		t.Errorf("Cancel of paused utterance failed: %v", err)
	}
}

func TestVoicesLoadedAsync(t *testing.T) {
	d := &shellDriver{voices: []tts.Voice{{ID: "en", DisplayName: "English"}}}
	changed := make(chan struct{}, 1)

	e := &Engine{driver: d, listeners: make(map[int]func())}
	unsubscribe := e.OnVoicesChanged(func() { changed <- struct{}{} })
	e.Refresh()

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for the catalog")
	}
	if v := e.Voices(); len(v) != 1 || v[0].ID != "en" {
		t.Errorf("Voices() = %v", v)
	}

	unsubscribe()
	e.Refresh()
	select {
	case <-changed:
		t.Error("Unsubscribed listener was called")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestVoiceCatalogFailureKeepsOldList(t *testing.T) {
	d := &shellDriver{voices: []tts.Voice{{ID: "en"}}}
	e := &Engine{driver: d, listeners: make(map[int]func())}
	e.loadVoices()

	d.mu.Lock()
	d.err = errors.New("boom")
	d.mu.Unlock()
	e.loadVoices()

	if len(e.Voices()) != 1 {
		t.Error("Expected the previous catalog to survive a failed refresh")
	}
}
