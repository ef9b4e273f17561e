package tts

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Messages sent from the controller to its notifier. They double as Bubble
// Tea messages so the UI can receive them through Program.Send.

// NoticeMsg is a transient message for the user.
type NoticeMsg struct {
	Text string
	Err  error     // Set when the notice reports a failure
	Kind ErrorKind // Classification of Err
	Busy bool      // True while a long operation is in flight
}

// TransportMsg reports a transport state change.
type TransportMsg struct {
	State     TransportState
	PrevState TransportState
	Backend   Backend
	SessionID string
}

// VoicesChangedMsg reports that the local voice catalog changed.
type VoicesChangedMsg struct{}

// Notifier receives controller messages. It must not block for long and is
// never called with a controller lock held.
type Notifier func(msg tea.Msg)

func discard(tea.Msg) {}

// ListenVoices returns a command that waits for the next catalog change of
// engine. The command returns nil once ctx is done, releasing its listener.
func ListenVoices(ctx context.Context, engine SpeechEngine) tea.Cmd {
	if engine == nil {
		return nil
	}
	return func() tea.Msg {
		ch := make(chan struct{}, 1)
		unsubscribe := engine.OnVoicesChanged(func() {
			select {
			case ch <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()

		select {
		case <-ch:
			return VoicesChangedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}
