package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/spf13/cobra"
)

var (
	sayClipboard bool
	sayText      string

	sayCmd = &cobra.Command{
		Use:   "say [FILE|-]",
		Short: "Read a note, text or the clipboard aloud without the TUI",
		Long: paragraph(fmt.Sprintf("\n%s a file, stdin, the --text argument or the clipboard and wait until it has been read. Ctrl-C stops playback.",
			keyword("Read"))),
		Example: paragraph("readaloud say notes/today.md\necho hello | readaloud say -\nreadaloud say --clipboard --backend local"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runSay,
	}
)

func init() {
	sayCmd.Flags().BoolVarP(&sayClipboard, "clipboard", "c", false, "read the clipboard")
	sayCmd.Flags().StringVarP(&sayText, "text", "t", "", "text to read")
}

// sayInput picks the text to read from the flags and arguments.
func sayInput(args []string) (string, error) {
	switch {
	case sayText != "":
		return sayText, nil
	case sayClipboard:
		s, err := clipboard.ReadAll()
		if err != nil {
			return "", fmt.Errorf("unable to read clipboard: %w", err)
		}
		return s, nil
	case len(args) == 0:
		return "", errors.New("nothing to read: pass a file, - for stdin, --text or --clipboard")
	}

	src, err := sourceFromArg(args[0])
	if err != nil {
		return "", err
	}
	defer src.reader.Close() //nolint:errcheck
	b, err := io.ReadAll(src.reader)
	if err != nil {
		return "", fmt.Errorf("unable to read from reader: %w", err)
	}
	return string(b), nil
}

// sayNotifier prints notices to stderr and reports when the session ends.
type sayNotifier struct {
	logger *log.Logger
	done   chan struct{}
	once   sync.Once
}

func newSayNotifier() *sayNotifier {
	return &sayNotifier{
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: "readaloud"}),
		done:   make(chan struct{}),
	}
}

func (n *sayNotifier) notify(msg tea.Msg) {
	switch msg := msg.(type) {
	case tts.NoticeMsg:
		if msg.Err != nil {
			n.logger.Error(msg.Text, "kind", msg.Kind)
			return
		}
		n.logger.Info(msg.Text)
	case tts.TransportMsg:
		log.Debug("Transport", "state", msg.State, "backend", msg.Backend, "session", msg.SessionID)
		if msg.State == tts.TransportHidden && msg.PrevState.Visible() {
			n.once.Do(func() { close(n.done) })
		}
	}
}

func runSay(cmd *cobra.Command, args []string) error {
	text, err := sayInput(args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return tts.ErrEmptyText
	}

	stack, err := openSpeech()
	if err != nil {
		return err
	}
	defer stack.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	n := newSayNotifier()
	ctrl := stack.controller(n.notify)
	defer ctrl.Close()

	if err := ctrl.Read(ctx, text); err != nil {
		// already reported as a notice
		return fmt.Errorf("unable to read aloud: %w", err)
	}

	select {
	case <-n.done:
	case <-ctx.Done():
		ctrl.Stop()
	}
	return nil
}
