package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/engines/system"
	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"
)

// How long to wait for the system engine to enumerate its voices.
const localVoicesTimeout = 5 * time.Second

var (
	voicesLocal bool
	voicesSet   string

	voicesCmd = &cobra.Command{
		Use:   "voices [QUERY]",
		Short: "List or choose voices",
		Long: paragraph(fmt.Sprintf("\nList the Azure voices, or the system voices with --local, optionally %s by QUERY. "+
			"--set validates a voice against the list and saves it.", keyword("filtered"))),
		Example: paragraph("readaloud voices english\nreadaloud voices --local\nreadaloud voices --set en-US-JennyNeural"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runVoices,
	}
)

func init() {
	voicesCmd.Flags().BoolVarP(&voicesLocal, "local", "L", false, "list system voices")
	voicesCmd.Flags().StringVar(&voicesSet, "set", "", "save the voice with this id")
}

func runVoices(cmd *cobra.Command, args []string) error {
	st, err := loadSettings()
	if err != nil {
		return err
	}
	s := st.Get()

	var voices []tts.Voice
	if voicesLocal {
		voices, err = localVoices(cmd.Context(), system.NewDefault())
	} else {
		voices, err = newAzureClient().Voices(cmd.Context(), s)
	}
	if err != nil {
		return errors.New(tts.Describe(err))
	}

	if voicesSet != "" {
		return setVoice(st, voices, voicesSet)
	}

	if len(args) > 0 {
		voices = tts.FilterVoices(voices, args[0])
	}
	if len(voices) == 0 {
		fmt.Println(dim("No voices."))
		return nil
	}

	current := s.CloudVoice
	if voicesLocal {
		current = s.LocalVoice
	}
	for _, v := range voices {
		mark := "  "
		if strings.EqualFold(v.ID, current) {
			mark = keyword("● ")
		}
		details := tts.LanguageName(v.Locale)
		if v.Gender != "" {
			details += ", " + v.Gender
		}
		line := fmt.Sprintf("%s%-32s %s", mark, v.ID, dim(details))
		fmt.Println(truncate.StringWithTail(line, width, "…"))
	}
	return nil
}

// setVoice stores id as the voice of the listed backend.
func setVoice(st *tts.SettingsStore, voices []tts.Voice, id string) error {
	v, ok := tts.FindVoice(voices, id)
	if !ok {
		return fmt.Errorf("no voice %q: run readaloud voices to list them", id)
	}
	err := st.Update(func(s *tts.Settings) {
		if voicesLocal {
			s.LocalVoice = v.ID
		} else {
			s.CloudVoice = v.ID
		}
	})
	if err != nil {
		return fmt.Errorf("unable to save voice: %w", err)
	}
	fmt.Printf("Voice set to %s (%s).\n", keyword(v.DisplayName), v.ID)
	return nil
}

// localVoices waits for the engine to finish enumerating its catalog.
func localVoices(ctx context.Context, e *system.Engine) ([]tts.Voice, error) {
	if !e.Available() {
		return nil, tts.NewTTSError(tts.ErrUnsupported, "system", "voices")
	}
	ctx, cancel := context.WithTimeout(ctx, localVoicesTimeout)
	defer cancel()

	changed := make(chan struct{}, 1)
	unsubscribe := e.OnVoicesChanged(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	if vs := e.Voices(); len(vs) > 0 {
		return vs, nil
	}
	select {
	case <-changed:
		return e.Voices(), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("system voices not ready: %w", ctx.Err())
	}
}
