package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/audio"
	"github.com/dgnsrekt/readaloud/tts/engines/azure"
	"github.com/dgnsrekt/readaloud/tts/engines/system"
	"github.com/dgnsrekt/readaloud/ui"
	"github.com/dgnsrekt/readaloud/utils"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

// speechStack holds the long-lived speech collaborators of one run.
type speechStack struct {
	settings *tts.SettingsStore
	azure    *azure.Client
	engine   *system.Engine
	sink     *audio.Sink
	cache    *cache.Store
}

// settingsPath is the speech settings file, separate from readaloud.yml
// because the voices view rewrites it.
func settingsPath() (string, error) {
	if p := viper.GetString("speech.settings"); p != "" {
		return utils.ExpandPath(p), nil
	}
	p, err := gap.NewScope(gap.User, "readaloud").DataPath("speech.yml")
	if err != nil {
		return "", fmt.Errorf("unable to find data directory: %w", err)
	}
	return p, nil
}

func cacheDir() (string, error) {
	if p := viper.GetString("cache.dir"); p != "" {
		return utils.ExpandPath(p), nil
	}
	dir, err := gap.NewScope(gap.User, "readaloud").CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to find cache directory: %w", err)
	}
	return filepath.Join(dir, "audio"), nil
}

func loadSettings() (*tts.SettingsStore, error) {
	path, err := settingsPath()
	if err != nil {
		return nil, err
	}
	st, err := tts.LoadSettings(path)
	if err != nil {
		return nil, err
	}
	st.Override(tts.OverridesFromViper(viper.GetViper()))
	return st, nil
}

func openCache() (*cache.Store, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	cfg := cache.DefaultConfig(dir)
	if mb := viper.GetInt64("cache.max_size"); mb > 0 {
		cfg.DiskCapacity = mb << 20
	}
	if !viper.GetBool("cache.enabled") {
		cfg.Dir = ""
	}
	return cache.Open(cfg)
}

func newAzureClient() *azure.Client {
	opts := []azure.Option{azure.WithUserAgent("readaloud/" + Version)}
	if viper.IsSet("azure.requests_per_minute") {
		opts = append(opts, azure.WithRateLimit(viper.GetInt("azure.requests_per_minute")))
	}
	if u := viper.GetString("azure.endpoint"); u != "" {
		opts = append(opts, azure.WithBaseURL(u))
	}
	return azure.New(opts...)
}

// openSpeech assembles settings, both backends, the audio sink and the
// cache. A cache that cannot be opened only costs repeated synthesis.
func openSpeech() (*speechStack, error) {
	st, err := loadSettings()
	if err != nil {
		return nil, err
	}

	s := &speechStack{
		settings: st,
		azure:    newAzureClient(),
		engine:   system.NewDefault(),
		sink:     audio.NewSink(),
	}
	if c, err := openCache(); err != nil {
		log.Warn("Speech cache disabled", "err", err)
	} else {
		s.cache = c
	}

	log.Debug("Speech ready",
		"settings", st.Path(),
		"backend", st.Get().Backend,
		"driver", s.engine.Driver(),
	)
	return s, nil
}

func (s *speechStack) controller(n tts.Notifier) *tts.Controller {
	opts := []tts.Option{
		tts.WithSettings(s.settings.Get),
		tts.WithSynthesizer(s.azure),
		tts.WithAudioSink(s.sink),
		tts.WithSpeechEngine(s.engine),
		tts.WithNotifier(n),
	}
	if s.cache != nil {
		opts = append(opts, tts.WithCache(s.cache))
	}
	if d := viper.GetDuration("azure.timeout"); d > 0 {
		cfg := tts.DefaultControllerConfig()
		cfg.SynthesisTimeout = d
		opts = append(opts, tts.WithConfig(cfg))
	}
	return tts.NewController(opts...)
}

func (s *speechStack) ui() ui.Speech {
	return ui.Speech{
		Settings:      s.settings,
		Catalog:       s.azure,
		NewController: s.controller,
	}
}

func (s *speechStack) Close() error {
	var errs []error
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	return errors.Join(errs...)
}
