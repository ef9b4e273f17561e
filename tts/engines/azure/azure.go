// Package azure synthesizes speech with Azure Cognitive Services neural voices.
package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/tts"
	"golang.org/x/time/rate"
)

const (
	synthesisPath = "/cognitiveservices/v1"
	voicesPath    = "/cognitiveservices/voices/list"

	// OutputFormat is the audio format requested from the service.
	OutputFormat = "audio-24khz-96kbitrate-mono-mp3"

	defaultUserAgent = "readaloud"
	defaultTimeout   = 30 * time.Second

	// DefaultRequestsPerMinute keeps well under the free tier quota.
	DefaultRequestsPerMinute = 20

	maxErrorBody = 4 << 10
)

// Client talks to the Azure speech REST API.
type Client struct {
	client    *http.Client
	baseURL   string // Overrides the per-region host when set
	userAgent string
	limiter   *rate.Limiter
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.client = c
	}
}

// WithBaseURL sends every request to url instead of the regional host.
func WithBaseURL(url string) Option {
	return func(cl *Client) {
		cl.baseURL = strings.TrimRight(url, "/")
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// WithRateLimit caps requests per minute. Zero or less disables limiting.
func WithRateLimit(rpm int) Option {
	return func(cl *Client) {
		if rpm <= 0 {
			cl.limiter = nil
			return
		}
		cl.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
}

// New creates a client.
func New(opts ...Option) *Client {
	c := &Client{
		client:    &http.Client{Timeout: defaultTimeout},
		userAgent: defaultUserAgent,
	}
	WithRateLimit(DefaultRequestsPerMinute)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) endpoint(region, path string) string {
	if c.baseURL != "" {
		return c.baseURL + path
	}
	return fmt.Sprintf("https://%s.tts.speech.microsoft.com%s", region, path)
}

// Synthesize returns the mp3 payload for text spoken by the configured voice.
func (c *Client) Synthesize(ctx context.Context, text string, s tts.Settings) ([]byte, error) {
	if err := s.ValidateCloud(); err != nil {
		return nil, err
	}

	body := BuildSSML(text, s.CloudVoice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(s.Region, synthesisPath), strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.SubscriptionKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", OutputFormat)
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.do(ctx, req, "synthesize")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, tts.NewTTSError(fmt.Errorf("%w: %w", tts.ErrNetwork, err), "azure", "synthesize")
	}
	log.Debug("Azure synthesis complete", "voice", s.CloudVoice, "bytes", len(audio), "took", time.Since(start))
	return audio, nil
}

// voiceEntry is one element of the voices/list response.
type voiceEntry struct {
	Name            string `json:"Name"`
	DisplayName     string `json:"DisplayName"`
	LocalName       string `json:"LocalName"`
	ShortName       string `json:"ShortName"`
	Gender          string `json:"Gender"`
	Locale          string `json:"Locale"`
	SampleRateHertz string `json:"SampleRateHertz"`
	VoiceType       string `json:"VoiceType"`
	Status          string `json:"Status"`
}

// Voices returns the voices available in the configured region, in the
// order the service lists them. It doubles as a credential check.
func (c *Client) Voices(ctx context.Context, s tts.Settings) ([]tts.Voice, error) {
	if err := s.ValidateCloud(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(s.Region, voicesPath), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.SubscriptionKey)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.do(ctx, req, "voices")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	var entries []voiceEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, tts.NewTTSError(fmt.Errorf("%w: decoding voice list: %w", tts.ErrRequestFailed, err), "azure", "voices")
	}

	voices := make([]tts.Voice, 0, len(entries))
	for _, e := range entries {
		id := e.ShortName
		if id == "" {
			id = e.Name
		}
		name := e.DisplayName
		if e.LocalName != "" && e.LocalName != e.DisplayName {
			name = fmt.Sprintf("%s (%s)", e.DisplayName, e.LocalName)
		}
		voices = append(voices, tts.Voice{
			ID:          id,
			DisplayName: name,
			Locale:      e.Locale,
			Gender:      e.Gender,
		})
	}
	log.Debug("Fetched Azure voices", "region", s.Region, "count", len(voices))
	return voices, nil
}

// do sends req and maps failures onto the error taxonomy. The caller owns
// the body of a successful response.
func (c *Client) do(ctx context.Context, req *http.Request, action string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Debug("Azure request failed", "action", action, "err", err)
		return nil, tts.NewTTSError(fmt.Errorf("%w: %w", tts.ErrNetwork, err), "azure", action)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	defer resp.Body.Close() //nolint:errcheck
	return nil, statusError(resp, action)
}

// statusError classifies a non-200 response.
func statusError(resp *http.Response, action string) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	body := strings.TrimSpace(string(b))

	var kind error
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = tts.ErrUnauthorized
	case http.StatusTooManyRequests:
		kind = tts.ErrRateLimited
	default:
		kind = tts.ErrRequestFailed
	}

	err := tts.NewTTSError(kind, "azure", action).WithStatus(resp.StatusCode, body)
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		err.WithContext("retry_after", ra)
	}
	log.Debug("Azure returned an error", "action", action, "status", resp.StatusCode, "body", body)
	return err
}
