package azure

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dgnsrekt/readaloud/tts"
)

func testSettings() tts.Settings {
	s := tts.DefaultSettings()
	s.SubscriptionKey = "secret-key"
	s.Region = "westus"
	s.CloudVoice = "en-US-JennyNeural"
	return s
}

func TestBuildSSMLEscapesMarkup(t *testing.T) {
	text := `Tom & Jerry <script>alert("x")</script> 5 > 3`
	doc := BuildSSML(text, "en-US-JennyNeural")

	for _, raw := range []string{"& Jerry", "<script>", "5 > 3"} {
		if strings.Contains(doc, raw) {
			t.Errorf("Expected %q to be escaped in %s", raw, doc)
		}
	}

	// the payload stays well-formed and round-trips the text
	var parsed struct {
		Lang  string `xml:"lang,attr"`
		Voice struct {
			Name string `xml:"name,attr"`
			Lang string `xml:"lang,attr"`
			Text string `xml:",chardata"`
		} `xml:"voice"`
	}
	if err := xml.Unmarshal([]byte(doc), &parsed); err != nil {
		t.Fatalf("SSML is not well-formed: %v\n%s", err, doc)
	}
	if parsed.Voice.Text != text {
		t.Errorf("Text = %q, want %q", parsed.Voice.Text, text)
	}
	if parsed.Lang != "en-US" || parsed.Voice.Lang != "en-US" || parsed.Voice.Name != "en-US-JennyNeural" {
		t.Errorf("Unexpected attributes %+v", parsed)
	}
}

func TestBuildSSMLEscapesVoiceAttribute(t *testing.T) {
	for _, voice := range []string{"en-US-O'Neil&Co", "en'US-Jenny", "en-US-<Jenny>"} {
		doc := BuildSSML("hello", voice)

		var parsed struct {
			Lang  string `xml:"lang,attr"`
			Voice struct {
				Name string `xml:"name,attr"`
				Lang string `xml:"lang,attr"`
			} `xml:"voice"`
		}
		if err := xml.Unmarshal([]byte(doc), &parsed); err != nil {
			t.Errorf("SSML for voice %q is not well-formed: %v\n%s", voice, err, doc)
			continue
		}
		if parsed.Voice.Name != voice {
			t.Errorf("name = %q, want %q", parsed.Voice.Name, voice)
		}
		if want := voice[:5]; parsed.Lang != want || parsed.Voice.Lang != want {
			t.Errorf("xml:lang = %q/%q, want %q", parsed.Lang, parsed.Voice.Lang, want)
		}
	}
}

func TestBuildSSMLLocalePrefix(t *testing.T) {
	doc := BuildSSML("你好", "zh-CN-XiaoxiaoNeural")
	want := "<speak version='1.0' xml:lang='zh-CN'><voice xml:lang='zh-CN' name='zh-CN-XiaoxiaoNeural'>你好</voice></speak>"
	if doc != want {
		t.Errorf("BuildSSML() =\n%s\nwant\n%s", doc, want)
	}
}

func TestSynthesizeRequest(t *testing.T) {
	audio := []byte("ID3\x04fake-mp3")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/cognitiveservices/v1" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		checks := map[string]string{
			"Ocp-Apim-Subscription-Key": "secret-key",
			"Content-Type":              "application/ssml+xml",
			"X-Microsoft-OutputFormat":  "audio-24khz-96kbitrate-mono-mp3",
			"User-Agent":                "readaloud-test",
		}
		for k, v := range checks {
			if got := r.Header.Get(k); got != v {
				t.Errorf("Header %s = %q, want %q", k, got, v)
			}
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "fish &amp; chips") {
			t.Errorf("Expected escaped body, got %s", body)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	}))
	defer server.Close()

	c := New(WithBaseURL(server.URL), WithUserAgent("readaloud-test"), WithRateLimit(0))
	got, err := c.Synthesize(context.Background(), "fish & chips", testSettings())
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(got) != string(audio) {
		t.Errorf("Audio = %q, want %q", got, audio)
	}
}

// TestStatusClassification tests the failure policy per status.
func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   tts.ErrorKind
		target error
	}{
		{http.StatusUnauthorized, tts.KindAuth, tts.ErrUnauthorized},
		{http.StatusForbidden, tts.KindAuth, tts.ErrUnauthorized},
		{http.StatusTooManyRequests, tts.KindRateLimit, tts.ErrRateLimited},
		{http.StatusBadRequest, tts.KindUnknown, tts.ErrRequestFailed},
		{http.StatusInternalServerError, tts.KindUnknown, tts.ErrRequestFailed},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.Header().Set("Retry-After", "7")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("details here"))
			}))
			defer server.Close()

			c := New(WithBaseURL(server.URL), WithRateLimit(0))
			_, err := c.Synthesize(context.Background(), "hello", testSettings())

			if !errors.Is(err, tt.target) {
				t.Fatalf("Expected %v, got %v", tt.target, err)
			}
			if tts.KindOf(err) != tt.kind {
				t.Errorf("KindOf() = %v, want %v", tts.KindOf(err), tt.kind)
			}
			var te *tts.TTSError
			if !errors.As(err, &te) || te.Status != tt.status || te.Body != "details here" {
				t.Errorf("Expected status and body on the error, got %+v", te)
			}
			if calls.Load() != 1 {
				t.Errorf("Expected exactly one request, got %d", calls.Load())
			}
		})
	}
}

func TestNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	c := New(WithBaseURL(url), WithRateLimit(0))
	_, err := c.Synthesize(context.Background(), "hello", testSettings())
	if tts.KindOf(err) != tts.KindNetwork {
		t.Fatalf("Expected a network error, got %v", err)
	}
}

func TestMissingCredentialsSkipRequest(t *testing.T) {
	c := New(WithBaseURL("http://127.0.0.1:1"), WithRateLimit(0))
	s := testSettings()
	s.SubscriptionKey = ""

	if _, err := c.Synthesize(context.Background(), "hello", s); !errors.Is(err, tts.ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
	if _, err := c.Voices(context.Background(), s); !errors.Is(err, tts.ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestVoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/cognitiveservices/voices/list" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "secret-key" {
			t.Error("Missing subscription key")
		}
		_, _ = w.Write([]byte(`[
			{"Name":"Microsoft Server Speech Text to Speech Voice (zh-CN, XiaoxiaoNeural)","DisplayName":"Xiaoxiao","LocalName":"晓晓","ShortName":"zh-CN-XiaoxiaoNeural","Gender":"Female","Locale":"zh-CN","SampleRateHertz":"24000","VoiceType":"Neural","Status":"GA"},
			{"Name":"Microsoft Server Speech Text to Speech Voice (en-US, JennyNeural)","DisplayName":"Jenny","LocalName":"Jenny","ShortName":"en-US-JennyNeural","Gender":"Female","Locale":"en-US","SampleRateHertz":"24000","VoiceType":"Neural","Status":"GA"}
		]`))
	}))
	defer server.Close()

	c := New(WithBaseURL(server.URL), WithRateLimit(0))
	voices, err := c.Voices(context.Background(), testSettings())
	if err != nil {
		t.Fatalf("Voices failed: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("Expected 2 voices, got %d", len(voices))
	}
	want := tts.Voice{ID: "zh-CN-XiaoxiaoNeural", DisplayName: "Xiaoxiao (晓晓)", Locale: "zh-CN", Gender: "Female"}
	if voices[0] != want {
		t.Errorf("voices[0] = %+v, want %+v", voices[0], want)
	}
	if voices[1].DisplayName != "Jenny" {
		t.Errorf("Expected plain display name, got %q", voices[1].DisplayName)
	}
}

func TestVoicesUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := New(WithBaseURL(server.URL), WithRateLimit(0))
	if _, err := c.Voices(context.Background(), testSettings()); tts.KindOf(err) != tts.KindAuth {
		t.Errorf("Expected an auth error, got %v", err)
	}
}

func TestRegionalEndpoint(t *testing.T) {
	c := New()
	if got := c.endpoint("eastasia", synthesisPath); got != "https://eastasia.tts.speech.microsoft.com/cognitiveservices/v1" {
		t.Errorf("endpoint() = %s", got)
	}
}
