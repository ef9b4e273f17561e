package system

import (
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/dgnsrekt/readaloud/tts"
)

func TestDetect(t *testing.T) {
	installed := func(names ...string) func(string) (string, error) {
		return func(name string) (string, error) {
			if slices.Contains(names, name) {
				return "/usr/bin/" + name, nil
			}
			return "", errors.New("not found")
		}
	}

	tests := []struct {
		goos  string
		look  func(string) (string, error)
		want  string
		isNil bool
	}{
		{"darwin", installed("say"), "say", false},
		{"linux", installed("espeak-ng", "espeak"), "espeak", false},
		{"linux", installed("espeak"), "espeak", false},
		{"freebsd", installed("espeak-ng"), "espeak", false},
		{"windows", installed("pwsh"), "sapi", false},
		{"linux", installed(), "", true},
		{"darwin", installed("espeak"), "", true},
	}

	for _, tt := range tests {
		d := detect(tt.goos, tt.look)
		if tt.isNil {
			if d != nil {
				t.Errorf("detect(%s) = %s, want nil", tt.goos, d.Name())
			}
			continue
		}
		if d == nil || d.Name() != tt.want {
			t.Errorf("detect(%s) = %v, want %s", tt.goos, d, tt.want)
		}
	}

	if e, ok := detect("linux", installed("espeak-ng", "espeak")).(*Espeak); !ok || e.Path != "/usr/bin/espeak-ng" {
		t.Error("Expected espeak-ng to be preferred")
	}
}

func TestRateAndPitchMapping(t *testing.T) {
	if got := WordsPerMinute(1); got != 175 {
		t.Errorf("WordsPerMinute(1) = %d", got)
	}
	if got := WordsPerMinute(2); got != 350 {
		t.Errorf("WordsPerMinute(2) = %d", got)
	}
	if got := WordsPerMinute(0); got != 175 {
		t.Errorf("WordsPerMinute(0) = %d", got)
	}

	for pitch, want := range map[float64]int{1: 50, 0: 0, 1.5: 75, 2: 99, -1: 0} {
		if got := EspeakPitch(pitch); got != want {
			t.Errorf("EspeakPitch(%v) = %d, want %d", pitch, got, want)
		}
	}

	for rate, want := range map[float64]int{1: 0, 0.5: -5, 1.5: 5, 3: 10, 0.1: -9} {
		if got := SAPIRate(rate); got != want {
			t.Errorf("SAPIRate(%v) = %d, want %d", rate, got, want)
		}
	}
}

func stdin(t *testing.T, r io.Reader) string {
	t.Helper()
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestSayCommand(t *testing.T) {
	cmd := (&Say{Path: "/usr/bin/say"}).Command(tts.Utterance{Text: "-v hello", Voice: "Samantha", Rate: 1.2, Pitch: 1.5})
	want := []string{"/usr/bin/say", "-r", "210", "-v", "Samantha", "-f", "-"}
	if !slices.Equal(cmd.Args, want) {
		t.Errorf("Args = %v, want %v", cmd.Args, want)
	}
	if got := stdin(t, cmd.Stdin); got != "-v hello" {
		t.Errorf("Expected the text on stdin, got %q", got)
	}

	cmd = (&Say{Path: "say"}).Command(tts.Utterance{Text: "x", Rate: 1})
	if slices.Contains(cmd.Args, "-v") {
		t.Errorf("Expected the default voice, got %v", cmd.Args)
	}
}

func TestEspeakCommand(t *testing.T) {
	cmd := (&Espeak{Path: "/usr/bin/espeak-ng"}).Command(tts.Utterance{Text: "hello", Voice: "en-gb", Rate: 1, Pitch: 0.8})
	want := []string{"/usr/bin/espeak-ng", "-s", "175", "-p", "40", "-v", "en-gb", "--stdin"}
	if !slices.Equal(cmd.Args, want) {
		t.Errorf("Args = %v, want %v", cmd.Args, want)
	}
	if got := stdin(t, cmd.Stdin); got != "hello" {
		t.Errorf("stdin = %q", got)
	}
}

func TestSAPICommandQuotesVoice(t *testing.T) {
	cmd := (&SAPI{Path: "powershell"}).Command(tts.Utterance{Text: "quarterly figures", Voice: "O'Brien", Rate: 1})
	script := cmd.Args[len(cmd.Args)-1]
	if !strings.Contains(script, "SelectVoice('O''Brien')") {
		t.Errorf("Expected quoted voice in %s", script)
	}
	if strings.Contains(script, "quarterly") {
		t.Error("Text must not be embedded in the script")
	}
}

func TestParseSayVoices(t *testing.T) {
	out := `Alex                en_US    # Most people recognize me by my voice.
Bad News            en_US    # The light you see at the end of the tunnel is the headlamp of a fast approaching train.
Eddy (English (UK)) en_GB    # Hello! My name is Eddy.
Ting-Ting           zh_CN    # 你好，我叫婷婷。
garbage line
`
	voices := parseSayVoices(out)
	want := []tts.Voice{
		{ID: "Alex", DisplayName: "Alex", Locale: "en-US"},
		{ID: "Bad News", DisplayName: "Bad News", Locale: "en-US"},
		{ID: "Eddy (English (UK))", DisplayName: "Eddy (English (UK))", Locale: "en-GB"},
		{ID: "Ting-Ting", DisplayName: "Ting-Ting", Locale: "zh-CN"},
	}
	if !slices.Equal(voices, want) {
		t.Errorf("parseSayVoices() =\n%v\nwant\n%v", voices, want)
	}
}

func TestParseEspeakVoices(t *testing.T) {
	out := `Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 5  en-gb           --/M      English_(Great_Britain) gmw/en               (en 2)
 5  cmn             --/F      Chinese_(Mandarin) sit/cmn              (zh-cmn 5)(zh 5)
`
	voices := parseEspeakVoices(out)
	if len(voices) != 3 {
		t.Fatalf("Expected 3 voices, got %d", len(voices))
	}
	want := tts.Voice{ID: "en-gb", DisplayName: "English (Great Britain)", Locale: "en-gb", Gender: "Male"}
	if voices[1] != want {
		t.Errorf("voices[1] = %+v, want %+v", voices[1], want)
	}
	if voices[2].Gender != "Female" {
		t.Errorf("Expected Female, got %q", voices[2].Gender)
	}
}

func TestParseSAPIVoices(t *testing.T) {
	out := "Microsoft David Desktop|en-US|Male\r\nMicrosoft Huihui Desktop|zh-CN|Female\r\n\r\nbroken\r\n"
	voices := parseSAPIVoices(out)
	want := []tts.Voice{
		{ID: "Microsoft David Desktop", DisplayName: "Microsoft David Desktop", Locale: "en-US", Gender: "Male"},
		{ID: "Microsoft Huihui Desktop", DisplayName: "Microsoft Huihui Desktop", Locale: "zh-CN", Gender: "Female"},
	}
	if !slices.Equal(voices, want) {
		t.Errorf("parseSAPIVoices() = %v, want %v", voices, want)
	}
}
