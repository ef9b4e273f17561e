package system

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/dgnsrekt/readaloud/tts"
)

// baseWPM is the speaking rate, in words per minute, of a 1.0 rate.
const baseWPM = 175

// Detect returns the driver for the current platform, or nil when no speech
// program is installed.
func Detect() Driver {
	return detect(runtime.GOOS, exec.LookPath)
}

func detect(goos string, lookPath func(string) (string, error)) Driver {
	switch goos {
	case "darwin":
		if p, err := lookPath("say"); err == nil {
			return &Say{Path: p}
		}
	case "windows":
		for _, name := range []string{"powershell", "pwsh"} {
			if p, err := lookPath(name); err == nil {
				return &SAPI{Path: p}
			}
		}
	default:
		for _, name := range []string{"espeak-ng", "espeak"} {
			if p, err := lookPath(name); err == nil {
				return &Espeak{Path: p}
			}
		}
	}
	return nil
}

// WordsPerMinute converts a relative rate to words per minute.
func WordsPerMinute(rate float64) int {
	if rate <= 0 {
		rate = 1
	}
	return max(1, int(math.Round(baseWPM*rate)))
}

// Say drives the macOS say command.
type Say struct {
	Path string
}

func (d *Say) Name() string { return "say" }

// Command reads the text from stdin. Pitch is not supported by say.
func (d *Say) Command(u tts.Utterance) *exec.Cmd {
	args := []string{"-r", strconv.Itoa(WordsPerMinute(u.Rate))}
	if u.Voice != "" {
		args = append(args, "-v", u.Voice)
	}
	args = append(args, "-f", "-")

	cmd := exec.Command(d.Path, args...) //nolint:gosec
	cmd.Stdin = strings.NewReader(u.Text)
	return cmd
}

func (d *Say) Voices(ctx context.Context) ([]tts.Voice, error) {
	out, err := exec.CommandContext(ctx, d.Path, "-v", "?").Output() //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("listing say voices: %w", err)
	}
	return parseSayVoices(string(out)), nil
}

// sayVoiceLine matches "Name  en_US    # sample sentence". Names may contain
// spaces and parentheses.
var sayVoiceLine = regexp.MustCompile(`^(.+?)\s+([a-z]{2,3}[_-][A-Za-z0-9]+)\s+#`)

func parseSayVoices(out string) []tts.Voice {
	var voices []tts.Voice
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		m := sayVoiceLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		voices = append(voices, tts.Voice{
			ID:          name,
			DisplayName: name,
			Locale:      strings.ReplaceAll(m[2], "_", "-"),
		})
	}
	return voices
}

// Espeak drives espeak-ng or espeak.
type Espeak struct {
	Path string
}

func (d *Espeak) Name() string { return "espeak" }

// EspeakPitch converts a relative pitch to espeak's 0-99 scale.
func EspeakPitch(pitch float64) int {
	p := int(math.Round(50 * pitch))
	return min(max(p, 0), 99)
}

func (d *Espeak) Command(u tts.Utterance) *exec.Cmd {
	args := []string{
		"-s", strconv.Itoa(WordsPerMinute(u.Rate)),
		"-p", strconv.Itoa(EspeakPitch(u.Pitch)),
	}
	if u.Voice != "" {
		args = append(args, "-v", u.Voice)
	}
	args = append(args, "--stdin")

	cmd := exec.Command(d.Path, args...) //nolint:gosec
	cmd.Stdin = strings.NewReader(u.Text)
	return cmd
}

func (d *Espeak) Voices(ctx context.Context) ([]tts.Voice, error) {
	out, err := exec.CommandContext(ctx, d.Path, "--voices").Output() //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("listing espeak voices: %w", err)
	}
	return parseEspeakVoices(string(out)), nil
}

// parseEspeakVoices reads the table printed by --voices:
//
//	Pty Language       Age/Gender VoiceName          File        Other Languages
//	 5  en-gb           --/M      English_(Great_Britain) gmw/en (en 2)
func parseEspeakVoices(out string) []tts.Voice {
	var voices []tts.Voice
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}

		var gender string
		if _, g, ok := strings.Cut(fields[2], "/"); ok {
			switch g {
			case "M":
				gender = "Male"
			case "F":
				gender = "Female"
			}
		}
		voices = append(voices, tts.Voice{
			ID:          fields[1],
			DisplayName: strings.ReplaceAll(fields[3], "_", " "),
			Locale:      fields[1],
			Gender:      gender,
		})
	}
	return voices
}

// SAPI drives System.Speech through PowerShell.
type SAPI struct {
	Path string
}

func (d *SAPI) Name() string { return "sapi" }

// SAPIRate converts a relative rate to the -10..10 SpeechSynthesizer scale.
func SAPIRate(rate float64) int {
	r := int(math.Round((rate - 1) * 10))
	return min(max(r, -10), 10)
}

const sapiPrelude = "Add-Type -AssemblyName System.Speech; " +
	"$s = New-Object System.Speech.Synthesis.SpeechSynthesizer; "

// Command passes the text on stdin so it is never parsed by PowerShell.
// Pitch is not supported by SpeechSynthesizer.
func (d *SAPI) Command(u tts.Utterance) *exec.Cmd {
	script := sapiPrelude + fmt.Sprintf("$s.Rate = %d; ", SAPIRate(u.Rate))
	if u.Voice != "" {
		script += fmt.Sprintf("$s.SelectVoice('%s'); ", strings.ReplaceAll(u.Voice, "'", "''"))
	}
	script += "$s.Speak([Console]::In.ReadToEnd())"

	cmd := exec.Command(d.Path, "-NoProfile", "-NonInteractive", "-Command", script) //nolint:gosec
	cmd.Stdin = strings.NewReader(u.Text)
	return cmd
}

func (d *SAPI) Voices(ctx context.Context) ([]tts.Voice, error) {
	script := sapiPrelude + "$s.GetInstalledVoices() | ForEach-Object { " +
		"$i = $_.VoiceInfo; '{0}|{1}|{2}' -f $i.Name, $i.Culture.Name, $i.Gender }"
	out, err := exec.CommandContext(ctx, d.Path, "-NoProfile", "-NonInteractive", "-Command", script).Output() //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("listing sapi voices: %w", err)
	}
	return parseSAPIVoices(string(out)), nil
}

func parseSAPIVoices(out string) []tts.Voice {
	var voices []tts.Voice
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		parts := strings.Split(strings.TrimSpace(sc.Text()), "|")
		if len(parts) != 3 || parts[0] == "" {
			continue
		}
		voices = append(voices, tts.Voice{
			ID:          parts[0],
			DisplayName: parts[0],
			Locale:      parts[1],
			Gender:      parts[2],
		})
	}
	return voices
}
