package tts

import "testing"

func TestLanguageName(t *testing.T) {
	if got := LanguageName("fr"); got != "French" {
		t.Errorf("LanguageName(fr) = %q", got)
	}
	if got := LanguageName("not a locale!"); got != "not a locale!" {
		t.Errorf("Expected unparseable input back, got %q", got)
	}
}

func TestFilterVoices(t *testing.T) {
	voices := []Voice{
		{ID: "en-US-JennyNeural", DisplayName: "Jenny", Locale: "en-US"},
		{ID: "zh-CN-XiaoxiaoNeural", DisplayName: "Xiaoxiao", Locale: "zh-CN"},
		{ID: "fr-FR-DeniseNeural", DisplayName: "Denise", Locale: "fr-FR"},
	}

	if got := FilterVoices(voices, "  "); len(got) != 3 {
		t.Errorf("Expected every voice for a blank query, got %d", len(got))
	}

	got := FilterVoices(voices, "xiao")
	if len(got) != 1 || got[0].ID != "zh-CN-XiaoxiaoNeural" {
		t.Errorf("Unexpected matches %+v", got)
	}

	if got := FilterVoices(voices, "qqq"); len(got) != 0 {
		t.Errorf("Expected no matches, got %+v", got)
	}
}

func TestFindVoice(t *testing.T) {
	voices := []Voice{{ID: "en-US-JennyNeural"}}
	if _, ok := FindVoice(voices, "en-us-jennyneural"); !ok {
		t.Error("Expected a case-insensitive match")
	}
	if _, ok := FindVoice(voices, "missing"); ok {
		t.Error("Expected no match")
	}
}
