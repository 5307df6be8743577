package transcriber

import (
	"context"
	"testing"
)

func TestParseGeminiServerMessage(t *testing.T) {
	for _, tt := range []struct {
		name string
		raw  string
		want streamUpdate
	}{
		{
			"input transcription fragment",
			`{"serverContent":{"inputTranscription":{"text":"turn the"}}}`,
			streamUpdate{Transcript: "turn the", IsFinal: true},
		},
		{
			"turn complete",
			`{"serverContent":{"turnComplete":true}}`,
			streamUpdate{FromFinalize: true},
		},
		{
			"generation complete with trailing text",
			`{"serverContent":{"inputTranscription":{"text":"sky blue"},"generationComplete":true}}`,
			streamUpdate{Transcript: "sky blue", IsFinal: true, FromFinalize: true},
		},
		{
			"setup complete carries nothing",
			`{"setupComplete":{}}`,
			streamUpdate{},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseGeminiServerMessage([]byte(tt.raw))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseGeminiServerMessageRejectsGarbage(t *testing.T) {
	if _, err := parseGeminiServerMessage([]byte("not json")); err == nil {
		t.Error("expected error for invalid message")
	}
}

func TestParseDeepgramResponse(t *testing.T) {
	for _, tt := range []struct {
		name string
		raw  string
		want streamUpdate
	}{
		{
			"interim",
			`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"tur"}]}}`,
			streamUpdate{Transcript: "tur"},
		},
		{
			"final",
			`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"turn the"}]}}`,
			streamUpdate{Transcript: "turn the", IsFinal: true},
		},
		{
			"finalize ack",
			`{"type":"Results","from_finalize":true,"channel":{"alternatives":[{"transcript":"sky blue"}]}}`,
			streamUpdate{Transcript: "sky blue", IsFinal: true, FromFinalize: true},
		},
		{
			"no alternatives",
			`{"type":"Metadata"}`,
			streamUpdate{},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDeepgramResponse([]byte(tt.raw))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewRequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("DEEPGRAM_API_KEY", "")
	if _, err := New(); err == nil {
		t.Error("expected error without API keys")
	}

	t.Setenv("GEMINI_API_KEY", "k")
	tr, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.Name() != "gemini" {
		t.Errorf("provider = %q, want gemini", tr.Name())
	}
}

func TestFakeTranscriberEmitsFragments(t *testing.T) {
	f := NewFake([]string{"turn", "the", "sky blue"}, nil)
	sess, err := f.NewSession(context.Background(), SessionConfig{})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	var got []string
	for frag := range sess.Updates() {
		got = append(got, frag)
	}
	result, err := sess.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if result.Text != "turn the sky blue" {
		t.Errorf("Text = %q", result.Text)
	}
	if len(got) != 3 {
		t.Errorf("fragments = %v", got)
	}
}
