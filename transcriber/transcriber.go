// Package transcriber streams captured audio to a speech endpoint over a
// duplex channel and reports incremental transcript fragments.
package transcriber

import (
	"context"
	"fmt"
	"os"
)

// DefaultInstruction is the fixed system prompt sent when opening a session
// that supports one. It pins the output register: a literal transcript of
// the spoken input, nothing else.
const DefaultInstruction = "Transcribe the user's speech verbatim. " +
	"Output only the transcript text, with no commentary or punctuation cleanup beyond standard sentence punctuation."

type SessionConfig struct {
	Language    string
	Model       string // provider-specific model override
	Instruction string // defaults to DefaultInstruction when empty
}

// StreamStats summarizes one session for diagnostics.
type StreamStats struct {
	ConnectMs    float64
	SentChunks   int
	SentKB       float64
	RecvMessages int
	RecvFinal    int
	RecvInterim  int
	FragmentsOut int
	FinalizeMs   float64
	TotalMs      float64
	AudioS       float64
}

type SessionResult struct {
	Text     string // all fragments merged in delivery order
	HasText  bool
	NoSpeech bool
	Stream   *StreamStats
}

// Session is a live duplex channel. Feed enqueues PCM16 for transmission;
// frames fed before the connection opens are buffered. Updates delivers
// transcript fragments in the order the endpoint produced them. Failed is
// closed on transport failure so the owner can tear down capture without
// waiting for Close; the error itself surfaces from Close, which is
// graceful and idempotent.
type Session interface {
	Feed(pcm []byte)
	Updates() <-chan string
	Failed() <-chan struct{}
	Close() (SessionResult, error)
}

type Transcriber interface {
	Name() string
	SetLanguage(lang string)
	GetLanguage() string
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)
}

// New picks a provider from the environment.
func New() (Transcriber, error) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return NewGemini(key), nil
	}
	if key := os.Getenv("DEEPGRAM_API_KEY"); key != "" {
		return NewDeepgram(key), nil
	}
	return nil, fmt.Errorf("set GEMINI_API_KEY or DEEPGRAM_API_KEY environment variable")
}
