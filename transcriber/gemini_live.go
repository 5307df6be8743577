package transcriber

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"nhooyr.io/websocket"
)

const (
	geminiLiveEndpoint = "wss://generativelanguage.googleapis.com/ws/" +
		"google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	geminiLiveModel = "models/gemini-2.0-flash-live-001"
)

// Gemini transcribes over the Gemini Live duplex API. The setup message
// carries the fixed transcription instruction; audio goes out as base64
// PCM16 chunks and input-transcription fragments come back incrementally.
type Gemini struct {
	apiKey string
	lang   string
}

func NewGemini(apiKey string) *Gemini {
	return &Gemini{apiKey: apiKey}
}

func (g *Gemini) Name() string { return "gemini" }
func (g *Gemini) SetLanguage(lang string) { g.lang = lang }
func (g *Gemini) GetLanguage() string { return g.lang }

func (g *Gemini) NewSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	return newStreamSession(func() (rawStreamSession, error) {
		return g.dial(ctx, cfg)
	}), nil
}

type geminiSetup struct {
	Setup struct {
		Model            string `json:"model"`
		GenerationConfig struct {
			ResponseModalities []string `json:"responseModalities"`
		} `json:"generationConfig"`
		SystemInstruction  *geminiContent `json:"systemInstruction,omitempty"`
		InputTranscription struct{}       `json:"inputAudioTranscription"`
	} `json:"setup"`
}

type geminiContent struct {
	Parts []geminiTextPart `json:"parts"`
}

type geminiTextPart struct {
	Text string `json:"text"`
}

type geminiRealtimeInput struct {
	RealtimeInput struct {
		Audio          *geminiAudioBlob `json:"audio,omitempty"`
		AudioStreamEnd bool             `json:"audioStreamEnd,omitempty"`
	} `json:"realtimeInput"`
}

type geminiAudioBlob struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type geminiServerMessage struct {
	SetupComplete *struct{} `json:"setupComplete,omitempty"`
	ServerContent *struct {
		InputTranscription *struct {
			Text string `json:"text"`
		} `json:"inputTranscription,omitempty"`
		TurnComplete       bool `json:"turnComplete,omitempty"`
		GenerationComplete bool `json:"generationComplete,omitempty"`
	} `json:"serverContent,omitempty"`
}

type geminiLiveSession struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

func (g *Gemini) dial(ctx context.Context, cfg SessionConfig) (rawStreamSession, error) {
	model := cfg.Model
	if model == "" {
		model = geminiLiveModel
	}
	instruction := cfg.Instruction
	if instruction == "" {
		instruction = DefaultInstruction
	}
	if cfg.Language != "" {
		instruction += " Transcribe in language: " + cfg.Language + "."
	}

	streamCtx, cancel := context.WithCancel(ctx)
	conn, _, err := websocket.Dial(streamCtx, geminiLiveEndpoint+"?key="+g.apiKey, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("gemini live dial: %w", err)
	}
	conn.SetReadLimit(1 << 22)

	var setup geminiSetup
	setup.Setup.Model = model
	setup.Setup.GenerationConfig.ResponseModalities = []string{"TEXT"}
	setup.Setup.SystemInstruction = &geminiContent{Parts: []geminiTextPart{{Text: instruction}}}
	msg, err := json.Marshal(setup)
	if err != nil {
		cancel()
		conn.Close(websocket.StatusInternalError, "")
		return nil, err
	}
	if err := conn.Write(streamCtx, websocket.MessageText, msg); err != nil {
		cancel()
		conn.Close(websocket.StatusInternalError, "")
		return nil, fmt.Errorf("gemini live setup: %w", err)
	}

	// The endpoint acknowledges setup before accepting audio.
	_, ack, err := conn.Read(streamCtx)
	if err != nil {
		cancel()
		conn.Close(websocket.StatusInternalError, "")
		return nil, fmt.Errorf("gemini live setup ack: %w", err)
	}
	var ackMsg geminiServerMessage
	if err := json.Unmarshal(ack, &ackMsg); err != nil || ackMsg.SetupComplete == nil {
		cancel()
		conn.Close(websocket.StatusProtocolError, "")
		return nil, fmt.Errorf("gemini live: unexpected setup response")
	}

	return &geminiLiveSession{conn: conn, ctx: streamCtx, cancel: cancel}, nil
}

func (s *geminiLiveSession) Send(pcm []byte) error {
	var in geminiRealtimeInput
	in.RealtimeInput.Audio = &geminiAudioBlob{
		Data:     base64.StdEncoding.EncodeToString(pcm),
		MimeType: "audio/pcm;rate=16000",
	}
	msg, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return s.conn.Write(s.ctx, websocket.MessageText, msg)
}

func (s *geminiLiveSession) CloseSend() error {
	var in geminiRealtimeInput
	in.RealtimeInput.AudioStreamEnd = true
	msg, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return s.conn.Write(s.ctx, websocket.MessageText, msg)
}

func (s *geminiLiveSession) Recv() (streamUpdate, error) {
	_, data, err := s.conn.Read(s.ctx)
	if err != nil {
		return streamUpdate{}, err
	}
	return parseGeminiServerMessage(data)
}

// parseGeminiServerMessage maps a live-API server message onto a stream
// update. Input-transcription fragments are already incremental, so each
// one is treated as final.
func parseGeminiServerMessage(data []byte) (streamUpdate, error) {
	var msg geminiServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return streamUpdate{}, fmt.Errorf("gemini live message: %w", err)
	}
	var update streamUpdate
	if sc := msg.ServerContent; sc != nil {
		if sc.InputTranscription != nil {
			update.Transcript = sc.InputTranscription.Text
			update.IsFinal = true
		}
		if sc.TurnComplete || sc.GenerationComplete {
			update.FromFinalize = true
		}
	}
	return update, nil
}

func (s *geminiLiveSession) Close() error {
	s.cancel()
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
