package transcriber

import (
	"context"
	"sync"
	"time"

	"scrawl/prompt"
)

// FakeTranscriber emits a scripted sequence of fragments, optionally
// failing, so pipeline and studio behavior can be tested without a network.
type FakeTranscriber struct {
	fragments []string
	err       error
	delay     time.Duration
	lang      string
}

func NewFake(fragments []string, err error) *FakeTranscriber {
	return &FakeTranscriber{fragments: fragments, err: err, delay: 5 * time.Millisecond}
}

func (f *FakeTranscriber) Name() string { return "fake" }
func (f *FakeTranscriber) SetLanguage(lang string) { f.lang = lang }
func (f *FakeTranscriber) GetLanguage() string { return f.lang }

func (f *FakeTranscriber) NewSession(_ context.Context, _ SessionConfig) (Session, error) {
	s := &fakeSession{
		err:     f.err,
		updates: make(chan string, len(f.fragments)+1),
		done:    make(chan struct{}),
		failed:  make(chan struct{}),
	}
	go func() {
		defer close(s.updates)
		defer close(s.done)
		for _, frag := range f.fragments {
			time.Sleep(f.delay)
			s.mu.Lock()
			s.text = prompt.MergeFragment(s.text, frag)
			s.mu.Unlock()
			s.updates <- frag
		}
		if s.err != nil {
			close(s.failed)
		}
	}()
	return s, nil
}

type fakeSession struct {
	err     error
	updates chan string
	done    chan struct{}
	failed  chan struct{}

	mu   sync.Mutex
	text string
}

func (s *fakeSession) Feed([]byte) {}

func (s *fakeSession) Updates() <-chan string { return s.updates }

func (s *fakeSession) Failed() <-chan struct{} { return s.failed }

func (s *fakeSession) Close() (SessionResult, error) {
	<-s.done
	if s.err != nil {
		return SessionResult{NoSpeech: true}, s.err
	}
	s.mu.Lock()
	text := s.text
	s.mu.Unlock()
	return SessionResult{
		Text:     text,
		HasText:  text != "",
		NoSpeech: text == "",
		Stream:   &StreamStats{TotalMs: 10},
	}, nil
}
