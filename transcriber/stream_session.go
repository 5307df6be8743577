package transcriber

import (
	"strings"
	"sync"
	"time"

	"scrawl/audio"
	"scrawl/log"
	"scrawl/prompt"
)

const (
	streamChunkMs      = 200
	streamChunkBytes   = audio.SampleRate * audio.BytesPerFrame * streamChunkMs / 1000
	streamFinalizeIdle = 200 * time.Millisecond
	streamFinalizeMax  = 1500 * time.Millisecond
	receiverDrainMax   = 2 * time.Second
)

// rawStreamSession is the provider-specific wire layer under streamSession.
type rawStreamSession interface {
	Send(pcm []byte) error
	CloseSend() error
	Recv() (streamUpdate, error)
	Close() error
}

type streamUpdate struct {
	Transcript   string
	IsFinal      bool
	FromFinalize bool
}

// streamSession owns one duplex channel. Dialing happens in the background
// so Feed can be called immediately; audio fed before the channel opens
// accumulates in the feed buffer.
type streamSession struct {
	ws        rawStreamSession
	committed string
	audioCh   chan []byte
	updates   chan string
	startedAt time.Time
	connected chan struct{} // closed when the channel is ready (or dialing failed)

	sendDone      chan struct{}
	recvDone      chan struct{}
	finalized     chan struct{}
	finalizedOnce sync.Once
	failed        chan struct{}

	feedBuf []byte
	feedMu  sync.Mutex

	mu      sync.Mutex
	err     error
	errOnce sync.Once
	closing bool
	closed  bool
	stats   streamStats

	closeOnce sync.Once
	closeRes  SessionResult
	closeErr  error
}

type streamStats struct {
	ConnectDur   time.Duration
	SentChunks   int
	SentBytes    uint64
	RecvMessages int
	RecvFinal    int
	RecvInterim  int
	FragmentsOut int
	FinalizeWait time.Duration
	SessionDur   time.Duration
}

func (s streamStats) audioDuration() float64 {
	return float64(s.SentBytes) / float64(audio.SampleRate*audio.BytesPerFrame)
}

func newStreamSession(dial func() (rawStreamSession, error)) *streamSession {
	ss := &streamSession{
		audioCh:   make(chan []byte, 128),
		updates:   make(chan string, 64),
		startedAt: time.Now(),
		sendDone:  make(chan struct{}),
		recvDone:  make(chan struct{}),
		finalized: make(chan struct{}),
		connected: make(chan struct{}),
		failed:    make(chan struct{}),
	}

	go func() {
		connectStart := time.Now()
		ws, err := dial()
		ss.mu.Lock()
		ss.stats.ConnectDur = time.Since(connectStart)
		ss.mu.Unlock()

		if err != nil {
			ss.errOnce.Do(func() {
				ss.mu.Lock()
				ss.err = err
				ss.mu.Unlock()
				close(ss.failed)
			})
			close(ss.sendDone)
			close(ss.recvDone)
			close(ss.connected)
			return
		}

		ss.ws = ws
		close(ss.connected)
		go ss.runSender()
		go ss.runReceiver()
	}()

	return ss
}

// Feed enqueues PCM for transmission in fixed chunks. A feed against a
// failed or closed session is a silent no-op.
func (s *streamSession) Feed(pcm []byte) {
	s.mu.Lock()
	if s.err != nil || s.closing || s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.feedMu.Lock()
	s.feedBuf = append(s.feedBuf, pcm...)
	var chunks [][]byte
	for len(s.feedBuf) >= streamChunkBytes {
		chunk := make([]byte, streamChunkBytes)
		copy(chunk, s.feedBuf[:streamChunkBytes])
		s.feedBuf = s.feedBuf[streamChunkBytes:]
		chunks = append(chunks, chunk)
	}
	s.feedMu.Unlock()

	for _, chunk := range chunks {
		select {
		case s.audioCh <- chunk:
		default:
			// Outbound queue full: drop rather than block the capture callback.
		}
	}
}

func (s *streamSession) Updates() <-chan string {
	return s.updates
}

func (s *streamSession) Failed() <-chan struct{} {
	return s.failed
}

// Close is safe for concurrent and repeated calls: the teardown runs
// exactly once and every caller gets the same result.
func (s *streamSession) Close() (SessionResult, error) {
	s.closeOnce.Do(func() {
		s.closeRes, s.closeErr = s.teardown()
	})
	return s.closeRes, s.closeErr
}

func (s *streamSession) teardown() (SessionResult, error) {
	<-s.connected

	// Dialing failed: nothing was ever sent.
	s.mu.Lock()
	if s.ws == nil {
		connErr := s.err
		s.closed = true
		s.mu.Unlock()
		s.feedMu.Lock()
		s.feedBuf = nil
		s.feedMu.Unlock()
		close(s.audioCh)
		<-s.sendDone
		<-s.recvDone
		close(s.updates)
		return SessionResult{NoSpeech: true}, connErr
	}
	s.closing = true
	s.mu.Unlock()

	// Flush the buffered tail before closing the outbound side.
	s.feedMu.Lock()
	if len(s.feedBuf) > 0 {
		tail := make([]byte, len(s.feedBuf))
		copy(tail, s.feedBuf)
		s.feedBuf = nil
		select {
		case s.audioCh <- tail:
		default:
		}
	}
	s.feedMu.Unlock()
	close(s.audioCh)
	finalizeStart := time.Now()

	<-s.sendDone

	// Wait for the endpoint's finalize acknowledgment, then a brief quiet
	// period for stragglers.
	select {
	case <-s.finalized:
		time.Sleep(streamFinalizeIdle)
	case <-time.After(streamFinalizeMax):
	}

	s.ws.Close()
	select {
	case <-s.recvDone:
	case <-time.After(receiverDrainMax):
		log.Warn("stream receiver drain timeout")
	}
	close(s.updates)

	s.mu.Lock()
	s.closed = true
	text := strings.TrimSpace(s.committed)
	stats := s.stats
	stats.FinalizeWait = time.Since(finalizeStart)
	stats.SessionDur = time.Since(s.startedAt)
	sessionErr := s.err
	s.mu.Unlock()

	noSpeech := text == ""
	return SessionResult{
		Text:     text,
		HasText:  !noSpeech,
		NoSpeech: noSpeech,
		Stream: &StreamStats{
			ConnectMs:    float64(stats.ConnectDur.Milliseconds()),
			SentChunks:   stats.SentChunks,
			SentKB:       float64(stats.SentBytes) / 1024,
			RecvMessages: stats.RecvMessages,
			RecvFinal:    stats.RecvFinal,
			RecvInterim:  stats.RecvInterim,
			FragmentsOut: stats.FragmentsOut,
			FinalizeMs:   float64(stats.FinalizeWait.Milliseconds()),
			TotalMs:      float64(stats.SessionDur.Milliseconds()),
			AudioS:       stats.audioDuration(),
		},
	}, sessionErr
}

func (s *streamSession) runSender() {
	defer close(s.sendDone)
	for chunk := range s.audioCh {
		if err := s.ws.Send(chunk); err != nil {
			s.setErr(err)
			return
		}
		s.mu.Lock()
		s.stats.SentChunks++
		s.stats.SentBytes += uint64(len(chunk))
		s.mu.Unlock()
	}
	if err := s.ws.CloseSend(); err != nil {
		s.setErr(err)
	}
}

func (s *streamSession) runReceiver() {
	defer close(s.recvDone)
	for {
		update, err := s.ws.Recv()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return
			}
			s.setErr(err)
			return
		}

		if update.FromFinalize {
			s.finalizedOnce.Do(func() { close(s.finalized) })
		}

		s.mu.Lock()
		s.stats.RecvMessages++
		if update.IsFinal {
			s.stats.RecvFinal++
		} else {
			s.stats.RecvInterim++
		}
		s.mu.Unlock()

		if !update.IsFinal {
			continue
		}

		fragment := strings.TrimSpace(update.Transcript)
		if fragment == "" {
			continue
		}

		s.mu.Lock()
		s.committed = prompt.MergeFragment(s.committed, fragment)
		s.stats.FragmentsOut++
		s.mu.Unlock()

		// Blocking send keeps fragments ordered and lossless; the consumer
		// drains Updates until it is closed.
		s.updates <- fragment
	}
}

func (s *streamSession) setErr(err error) {
	if err == nil {
		return
	}
	s.errOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.failed)
		if s.ws != nil {
			s.ws.Close()
		}
		s.finalizedOnce.Do(func() { close(s.finalized) })
	})
}
