// Package capture runs the microphone-to-transcript pipeline: it owns the
// exclusive device handle, frames PCM into the live transcription session,
// and tears everything down on transport failure so the mic never leaks.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scrawl/audio"
	"scrawl/encoder"
	"scrawl/log"
	"scrawl/transcriber"
)

var (
	ErrAlreadyActive     = errors.New("capture already active")
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	ErrPermissionDenied  = errors.New("microphone permission denied")
)

// State of the pipeline. Transitions:
// Stopped → Starting → Streaming → Stopping → Stopped, with Errored
// reachable from Starting or Streaming, settling back to Stopped after
// cleanup.
type State int

const (
	Stopped State = iota
	Starting
	Streaming
	Stopping
	Errored
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Streaming:
		return "streaming"
	case Stopping:
		return "stopping"
	case Errored:
		return "errored"
	}
	return "unknown"
}

// Config wires the pipeline to its collaborators. Callbacks are invoked
// from pipeline goroutines; implementations dispatch to their own timeline.
type Config struct {
	Transcriber transcriber.Transcriber
	Session     transcriber.SessionConfig

	// OnFragment receives transcript fragments in delivery order.
	OnFragment func(fragment string)
	// OnLevel receives the RMS level of each captured block.
	OnLevel func(level float64)
	// OnResult receives the final session result after a normal Stop.
	OnResult func(result transcriber.SessionResult)
	// OnError receives transport errors that forced a teardown.
	OnError func(err error)

	// ArchiveDir, when set, receives a FLAC file per take.
	ArchiveDir string
}

// Pipeline is the owned state machine replacing module-level session and
// device singletons. At most one session and one device handle are alive at
// a time; every frame is tagged with the epoch it was captured under so a
// callback racing a restart cannot feed a replaced session.
type Pipeline struct {
	device audio.CaptureDevice
	cfg    Config

	mu      sync.Mutex
	state   State
	epoch   uuid.UUID
	sess    transcriber.Session
	archive *encoder.Blocker
	started time.Time
}

func NewPipeline(device audio.CaptureDevice, cfg Config) *Pipeline {
	return &Pipeline{device: device, cfg: cfg, state: Stopped}
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Duration reports how long the current take has been streaming.
func (p *Pipeline) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Streaming {
		return 0
	}
	return time.Since(p.started)
}

// Start acquires the device and opens a transcription session. The session
// dial is asynchronous; frames produced before it opens are buffered by the
// session. Fails with ErrAlreadyActive unless the pipeline is Stopped, and
// never leaves a half-started state behind.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != Stopped {
		p.mu.Unlock()
		return ErrAlreadyActive
	}
	p.state = Starting
	epoch := uuid.New()
	p.epoch = epoch
	p.mu.Unlock()

	sess, err := p.cfg.Transcriber.NewSession(ctx, p.cfg.Session)
	if err != nil {
		p.mu.Lock()
		p.state = Stopped
		p.mu.Unlock()
		return fmt.Errorf("opening transcription session: %w", err)
	}

	var archive *encoder.Blocker
	if p.cfg.ArchiveDir != "" {
		flacEnc, err := encoder.NewFlac()
		if err != nil {
			log.Warnf("take archive disabled: %v", err)
		} else {
			archive = encoder.NewBlocker(flacEnc)
		}
	}

	p.device.SetCallback(func(data []byte, frameCount uint32) {
		// Validate against the current epoch: a stale callback from a
		// replaced session drops its frames instead of misdelivering them.
		p.mu.Lock()
		if p.epoch != epoch || p.state != Streaming {
			p.mu.Unlock()
			return
		}
		arch := p.archive
		p.mu.Unlock()

		if len(data) == 0 {
			return
		}
		pcm := make([]byte, len(data))
		copy(pcm, data)
		sess.Feed(pcm)

		if p.cfg.OnLevel != nil {
			p.cfg.OnLevel(audio.RMS(data))
		}
		if arch != nil {
			if err := arch.Write(audio.BytesToSamples(data)); err != nil {
				log.Warnf("take archive write: %v", err)
			}
		}
	})

	if err := p.device.Start(); err != nil {
		// Errored is transient: abort the start attempt and settle back to
		// Stopped, never half-started.
		p.device.ClearCallback()
		sess.Close()
		p.mu.Lock()
		p.state = Stopped
		p.mu.Unlock()
		return fmt.Errorf("%w: %v", classifyDeviceErr(err), err)
	}

	p.mu.Lock()
	if p.state != Starting || p.epoch != epoch {
		// A concurrent Stop won the race; honor it unconditionally.
		p.mu.Unlock()
		p.device.Stop()
		p.device.ClearCallback()
		sess.Close()
		p.mu.Lock()
		p.state = Stopped
		p.mu.Unlock()
		return nil
	}
	p.sess = sess
	p.archive = archive
	p.state = Streaming
	p.started = time.Now()
	p.mu.Unlock()

	go p.forwardFragments(sess)
	go p.watchTransport(sess, epoch)

	log.Info("capture_start: " + p.device.DeviceName())
	return nil
}

func (p *Pipeline) forwardFragments(sess transcriber.Session) {
	for frag := range sess.Updates() {
		if p.cfg.OnFragment != nil {
			p.cfg.OnFragment(frag)
		}
	}
}

// watchTransport tears the whole pipeline down when the session fails after
// open, so an error never leaves the microphone held.
func (p *Pipeline) watchTransport(sess transcriber.Session, epoch uuid.UUID) {
	<-sess.Failed()

	p.mu.Lock()
	if p.epoch != epoch || p.state != Streaming {
		// A newer session owns the pipeline, or a Stop is already underway.
		p.mu.Unlock()
		return
	}
	p.state = Errored
	p.mu.Unlock()

	log.Warn("transcription transport failed, tearing down capture")
	_, err := p.shutdown(sess)
	if err == nil {
		err = errors.New("transcription transport closed")
	}
	if p.cfg.OnError != nil {
		p.cfg.OnError(err)
	}
}

// Stop is idempotent and safe from any state. It releases the device,
// closes the session, and reports the final result. Cleanup is best-effort:
// sub-errors are logged, never raised.
func (p *Pipeline) Stop() (transcriber.SessionResult, error) {
	p.mu.Lock()
	// Errored means the transport watcher already owns this teardown.
	if p.state == Stopped || p.state == Stopping || p.state == Errored {
		p.mu.Unlock()
		return transcriber.SessionResult{}, nil
	}
	p.state = Stopping
	sess := p.sess
	p.mu.Unlock()

	result, err := p.shutdown(sess)
	if err != nil {
		log.Errorf("transcription error: %v", err)
		return result, err
	}
	if p.cfg.OnResult != nil {
		p.cfg.OnResult(result)
	}
	return result, nil
}

// shutdown performs the common teardown: stop the device, invalidate the
// epoch, close the session, flush the archive.
func (p *Pipeline) shutdown(sess transcriber.Session) (transcriber.SessionResult, error) {
	p.device.Stop()
	p.device.ClearCallback()

	p.mu.Lock()
	p.epoch = uuid.Nil // invalidate in-flight callbacks
	archive := p.archive
	p.archive = nil
	p.sess = nil
	p.mu.Unlock()

	var result transcriber.SessionResult
	var err error
	if sess != nil {
		result, err = sess.Close()
	}

	if archive != nil {
		p.writeArchive(archive)
	}

	if result.Stream != nil {
		ss := result.Stream
		log.StreamMetrics(log.StreamMetricsData{
			Provider:     p.cfg.Transcriber.Name(),
			ConnectMs:    ss.ConnectMs,
			FinalizeMs:   ss.FinalizeMs,
			TotalMs:      ss.TotalMs,
			AudioS:       ss.AudioS,
			SentChunks:   ss.SentChunks,
			SentKB:       ss.SentKB,
			RecvMessages: ss.RecvMessages,
			RecvFinal:    ss.RecvFinal,
			Fragments:    ss.FragmentsOut,
		})
	}
	if result.HasText {
		log.TranscriptionText(result.Text)
	}

	p.mu.Lock()
	p.state = Stopped
	p.mu.Unlock()
	log.Info("capture_stop")
	return result, err
}

func (p *Pipeline) writeArchive(archive *encoder.Blocker) {
	if err := archive.Flush(); err != nil {
		log.Warnf("take archive flush: %v", err)
		return
	}
	name := fmt.Sprintf("take-%s.flac", time.Now().Format("2006-01-02T15-04-05"))
	path := filepath.Join(p.cfg.ArchiveDir, name)
	if err := os.WriteFile(path, archive.Bytes(), 0644); err != nil {
		log.Warnf("take archive write: %v", err)
		return
	}
	log.Info("take_archived: " + path)
}

func classifyDeviceErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range []string{"permission", "denied", "not authorized"} {
		if strings.Contains(msg, kw) {
			return ErrPermissionDenied
		}
	}
	return ErrDeviceUnavailable
}
