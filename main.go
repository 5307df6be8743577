package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"scrawl/audio"
	"scrawl/capture"
	"scrawl/log"
	"scrawl/painter"
	"scrawl/studio"
	"scrawl/transcriber"
)

var version = "dev"

var takeCount atomic.Int64

var shutdownOnce sync.Once

func gracefulShutdown(pipeline *capture.Pipeline) {
	shutdownOnce.Do(func() {
		if pipeline != nil {
			pipeline.Stop()
		}
		if n := takeCount.Load(); n > 0 {
			log.SessionEnd(int(n))
		}
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			// Quit also sends; skip it if the event loop never came up.
			select {
			case <-tuiReady:
				p.Quit()
			default:
			}
		}
	})
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

func parseSize(s string) (int, int, error) {
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("size must be WxH, got %q", s)
	}
	var w, h int
	if _, err := fmt.Sscanf(s, "%dx%d", &w, &h); err != nil {
		return 0, 0, fmt.Errorf("size must be WxH, got %q", s)
	}
	if w < 16 || h < 16 || w > 4096 || h > 4096 {
		return 0, 0, fmt.Errorf("size out of range: %q", s)
	}
	return w, h, nil
}

func main() {
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	langFlag := flag.String("lang", "en", "Language code for transcription (e.g., en, es, fr). Empty = auto-detect")
	modelFlag := flag.String("model", "", "Transcription model override")
	paintModelFlag := flag.String("paintmodel", "", "Image generation model override")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	archiveFlag := flag.String("archive", "", "Directory for FLAC take archives (empty = disabled)")
	sizeFlag := flag.String("size", "960x540", "Canvas size WxH")
	loadFlag := flag.String("load", "", "Image file to load onto the canvas at startup")
	exportFlag := flag.String("export", ".", "Directory for exported sketches")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("scrawl %s\n", version)
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	width, height, err := parseSize(*sizeFlag)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	activeTranscriber, err := transcriber.New()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if *langFlag != "" {
		activeTranscriber.SetLanguage(*langFlag)
	}
	log.SessionStart(activeTranscriber.Name())

	var gen painter.Generator
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		gen = painter.NewGemini(key, *paintModelFlag)
	}

	ctx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		if devices, err := ctx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == *deviceFlag {
					selectedDevice = &devices[i]
					break
				}
			}
		}
		if selectedDevice == nil {
			fmt.Printf("Warning: device %q not found, using system default\n", *deviceFlag)
		}
	} else if *setupFlag {
		selectedDevice, err = audio.SelectDevice(ctx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selectedDevice = nil
		}
	}

	captureDevice, err := ctx.NewCapture(selectedDevice, audio.DefaultCaptureConfig())
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Printf("Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	defer captureDevice.Close()

	if *archiveFlag != "" {
		if err := os.MkdirAll(*archiveFlag, 0755); err != nil {
			fmt.Printf("Warning: archive dir: %v\n", err)
			*archiveFlag = ""
		}
	}

	editor := studio.NewEditor(width, height, gen)
	if *loadFlag != "" {
		if err := editor.LoadImage(*loadFlag); err != nil {
			fmt.Printf("Error loading %s: %v\n", *loadFlag, err)
			os.Exit(1)
		}
	}

	var sink EventSink = tuiSink{}

	pipeline := capture.NewPipeline(captureDevice, capture.Config{
		Transcriber: activeTranscriber,
		Session: transcriber.SessionConfig{
			Language: activeTranscriber.GetLanguage(),
			Model:    *modelFlag,
		},
		OnFragment: sink.Fragment,
		OnLevel:    sink.AudioLevel,
		OnResult: func(result transcriber.SessionResult) {
			if result.HasText {
				takeCount.Add(1)
			}
			sink.TakeFinished(result.Text, result.NoSpeech)
		},
		OnError: func(err error) {
			sink.RecordingStop()
			sink.Error(err.Error())
		},
		ArchiveDir: *archiveFlag,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		gracefulShutdown(pipeline)
	}()

	tuiMu.Lock()
	tuiProgram = NewTUIProgram(editor, pipeline, *exportFlag)
	tuiMu.Unlock()

	// Sending before Run's event loop is live would block forever, so the
	// startup lines wait for the ready signal.
	go func() {
		<-tuiReady
		sink.DeviceLine(deviceLineText(selectedDevice))
		if gen == nil {
			sink.StatusLine("no GEMINI_API_KEY: generation disabled")
		}
	}()

	if _, err := tuiProgram.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	gracefulShutdown(pipeline)
}
