package main

// EventSink abstracts the display layer so the Bubble Tea TUI and the
// headless test driver can receive the same sketchpad events.
type EventSink interface {
	RecordingStop()
	AudioLevel(level float64)
	Fragment(text string)
	TakeFinished(text string, noSpeech bool)
	StatusLine(text string)
	DeviceLine(text string)
	Error(text string)
}

// tuiSink forwards sketchpad events into the running Bubble Tea program.
type tuiSink struct{}

func (tuiSink) RecordingStop() { tuiSend(RecordingStopMsg{}) }
func (tuiSink) AudioLevel(level float64) { tuiSend(AudioLevelMsg{Level: level}) }
func (tuiSink) Fragment(text string) { tuiSend(FragmentMsg{Text: text}) }
func (tuiSink) StatusLine(text string) { tuiSend(StatusMsg{Text: text}) }
func (tuiSink) DeviceLine(text string) { tuiSend(DeviceLineMsg{Text: text}) }
func (tuiSink) Error(text string) { tuiSend(ErrorMsg{Text: text}) }

func (tuiSink) TakeFinished(text string, noSpeech bool) {
	tuiSend(TakeFinishedMsg{Text: text, NoSpeech: noSpeech})
}
