package main

import (
	"testing"

	"scrawl/studio"
)

var _ EventSink = tuiSink{}

func testModel() tuiModel {
	return tuiModel{editor: studio.NewEditor(64, 64, nil), brushWidth: 4}
}

func TestStartupSendsWaitForEventLoop(t *testing.T) {
	// Nothing may be sent into the program before its event loop is live;
	// readiness is signalled from Init, which only runs inside Run.
	select {
	case <-tuiReady:
		t.Fatal("ready signalled before Init ran")
	default:
	}

	m := testModel()
	if cmd := m.Init(); cmd == nil {
		t.Fatal("Init returned no tick command")
	}

	select {
	case <-tuiReady:
	default:
		t.Fatal("Init did not signal readiness")
	}
}

func TestSinkMessagesDriveModel(t *testing.T) {
	m := testModel()

	next, _ := m.Update(RecordingStartMsg{})
	m = next.(tuiModel)
	if !m.recording || m.monitor == nil {
		t.Fatal("RecordingStartMsg did not enter recording state")
	}

	next, _ = m.Update(AudioLevelMsg{Level: 0.5})
	m = next.(tuiModel)
	if m.audioLevel == 0 {
		t.Error("AudioLevelMsg ignored while recording")
	}

	next, _ = m.Update(FragmentMsg{Text: "draw a lighthouse"})
	m = next.(tuiModel)
	if got := m.editor.Prompt().Text(); got != "draw a lighthouse" {
		t.Errorf("prompt = %q, want fragment text", got)
	}

	next, _ = m.Update(TakeFinishedMsg{Text: "draw a lighthouse"})
	m = next.(tuiModel)
	if m.recording {
		t.Error("TakeFinishedMsg left the model recording")
	}
	if m.lastTake != "draw a lighthouse" {
		t.Errorf("lastTake = %q", m.lastTake)
	}

	next, _ = m.Update(RecordingStopMsg{})
	m = next.(tuiModel)
	if m.recording || m.audioLevel != 0 {
		t.Error("RecordingStopMsg did not reset recording state")
	}

	next, _ = m.Update(DeviceLineMsg{Text: "mic: USB Condenser"})
	m = next.(tuiModel)
	if m.deviceLine != "mic: USB Condenser" {
		t.Errorf("deviceLine = %q", m.deviceLine)
	}

	next, _ = m.Update(StatusMsg{Text: "generation disabled"})
	m = next.(tuiModel)
	if m.statusLine != "generation disabled" {
		t.Errorf("statusLine = %q", m.statusLine)
	}

	next, _ = m.Update(ErrorMsg{Text: "endpoint unreachable"})
	m = next.(tuiModel)
	if m.lastError != "endpoint unreachable" {
		t.Errorf("lastError = %q", m.lastError)
	}
}
