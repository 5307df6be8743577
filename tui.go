package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"scrawl/canvas"
	"scrawl/capture"
	"scrawl/clipboard"
	"scrawl/log"
	"scrawl/studio"
)

// TUI message types
type RecordingStartMsg struct{}
type RecordingStopMsg struct{}
type AudioLevelMsg struct{ Level float64 }
type FragmentMsg struct{ Text string }
type TakeFinishedMsg struct {
	Text     string
	NoSpeech bool
}
type GenerationDoneMsg struct{ Outcome studio.GenerateOutcome }
type StatusMsg struct{ Text string }
type DeviceLineMsg struct{ Text string }
type ErrorMsg struct{ Text string }
type tickMsg time.Time

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex

	// tuiReady closes once the event loop is live; Send on a program whose
	// Run has not started blocks forever.
	tuiReady     = make(chan struct{})
	tuiReadyOnce sync.Once
)

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

type tuiMode int

const (
	modeDraw tuiMode = iota
	modePrompt
)

var brushes = []struct {
	name  string
	color color.RGBA
}{
	{"black", color.RGBA{A: 0xff}},
	{"red", color.RGBA{R: 0xd0, G: 0x30, B: 0x30, A: 0xff}},
	{"green", color.RGBA{R: 0x30, G: 0xa0, B: 0x40, A: 0xff}},
	{"blue", color.RGBA{R: 0x30, G: 0x50, B: 0xd0, A: 0xff}},
	{"white", color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}}, // eraser
}

type tuiModel struct {
	editor    *studio.Editor
	pipeline  *capture.Pipeline
	exportDir string

	mode          tuiMode
	width, height int
	frame         int

	recording  bool
	duration   float64
	audioLevel float64
	noVoice    bool
	monitor    *silenceMonitor

	brush      int
	brushWidth float64
	dragging   bool
	gesture    []canvas.Point

	lastTake   string
	noSpeech   bool
	generating bool
	statusLine string
	deviceLine string
	lastError  string

	// canvas viewport, recomputed on resize
	cvCols, cvRows int
}

func NewTUIProgram(editor *studio.Editor, pipeline *capture.Pipeline, exportDir string) *tea.Program {
	m := tuiModel{
		editor:     editor,
		pipeline:   pipeline,
		exportDir:  exportDir,
		brushWidth: 4,
	}
	return tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion())
}

func tuiTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	tuiReadyOnce.Do(func() { close(tuiReady) })
	return tuiTick()
}

func (m tuiModel) startRecording() tea.Cmd {
	return func() tea.Msg {
		if err := m.pipeline.Start(context.Background()); err != nil {
			return ErrorMsg{Text: err.Error()}
		}
		return RecordingStartMsg{}
	}
}

// stopRecording only reports the state change; the take itself arrives
// through the pipeline's result callback.
func (m tuiModel) stopRecording() tea.Cmd {
	return func() tea.Msg {
		if _, err := m.pipeline.Stop(); err != nil {
			return ErrorMsg{Text: err.Error()}
		}
		return RecordingStopMsg{}
	}
}

func (m *tuiModel) commitGesture() {
	if len(m.gesture) > 0 {
		if err := m.editor.Stroke(m.gesture, brushes[m.brush].color, m.brushWidth); err != nil {
			m.lastError = err.Error()
		}
	}
	m.dragging = false
	m.gesture = nil
}

// cellToCanvas maps a terminal cell inside the canvas viewport onto surface
// coordinates.
func (m *tuiModel) cellToCanvas(x, y int) (canvas.Point, bool) {
	if m.cvCols == 0 || m.cvRows == 0 {
		return canvas.Point{}, false
	}
	if x < 0 || y < 0 || x >= m.cvCols || y >= m.cvRows {
		return canvas.Point{}, false
	}
	s := m.editor.Surface()
	px := (float64(x) + 0.5) / float64(m.cvCols) * float64(s.Width())
	py := (float64(y) + 0.5) / float64(m.cvRows) * float64(s.Height())
	return canvas.Point{X: px, Y: py}, true
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.cvCols = m.width - sidebarWidth - 3
		if m.cvCols > 100 {
			m.cvCols = 100
		}
		m.cvRows = m.height - 4
		if m.cvRows < 1 {
			m.cvRows = 1
		}
		if m.cvCols < 1 {
			m.cvCols = 1
		}

	case tea.KeyMsg:
		return m.updateKey(msg)

	case tea.MouseMsg:
		if m.mode != modeDraw {
			break
		}
		switch msg.Action {
		case tea.MouseActionPress:
			if msg.Button == tea.MouseButtonLeft {
				if p, ok := m.cellToCanvas(msg.X-1, msg.Y-1); ok {
					m.dragging = true
					m.gesture = append(m.gesture[:0], p)
				}
			}
		case tea.MouseActionMotion:
			if m.dragging {
				if p, ok := m.cellToCanvas(msg.X-1, msg.Y-1); ok {
					m.gesture = append(m.gesture, p)
				}
			}
		case tea.MouseActionRelease:
			if m.dragging {
				m.commitGesture()
			}
		}

	case tickMsg:
		m.frame++
		if m.recording {
			m.duration = m.pipeline.Duration().Seconds()
			if m.monitor != nil {
				switch m.monitor.Tick(m.audioLevel > speechRMSThreshold) {
				case SilenceWarn, SilenceRepeat:
					m.noVoice = true
					log.Info("no_voice_warning")
				case SilenceWarnClear:
					m.noVoice = false
				}
			}
		}
		return m, tuiTick()

	case RecordingStartMsg:
		m.recording = true
		m.duration = 0
		m.audioLevel = 0
		m.noVoice = false
		m.monitor = newSilenceMonitor()
		m.lastError = ""

	case RecordingStopMsg:
		m.recording = false
		m.audioLevel = 0
		m.noVoice = false

	case AudioLevelMsg:
		if m.recording {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
		}

	case FragmentMsg:
		m.editor.Prompt().Append(msg.Text)

	case TakeFinishedMsg:
		m.recording = false
		m.audioLevel = 0
		m.noVoice = false
		m.lastTake = msg.Text
		m.noSpeech = msg.NoSpeech

	case GenerationDoneMsg:
		m.generating = false
		if err := m.editor.FinishGenerate(msg.Outcome); err != nil {
			m.lastError = err.Error()
			m.statusLine = "generation failed"
		} else {
			m.statusLine = "generation applied"
			m.lastError = ""
		}

	case StatusMsg:
		m.statusLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case ErrorMsg:
		m.recording = false
		m.lastError = msg.Text
	}
	return m, nil
}

func (m tuiModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == modePrompt {
		switch msg.String() {
		case "esc", "tab":
			m.mode = modeDraw
		case "enter":
			m.mode = modeDraw
		case "backspace":
			text := m.editor.Prompt().Text()
			if text != "" {
				runes := []rune(text)
				m.editor.Prompt().Set(string(runes[:len(runes)-1]))
			}
		case "ctrl+c":
			return m, tea.Quit
		case " ":
			m.editor.Prompt().Set(m.editor.Prompt().Text() + " ")
		default:
			if msg.Type == tea.KeyRunes {
				m.editor.Prompt().Set(m.editor.Prompt().Text() + string(msg.Runes))
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "tab":
		m.mode = modePrompt

	case " ", "r":
		if m.recording {
			return m, m.stopRecording()
		}
		return m, m.startRecording()

	case "g":
		run, err := m.editor.StartGenerate(context.Background())
		if err != nil {
			m.lastError = err.Error()
			return m, nil
		}
		m.generating = true
		m.statusLine = "generating..."
		m.lastError = ""
		return m, func() tea.Msg {
			return GenerationDoneMsg{Outcome: run()}
		}

	case "u":
		if _, err := m.editor.Undo(); err != nil {
			m.lastError = err.Error()
		}

	case "y":
		if _, err := m.editor.Redo(); err != nil {
			m.lastError = err.Error()
		}

	case "c":
		if err := m.editor.Clear(); err != nil {
			m.lastError = err.Error()
		}

	case "e":
		path, err := m.editor.Export(m.exportDir)
		if err != nil {
			m.lastError = err.Error()
		} else {
			m.statusLine = "exported " + path
		}

	case "x":
		if text := m.editor.Prompt().Text(); text != "" {
			if err := clipboard.Copy(text); err == nil {
				m.statusLine = "prompt copied"
			}
		}

	case "d":
		m.editor.Prompt().Clear()

	case "b":
		m.brush = (m.brush + 1) % len(brushes)

	case "+", "=":
		if m.brushWidth < 32 {
			m.brushWidth += 2
		}

	case "-":
		if m.brushWidth > 2 {
			m.brushWidth -= 2
		}
	}
	return m, nil
}

const sidebarWidth = 34

var (
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Bold(true)
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	editingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
)

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	canvasPanel := renderCanvasCells(m.editor.Surface().Image(), m.cvCols, m.cvRows)

	var side []string
	side = append(side, titleStyle.Render("scrawl"))
	side = append(side, "")

	if m.recording {
		side = append(side, recStyle.Render(fmt.Sprintf("● REC %.1fs", m.duration)))
		side = append(side, renderLevelBar(m.audioLevel))
		if m.noVoice {
			side = append(side, warnStyle.Render("⚠ no voice detected"))
		}
	} else {
		side = append(side, idleStyle.Render("○ mic idle"))
		side = append(side, "")
	}
	side = append(side, "")

	promptTitle := "prompt"
	if m.mode == modePrompt {
		promptTitle = "prompt " + editingStyle.Render("[editing]")
	}
	side = append(side, titleStyle.Render(promptTitle))
	text := m.editor.Prompt().Text()
	if text == "" {
		side = append(side, dimStyle.Render("(speak or press tab to type)"))
	} else {
		for _, line := range wrapText(text, sidebarWidth-2) {
			side = append(side, promptStyle.Render(line))
		}
	}
	side = append(side, "")

	if m.generating {
		spinner := []string{"|", "/", "-", "\\"}[m.frame%4]
		side = append(side, okStyle.Render(spinner+" generating"))
	} else if m.statusLine != "" {
		side = append(side, dimStyle.Render(m.statusLine))
	}
	if m.lastError != "" {
		for _, line := range wrapText(m.lastError, sidebarWidth-2) {
			side = append(side, errStyle.Render(line))
		}
	}
	side = append(side, "")

	side = append(side, dimStyle.Render(fmt.Sprintf("brush: %s %.0f  undo: %d",
		brushes[m.brush].name, m.brushWidth, m.editor.UndoDepth())))
	if m.deviceLine != "" {
		side = append(side, dimStyle.Render(m.deviceLine))
	}
	if m.lastTake != "" {
		side = append(side, "")
		side = append(side, dimStyle.Render("last take:"))
		takeText := m.lastTake
		if m.noSpeech {
			takeText = "(no speech detected)"
		}
		for _, line := range wrapText(takeText, sidebarWidth-2) {
			side = append(side, dimStyle.Render(line))
		}
	}

	side = append(side, "")
	side = append(side, dimStyle.Render("space rec · g gen · u/y undo/redo"))
	side = append(side, dimStyle.Render("c clear · e export · b brush · q quit"))

	sidebar := lipgloss.NewStyle().
		Width(sidebarWidth).
		Height(m.height-2).
		PaddingLeft(1).
		Render(strings.Join(side, "\n"))

	framed := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(borderStyle.GetForeground()).
		Render(canvasPanel)

	return lipgloss.JoinHorizontal(lipgloss.Top, framed, sidebar)
}

func renderLevelBar(level float64) string {
	const barWidth = 24
	filled := int(level * 8 * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	return okStyle.Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", barWidth-filled))
}

// renderCanvasCells downsamples the surface into cols x rows terminal cells,
// two vertical pixels per cell via the upper half block.
func renderCanvasCells(img image.Image, cols, rows int) string {
	if cols < 1 || rows < 1 {
		return ""
	}
	b := img.Bounds()
	sample := func(cx, cy int, half int) color.Color {
		px := b.Min.X + (cx*b.Dx()+b.Dx()/2)/cols
		py := b.Min.Y + ((cy*2+half)*b.Dy()+b.Dy()/2)/(rows*2)
		if px >= b.Max.X {
			px = b.Max.X - 1
		}
		if py >= b.Max.Y {
			py = b.Max.Y - 1
		}
		return img.At(px, py)
	}
	hex := func(c color.Color) string {
		r, g, bb, _ := c.RGBA()
		return fmt.Sprintf("#%02x%02x%02x", uint8(r>>8), uint8(g>>8), uint8(bb>>8))
	}

	var out strings.Builder
	for cy := 0; cy < rows; cy++ {
		for cx := 0; cx < cols; cx++ {
			top := hex(sample(cx, cy, 0))
			bot := hex(sample(cx, cy, 1))
			st := lipgloss.NewStyle().
				Foreground(lipgloss.Color(top)).
				Background(lipgloss.Color(bot))
			out.WriteString(st.Render("▀"))
		}
		if cy < rows-1 {
			out.WriteString("\n")
		}
	}
	return out.String()
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
