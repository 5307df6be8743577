// Package studio sequences every sketch mutation through one owner: strokes,
// clears, image loads, undo/redo, generation and export all run on a single
// timeline, so the surface and the history stacks never race.
package studio

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"scrawl/canvas"
	"scrawl/history"
	"scrawl/log"
	"scrawl/painter"
	"scrawl/prompt"
)

var (
	ErrGenerationBusy = errors.New("generation already in flight")
	ErrEmptyPrompt    = errors.New("prompt is empty")
	ErrNoImage        = errors.New("response carried no image")
	ErrNoGenerator    = errors.New("no image generator configured")
)

// Editor owns the surface, the history stacks and the prompt buffer. All
// methods must be called from the owning timeline; the closure returned by
// StartGenerate is the one piece that may run elsewhere.
type Editor struct {
	surface *canvas.Surface
	stacks  *history.Stacks
	prompt  *prompt.Buffer
	gen     painter.Generator

	busy bool
}

func NewEditor(width, height int, gen painter.Generator) *Editor {
	return &Editor{
		surface: canvas.NewSurface(width, height, canvas.White),
		stacks:  history.New(),
		prompt:  prompt.NewBuffer(),
		gen:     gen,
	}
}

func (e *Editor) Surface() *canvas.Surface { return e.surface }
func (e *Editor) Prompt() *prompt.Buffer { return e.prompt }

func (e *Editor) CanUndo() bool { return e.stacks.CanUndo() }
func (e *Editor) CanRedo() bool { return e.stacks.CanRedo() }
func (e *Editor) UndoDepth() int { return e.stacks.UndoDepth() }
func (e *Editor) Generating() bool { return e.busy }

// snapshot pushes the current surface state as the pre-image of the mutation
// about to happen.
func (e *Editor) snapshot() error {
	snap, err := e.surface.Encode()
	if err != nil {
		return err
	}
	e.stacks.Push(snap)
	return nil
}

// Stroke paints one gesture as a connected polyline. The whole gesture is a
// single undo step.
func (e *Editor) Stroke(points []canvas.Point, c color.Color, width float64) error {
	if len(points) == 0 {
		return nil
	}
	if err := e.snapshot(); err != nil {
		return err
	}
	if len(points) == 1 {
		e.surface.StrokeLine(points[0], points[0], c, width)
		return nil
	}
	for i := 1; i < len(points); i++ {
		e.surface.StrokeLine(points[i-1], points[i], c, width)
	}
	return nil
}

// Clear floods the surface with the background color, as an undoable step.
func (e *Editor) Clear() error {
	if err := e.snapshot(); err != nil {
		return err
	}
	e.surface.Clear(canvas.White)
	return nil
}

// LoadImage replaces the sketch with an imported image file, scaled to fit.
func (e *Editor) LoadImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decoding image: %w", err)
	}
	if err := e.snapshot(); err != nil {
		return err
	}
	e.surface.DrawImage(img)
	log.Info("image_loaded: " + path)
	return nil
}

// Undo restores the most recent pre-image. Reports false when the undo stack
// is empty, with surface and stacks untouched.
func (e *Editor) Undo() (bool, error) {
	if !e.stacks.CanUndo() {
		return false, nil
	}
	current, err := e.surface.Encode()
	if err != nil {
		return false, err
	}
	snap, ok := e.stacks.Undo(current)
	if !ok {
		return false, nil
	}
	if err := e.surface.Restore(snap); err != nil {
		return false, err
	}
	return true, nil
}

// Redo is symmetric to Undo.
func (e *Editor) Redo() (bool, error) {
	if !e.stacks.CanRedo() {
		return false, nil
	}
	current, err := e.surface.Encode()
	if err != nil {
		return false, err
	}
	snap, ok := e.stacks.Redo(current)
	if !ok {
		return false, nil
	}
	if err := e.surface.Restore(snap); err != nil {
		return false, err
	}
	return true, nil
}

// Export writes the current sketch into dir under a timestamped name.
func (e *Editor) Export(dir string) (string, error) {
	path, err := e.surface.ExportPNG(dir, "sketch")
	if err != nil {
		return "", err
	}
	log.Info("exported: " + path)
	return path, nil
}

// GenerateOutcome carries one finished generation call back to the timeline.
type GenerateOutcome struct {
	Result painter.Result
	Err    error
}

// StartGenerate snapshots the sketch and the prompt, marks the editor busy,
// and returns a closure performing the network call. The closure only reads
// data captured here, so it may run on any goroutine; its outcome must be
// handed back to FinishGenerate on the owning timeline. One call in flight
// at a time.
func (e *Editor) StartGenerate(ctx context.Context) (func() GenerateOutcome, error) {
	if e.gen == nil {
		return nil, ErrNoGenerator
	}
	if e.busy {
		return nil, ErrGenerationBusy
	}
	text := e.prompt.Text()
	if text == "" {
		return nil, ErrEmptyPrompt
	}
	png, err := e.surface.Encode()
	if err != nil {
		return nil, err
	}
	e.busy = true

	gen := e.gen
	req := painter.Request{ImagePNG: png, Prompt: text}
	return func() GenerateOutcome {
		start := time.Now()
		res, err := gen.Generate(ctx, req)
		log.GenerationMetrics(gen.Name(), len(req.Prompt), len(res.Image)/1024,
			float64(time.Since(start).Milliseconds()), err == nil && res.Found)
		return GenerateOutcome{Result: res, Err: err}
	}, nil
}

// FinishGenerate applies a generation outcome. On success the returned image
// becomes the new sketch background behind a fresh history snapshot; on any
// failure the surface and the stacks stay exactly as they were.
func (e *Editor) FinishGenerate(out GenerateOutcome) error {
	e.busy = false
	if out.Err != nil {
		return out.Err
	}
	if !out.Result.Found {
		return ErrNoImage
	}
	img, err := painter.DecodeImage(out.Result)
	if err != nil {
		return err
	}
	if err := e.snapshot(); err != nil {
		return err
	}
	e.surface.DrawImage(img)
	return nil
}
