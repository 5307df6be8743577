package studio

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"scrawl/canvas"
	"scrawl/painter"
)

var (
	black = color.RGBA{A: 0xff}
	red   = color.RGBA{R: 0xc0, A: 0xff}
)

func encodePNG(t *testing.T, c color.RGBA, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func rgbaAt(e *Editor, x, y int) color.RGBA {
	r, g, b, a := e.Surface().At(x, y).RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
}

func TestStrokeIsOneUndoStep(t *testing.T) {
	e := NewEditor(64, 64, nil)
	gesture := []canvas.Point{{X: 8, Y: 8}, {X: 24, Y: 8}, {X: 24, Y: 24}}
	if err := e.Stroke(gesture, black, 3); err != nil {
		t.Fatalf("Stroke: %v", err)
	}
	if e.UndoDepth() != 1 {
		t.Fatalf("undo depth = %d, want 1 for one gesture", e.UndoDepth())
	}
	if rgbaAt(e, 24, 8) != black {
		t.Error("corner of gesture not painted")
	}

	ok, err := e.Undo()
	if err != nil || !ok {
		t.Fatalf("Undo = %v, %v", ok, err)
	}
	if rgbaAt(e, 24, 8) != canvas.White {
		t.Error("undo did not restore the blank surface")
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	e := NewEditor(32, 32, nil)
	e.Stroke([]canvas.Point{{X: 4, Y: 4}}, black, 2)
	e.Stroke([]canvas.Point{{X: 20, Y: 20}}, red, 2)

	if ok, _ := e.Undo(); !ok {
		t.Fatal("first undo refused")
	}
	if rgbaAt(e, 20, 20) != canvas.White || rgbaAt(e, 4, 4) != black {
		t.Error("undo removed the wrong stroke")
	}
	if ok, _ := e.Redo(); !ok {
		t.Fatal("redo refused")
	}
	if rgbaAt(e, 20, 20) != red {
		t.Error("redo did not reapply the stroke")
	}
}

func TestUndoEmptyIsNoop(t *testing.T) {
	e := NewEditor(16, 16, nil)
	if ok, err := e.Undo(); ok || err != nil {
		t.Errorf("Undo on empty = %v, %v", ok, err)
	}
	if ok, err := e.Redo(); ok || err != nil {
		t.Errorf("Redo on empty = %v, %v", ok, err)
	}
}

func TestClearIsUndoable(t *testing.T) {
	e := NewEditor(32, 32, nil)
	e.Stroke([]canvas.Point{{X: 10, Y: 10}}, black, 4)
	if err := e.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if rgbaAt(e, 10, 10) != canvas.White {
		t.Fatal("clear left paint behind")
	}
	if ok, _ := e.Undo(); !ok {
		t.Fatal("undo after clear refused")
	}
	if rgbaAt(e, 10, 10) != black {
		t.Error("undo did not restore the cleared stroke")
	}
}

func TestLoadImagePushesSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.png")
	if err := os.WriteFile(path, encodePNG(t, red, 8, 8), 0644); err != nil {
		t.Fatal(err)
	}

	e := NewEditor(32, 32, nil)
	if err := e.LoadImage(path); err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if e.UndoDepth() != 1 {
		t.Errorf("undo depth = %d, want 1 after import", e.UndoDepth())
	}
	if rgbaAt(e, 16, 16) != red {
		t.Error("imported image not drawn")
	}
	if ok, _ := e.Undo(); !ok {
		t.Fatal("undo after import refused")
	}
	if rgbaAt(e, 16, 16) != canvas.White {
		t.Error("undo did not remove the import")
	}
}

func TestLoadImageMissingFile(t *testing.T) {
	e := NewEditor(16, 16, nil)
	if err := e.LoadImage(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Error("want error for missing file")
	}
	if e.UndoDepth() != 0 {
		t.Error("failed import pushed a snapshot")
	}
}

func TestGenerateAppliesResult(t *testing.T) {
	gen := painter.NewFakeGenerator(painter.Result{
		Image:    encodePNG(t, red, 32, 32),
		MimeType: "image/png",
		Found:    true,
	}, nil)
	e := NewEditor(32, 32, gen)
	e.Prompt().Set("paint it red")

	run, err := e.StartGenerate(context.Background())
	if err != nil {
		t.Fatalf("StartGenerate: %v", err)
	}
	if !e.Generating() {
		t.Error("busy flag not set")
	}
	if err := e.FinishGenerate(run()); err != nil {
		t.Fatalf("FinishGenerate: %v", err)
	}
	if e.Generating() {
		t.Error("busy flag not cleared")
	}
	if rgbaAt(e, 16, 16) != red {
		t.Error("generated image not applied")
	}
	if e.UndoDepth() != 1 {
		t.Errorf("undo depth = %d, want 1", e.UndoDepth())
	}
	if len(gen.Calls) != 1 || gen.Calls[0].Prompt != "paint it red" {
		t.Errorf("generator calls = %+v", gen.Calls)
	}
}

func TestGenerateFailureLeavesEverythingUntouched(t *testing.T) {
	gen := painter.NewFakeGenerator(painter.Result{}, errors.New("quota exceeded"))
	e := NewEditor(32, 32, gen)
	e.Prompt().Set("anything")
	e.Stroke([]canvas.Point{{X: 5, Y: 5}}, black, 2)
	depth := e.UndoDepth()

	run, err := e.StartGenerate(context.Background())
	if err != nil {
		t.Fatalf("StartGenerate: %v", err)
	}
	if err := e.FinishGenerate(run()); err == nil {
		t.Fatal("want error from failed generation")
	}
	if e.UndoDepth() != depth {
		t.Error("failed generation touched the history")
	}
	if rgbaAt(e, 5, 5) != black {
		t.Error("failed generation touched the surface")
	}
	if e.Generating() {
		t.Error("busy flag stuck after failure")
	}
}

func TestGenerateNoImageInResponse(t *testing.T) {
	gen := painter.NewFakeGenerator(painter.Result{Found: false}, nil)
	e := NewEditor(16, 16, gen)
	e.Prompt().Set("x")

	run, _ := e.StartGenerate(context.Background())
	if err := e.FinishGenerate(run()); !errors.Is(err, ErrNoImage) {
		t.Errorf("err = %v, want ErrNoImage", err)
	}
}

func TestGenerateBusyAndEmptyPrompt(t *testing.T) {
	gen := painter.NewFakeGenerator(painter.Result{}, nil)
	e := NewEditor(16, 16, gen)

	if _, err := e.StartGenerate(context.Background()); !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("empty prompt err = %v", err)
	}

	e.Prompt().Set("x")
	if _, err := e.StartGenerate(context.Background()); err != nil {
		t.Fatalf("StartGenerate: %v", err)
	}
	if _, err := e.StartGenerate(context.Background()); !errors.Is(err, ErrGenerationBusy) {
		t.Errorf("second start err = %v, want ErrGenerationBusy", err)
	}
}

func TestExportWritesTimestampedPNG(t *testing.T) {
	dir := t.TempDir()
	e := NewEditor(16, 16, nil)
	path, err := e.Export(dir)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("export not a decodable png: %v", err)
	}
	base := filepath.Base(path)
	if len(base) != len("sketch-2006-01-02T15-04-05.png") {
		t.Errorf("export name = %q", base)
	}
}
