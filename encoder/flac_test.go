package encoder

import (
	"bytes"
	"math"
	"testing"

	"scrawl/audio"
)

func sineSamples(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(audio.SampleRate)))
	}
	return samples
}

func TestFlacEncoderProducesStream(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}

	samples := sineSamples(BlockSize * 3)
	for i := 0; i < len(samples); i += BlockSize {
		if err := enc.EncodeBlock(samples[i : i+BlockSize]); err != nil {
			t.Fatalf("EncodeBlock: %v", err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if enc.TotalFrames() != uint64(len(samples)) {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), len(samples))
	}
	data := enc.Bytes()
	if len(data) == 0 {
		t.Fatal("no encoded output")
	}
	if !bytes.HasPrefix(data, []byte("fLaC")) {
		t.Errorf("output missing flac magic, got % x", data[:4])
	}
}

func TestBlockerHandlesUnevenWrites(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	b := NewBlocker(enc)

	samples := sineSamples(BlockSize + BlockSize/3)
	// Feed in odd-sized slices.
	for i := 0; i < len(samples); i += 1000 {
		end := min(i+1000, len(samples))
		if err := b.Write(samples[i:end]); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if enc.TotalFrames() != uint64(len(samples)) {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), len(samples))
	}
	if !bytes.HasPrefix(b.Bytes(), []byte("fLaC")) {
		t.Error("output missing flac magic")
	}
}
