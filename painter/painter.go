// Package painter submits the current sketch plus the prompt text to an
// external image-generation endpoint and returns the repainted image.
package painter

import (
	"bytes"
	"context"
	"fmt"
	"image"

	_ "image/jpeg"
	_ "image/png"
)

// Request carries the ordered parts of one generation call: the serialized
// canvas first, then the free-text instruction.
type Request struct {
	ImagePNG []byte
	Prompt   string
}

// Result is the tagged outcome of scanning the response: either the first
// image payload found, or nothing usable.
type Result struct {
	Image    []byte
	MimeType string
	Found    bool
}

type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (Result, error)
}

// DecodeImage decodes the image payload of a found result.
func DecodeImage(res Result) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(res.Image))
	if err != nil {
		return nil, fmt.Errorf("decoding generated image: %w", err)
	}
	return img, nil
}
