// Package imageprep turns an arbitrary user image into the canvas the
// video model expects: padded to the closest supported aspect ratio with
// the fuchsia sentinel bars and resampled to that ratio's canonical
// resolution.
package imageprep

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg" // JPEG decoder registration
	"image/png"
	"log"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/webp"

	"motionframe-server/modules/common/aspect"
	"motionframe-server/modules/common/utils"
)

// ErrDecode marks malformed or unsupported input images.
var ErrDecode = errors.New("image decode")

// decodeImage handles the supported input formats. WebP is not wired
// into the stdlib image registry, so it gets sniffed and routed to the
// libwebp binding explicitly.
func decodeImage(data []byte) (image.Image, string, error) {
	if mime, ok := utils.DetectImageMime(data); ok && mime == "image/webp" {
		img, err := webp.Decode(bytes.NewReader(data), &decoder.Options{})
		if err != nil {
			return nil, "", err
		}
		return img, "webp", nil
	}
	return image.Decode(bytes.NewReader(data))
}

// PreparedImage is the submission-ready image plus the metadata that has
// to survive the asynchronous job boundary. OriginalRatio and TargetLabel
// are captured here once and must be carried through unmodified; the crop
// step depends on the exact pre-pad value.
type PreparedImage struct {
	Bytes          []byte
	MimeType       string
	Width          int
	Height         int
	OriginalWidth  int
	OriginalHeight int
	OriginalRatio  float64
	TargetLabel    string
	Padded         bool
	Resampled      bool
}

// Prepare decodes imageBytes, selects the closest supported aspect ratio,
// pads with the sentinel color when the ratio differs, and resamples to
// the target's canonical resolution when the dimensions differ from it.
// Output is always PNG; the only shortcut is a PNG source that already
// matches both ratio and resolution, which passes through untouched.
func Prepare(imageBytes []byte) (*PreparedImage, error) {
	src, format, err := decodeImage(imageBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: image has no pixels", ErrDecode)
	}

	originalRatio := float64(width) / float64(height)
	spec := aspect.ClosestSpec(originalRatio)
	log.Printf("🖼️ [ImagePrep] Input %dx%d (%s, ratio %.4f) → target %s",
		width, height, format, originalRatio, spec.Label)

	prepared := &PreparedImage{
		MimeType:       "image/png",
		OriginalWidth:  width,
		OriginalHeight: height,
		OriginalRatio:  originalRatio,
		TargetLabel:    spec.Label,
	}

	win, padNeeded := aspect.ComputePadding(width, height, spec.Ratio)
	resampleNeeded := win.Width != spec.FloorWidth || win.Height != spec.FloorHeight

	if !padNeeded && !resampleNeeded && format == "png" {
		prepared.Bytes = imageBytes
		prepared.Width = width
		prepared.Height = height
		log.Printf("✅ [ImagePrep] Already %s at %dx%d, passing through", spec.Label, width, height)
		return prepared, nil
	}

	// Flatten onto RGBA before any transform so exotic source color models
	// do not leak into the resampler or the encoder.
	flat := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(flat, flat.Bounds(), src, bounds.Min, draw.Src)

	var canvas image.Image = flat
	if padNeeded {
		padded := image.NewRGBA(image.Rect(0, 0, win.Width, win.Height))
		draw.Draw(padded, padded.Bounds(), image.NewUniform(aspect.PadFill), image.Point{}, draw.Src)
		draw.Draw(padded, image.Rect(win.X, win.Y, win.X+width, win.Y+height), flat, image.Point{}, draw.Src)
		canvas = padded
		prepared.Padded = true
		log.Printf("🟪 [ImagePrep] Padded to %dx%d (offset %d,%d)", win.Width, win.Height, win.X, win.Y)
	}

	if resampleNeeded {
		canvas = imaging.Resize(canvas, spec.FloorWidth, spec.FloorHeight, imaging.Lanczos)
		prepared.Resampled = true
		log.Printf("📐 [ImagePrep] Resampled to %dx%d", spec.FloorWidth, spec.FloorHeight)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode prepared image: %w", err)
	}

	out := canvas.Bounds()
	prepared.Bytes = buf.Bytes()
	prepared.Width = out.Dx()
	prepared.Height = out.Dy()
	log.Printf("✅ [ImagePrep] Prepared %dx%d PNG (%d bytes)", prepared.Width, prepared.Height, len(prepared.Bytes))
	return prepared, nil
}
