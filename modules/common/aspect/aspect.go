// Package aspect holds the aspect-ratio geometry shared by the image
// preparer and the video cropper. Pure math, no I/O.
package aspect

import (
	"image/color"
	"math"
)

// RatioTolerance is the threshold under which two aspect ratios are
// treated as equal and no transform is applied.
const RatioTolerance = 1e-5

// PadFill is the sentinel color used for padding bars. The generation
// prompt instructs the model to keep these bars untouched, and the crop
// step relies on them being visually distinct from content. Must stay
// fuchsia, never black or transparent.
var PadFill = color.RGBA{R: 255, G: 0, B: 255, A: 255}

// Window is a rectangle produced by a transform computation. For padding
// it is the enclosing canvas with X/Y as the paste offset of the source.
// For cropping it is the sub-rectangle with X/Y as its top-left corner.
type Window struct {
	Width  int
	Height int
	X      int
	Y      int
}

// Spec is a supported target aspect ratio with its minimum resolution.
// The floor dimensions double as the canonical submission resolution.
type Spec struct {
	Label       string
	Ratio       float64
	FloorWidth  int
	FloorHeight int
}

var (
	Spec16x9 = Spec{Label: "16:9", Ratio: 16.0 / 9.0, FloorWidth: 1280, FloorHeight: 720}
	Spec9x16 = Spec{Label: "9:16", Ratio: 9.0 / 16.0, FloorWidth: 720, FloorHeight: 1280}
)

// Matches reports whether ratio equals target within RatioTolerance.
func Matches(ratio, target float64) bool {
	return math.Abs(ratio-target) < RatioTolerance
}

// ClosestSpec picks the supported spec with the smaller absolute distance
// to ratio. The comparison is strict, so an exact tie lands on 16:9.
func ClosestSpec(ratio float64) Spec {
	if math.Abs(ratio-Spec9x16.Ratio) < math.Abs(ratio-Spec16x9.Ratio) {
		return Spec9x16
	}
	return Spec16x9
}

// ComputePadding returns the canvas that letterboxes or pillarboxes a
// width x height source to targetRatio, with the source centered at the
// returned offset. The canvas only ever grows; content is never scaled or
// cut here. Returns needed=false when the source already matches the
// target within RatioTolerance, so callers can skip re-encoding.
func ComputePadding(width, height int, targetRatio float64) (Window, bool) {
	ratio := float64(width) / float64(height)
	if math.Abs(ratio-targetRatio) < RatioTolerance {
		return Window{Width: width, Height: height}, false
	}

	if ratio > targetRatio {
		// Source wider than target: bars on top and bottom.
		newHeight := int(float64(width) / targetRatio)
		return Window{
			Width:  width,
			Height: newHeight,
			X:      0,
			Y:      (newHeight - height) / 2,
		}, true
	}

	// Source taller than target: bars on the sides.
	newWidth := int(float64(height) * targetRatio)
	return Window{
		Width:  newWidth,
		Height: height,
		X:      (newWidth - width) / 2,
		Y:      0,
	}, true
}

// ComputeCrop is the inverse of ComputePadding: the centered sub-rectangle
// of a width x height frame that has targetRatio. The target ratio must be
// the one captured before padding, not re-derived from the padded frame.
func ComputeCrop(width, height int, targetRatio float64) (Window, bool) {
	ratio := float64(width) / float64(height)
	if math.Abs(ratio-targetRatio) < RatioTolerance {
		return Window{Width: width, Height: height}, false
	}

	if targetRatio > ratio {
		// Target wider than the frame: cut top and bottom.
		cropHeight := int(float64(width) / targetRatio)
		return Window{
			Width:  width,
			Height: cropHeight,
			X:      0,
			Y:      (height - cropHeight) / 2,
		}, true
	}

	// Target taller than the frame: cut the sides.
	cropWidth := int(float64(height) * targetRatio)
	return Window{
		Width:  cropWidth,
		Height: height,
		X:      (width - cropWidth) / 2,
		Y:      0,
	}, true
}
