package imageprep

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"motionframe-server/modules/common/aspect"
	"motionframe-server/modules/common/utils"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte) (image.Image, int, int) {
	t.Helper()
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode prepared image: %v", err)
	}
	if format != "png" {
		t.Errorf("prepared image format = %s, want png", format)
	}
	b := img.Bounds()
	return img, b.Dx(), b.Dy()
}

func assertNearColor(t *testing.T, img image.Image, x, y int, want color.RGBA, tol int) {
	t.Helper()
	got := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
	diff := func(a, b uint8) int {
		d := int(a) - int(b)
		if d < 0 {
			d = -d
		}
		return d
	}
	if diff(got.R, want.R) > tol || diff(got.G, want.G) > tol || diff(got.B, want.B) > tol {
		t.Errorf("pixel (%d,%d) = %v, want near %v", x, y, got, want)
	}
}

func TestPrepareUpscalesExactRatioBelowFloor(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	in := encodePNG(t, solidImage(640, 360, red))

	prepared, err := Prepare(in)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if prepared.TargetLabel != "16:9" {
		t.Errorf("target = %s, want 16:9", prepared.TargetLabel)
	}
	if prepared.Width != 1280 || prepared.Height != 720 {
		t.Errorf("prepared size = %dx%d, want 1280x720", prepared.Width, prepared.Height)
	}
	if prepared.Padded {
		t.Error("exact-ratio input should not be padded")
	}
	if !prepared.Resampled {
		t.Error("below-floor input should be resampled")
	}
	if prepared.OriginalRatio != 640.0/360.0 {
		t.Errorf("original ratio = %v, want %v", prepared.OriginalRatio, 640.0/360.0)
	}

	img, w, h := decodeDims(t, prepared.Bytes)
	if w != 1280 || h != 720 {
		t.Errorf("decoded size = %dx%d, want 1280x720", w, h)
	}
	assertNearColor(t, img, 640, 360, red, 3)
}

func TestPreparePadsAndNormalizesFourThree(t *testing.T) {
	blue := color.RGBA{B: 255, A: 255}
	in := encodePNG(t, solidImage(1024, 768, blue))

	prepared, err := Prepare(in)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if prepared.TargetLabel != "16:9" {
		t.Errorf("target = %s, want 16:9", prepared.TargetLabel)
	}
	if !prepared.Padded || !prepared.Resampled {
		t.Errorf("expected padded and resampled, got padded=%v resampled=%v",
			prepared.Padded, prepared.Resampled)
	}

	img, w, h := decodeDims(t, prepared.Bytes)
	if w != 1280 || h != 720 {
		t.Errorf("decoded size = %dx%d, want 1280x720", w, h)
	}

	// Content occupies the middle; the pillarbox bars start around x=159
	// after the 1365x768 canvas is resampled down to 1280x720.
	assertNearColor(t, img, 40, 360, aspect.PadFill, 3)
	assertNearColor(t, img, 1240, 360, aspect.PadFill, 3)
	assertNearColor(t, img, 640, 360, blue, 3)
}

func TestPrepareSquareSelectsNineSixteen(t *testing.T) {
	green := color.RGBA{G: 200, A: 255}
	in := encodePNG(t, solidImage(500, 500, green))

	prepared, err := Prepare(in)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if prepared.TargetLabel != "9:16" {
		t.Errorf("target = %s, want 9:16", prepared.TargetLabel)
	}
	if prepared.Width != 720 || prepared.Height != 1280 {
		t.Errorf("prepared size = %dx%d, want 720x1280", prepared.Width, prepared.Height)
	}

	img, w, h := decodeDims(t, prepared.Bytes)
	if w != 720 || h != 1280 {
		t.Errorf("decoded size = %dx%d, want 720x1280", w, h)
	}

	// Bars sit above and below: the 500x888 canvas puts content at y=194,
	// which lands around y=280 after resampling to 720x1280.
	assertNearColor(t, img, 360, 60, aspect.PadFill, 3)
	assertNearColor(t, img, 360, 1220, aspect.PadFill, 3)
	assertNearColor(t, img, 360, 640, green, 3)
}

func TestPreparePassthroughForCanonicalPNG(t *testing.T) {
	in := encodePNG(t, solidImage(1280, 720, color.RGBA{R: 10, G: 20, B: 30, A: 255}))

	prepared, err := Prepare(in)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if prepared.Padded || prepared.Resampled {
		t.Errorf("canonical input transformed: padded=%v resampled=%v",
			prepared.Padded, prepared.Resampled)
	}
	if !bytes.Equal(prepared.Bytes, in) {
		t.Error("canonical PNG input should pass through byte-identical")
	}
}

func TestPrepareResamplesAboveFloor(t *testing.T) {
	in := encodePNG(t, solidImage(1920, 1080, color.RGBA{R: 128, G: 128, A: 255}))

	prepared, err := Prepare(in)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if prepared.Padded {
		t.Error("exact-ratio input should not be padded")
	}
	if !prepared.Resampled {
		t.Error("non-canonical resolution should be resampled")
	}
	if prepared.Width != 1280 || prepared.Height != 720 {
		t.Errorf("prepared size = %dx%d, want 1280x720", prepared.Width, prepared.Height)
	}
}

func TestPrepareReencodesJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solidImage(1280, 720, color.RGBA{R: 200, A: 255}), nil); err != nil {
		t.Fatalf("failed to encode test JPEG: %v", err)
	}
	in := buf.Bytes()

	prepared, err := Prepare(in)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if prepared.MimeType != "image/png" {
		t.Errorf("mime type = %s, want image/png", prepared.MimeType)
	}
	if bytes.Equal(prepared.Bytes, in) {
		t.Error("JPEG input must be re-encoded, not passed through")
	}
	decodeDims(t, prepared.Bytes)
}

func TestPrepareDecodesWebP(t *testing.T) {
	pngBytes := encodePNG(t, solidImage(1280, 720, color.RGBA{R: 180, G: 50, A: 255}))
	webpBytes, err := utils.ConvertPNGToWebP(pngBytes, 90)
	if err != nil {
		t.Fatalf("failed to encode test WebP: %v", err)
	}

	prepared, err := Prepare(webpBytes)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if prepared.MimeType != "image/png" {
		t.Errorf("mime type = %s, want image/png", prepared.MimeType)
	}
	if prepared.Padded || prepared.Resampled {
		t.Errorf("canonical-size WebP transformed: padded=%v resampled=%v",
			prepared.Padded, prepared.Resampled)
	}

	// WebP never passes through; the output must be a decodable PNG.
	_, w, h := decodeDims(t, prepared.Bytes)
	if w != 1280 || h != 720 {
		t.Errorf("decoded size = %dx%d, want 1280x720", w, h)
	}
}

func TestPrepareRejectsGarbage(t *testing.T) {
	_, err := Prepare([]byte("definitely not an image"))
	if err == nil {
		t.Fatal("expected an error for garbage input")
	}
	if !errors.Is(err, ErrDecode) {
		t.Errorf("error %v is not ErrDecode", err)
	}
}
