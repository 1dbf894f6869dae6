package videogen

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"

	"motionframe-server/modules/common/aspect"
)

// Cropper restores the original aspect ratio of a generated video by
// center-cropping away the sentinel bars. Requires ffmpeg and ffprobe
// on PATH.
type Cropper struct {
	ffmpegPath  string
	ffprobePath string
	probeSize   func(ctx context.Context, path string) (int, int, error)
}

// NewCropper - Cropper 생성
func NewCropper() *Cropper {
	c := &Cropper{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
	}
	c.probeSize = c.probeVideoSize
	return c
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

func (c *Cropper) probeVideoSize(ctx context.Context, path string) (int, int, error) {
	cmd := exec.CommandContext(ctx, c.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		path)

	out, err := cmd.Output()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: ffprobe failed for %s: %v", ErrCrop, path, err)
	}

	var probed probeOutput
	if err := json.Unmarshal(out, &probed); err != nil {
		return 0, 0, fmt.Errorf("%w: failed to parse ffprobe output: %v", ErrCrop, err)
	}

	for _, stream := range probed.Streams {
		if stream.Width > 0 && stream.Height > 0 {
			return stream.Width, stream.Height, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: no video stream dimensions in %s", ErrCrop, path)
}

// CropToAspect crops inputPath to targetRatio and writes outputPath.
// A video already at the target ratio is copied through unchanged.
func (c *Cropper) CropToAspect(ctx context.Context, inputPath, outputPath string, targetRatio float64) error {
	videoW, videoH, err := c.probeSize(ctx, inputPath)
	if err != nil {
		return err
	}

	videoRatio := float64(videoW) / float64(videoH)
	if aspect.Matches(videoRatio, targetRatio) {
		log.Printf("✂️ [VideoGen] Video already at target ratio, no crop needed")
		return copyFile(inputPath, outputPath)
	}

	win, _ := aspect.ComputeCrop(videoW, videoH, targetRatio)
	log.Printf("✂️ [VideoGen] Cropping %dx%d video to %dx%d at (%d, %d)",
		videoW, videoH, win.Width, win.Height, win.X, win.Y)

	cmd := exec.CommandContext(ctx, c.ffmpegPath, cropArgs(inputPath, outputPath, win)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: ffmpeg failed: %v: %s", ErrCrop, err, string(output))
	}

	log.Printf("✅ [VideoGen] Cropped video written to %s", outputPath)
	return nil
}

func cropArgs(inputPath, outputPath string, win aspect.Window) []string {
	return []string{
		"-y",
		"-nostats",
		"-hide_banner",
		"-loglevel", "warning",
		"-i", inputPath,
		"-vf", fmt.Sprintf("crop=%d:%d:%d:%d", win.Width, win.Height, win.X, win.Y),
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "18",
		"-an",
		outputPath,
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %v", ErrCrop, src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: failed to create %s: %v", ErrCrop, dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("%w: failed to copy to %s: %v", ErrCrop, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", ErrCrop, dst, err)
	}
	return nil
}
