package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"media-toolkit/internal/domain"
)

// MediaInfo is the subset of ffprobe output the video actions rely on.
type MediaInfo struct {
	DurationSeconds float64
	Width           int
	Height          int
	FPS             float64
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ReadMediaInfo reads duration and video geometry with ffprobe.
func (t *Toolkit) ReadMediaInfo(ctx context.Context, inputPath string) (MediaInfo, domain.CommandLog, error) {
	args := buildFFprobeArgs(inputPath)
	log, err := t.run(ctx, StageProbing, "ffprobe could not read the input media", t.ffprobePath, args...)
	if err != nil {
		return MediaInfo{}, log, err
	}

	info, parseErr := parseFFprobeOutput(log.Stdout)
	if parseErr != nil {
		return MediaInfo{}, log, &ToolError{
			Stage:      StageProbing,
			Message:    parseErr.Error(),
			CommandLog: log,
			Err:        parseErr,
		}
	}
	return info, log, nil
}

// parseFFprobeOutput extracts duration, size and frame rate from ffprobe JSON.
func parseFFprobeOutput(raw string) (MediaInfo, error) {
	var out probeOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return MediaInfo{}, fmt.Errorf("cannot parse ffprobe output: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
	if err != nil || math.IsNaN(duration) || duration <= 0 {
		return MediaInfo{}, fmt.Errorf("input media has no usable duration (%q)", out.Format.Duration)
	}

	info := MediaInfo{DurationSeconds: duration}
	for _, stream := range out.Streams {
		if stream.CodecType != "video" {
			continue
		}
		info.Width = stream.Width
		info.Height = stream.Height
		info.FPS = parseFrameRate(stream.AvgFrameRate)
		if info.FPS <= 0 {
			info.FPS = parseFrameRate(stream.RFrameRate)
		}
		break
	}
	return info, nil
}

// parseFrameRate parses ffprobe rationals such as "30000/1001".
func parseFrameRate(raw string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(raw), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// TargetBitrate returns the video bitrate in bits/second that fits
// targetSizeBytes into durationSeconds.
func TargetBitrate(targetSizeBytes int64, durationSeconds float64) (int64, error) {
	if targetSizeBytes <= 0 {
		return 0, fmt.Errorf("target size must be positive, got %d", targetSizeBytes)
	}
	if math.IsNaN(durationSeconds) || math.IsInf(durationSeconds, 0) || durationSeconds <= 0 {
		return 0, fmt.Errorf("media duration must be positive, got %v", durationSeconds)
	}
	return int64(float64(targetSizeBytes*8) / durationSeconds), nil
}

// CompressVideo re-encodes the input at the bitrate that fits targetSizeBytes.
func (t *Toolkit) CompressVideo(ctx context.Context, inputPath, outputPath string, targetSizeBytes int64) (Result, error) {
	info, ffprobeLog, err := t.ReadMediaInfo(ctx, inputPath)
	if err != nil {
		return Result{}, err
	}

	bitrate, err := TargetBitrate(targetSizeBytes, info.DurationSeconds)
	if err != nil {
		return Result{}, &ToolError{Stage: StageProbing, Message: err.Error(), CommandLog: ffprobeLog, Err: err}
	}

	result, err := t.encode(ctx, outputPath, "ffmpeg compression failed", func(staged string) []string {
		return buildCompressArgs(inputPath, staged, bitrate)
	})
	if err != nil {
		return Result{}, err
	}

	result.Logs = append([]domain.CommandLog{ffprobeLog}, result.Logs...)
	result.Metrics = map[string]float64{
		domain.MetricTargetBitrate:   float64(bitrate),
		domain.MetricDurationSeconds: info.DurationSeconds,
	}
	return result, nil
}

// ConvertVideo re-encodes the input to an H.264/AAC MP4.
func (t *Toolkit) ConvertVideo(ctx context.Context, inputPath, outputPath string) (Result, error) {
	return t.encode(ctx, outputPath, "ffmpeg conversion failed", func(staged string) []string {
		return buildConvertArgs(inputPath, staged)
	})
}

// encode runs ffmpeg into a staging file and moves it over outputPath on success.
func (t *Toolkit) encode(ctx context.Context, outputPath, failMessage string, argsFor func(staged string) []string) (Result, error) {
	staged, err := t.stageOutput(outputPath)
	if err != nil {
		return Result{}, err
	}

	log, err := t.run(ctx, StageEncoding, failMessage, t.ffmpegPath, argsFor(staged)...)
	if err != nil {
		_ = t.remove(staged)
		return Result{}, err
	}
	if err := t.requireOutput(staged, StageEncoding, "ffmpeg completed but produced no output", log); err != nil {
		_ = t.remove(staged)
		return Result{}, err
	}
	if err := t.commitOutput(staged, outputPath); err != nil {
		return Result{}, err
	}

	return Result{OutputPath: outputPath, Logs: []domain.CommandLog{log}}, nil
}

// ExportGIF extracts frames with ffmpeg into a scoped temp dir and encodes
// them as a looping GIF. The temp dir is removed on every exit path.
func (t *Toolkit) ExportGIF(ctx context.Context, inputPath, outputPath string) (Result, error) {
	tempDir, err := t.mkdirTemp("", "media-toolkit-gif-*")
	if err != nil {
		return Result{}, &ToolError{
			Stage:   StageExtracting,
			Message: "failed to create temporary workspace",
			Err:     err,
		}
	}
	defer func() { _ = t.removeAll(tempDir) }()

	// One frame past the cap is extracted so an over-long clip is detected
	// without decoding the rest of it.
	args := buildFrameExtractArgs(inputPath, filepath.Join(tempDir, "frame_%05d.png"), t.gifFPS, t.gifMaxFrames+1)
	log, err := t.run(ctx, StageExtracting, "ffmpeg frame extraction failed", t.ffmpegPath, args...)
	if err != nil {
		return Result{}, err
	}

	frames, err := t.listFrames(tempDir)
	if err != nil {
		return Result{}, &ToolError{Stage: StageExtracting, Message: "cannot list extracted frames", CommandLog: log, Err: err}
	}
	if len(frames) == 0 {
		return Result{}, &ToolError{Stage: StageExtracting, Message: "ffmpeg produced no frames", CommandLog: log}
	}
	if len(frames) > t.gifMaxFrames {
		return Result{}, &ToolError{
			Stage:      StageExtracting,
			Message:    fmt.Sprintf("clip is too long for a GIF: more than %d frames at %d fps", t.gifMaxFrames, t.gifFPS),
			CommandLog: log,
		}
	}

	anim, err := t.buildGIF(ctx, frames)
	if err != nil {
		return Result{}, err
	}

	staged, err := t.stageOutput(outputPath)
	if err != nil {
		return Result{}, err
	}
	if err := writeGIF(staged, anim); err != nil {
		_ = t.remove(staged)
		return Result{}, &ToolError{Stage: StageAssembling, Message: "failed to write GIF", Err: err}
	}
	if err := t.commitOutput(staged, outputPath); err != nil {
		return Result{}, err
	}

	return Result{
		OutputPath: outputPath,
		Metrics:    map[string]float64{domain.MetricFrames: float64(len(frames))},
		Logs:       []domain.CommandLog{log},
	}, nil
}

// listFrames returns extracted frame files in playback order.
func (t *Toolkit) listFrames(dir string) ([]string, error) {
	entries, err := t.readDir(dir)
	if err != nil {
		return nil, err
	}

	frames := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "frame_") || !strings.HasSuffix(name, ".png") {
			continue
		}
		frames = append(frames, filepath.Join(dir, name))
	}
	sort.Strings(frames)
	return frames, nil
}

// buildGIF decodes, downsizes and palettes every frame.
func (t *Toolkit) buildGIF(ctx context.Context, frames []string) (*gif.GIF, error) {
	delay := int(math.Round(100 / float64(t.gifFPS)))
	if delay < 2 {
		delay = 2
	}

	anim := &gif.GIF{LoopCount: 0}
	for _, frame := range frames {
		if err := cancelled(ctx, StageAssembling); err != nil {
			return nil, err
		}

		img, err := imaging.Open(frame)
		if err != nil {
			return nil, &ToolError{Stage: StageAssembling, Message: fmt.Sprintf("cannot decode frame: %s", filepath.Base(frame)), Err: err}
		}
		if t.gifMaxWidth > 0 && img.Bounds().Dx() > t.gifMaxWidth {
			img = imaging.Resize(img, t.gifMaxWidth, 0, imaging.Lanczos)
		}

		bounds := img.Bounds()
		paletted := image.NewPaletted(bounds, palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, bounds, img, bounds.Min)
		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, delay)
	}
	return anim, nil
}

func writeGIF(path string, anim *gif.GIF) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gif.EncodeAll(f, anim); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// buildFFprobeArgs builds ffprobe args for JSON format and stream info.
func buildFFprobeArgs(inputPath string) []string {
	return []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}
}

// buildCompressArgs builds H.264 args constrained to a target bitrate.
func buildCompressArgs(inputPath, outPath string, bitrate int64) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "medium",
		"-b:v", strconv.FormatInt(bitrate, 10),
		"-c:a", "aac",
		"-b:a", "128k",
		outPath,
	}
}

// buildConvertArgs builds args for a broadly playable MP4.
func buildConvertArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "medium",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		outPath,
	}
}

// buildFrameExtractArgs builds args that dump at most maxFrames PNG frames
// at a fixed rate.
func buildFrameExtractArgs(inputPath, framePattern string, fps, maxFrames int) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-an",
		"-vf", fmt.Sprintf("fps=%d", fps),
		"-frames:v", strconv.Itoa(maxFrames),
		framePattern,
	}
}
