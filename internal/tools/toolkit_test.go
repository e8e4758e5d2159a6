package tools

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-toolkit/internal/domain"
)

// fakeRunner simulates command execution order and outcomes.
type fakeRunner struct {
	run func(ctx context.Context, name string, args ...string) (commandResult, error)
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	if f.run == nil {
		return commandResult{}, nil
	}
	return f.run(ctx, name, args...)
}

const ffprobeJSON = `{"streams":[{"codec_type":"audio"},{"codec_type":"video","width":1920,"height":1080,"avg_frame_rate":"30000/1001"}],"format":{"duration":"%s"}}`

// TestCompressVideoComputesBitrateAndStagesOutput checks the 16 MiB / 60 s scenario.
func TestCompressVideoComputesBitrateAndStagesOutput(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "in", "clip.mov")
	output := filepath.Join(root, "out", "small.mov")
	mustWriteFile(t, input, "media")

	var ffmpegArgs []string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			switch name {
			case "ffprobe-custom":
				return commandResult{Stdout: fmt.Sprintf(ffprobeJSON, "60.000000")}, nil
			case "ffmpeg-custom":
				ffmpegArgs = append([]string{}, args...)
				mustWriteFile(t, args[len(args)-1], "encoded")
				return commandResult{}, nil
			default:
				t.Fatalf("unexpected command %q", name)
				return commandResult{}, nil
			}
		},
	}

	tk := NewToolkitForTests(Options{FFmpegPath: "ffmpeg-custom", FFprobePath: "ffprobe-custom"}, runner, nil, nil)
	result, err := tk.CompressVideo(context.Background(), input, output, domain.DefaultTargetSizeBytes)
	if err != nil {
		t.Fatalf("CompressVideo() error = %v", err)
	}

	if got := argValue(ffmpegArgs, "-b:v"); got != "2236962" {
		t.Fatalf("-b:v = %q, want 2236962", got)
	}
	if got := argValue(ffmpegArgs, "-c:v"); got != "libx264" {
		t.Fatalf("-c:v = %q, want libx264", got)
	}
	if !hasArg(ffmpegArgs, "-y") {
		t.Fatalf("expected overwrite flag in %v", ffmpegArgs)
	}
	if staged := ffmpegArgs[len(ffmpegArgs)-1]; filepath.Ext(staged) != ".mov" || staged == output {
		t.Fatalf("ffmpeg should write a .mov staging file, got %q", staged)
	}
	if result.OutputPath != output {
		t.Fatalf("output path = %q, want %q", result.OutputPath, output)
	}
	if got := result.Metrics[domain.MetricTargetBitrate]; got != 2236962 {
		t.Fatalf("target bitrate metric = %v", got)
	}
	if len(result.Logs) != 2 {
		t.Fatalf("logs = %d, want ffprobe + encode", len(result.Logs))
	}
	assertDirEntries(t, filepath.Dir(output), "small.mov")
}

// TestCompressVideoZeroDurationFails checks that media without a duration never reaches ffmpeg.
func TestCompressVideoZeroDurationFails(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "clip.mp4")
	mustWriteFile(t, input, "media")

	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			if name == "ffmpeg" {
				t.Fatal("ffmpeg must not run for zero-duration input")
			}
			return commandResult{Stdout: fmt.Sprintf(ffprobeJSON, "0.000000")}, nil
		},
	}

	tk := NewToolkitForTests(Options{}, runner, nil, nil)
	_, err := tk.CompressVideo(context.Background(), input, filepath.Join(root, "out.mp4"), domain.DefaultTargetSizeBytes)

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("error = %v, want *ToolError", err)
	}
	if toolErr.Stage != StageProbing {
		t.Fatalf("stage = %s, want %s", toolErr.Stage, StageProbing)
	}
}

// TestEncodeFailureRemovesStagingFile checks that a failed encode leaves nothing behind.
func TestEncodeFailureRemovesStagingFile(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "in", "clip.avi")
	outDir := filepath.Join(root, "out")
	mustWriteFile(t, input, "media")

	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			mustWriteFile(t, args[len(args)-1], "partial")
			return commandResult{Stderr: "moov atom not found", ExitCode: 1}, errors.New("exit status 1")
		},
	}

	tk := NewToolkitForTests(Options{}, runner, nil, nil)
	_, err := tk.ConvertVideo(context.Background(), input, filepath.Join(outDir, "clip.mp4"))

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("error = %v, want *ToolError", err)
	}
	if toolErr.Stage != StageEncoding {
		t.Fatalf("stage = %s, want %s", toolErr.Stage, StageEncoding)
	}
	if toolErr.CommandLog.ExitCode != 1 || toolErr.CommandLog.Stderr != "moov atom not found" {
		t.Fatalf("command log = %+v", toolErr.CommandLog)
	}
	assertDirEntries(t, outDir)
}

// TestConvertVideoCancelledReportsContextError checks cancellation surfaces as context.Canceled.
func TestConvertVideoCancelledReportsContextError(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "clip.mkv")
	mustWriteFile(t, input, "media")

	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			cancel()
			return commandResult{ExitCode: -1}, errors.New("signal: killed")
		},
	}

	tk := NewToolkitForTests(Options{}, runner, nil, nil)
	_, err := tk.ConvertVideo(ctx, input, filepath.Join(root, "out.mp4"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	assertDirEntries(t, root, "clip.mkv")
}

// TestExportGIFWritesAnimationAndCleansFrames checks frame assembly and temp cleanup.
func TestExportGIFWritesAnimationAndCleansFrames(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "clip.mp4")
	output := filepath.Join(root, "anim.gif")
	mustWriteFile(t, input, "media")

	var framesDir string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			if got := argValue(args, "-vf"); got != "fps=5" {
				t.Fatalf("-vf = %q, want fps=5", got)
			}
			if got := argValue(args, "-frames:v"); got != "601" {
				t.Fatalf("-frames:v = %q, want 601", got)
			}
			pattern := args[len(args)-1]
			framesDir = filepath.Dir(pattern)
			for i := 1; i <= 3; i++ {
				writePNG(t, fmt.Sprintf(pattern, i), 64, 32)
			}
			return commandResult{}, nil
		},
	}

	tk := NewToolkitForTests(Options{GIFFPS: 5, GIFMaxWidth: 32}, runner, nil, nil)
	result, err := tk.ExportGIF(context.Background(), input, output)
	if err != nil {
		t.Fatalf("ExportGIF() error = %v", err)
	}
	if result.Metrics[domain.MetricFrames] != 3 {
		t.Fatalf("frames metric = %v, want 3", result.Metrics[domain.MetricFrames])
	}

	f, err := os.Open(output)
	if err != nil {
		t.Fatalf("open gif: %v", err)
	}
	defer f.Close()
	anim, err := gif.DecodeAll(f)
	if err != nil {
		t.Fatalf("decode gif: %v", err)
	}
	if len(anim.Image) != 3 {
		t.Fatalf("gif frames = %d, want 3", len(anim.Image))
	}
	if w := anim.Image[0].Bounds().Dx(); w != 32 {
		t.Fatalf("frame width = %d, want 32", w)
	}
	if anim.Delay[0] != 20 {
		t.Fatalf("delay = %d, want 20", anim.Delay[0])
	}
	if _, err := os.Stat(framesDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("frames dir should be removed, stat err = %v", err)
	}
}

// TestExportGIFWithoutFramesFails checks the empty extraction path and cleanup.
func TestExportGIFWithoutFramesFails(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "clip.mp4")
	mustWriteFile(t, input, "media")

	var framesDir string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			framesDir = filepath.Dir(args[len(args)-1])
			return commandResult{}, nil
		},
	}

	tk := NewToolkitForTests(Options{}, runner, nil, nil)
	_, err := tk.ExportGIF(context.Background(), input, filepath.Join(root, "anim.gif"))

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("error = %v, want *ToolError", err)
	}
	if _, err := os.Stat(framesDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("frames dir should be removed, stat err = %v", err)
	}
	assertDirEntries(t, root, "clip.mp4")
}

// TestExportGIFRejectsClipPastFrameCap checks long clips fail before any
// frame is decoded and leave nothing behind.
func TestExportGIFRejectsClipPastFrameCap(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "clip.mp4")
	output := filepath.Join(root, "anim.gif")
	mustWriteFile(t, input, "media")

	var framesDir string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			if got := argValue(args, "-frames:v"); got != "5" {
				t.Fatalf("-frames:v = %q, want 5", got)
			}
			pattern := args[len(args)-1]
			framesDir = filepath.Dir(pattern)
			for i := 1; i <= 5; i++ {
				mustWriteFile(t, fmt.Sprintf(pattern, i), "not a png")
			}
			return commandResult{}, nil
		},
	}

	tk := NewToolkitForTests(Options{GIFMaxFrames: 4}, runner, nil, nil)
	_, err := tk.ExportGIF(context.Background(), input, output)

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("error = %v, want *ToolError", err)
	}
	if toolErr.Stage != StageExtracting || !strings.Contains(toolErr.Message, "more than 4 frames") {
		t.Fatalf("tool error = %+v, want frame cap failure while extracting", toolErr)
	}
	if _, err := os.Stat(framesDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("frames dir should be removed, stat err = %v", err)
	}
	assertDirEntries(t, root, "clip.mp4")
}

// TestEnhancePDFMergesPagesInOrder checks zero-padded page discovery and merge order.
func TestEnhancePDFMergesPagesInOrder(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "scan.pdf")
	output := filepath.Join(root, "out", "scan-ocr.pdf")
	mustWriteFile(t, input, "%PDF")

	var tesseractArgs []string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			switch name {
			case "pdftoppm":
				if got := argValue(args, "-r"); got != "150" {
					t.Fatalf("-r = %q, want 150", got)
				}
				prefix := args[len(args)-1]
				for i := 1; i <= 10; i++ {
					mustWriteFile(t, fmt.Sprintf("%s-%02d.png", prefix, i), "png")
				}
			case "tesseract":
				tesseractArgs = append([]string{}, args...)
				mustWriteFile(t, args[1]+".pdf", "page "+args[0])
			default:
				t.Fatalf("unexpected command %q", name)
			}
			return commandResult{}, nil
		},
	}

	var enhanced []string
	enhance := func(src, dst string) error {
		enhanced = append(enhanced, filepath.Base(src))
		mustWriteFile(t, dst, "enhanced")
		return nil
	}
	var merged []string
	merge := func(pages []string, out string) error {
		for _, p := range pages {
			merged = append(merged, filepath.Base(p))
		}
		mustWriteFile(t, out, "%PDF merged")
		return nil
	}

	tk := NewToolkitForTests(Options{PDFDPI: 150, OCRLanguage: "deu"}, runner, merge, enhance)
	result, err := tk.EnhancePDF(context.Background(), input, output)
	if err != nil {
		t.Fatalf("EnhancePDF() error = %v", err)
	}

	if len(enhanced) != 10 || enhanced[0] != "page-01.png" || enhanced[9] != "page-10.png" {
		t.Fatalf("enhanced pages = %v", enhanced)
	}
	wantMerged := []string{"ocr-1.pdf", "ocr-2.pdf", "ocr-3.pdf", "ocr-4.pdf", "ocr-5.pdf", "ocr-6.pdf", "ocr-7.pdf", "ocr-8.pdf", "ocr-9.pdf", "ocr-10.pdf"}
	if strings.Join(merged, ",") != strings.Join(wantMerged, ",") {
		t.Fatalf("merge order = %v, want %v", merged, wantMerged)
	}
	if got := argValue(tesseractArgs, "-l"); got != "deu" {
		t.Fatalf("tesseract -l = %q, want deu", got)
	}
	if tesseractArgs[len(tesseractArgs)-1] != "pdf" {
		t.Fatalf("tesseract should emit pdf, args = %v", tesseractArgs)
	}
	if result.Metrics[domain.MetricPages] != 10 {
		t.Fatalf("pages metric = %v, want 10", result.Metrics[domain.MetricPages])
	}
	assertDirEntries(t, filepath.Dir(output), "scan-ocr.pdf")
}

// TestEnhancePDFZeroPagesFails checks that an empty rasterization creates no output.
func TestEnhancePDFZeroPagesFails(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "empty.pdf")
	output := filepath.Join(root, "out.pdf")
	mustWriteFile(t, input, "%PDF")

	runner := &fakeRunner{}
	merge := func([]string, string) error {
		t.Fatal("merge must not run without pages")
		return nil
	}

	tk := NewToolkitForTests(Options{}, runner, merge, nil)
	_, err := tk.EnhancePDF(context.Background(), input, output)

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("error = %v, want *ToolError", err)
	}
	if toolErr.Stage != StageRasterizing {
		t.Fatalf("stage = %s, want %s", toolErr.Stage, StageRasterizing)
	}
	if _, err := os.Stat(output); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("output must not exist, stat err = %v", err)
	}
}

// TestEnhancePDFPageFailureKeepsExistingOutput checks the destination survives a failed page.
func TestEnhancePDFPageFailureKeepsExistingOutput(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "scan.pdf")
	output := filepath.Join(root, "result.pdf")
	mustWriteFile(t, input, "%PDF")
	mustWriteFile(t, output, "previous result")

	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			if name == "pdftoppm" {
				prefix := args[len(args)-1]
				mustWriteFile(t, prefix+"-1.png", "png")
				mustWriteFile(t, prefix+"-2.png", "png")
				return commandResult{}, nil
			}
			if strings.HasSuffix(args[0], "enhanced-2.png") {
				return commandResult{Stderr: "Error during processing.", ExitCode: 1}, errors.New("exit status 1")
			}
			mustWriteFile(t, args[1]+".pdf", "page")
			return commandResult{}, nil
		},
	}
	enhance := func(src, dst string) error {
		mustWriteFile(t, dst, "enhanced")
		return nil
	}

	tk := NewToolkitForTests(Options{}, runner, nil, enhance)
	_, err := tk.EnhancePDF(context.Background(), input, output)

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("error = %v, want *ToolError", err)
	}
	if toolErr.Stage != StageOCR {
		t.Fatalf("stage = %s, want %s", toolErr.Stage, StageOCR)
	}
	data, readErr := os.ReadFile(output)
	if readErr != nil || string(data) != "previous result" {
		t.Fatalf("existing output changed: %q, %v", data, readErr)
	}
	assertDirEntries(t, root, "result.pdf", "scan.pdf")
}

// TestConvertAudioCodecPerFormat checks the encoder chosen for each format.
func TestConvertAudioCodecPerFormat(t *testing.T) {
	want := map[domain.AudioFormat]string{
		domain.AudioFormatMP3:  "libmp3lame",
		domain.AudioFormatWAV:  "pcm_s16le",
		domain.AudioFormatFLAC: "flac",
		domain.AudioFormatOGG:  "libvorbis",
	}

	for format, codec := range want {
		root := t.TempDir()
		input := filepath.Join(root, "song.wav")
		output := filepath.Join(root, "song"+format.Extension())
		mustWriteFile(t, input, "audio")

		var gotArgs []string
		runner := &fakeRunner{
			run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
				gotArgs = append([]string{}, args...)
				mustWriteFile(t, args[len(args)-1], "encoded")
				return commandResult{}, nil
			},
		}

		tk := NewToolkitForTests(Options{}, runner, nil, nil)
		if _, err := tk.ConvertAudio(context.Background(), input, output, format); err != nil {
			t.Fatalf("%s: ConvertAudio() error = %v", format, err)
		}
		if got := argValue(gotArgs, "-c:a"); got != codec {
			t.Fatalf("%s: -c:a = %q, want %q", format, got, codec)
		}
		if !hasArg(gotArgs, "-vn") {
			t.Fatalf("%s: expected -vn in %v", format, gotArgs)
		}
		if _, err := os.Stat(output); err != nil {
			t.Fatalf("%s: output missing: %v", format, err)
		}
	}
}

// TestConvertAudioRejectsUnsupportedFormat checks corrupt format input never runs ffmpeg.
func TestConvertAudioRejectsUnsupportedFormat(t *testing.T) {
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			t.Fatal("ffmpeg must not run")
			return commandResult{}, nil
		},
	}
	tk := NewToolkitForTests(Options{}, runner, nil, nil)
	_, err := tk.ConvertAudio(context.Background(), "/in.wav", "/out.aiff", domain.AudioFormat("aiff"))

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("error = %v, want *ToolError", err)
	}
}

// TestTargetBitrate verifies the size-over-duration formula.
func TestTargetBitrate(t *testing.T) {
	got, err := TargetBitrate(16*1024*1024, 60)
	if err != nil {
		t.Fatalf("TargetBitrate() error = %v", err)
	}
	if got != 2236962 {
		t.Fatalf("TargetBitrate() = %d, want 2236962", got)
	}

	if _, err := TargetBitrate(16*1024*1024, 0); err == nil {
		t.Fatal("expected error for zero duration")
	}
}

// TestParseProbeOutput verifies duration and frame rate parsing.
func TestParseProbeOutput(t *testing.T) {
	info, err := parseFFprobeOutput(fmt.Sprintf(ffprobeJSON, "12.5"))
	if err != nil {
		t.Fatalf("parseFFprobeOutput() error = %v", err)
	}
	if info.DurationSeconds != 12.5 || info.Width != 1920 || info.Height != 1080 {
		t.Fatalf("info = %+v", info)
	}
	if info.FPS < 29.96 || info.FPS > 29.98 {
		t.Fatalf("fps = %v, want ~29.97", info.FPS)
	}

	if _, err := parseFFprobeOutput(`{"format":{"duration":"N/A"}}`); err == nil {
		t.Fatal("expected error for N/A duration")
	}
	if _, err := parseFFprobeOutput("not json"); err == nil {
		t.Fatal("expected error for invalid json")
	}
}

// mustWriteFile creates parent directory and writes file content.
func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir parent: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}

// writePNG writes a solid test image.
func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: 80, B: 160, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// assertDirEntries checks the exact set of names in dir.
func assertDirEntries(t *testing.T, dir string, want ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	got := make([]string, 0, len(entries))
	for _, e := range entries {
		got = append(got, e.Name())
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("dir %s entries = %v, want %v", dir, got, want)
	}
}

// argValue returns value for key-style CLI args.
func argValue(args []string, key string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == key {
			return args[i+1]
		}
	}
	return ""
}

// hasArg reports whether args include the target flag.
func hasArg(args []string, key string) bool {
	for _, arg := range args {
		if arg == key {
			return true
		}
	}
	return false
}
