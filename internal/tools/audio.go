package tools

import (
	"context"
	"fmt"

	"media-toolkit/internal/domain"
)

// ConvertAudio re-encodes the input audio into the requested format.
func (t *Toolkit) ConvertAudio(ctx context.Context, inputPath, outputPath string, format domain.AudioFormat) (Result, error) {
	codec, ok := audioCodecArgs(format)
	if !ok {
		return Result{}, &ToolError{
			Stage:   StageEncoding,
			Message: fmt.Sprintf("unsupported audio format: %q", format),
		}
	}

	return t.encode(ctx, outputPath, "ffmpeg audio conversion failed", func(staged string) []string {
		return buildAudioArgs(inputPath, staged, codec)
	})
}

// audioCodecArgs maps an audio format to its ffmpeg encoder settings.
func audioCodecArgs(format domain.AudioFormat) ([]string, bool) {
	switch format {
	case domain.AudioFormatMP3:
		return []string{"-c:a", "libmp3lame", "-q:a", "2"}, true
	case domain.AudioFormatWAV:
		return []string{"-c:a", "pcm_s16le"}, true
	case domain.AudioFormatFLAC:
		return []string{"-c:a", "flac"}, true
	case domain.AudioFormatOGG:
		return []string{"-c:a", "libvorbis", "-q:a", "5"}, true
	default:
		return nil, false
	}
}

// buildAudioArgs builds args that drop video streams and re-encode audio.
func buildAudioArgs(inputPath, outPath string, codec []string) []string {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
	}
	args = append(args, codec...)
	return append(args, outPath)
}
