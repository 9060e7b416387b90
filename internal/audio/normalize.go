package audio

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// Normalizer converts audio files to 16kHz mono WAV with ffmpeg
type Normalizer struct {
	ffmpeg  string
	tempDir string
	// command builds the process; replaced in tests.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewNormalizer creates a normalizer writing its output into tempDir
func NewNormalizer(ffmpegPath, tempDir string) *Normalizer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Normalizer{ffmpeg: ffmpegPath, tempDir: tempDir, command: exec.CommandContext}
}

// Normalize converts inputPath and returns the path of the new WAV file.
// The caller owns the returned file.
func (n *Normalizer) Normalize(ctx context.Context, inputPath string) (string, error) {
	outputPath := filepath.Join(n.tempDir, fmt.Sprintf("normalized_%s.wav", uuid.New().String()))

	// FFmpeg command: convert to 16kHz mono WAV
	cmd := n.command(ctx, n.ffmpeg,
		"-i", inputPath,
		"-ar", "16000",      // 16kHz sample rate
		"-ac", "1",          // Mono
		"-c:a", "pcm_s16le", // 16-bit PCM
		"-y",                // Overwrite output
		outputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, string(output))
	}

	return outputPath, nil
}
