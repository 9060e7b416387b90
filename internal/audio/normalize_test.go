package audio

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func helperCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
	return cmd
}

// TestHelperProcess plays ffmpeg: it writes the last argument as the output
// file, or fails when the input is named "corrupt.webm".
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 4 {
		os.Exit(2)
	}
	if filepath.Base(args[3]) == "corrupt.webm" {
		os.Stderr.WriteString("Invalid data found when processing input\n")
		os.Exit(1)
	}
	if err := os.WriteFile(args[len(args)-1], []byte("RIFF"), 0o644); err != nil {
		os.Exit(3)
	}
}

func TestNormalize(t *testing.T) {
	dir := t.TempDir()
	n := NewNormalizer("", dir)
	n.command = helperCommand

	out, err := n.Normalize(context.Background(), filepath.Join(dir, "in.webm"))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if filepath.Dir(out) != dir || !strings.HasPrefix(filepath.Base(out), "normalized_") || filepath.Ext(out) != ".wav" {
		t.Errorf("unexpected output path %s", out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output not written: %v", err)
	}
}

func TestNormalize_Failure(t *testing.T) {
	dir := t.TempDir()
	n := NewNormalizer("ffmpeg", dir)
	n.command = helperCommand

	_, err := n.Normalize(context.Background(), filepath.Join(dir, "corrupt.webm"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("expected ffmpeg output in error, got %v", err)
	}
}
