package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ExecConfig configures the runner-script backend.
type ExecConfig struct {
	// Python is the interpreter, e.g. "python" or a venv path.
	Python string
	// Script is the runner script path.
	Script string
	// TokenEnv is the environment variable the runner reads the token from.
	TokenEnv string
}

// ExecBackend runs the pipeline through a Python runner script:
//
//	<python> <script> load     --model M --device D
//	<python> <script> diarize  --model M --device D --input P
//
// The diarize command prints the result JSON on stdout.
type ExecBackend struct {
	cfg ExecConfig
	// command builds the process; replaced in tests.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewExecBackend creates a runner-script backend.
func NewExecBackend(cfg ExecConfig) *ExecBackend {
	if cfg.Python == "" {
		cfg.Python = "python"
	}
	if cfg.TokenEnv == "" {
		cfg.TokenEnv = "HF_TOKEN"
	}
	return &ExecBackend{cfg: cfg, command: exec.CommandContext}
}

// Name returns the backend name.
func (b *ExecBackend) Name() string { return "exec" }

// Load verifies that the runner can instantiate the model.
func (b *ExecBackend) Load(ctx context.Context, req LoadRequest) (Pipeline, error) {
	p := &execPipeline{backend: b, model: req.Model, device: req.Device.Kind, token: req.Token}
	if _, err := p.run(ctx, "load"); err != nil {
		return nil, err
	}
	return p, nil
}

type execPipeline struct {
	backend *ExecBackend
	model   string
	device  string
	token   string
}

func (p *execPipeline) Diarize(ctx context.Context, audioPath string) (Output, error) {
	absPath, err := filepath.Abs(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	stdout, err := p.run(ctx, "diarize", "--input", absPath)
	if err != nil {
		return nil, err
	}
	return decodeOutput(bytes.NewReader(stdout))
}

func (p *execPipeline) run(ctx context.Context, command string, extra ...string) ([]byte, error) {
	args := []string{p.backend.cfg.Script, command, "--model", p.model, "--device", p.device}
	args = append(args, extra...)

	cmd := p.backend.command(ctx, p.backend.cfg.Python, args...)
	cmd.Env = append(os.Environ(), p.backend.cfg.TokenEnv+"="+p.token)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("runner %s failed: %w\nOutput: %s", command, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
