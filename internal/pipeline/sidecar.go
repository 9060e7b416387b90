package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultSidecarURL     = "http://localhost:8388"
	defaultSidecarTimeout = 300 * time.Second
	maxErrorBody          = 4096
)

// SidecarConfig holds configuration for the HTTP inference sidecar.
type SidecarConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SidecarBackend instantiates pipelines inside an HTTP inference sidecar
// that hosts the pretrained models.
type SidecarBackend struct {
	cfg    SidecarConfig
	client *http.Client
}

// NewSidecarBackend creates a sidecar backend.
func NewSidecarBackend(cfg SidecarConfig) *SidecarBackend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSidecarURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultSidecarTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &SidecarBackend{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the backend name.
func (b *SidecarBackend) Name() string { return "sidecar" }

type loadRequest struct {
	Model  string `json:"model"`
	Token  string `json:"token"`
	Device string `json:"device"`
}

type loadResponse struct {
	ID     string `json:"id"`
	Model  string `json:"model"`
	Device string `json:"device"`
}

// Load asks the sidecar to instantiate req.Model on req.Device.
func (b *SidecarBackend) Load(ctx context.Context, req LoadRequest) (Pipeline, error) {
	body, err := json.Marshal(loadRequest{Model: req.Model, Token: req.Token, Device: req.Device.Kind})
	if err != nil {
		return nil, fmt.Errorf("encode load request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/pipelines", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "load"); err != nil {
		return nil, err
	}

	var lr loadResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("decode load response: %w", err)
	}
	if lr.ID == "" {
		return nil, fmt.Errorf("load response missing pipeline id")
	}

	return &sidecarPipeline{backend: b, id: lr.ID}, nil
}

type sidecarPipeline struct {
	backend *SidecarBackend
	id      string
}

// Diarize streams the audio file to the sidecar and decodes its result.
func (p *sidecarPipeline) Diarize(ctx context.Context, audioPath string) (Output, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	url := fmt.Sprintf("%s/pipelines/%s/diarize", p.backend.cfg.BaseURL, p.id)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.backend.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("diarization request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "diarize"); err != nil {
		return nil, err
	}

	return decodeOutput(resp.Body)
}

func checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("%s error (status %d): %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
}
