package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/speaker-diarization/internal/pipeline"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status       string  `json:"status"`
	ModelLoaded  bool    `json:"model_loaded"`
	GPUAvailable bool    `json:"gpu_available"`
	GPUName      *string `json:"gpu_name"`
	Model        string  `json:"model,omitempty"`
	Device       string  `json:"device,omitempty"`
}

// HealthHandler reports pipeline and accelerator state
type HealthHandler struct {
	handle  pipeline.Handle
	gpuName string
}

// NewHealthHandler creates a health handler. gpuName is the accelerator
// found at startup, empty when none.
func NewHealthHandler(handle pipeline.Handle, gpuName string) *HealthHandler {
	return &HealthHandler{handle: handle, gpuName: gpuName}
}

// Handle serves GET /health
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	resp := HealthResponse{
		Status:       "ok",
		ModelLoaded:  h.handle.Loaded(),
		GPUAvailable: h.gpuName != "",
		Model:        h.handle.Model(),
		Device:       h.handle.Device().Kind,
	}
	if h.gpuName != "" {
		name := h.gpuName
		resp.GPUName = &name
	}
	return c.JSON(resp)
}
